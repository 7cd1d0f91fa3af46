package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)

	var ids []string
	for _, tool := range c.List() {
		ids = append(ids, tool.ID)
	}
	assert.Equal(t, []string{"tutor", "chat", "summarize", "explain", "notes", "podcast", "flashcards", "exam", "quiz"}, ids)

	fc, ok := c.Get(" Flashcards ")
	require.True(t, ok)
	assert.True(t, fc.JSON)

	prompt, err := fc.Render(PromptData{Input: "Newton's laws", Count: 7, Language: "Hindi"})
	require.NoError(t, err)
	assert.Contains(t, prompt, "exactly 7 flashcards")
	assert.Contains(t, prompt, "in Hindi")
	assert.Contains(t, prompt, "Newton's laws")
}

func TestRender_OptionalOptions(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)
	sum, _ := c.Get("summarize")

	prompt, err := sum.Render(PromptData{Input: "text"})
	require.NoError(t, err)
	assert.Contains(t, prompt, "a short form")

	prompt, err = sum.Render(PromptData{Input: "text", Options: map[string]string{"length": "one-page"}})
	require.NoError(t, err)
	assert.Contains(t, prompt, "one-page form")
}

func TestLoadCatalog_Errors(t *testing.T) {
	_, err := LoadCatalog([]byte("tools:\n  - id: a\n    prompt: x\n  - id: a\n    prompt: y\n"))
	assert.ErrorContains(t, err, "duplicate")

	_, err = LoadCatalog([]byte("tools:\n  - id: bad\n    prompt: \"{{.Input\"\n"))
	assert.Error(t, err)

	c, err := LoadCatalog([]byte("tools:\n  - id: plain\n    prompt: \"{{.Input}}\"\n"))
	require.NoError(t, err)
	tool, _ := c.Get("plain")
	assert.Equal(t, 4000, tool.MaxInput)
}
