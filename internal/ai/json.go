package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// GenerateJSON asks for a JSON answer and decodes it into out.
func (e *Engine) GenerateJSON(ctx context.Context, prompt string, opts Options, out any) (Result, error) {
	opts.JSON = true
	res, err := e.Generate(ctx, prompt, opts)
	if err != nil {
		return res, err
	}
	if err := json.Unmarshal([]byte(StripFences(res.Text)), out); err != nil {
		return res, fmt.Errorf("%s: decode JSON response: %w", res.Provider, err)
	}
	return res, nil
}

// StripFences removes a surrounding Markdown code fence and any prose around a
// JSON object or array.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		if j := strings.LastIndex(s, "```"); j >= 0 {
			s = s[:j]
		}
		s = strings.TrimSpace(s)
	}
	if s == "" || s[0] == '{' || s[0] == '[' {
		return s
	}
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end <= start {
		return s
	}
	return s[start : end+1]
}
