package tools

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed tools.yaml
var defaultCatalog []byte

// Tool is one catalog entry.
type Tool struct {
	ID          string  `yaml:"id" json:"id"`
	Name        string  `yaml:"name" json:"name"`
	System      string  `yaml:"system" json:"-"`
	Prompt      string  `yaml:"prompt" json:"-"`
	JSON        bool    `yaml:"json" json:"json"`
	MaxInput    int     `yaml:"max_input" json:"max_input"`
	Temperature float64 `yaml:"temperature" json:"-"`

	tmpl *template.Template
}

// PromptData is what a tool prompt template sees.
type PromptData struct {
	Input      string
	Count      int
	Difficulty string
	Subject    string
	Language   string
	Options    map[string]string
}

type Catalog struct {
	tools map[string]*Tool
	order []string
}

// LoadCatalog parses a YAML catalog and compiles every prompt template.
func LoadCatalog(data []byte) (*Catalog, error) {
	var doc struct {
		Tools []*Tool `yaml:"tools"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := &Catalog{tools: make(map[string]*Tool, len(doc.Tools))}
	for _, t := range doc.Tools {
		t.ID = strings.TrimSpace(t.ID)
		if t.ID == "" {
			return nil, fmt.Errorf("catalog: tool without id")
		}
		if _, dup := c.tools[t.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate tool %q", t.ID)
		}
		if t.MaxInput <= 0 {
			t.MaxInput = 4000
		}
		tmpl, err := template.New(t.ID).Option("missingkey=zero").Parse(t.Prompt)
		if err != nil {
			return nil, fmt.Errorf("catalog: tool %q: %w", t.ID, err)
		}
		t.tmpl = tmpl
		c.tools[t.ID] = t
		c.order = append(c.order, t.ID)
	}
	return c, nil
}

// DefaultCatalog loads the embedded tools.yaml.
func DefaultCatalog() (*Catalog, error) {
	return LoadCatalog(defaultCatalog)
}

func (c *Catalog) Get(id string) (*Tool, bool) {
	t, ok := c.tools[strings.ToLower(strings.TrimSpace(id))]
	return t, ok
}

// List returns the tools in catalog order.
func (c *Catalog) List() []*Tool {
	out := make([]*Tool, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.tools[id])
	}
	return out
}

// Render builds the user prompt.
func (t *Tool) Render(data PromptData) (string, error) {
	if data.Options == nil {
		data.Options = map[string]string{}
	}
	var b strings.Builder
	if err := t.tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", t.ID, err)
	}
	return strings.TrimSpace(b.String()), nil
}
