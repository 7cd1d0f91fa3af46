package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// Gemini calls Google's Gemini API through the genai SDK.
type Gemini struct {
	apiKey string
	model  string

	// newClient is swapped in tests.
	newClient func(ctx context.Context, cfg *genai.ClientConfig) (*genai.Client, error)

	mu     sync.Mutex
	client *genai.Client
}

func NewGemini(apiKey, model string) *Gemini {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Gemini{apiKey: strings.TrimSpace(apiKey), model: model, newClient: genai.NewClient}
}

func (g *Gemini) ID() string { return ProviderGoogle }

func (g *Gemini) Configured() bool { return g.apiKey != "" }

// sdk builds the SDK client on first use. A failed build is retried on the next call.
func (g *Gemini) sdk(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	c, err := g.newClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	g.client = c
	return c, nil
}

func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	if !g.Configured() {
		return "", fmt.Errorf("API key not configured")
	}
	client, err := g.sdk(ctx)
	if err != nil {
		return "", fmt.Errorf("create GenAI client: %w", err)
	}

	temp := float32(req.Temperature)
	cfg := &genai.GenerateContentConfig{Temperature: &temp}
	if strings.TrimSpace(req.System) != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil {
				sb.WriteString(part.Text)
			}
		}
		break
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("no completion returned")
	}
	return text, nil
}
