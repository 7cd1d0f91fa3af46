package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	OpenAIBaseURL = "https://api.openai.com/v1"
	GroqBaseURL   = "https://api.groq.com/openai/v1"
)

// ChatClient talks to any OpenAI-compatible chat completions endpoint.
// Groq and OpenAI both use it with different base URLs.
type ChatClient struct {
	id         string
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

type ChatConfig struct {
	ID      string
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

func NewChatClient(cfg ChatConfig) *ChatClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ChatClient{
		id:         cfg.ID,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func NewOpenAI(apiKey, model string, timeout time.Duration) *ChatClient {
	return NewChatClient(ChatConfig{ID: ProviderOpenAI, APIKey: apiKey, BaseURL: OpenAIBaseURL, Model: model, Timeout: timeout})
}

func NewGroq(apiKey, model string, timeout time.Duration) *ChatClient {
	return NewChatClient(ChatConfig{ID: ProviderGroq, APIKey: apiKey, BaseURL: GroqBaseURL, Model: model, Timeout: timeout})
}

func (c *ChatClient) ID() string { return c.id }

func (c *ChatClient) Configured() bool { return c.apiKey != "" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

func (c *ChatClient) Generate(ctx context.Context, req Request) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("API key not configured")
	}

	var messages []chatMessage
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
	}
	if req.JSON {
		body.ResponseFormat = map[string]string{"type": "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(raw, "error.message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return "", &StatusError{Status: res.StatusCode, Message: msg}
	}

	content := gjson.GetBytes(raw, "choices.0.message.content")
	if !content.Exists() {
		return "", fmt.Errorf("no completion returned")
	}
	return strings.TrimSpace(content.String()), nil
}

// StatusError is a non-200 response from a provider API.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.Status, e.Message)
}
