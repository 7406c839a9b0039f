package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/twinbot/twinbot/internal/core"
	"github.com/twinbot/twinbot/internal/registry"
)

func init() {
	registry.RegisterClient("default", func(apiKey, model string) (core.LLMClient, error) {
		return NewClient(apiKey, model), nil
	})
	registry.RegisterClient("openai", func(apiKey, model string) (core.LLMClient, error) {
		return NewClient(apiKey, model), nil
	})
}

const BaseURL = "https://api.openai.com/v1"

// parseContent parses API content that may be string, null, or array of parts
// (e.g. [{"type":"text","text":"..."}]).
func parseContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err == nil {
		var b strings.Builder
		for _, p := range parts {
			if p.Type == "text" {
				b.WriteString(p.Text)
			}
		}
		return b.String()
	}
	return ""
}

// Message represents a chat message (OpenAI format).
type Message = core.Message

// ResponseFormat selects plain text or JSON-object output.
type ResponseFormat struct {
	Type string `json:"type"`
}

// ChatRequest is the request body for chat completions.
type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// ChatResponse is the response from chat completions.
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
			Role    string          `json:"role"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Client calls the OpenAI chat completions API.
type Client struct {
	APIKey  string
	Model   string
	BaseURL string
	HTTP    *http.Client
}

// NewClient creates a client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	return &Client{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: BaseURL,
		HTTP:    http.DefaultClient,
	}
}

// Complete sends messages to OpenAI and returns the assistant reply content.
func (c *Client) Complete(ctx context.Context, messages []core.Message, opts core.CompletionOptions) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("openai: API key not set")
	}
	if c.Model == "" {
		return "", fmt.Errorf("openai: model not set")
	}
	body := ChatRequest{Model: c.Model, Messages: messages}
	if opts.Temperature > 0 {
		t := opts.Temperature
		body.Temperature = &t
	}
	if opts.MaxTokens > 0 {
		body.MaxTokens = opts.MaxTokens
	}
	if opts.JSONMode {
		body.ResponseFormat = &ResponseFormat{Type: "json_object"}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	// Exponential backoff retry for network errors and rate limits
	var resp *http.Response
	var errDo error
	maxRetries := 3
	backoff := 1 * time.Second

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		var req *http.Request
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(raw))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.APIKey)

		resp, errDo = c.HTTP.Do(req)
		if errDo != nil {
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			resp = nil
			continue
		}
		break
	}
	if errDo != nil {
		return "", errDo
	}
	if resp == nil {
		return "", fmt.Errorf("openai: request failed after retries")
	}

	defer resp.Body.Close()
	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai: HTTP %d: %s", resp.StatusCode, string(bodyBytes))
	}
	var out ChatResponse
	if err := json.Unmarshal(bodyBytes, &out); err != nil {
		return "", fmt.Errorf("openai: decode: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("openai: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices in response")
	}
	return parseContent(out.Choices[0].Message.Content), nil
}
