package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const anthropicVersion = "2023-06-01"

// AnthropicConfig configures an AnthropicClient.
type AnthropicConfig struct {
	APIKey    string        `yaml:"api_key" env:"ANTHROPIC_API_KEY"`
	URL       string        `yaml:"url" env:"ANTHROPIC_URL"`
	Model     string        `yaml:"model" env:"ANTHROPIC_MODEL"`
	MaxTokens int           `yaml:"max_tokens" env:"ANTHROPIC_MAX_TOKENS"`
	Timeout   time.Duration `yaml:"timeout" env:"ANTHROPIC_TIMEOUT"`
}

// AnthropicClient generates structured text through the Messages API. It
// has no image capability; pair it with a Gemini Client for images.
type AnthropicClient struct {
	cfg    AnthropicConfig
	apiKey string
	http   *http.Client
}

// NewAnthropicClient validates cfg and returns a ready client.
func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.URL == "" {
		cfg.URL = DefaultAnthropicURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultAnthropicModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8192
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &AnthropicClient{cfg: cfg, apiKey: cfg.APIKey, http: newHTTPClient(cfg.Timeout)}, nil
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateJSON sends prompt with a system instruction describing schema and
// returns the JSON text of the reply.
func (c *AnthropicClient) GenerateJSON(ctx context.Context, prompt string, schema *Schema) (string, error) {
	system := "Return JSON only: no prose, no markdown fences, no explanation."
	if schema != nil {
		schemaJSON, err := json.Marshal(schema)
		if err != nil {
			return "", fmt.Errorf("marshaling schema: %w", err)
		}
		system += "\nThe JSON must match this schema exactly:\n" + string(schemaJSON)
	}

	body := anthropicRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		System:    system,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("reading response body: %w", err)
	}

	var ar anthropicResponse
	if err := json.Unmarshal(respBytes, &ar); err != nil {
		return "", fmt.Errorf("parsing response JSON (HTTP %d, body: %s): %w", resp.StatusCode, truncate(string(respBytes), 200), err)
	}
	if resp.StatusCode != http.StatusOK {
		if ar.Error != nil {
			return "", fmt.Errorf("anthropic: %s: %s", ar.Error.Type, ar.Error.Message)
		}
		return "", fmt.Errorf("anthropic: HTTP %d: %s", resp.StatusCode, truncate(string(respBytes), 200))
	}

	var sb strings.Builder
	for _, block := range ar.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("anthropic: no text content in response (got %d content blocks)", len(ar.Content))
	}
	return stripFences(sb.String()), nil
}
