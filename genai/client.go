// Package genai talks to hosted generative models: structured text
// generation, single image generation and grounded image search. Gemini goes
// through the official SDK; Anthropic through its Messages REST API.
package genai

import (
	"errors"
	"net/http"
	"strings"
	"time"

	gemini "google.golang.org/genai"
)

// Default endpoints and models.
const (
	DefaultAnthropicURL   = "https://api.anthropic.com/v1/messages"
	DefaultTextModel      = "gemini-2.5-flash"
	DefaultImageModel     = "gemini-2.5-flash-image"
	DefaultAnthropicModel = "claude-sonnet-4-5"
	defaultTimeout        = 2 * time.Minute
	maxBodyBytes          = 32 << 20 // inline images are large
)

// ErrMissingAPIKey is returned when a client is built without credentials.
var ErrMissingAPIKey = errors.New("genai: API key is missing")

// Config configures a Client.
type Config struct {
	APIKey     string        `yaml:"api_key" env:"GEMINI_API_KEY"`
	BaseURL    string        `yaml:"base_url" env:"GEMINI_BASE_URL"` // empty uses the SDK default
	TextModel  string        `yaml:"text_model" env:"GEMINI_TEXT_MODEL"`
	ImageModel string        `yaml:"image_model" env:"GEMINI_IMAGE_MODEL"`
	Timeout    time.Duration `yaml:"timeout" env:"GEMINI_TIMEOUT"`
}

func (c *Config) setDefaults() {
	if c.BaseURL != "" && !strings.HasSuffix(c.BaseURL, "/") {
		c.BaseURL += "/"
	}
	if c.TextModel == "" {
		c.TextModel = DefaultTextModel
	}
	if c.ImageModel == "" {
		c.ImageModel = DefaultImageModel
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// Schema describes a structured response. It is the SDK's schema type so
// Gemini receives it unchanged; other providers embed its JSON in the prompt.
type Schema = gemini.Schema

// Schema types.
const (
	TypeObject = gemini.TypeObject
	TypeString = gemini.TypeString
	TypeArray  = gemini.TypeArray
)

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// truncate limits s to maxLen runes, appending "..." if truncated.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.Index(s, "\n"); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
