package genai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	gemini "google.golang.org/genai"
)

// Client calls Gemini models through the google.golang.org/genai SDK.
type Client struct {
	cfg    Config
	models *gemini.Models
}

// NewClient validates cfg and returns a ready Client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	cfg.setDefaults()
	sdk, err := gemini.NewClient(context.Background(), &gemini.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     gemini.BackendGeminiAPI,
		HTTPClient:  newHTTPClient(cfg.Timeout),
		HTTPOptions: gemini.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return &Client{cfg: cfg, models: sdk.Models}, nil
}

func (c *Client) generate(ctx context.Context, model, prompt string, config *gemini.GenerateContentConfig) ([]*gemini.Part, error) {
	resp, err := c.models.GenerateContent(ctx, model, gemini.Text(prompt), config)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, nil
	}
	return resp.Candidates[0].Content.Parts, nil
}

// partsText concatenates the answer text of parts, skipping thoughts.
func partsText(parts []*gemini.Part) string {
	var sb strings.Builder
	for _, p := range parts {
		if p != nil && !p.Thought {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// GenerateJSON asks the text model for a JSON document matching schema and
// returns the raw JSON text.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, schema *Schema) (string, error) {
	parts, err := c.generate(ctx, c.cfg.TextModel, prompt, &gemini.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(partsText(parts))
	if text == "" {
		return "", fmt.Errorf("gemini: no text content in response")
	}
	return stripFences(text), nil
}

// GenerateImage asks the image model for one picture and returns it as a
// base64 data URL.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	parts, err := c.generate(ctx, c.cfg.ImageModel, prompt, nil)
	if err != nil {
		return "", err
	}
	for _, p := range parts {
		if p == nil || p.InlineData == nil || len(p.InlineData.Data) == 0 {
			continue
		}
		if len(p.InlineData.Data) > maxBodyBytes {
			return "", fmt.Errorf("gemini: image of %d bytes is too large", len(p.InlineData.Data))
		}
		mime := p.InlineData.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(p.InlineData.Data), nil
	}
	return "", fmt.Errorf("gemini: no image generated")
}

// SearchImages uses search grounding to find up to count public image URLs
// related to topic.
func (c *Client) SearchImages(ctx context.Context, topic string, count int) ([]string, error) {
	if count <= 0 {
		return nil, nil
	}
	prompt := fmt.Sprintf(`Find %d high-quality, publicly accessible image URLs related to %q.
Return ONLY a raw JSON array of strings. Do not include markdown formatting or explanations.
Example: ["https://example.com/img1.jpg", "https://example.com/img2.jpg"]`, count, topic)

	// Search grounding cannot be combined with a JSON response type, so the
	// array is pulled out of free text.
	parts, err := c.generate(ctx, c.cfg.TextModel, prompt, &gemini.GenerateContentConfig{
		Tools: []*gemini.Tool{{GoogleSearch: &gemini.GoogleSearch{}}},
	})
	if err != nil {
		return nil, err
	}
	urls, err := parseURLList(partsText(parts))
	if err != nil {
		return nil, err
	}
	if len(urls) > count {
		urls = urls[:count]
	}
	return urls, nil
}

// parseURLList extracts a JSON array of strings from text and keeps the
// entries that are absolute http(s) URLs.
func parseURLList(text string) ([]string, error) {
	text = stripFences(text)
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("gemini: no JSON array in search response: %s", truncate(text, 120))
	}
	var raw []string
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("gemini: parsing search results: %w", err)
	}
	urls := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		u, err := url.Parse(r)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			continue
		}
		urls = append(urls, r)
	}
	return urls, nil
}
