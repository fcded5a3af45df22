package content

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/eringen/nebula/genai"
	"github.com/eringen/nebula/logger"
)

// TextGenerator produces a JSON document matching schema for prompt.
type TextGenerator interface {
	GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error)
}

// GeneratedContent is the draft returned by the text model.
type GeneratedContent struct {
	Title           string   `json:"title"`
	Content         string   `json:"content"`
	Excerpt         string   `json:"excerpt"`
	Tags            []string `json:"tags"`
	MetaDescription string   `json:"metaDescription"`
	SuggestedSlug   string   `json:"suggestedSlug"`
}

// Builder turns a topic and a ContentConfig into one generation request.
type Builder struct {
	gen TextGenerator
	log logger.Logger
}

// NewBuilder returns a Builder backed by gen. A nil log discards output.
func NewBuilder(gen TextGenerator, log logger.Logger) *Builder {
	if log == nil {
		log = logger.NewNop()
	}
	return &Builder{gen: gen, log: log}
}

// Generate makes exactly one call to the text model and returns the decoded,
// normalized draft. Invalid input fails with ErrInvalidConfig before the call;
// model errors and incomplete replies fail with ErrGenerationFailed.
func (b *Builder) Generate(ctx context.Context, topic string, cfg ContentConfig) (GeneratedContent, error) {
	if err := validateRequest(topic, cfg); err != nil {
		return GeneratedContent{}, err
	}
	cfg = cfg.WithDefaults()
	topic = strings.TrimSpace(topic)

	raw, err := b.gen.GenerateJSON(ctx, BuildPrompt(topic, cfg), ResponseSchema())
	if err != nil {
		return GeneratedContent{}, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	gc, err := decodeGenerated(raw)
	if err != nil {
		return GeneratedContent{}, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	gc.Content = NormalizeBody(gc.Content, cfg)
	if problems := OutlineOf(gc.Content).Matches(cfg); len(problems) > 0 {
		b.log.Warn("Generated body deviates from requested shape",
			logger.String("topic", topic),
			logger.Strings("problems", problems),
		)
	}
	return gc, nil
}

// BuildPrompt assembles the instruction sent to the text model.
func BuildPrompt(topic string, cfg ContentConfig) string {
	cfg = cfg.WithDefaults()
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write a comprehensive, engaging, and SEO-optimized blog post about: %q.\n", topic)
	fmt.Fprintf(&sb, "The content MUST have exactly %d main sections (H2 headings). Structure it logically.\n", cfg.SectionCount)

	if cfg.IncludeFAQ {
		sb.WriteString(`Include a "Frequently Asked Questions" section at the very end, after all main sections.
Format:
- Use "## Frequently Asked Questions" as the section header.
- Use H3 ("### Question?") for each question.
- Keep answers EXTREMELY concise, precise, and to the point (max 2-3 sentences per answer).
- Include at least 3 Q&A pairs.
`)
	}

	if n := cfg.BodyImages(); n > 0 {
		fmt.Fprintf(&sb, "You must insert exactly %d image placeholders within the body content.\n", n)
		fmt.Fprintf(&sb, "Use the strictly defined format: %s where X is a number from 1 to %d, each used once.\n",
			"[["+placeholderMarker+"X]]", n)
		sb.WriteString("Spread them out evenly between sections. Do not place them at the very start or the very end of the article.\n")
		fmt.Fprintf(&sb, "Example: \"...end of paragraph.%s\\n\\n## Next Section...\"\n", PlaceholderToken(1))
	}

	sb.WriteString("The content should use Markdown formatting for headings (H1, H2, H3), lists, and emphasis.\n")
	sb.WriteString("Return the result as a strictly structured JSON object.")
	return sb.String()
}

// ResponseSchema is the structured shape requested from the text model.
func ResponseSchema() *genai.Schema {
	str := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Description: desc}
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title":           str(""),
			"content":         str("Full blog content in Markdown format."),
			"excerpt":         str("A short summary (approx 2 sentences)."),
			"tags":            {Type: genai.TypeArray, Items: str("")},
			"metaDescription": str(""),
			"suggestedSlug":   str("URL friendly slug"),
		},
		Required: []string{"title", "content", "excerpt", "tags", "metaDescription", "suggestedSlug"},
	}
}

// wireContent uses pointers so absent keys can be told apart from empty ones.
type wireContent struct {
	Title           *string   `json:"title"`
	Content         *string   `json:"content"`
	Excerpt         *string   `json:"excerpt"`
	Tags            *[]string `json:"tags"`
	MetaDescription *string   `json:"metaDescription"`
	SuggestedSlug   *string   `json:"suggestedSlug"`
}

func decodeGenerated(raw string) (GeneratedContent, error) {
	var w wireContent
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &w); err != nil {
		return GeneratedContent{}, fmt.Errorf("decode response: %w", err)
	}

	var missing []string
	check := func(name string, present bool) {
		if !present {
			missing = append(missing, name)
		}
	}
	check("title", w.Title != nil && strings.TrimSpace(*w.Title) != "")
	check("content", w.Content != nil && strings.TrimSpace(*w.Content) != "")
	check("excerpt", w.Excerpt != nil)
	check("tags", w.Tags != nil)
	check("metaDescription", w.MetaDescription != nil)
	check("suggestedSlug", w.SuggestedSlug != nil)
	if len(missing) > 0 {
		return GeneratedContent{}, fmt.Errorf("response missing fields: %s", strings.Join(missing, ", "))
	}

	tags := make([]string, 0, len(*w.Tags))
	for _, t := range *w.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return GeneratedContent{
		Title:           strings.TrimSpace(*w.Title),
		Content:         *w.Content,
		Excerpt:         strings.TrimSpace(*w.Excerpt),
		Tags:            tags,
		MetaDescription: strings.TrimSpace(*w.MetaDescription),
		SuggestedSlug:   strings.TrimSpace(*w.SuggestedSlug),
	}, nil
}
