// Package content turns a topic into a structured blog post draft and
// gathers the images that go with it.
package content

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	// ErrInvalidConfig is returned before any external call when the topic or
	// the ContentConfig cannot be used.
	ErrInvalidConfig = errors.New("invalid content request")
	// ErrGenerationFailed is returned when the text model fails or its reply
	// does not carry every required field.
	ErrGenerationFailed = errors.New("content generation failed")
)

// ImageSource selects where post images come from.
type ImageSource string

const (
	SourceAI     ImageSource = "AI"
	SourceSearch ImageSource = "SEARCH"
	SourceBoth   ImageSource = "BOTH"
)

// Limits enforced on ContentConfig.
const (
	DefaultSectionCount = 3
	MaxImageCount       = 5
	MaxSectionCount     = 15
)

// ContentConfig describes the shape of the post to generate.
type ContentConfig struct {
	ImageCount   int         `json:"imageCount"`
	IncludeFAQ   bool        `json:"includeFaq"`
	SectionCount int         `json:"sectionCount"`
	UseCarousel  bool        `json:"useCarousel"`
	ImageSource  ImageSource `json:"imageSource"`
}

// DefaultConfig is the configuration the editor starts from.
func DefaultConfig() ContentConfig {
	return ContentConfig{
		ImageCount:   1,
		SectionCount: DefaultSectionCount,
		ImageSource:  SourceAI,
	}
}

// WithDefaults returns a copy with zero values replaced by defaults.
func (c ContentConfig) WithDefaults() ContentConfig {
	if c.SectionCount == 0 {
		c.SectionCount = DefaultSectionCount
	}
	if c.ImageSource == "" {
		c.ImageSource = SourceAI
	}
	c.ImageSource = ImageSource(strings.ToUpper(string(c.ImageSource)))
	return c
}

// Validate checks the config after defaults have been applied.
func (c ContentConfig) Validate() error {
	c = c.WithDefaults()
	return validation.ValidateStruct(&c,
		validation.Field(&c.ImageCount, validation.Min(0), validation.Max(MaxImageCount)),
		validation.Field(&c.SectionCount, validation.Min(1), validation.Max(MaxSectionCount)),
		validation.Field(&c.ImageSource, validation.In(SourceAI, SourceSearch, SourceBoth)),
	)
}

// BodyImages is the number of images spliced into the body; the first image
// is always the cover.
func (c ContentConfig) BodyImages() int {
	if c.ImageCount <= 1 {
		return 0
	}
	return c.ImageCount - 1
}

// ParseImageSource accepts the source names in any case.
func ParseImageSource(s string) (ImageSource, error) {
	src := ImageSource(strings.ToUpper(strings.TrimSpace(s)))
	switch src {
	case "":
		return SourceAI, nil
	case SourceAI, SourceSearch, SourceBoth:
		return src, nil
	}
	return "", fmt.Errorf("%w: unknown image source %q", ErrInvalidConfig, s)
}

func validateRequest(topic string, cfg ContentConfig) error {
	if err := validation.Validate(strings.TrimSpace(topic), validation.Required.Error("topic is required")); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
