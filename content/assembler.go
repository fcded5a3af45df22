package content

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/eringen/nebula/logger"
)

// ImageGenerator produces one image for prompt, as a URL or data URL.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// ImageSearcher finds up to count image URLs related to topic.
type ImageSearcher interface {
	SearchImages(ctx context.Context, topic string, count int) ([]string, error)
}

// Image sources recorded on slot failures.
const (
	FromSearch = "search"
	FromAI     = "ai"
)

var (
	errNoResults   = errors.New("search returned no usable images")
	errNoGenerator = errors.New("no image generator configured")
	errNoSearcher  = errors.New("no image searcher configured")
)

// SlotFailure records one image that could not be obtained.
type SlotFailure struct {
	Source string
	Slot   int // 1-based position within its source
	Err    error
}

// ImageSet is the outcome of one Assemble call. Images[0] is the cover.
type ImageSet struct {
	Images []string

	Requested       int
	SearchRequested int
	SearchObtained  int
	AIRequested     int // includes the search shortfall after a fallback
	AIObtained      int

	FellBack  bool
	SearchErr error
	Failures  []SlotFailure
}

// Obtained is the number of images actually gathered.
func (s ImageSet) Obtained() int { return len(s.Images) }

// Complete reports whether every requested image was obtained.
func (s ImageSet) Complete() bool { return len(s.Images) >= s.Requested }

// Cover returns the cover image or "".
func (s ImageSet) Cover() string {
	if len(s.Images) == 0 {
		return ""
	}
	return s.Images[0]
}

// SplitSources returns how many images come from search and how many are
// generated. BOTH gives search the larger half.
func SplitSources(cfg ContentConfig) (search, ai int) {
	cfg = cfg.WithDefaults()
	n := cfg.ImageCount
	if n <= 0 {
		return 0, 0
	}
	switch cfg.ImageSource {
	case SourceSearch:
		return n, 0
	case SourceBoth:
		return (n + 1) / 2, n / 2
	default:
		return 0, n
	}
}

// Assembler gathers post images from search and generation.
type Assembler struct {
	gen    ImageGenerator
	search ImageSearcher
	log    logger.Logger
}

// NewAssembler returns an Assembler. Either collaborator may be nil; slots
// that need a missing one are recorded as failures.
func NewAssembler(gen ImageGenerator, search ImageSearcher, log logger.Logger) *Assembler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Assembler{gen: gen, search: search, log: log}
}

// Assemble never fails: missing images are reported on the returned set.
// Search results come first; if search errors or finds nothing the shortfall
// is generated instead, once. Generated images are requested one at a time.
func (a *Assembler) Assemble(ctx context.Context, topic string, cfg ContentConfig) ImageSet {
	searchCount, aiCount := SplitSources(cfg)
	set := ImageSet{
		Requested:       searchCount + aiCount,
		SearchRequested: searchCount,
	}

	if searchCount > 0 {
		found, err := a.searchImages(ctx, topic, searchCount)
		if err != nil {
			a.log.Warn("Image search failed, generating instead",
				logger.String("topic", topic),
				logger.Int("shortfall", searchCount),
				logger.Error(err),
			)
			set.FellBack = true
			set.SearchErr = err
			aiCount += searchCount
		} else {
			set.Images = append(set.Images, found...)
			set.SearchObtained = len(found)
		}
	}

	set.AIRequested = aiCount
	for i := 0; i < aiCount; i++ {
		if err := ctx.Err(); err != nil {
			for j := i; j < aiCount; j++ {
				set.Failures = append(set.Failures, SlotFailure{Source: FromAI, Slot: j + 1, Err: err})
			}
			a.log.Warn("Image generation cancelled",
				logger.Int("remaining", aiCount-i),
				logger.Error(err),
			)
			break
		}
		img, err := a.generate(ctx, imagePrompt(topic, i, len(set.Images) == 0))
		if err != nil {
			set.Failures = append(set.Failures, SlotFailure{Source: FromAI, Slot: i + 1, Err: err})
			a.log.Warn("Image generation failed",
				logger.String("topic", topic),
				logger.Int("slot", i+1),
				logger.Error(err),
			)
			continue
		}
		set.Images = append(set.Images, img)
		set.AIObtained++
	}

	if !set.Complete() {
		a.log.Info("Image set incomplete",
			logger.Int("requested", set.Requested),
			logger.Int("obtained", set.Obtained()),
		)
	}
	return set
}

func (a *Assembler) searchImages(ctx context.Context, topic string, count int) ([]string, error) {
	if a.search == nil {
		return nil, errNoSearcher
	}
	results, err := a.search.SearchImages(ctx, topic, count)
	if err != nil {
		return nil, err
	}
	found := make([]string, 0, count)
	for _, r := range results {
		if r = strings.TrimSpace(r); r != "" {
			found = append(found, r)
		}
		if len(found) == count {
			break
		}
	}
	if len(found) == 0 {
		return nil, errNoResults
	}
	return found, nil
}

func (a *Assembler) generate(ctx context.Context, prompt string) (string, error) {
	if a.gen == nil {
		return "", errNoGenerator
	}
	img, err := a.gen.GenerateImage(ctx, prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(img) == "" {
		return "", errors.New("empty image")
	}
	return img, nil
}

// imagePrompt builds the prompt for the i-th generated image. Only an image
// that will become the cover is framed as one.
func imagePrompt(topic string, i int, cover bool) string {
	variation := fmt.Sprintf("variation %d, different angle or detail", i+1)
	if i == 0 && cover {
		variation = "main cover"
	}
	return fmt.Sprintf("A high-quality, modern, artistic blog image representing: %s. %s. Photorealistic, 4k, cinematic lighting.", topic, variation)
}
