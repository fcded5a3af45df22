package nebula

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eringen/nebula/content"
	"github.com/eringen/nebula/logger"
	"github.com/eringen/nebula/metrics"
)

// PostComposer drafts a complete post for a topic.
type PostComposer interface {
	Compose(ctx context.Context, topic string, cfg content.ContentConfig, opts ComposeOptions) (BlogPost, content.ImageSet, error)
}

// ComposeOptions sets the record fields that do not come from the model.
type ComposeOptions struct {
	Author string
	Status PostStatus // default DRAFT
	Now    time.Time  // default time.Now
}

// Composer chains text generation, image assembly and substitution into a
// BlogPost. It never persists anything.
type Composer struct {
	builder   *content.Builder
	assembler *content.Assembler
	images    *ImageStore
	log       logger.Logger
	metrics   *metrics.Metrics
}

// ComposerOption configures a Composer.
type ComposerOption func(*Composer)

// WithImageStore writes inline images to disk before they are spliced in.
func WithImageStore(s *ImageStore) ComposerOption {
	return func(c *Composer) { c.images = s }
}

// WithComposerLogger sets the composer's logger.
func WithComposerLogger(l logger.Logger) ComposerOption {
	return func(c *Composer) { c.log = l }
}

// WithComposerMetrics records generation outcomes into m.
func WithComposerMetrics(m *metrics.Metrics) ComposerOption {
	return func(c *Composer) { c.metrics = m }
}

// NewComposer returns a Composer over b and a.
func NewComposer(b *content.Builder, a *content.Assembler, opts ...ComposerOption) *Composer {
	c := &Composer{builder: b, assembler: a, log: logger.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose generates the text, gathers images for the generated title and
// splices them in. Text failures are returned; image shortfalls are only
// reported on the ImageSet.
func (c *Composer) Compose(ctx context.Context, topic string, cfg content.ContentConfig, opts ComposeOptions) (BlogPost, content.ImageSet, error) {
	started := time.Now()
	gc, err := c.builder.Generate(ctx, topic, cfg)
	c.metrics.ObserveGeneration(err)
	if err != nil {
		c.log.Error("Content generation failed", logger.String("topic", topic), logger.Error(err))
		return BlogPost{}, content.ImageSet{}, err
	}

	set := c.assembler.Assemble(ctx, gc.Title, cfg)
	c.metrics.ObserveImages(set.SearchRequested, set.SearchObtained, set.AIRequested, set.AIObtained, set.FellBack)

	images := set.Images
	if c.images != nil {
		images = c.images.Materialize(images)
	}

	post := newPostFromGenerated(gc, images, opts)
	c.log.Info("Composed post",
		logger.String("id", post.ID),
		logger.String("title", post.Title),
		logger.Int("images_requested", set.Requested),
		logger.Int("images_obtained", set.Obtained()),
		logger.Bool("search_fallback", set.FellBack),
		logger.Duration("elapsed", time.Since(started)),
	)
	return post, set, nil
}

func newPostFromGenerated(gc content.GeneratedContent, images []string, opts ComposeOptions) BlogPost {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	status := opts.Status
	if status == "" {
		status = StatusDraft
	}
	slug := Slugify(gc.SuggestedSlug)
	if slug == "" {
		slug = Slugify(gc.Title)
	}
	meta := strings.TrimSpace(gc.MetaDescription)
	if meta == "" {
		meta = gc.Excerpt
	}
	cover := ""
	if len(images) > 0 {
		cover = images[0]
	}
	return BlogPost{
		ID:              uuid.NewString(),
		Title:           gc.Title,
		Content:         content.SubstituteImages(gc.Content, gc.Title, images),
		Excerpt:         gc.Excerpt,
		Tags:            gc.Tags,
		CoverImage:      cover,
		Images:          images,
		Author:          opts.Author,
		PublishDate:     now.UTC(),
		Status:          status,
		Slug:            slug,
		MetaDescription: meta,
	}
}
