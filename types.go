package nebula

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/eringen/nebula/content"
)

// PostStatus is the publication state of a post.
type PostStatus string

const (
	StatusDraft     PostStatus = "DRAFT"
	StatusPublished PostStatus = "PUBLISHED"
	StatusScheduled PostStatus = "SCHEDULED"
)

// ParseStatus accepts a status name in any case. Empty means draft.
func ParseStatus(s string) (PostStatus, bool) {
	switch PostStatus(upper(s)) {
	case "", StatusDraft:
		return StatusDraft, true
	case StatusPublished:
		return StatusPublished, true
	case StatusScheduled:
		return StatusScheduled, true
	}
	return "", false
}

// BlogPost is the persisted post record. Updates always replace the whole
// record.
type BlogPost struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Content         string     `json:"content"`
	Excerpt         string     `json:"excerpt"`
	Tags            []string   `json:"tags"`
	CoverImage      string     `json:"coverImage,omitempty"`
	Images          []string   `json:"images,omitempty"`
	Author          string     `json:"author"`
	PublishDate     time.Time  `json:"publishDate"`
	Status          PostStatus `json:"status"`
	Slug            string     `json:"slug"`
	MetaDescription string     `json:"metaDescription,omitempty"`
}

// Validate checks the fields every stored post needs.
func (p BlogPost) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ID, validation.Required),
		validation.Field(&p.Title, validation.Required),
		validation.Field(&p.Status, validation.Required, validation.In(StatusDraft, StatusPublished, StatusScheduled)),
	)
}

// Published reports whether the post is publicly visible.
func (p BlogPost) Published() bool { return p.Status == StatusPublished }

// Link is the public path of the post.
func (p BlogPost) Link() string { return "/blog/" + p.Slug + "/" }

// Date is the publish date as YYYY-MM-DD.
func (p BlogPost) Date() string {
	if p.PublishDate.IsZero() {
		return ""
	}
	return p.PublishDate.UTC().Format("2006-01-02")
}

// CarouselImages is the list shown in the post header: every image, or just
// the cover when the post has no image list.
func (p BlogPost) CarouselImages() []string {
	if len(p.Images) > 0 {
		return p.Images
	}
	if p.CoverImage != "" {
		return []string{p.CoverImage}
	}
	return nil
}

// Frequency controls how far a schedule's next run moves after each run.
type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
	FrequencyCustom Frequency = "custom"
)

// ScheduleConfig is a recurring generation task.
type ScheduleConfig struct {
	ID            string                `json:"id"`
	Topic         string                `json:"topic"`
	Frequency     Frequency             `json:"frequency"`
	IntervalHours int                   `json:"intervalHours,omitempty"`
	NextRun       time.Time             `json:"nextRun"`
	Enabled       bool                  `json:"enabled"`
	PostsPerRun   int                   `json:"postsPerRun"`
	ContentConfig content.ContentConfig `json:"contentConfig"`
}

// Validate checks a schedule before it is stored.
func (s ScheduleConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.ID, validation.Required),
		validation.Field(&s.Topic, validation.Required),
		validation.Field(&s.Frequency, validation.Required, validation.In(FrequencyDaily, FrequencyWeekly, FrequencyCustom)),
		validation.Field(&s.IntervalHours,
			validation.When(s.Frequency == FrequencyCustom, validation.Required, validation.Min(1)),
		),
		validation.Field(&s.PostsPerRun, validation.Min(0), validation.Max(10)),
		validation.Field(&s.ContentConfig),
	)
}

// Due reports whether the schedule should run at now.
func (s ScheduleConfig) Due(now time.Time) bool {
	return s.Enabled && !s.NextRun.After(now)
}

// Advance returns the next run time counted from a run at from.
func (s ScheduleConfig) Advance(from time.Time) time.Time {
	switch s.Frequency {
	case FrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case FrequencyCustom:
		hours := s.IntervalHours
		if hours <= 0 {
			hours = 24
		}
		return from.Add(time.Duration(hours) * time.Hour)
	default:
		return from.AddDate(0, 0, 1)
	}
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	Image       string
}
