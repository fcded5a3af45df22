package views

import (
	"bytes"
	"html/template"
	"strings"
	"time"

	"github.com/eringen/nebula"
	"github.com/eringen/nebula/markdown"
)

var funcs = template.FuncMap{
	"markdown":   renderMarkdown,
	"imgsrc":     imageSrc,
	"joinTags":   nebula.JoinTags,
	"pathEscape": nebula.PathEscape,
	"tagClass":   TagClass,
	"statusClass": func(s nebula.PostStatus) string {
		switch s {
		case nebula.StatusPublished:
			return "status status-published"
		case nebula.StatusScheduled:
			return "status status-scheduled"
		}
		return "status status-draft"
	},
	"datetime": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format("2006-01-02 15:04 MST")
	},
	"year": func() int { return time.Now().Year() },
	"add":  func(a, b int) int { return a + b },
}

func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	markdown.RenderMarkdown(&buf, md)
	return template.HTML(buf.String())
}

// imageSrc marks a vetted image reference as safe so inline data images
// survive html/template's URL filter. Anything else renders empty.
func imageSrc(ref string) template.URL {
	ref = strings.TrimSpace(ref)
	if markdown.SafeImageURL(ref) == "" {
		return ""
	}
	return template.URL(ref)
}

// TagClass returns CSS classes for a tag pill, with active variant.
func TagClass(active bool) string {
	if active {
		return "tag tag-active"
	}
	return "tag"
}

func homeMeta(cfg nebula.SiteConfig, activeTag string) nebula.PageMeta {
	title := cfg.Name
	if activeTag != "" {
		title = "#" + activeTag + " | " + cfg.Name
	}
	return nebula.PageMeta{
		Title:       title,
		Description: cfg.Description,
		URL:         nebula.BuildURL(cfg.URL),
		OGType:      "website",
	}
}

func postMeta(cfg nebula.SiteConfig, p nebula.BlogPost) nebula.PageMeta {
	desc := p.MetaDescription
	if desc == "" {
		desc = p.Excerpt
	}
	meta := nebula.PageMeta{
		Title:       p.Title + " | " + cfg.Name,
		Description: desc,
		URL:         nebula.BuildURL(cfg.URL, "blog", p.Slug),
		OGType:      "article",
	}
	if p.CoverImage != "" && !strings.HasPrefix(p.CoverImage, "data:") {
		meta.Image = nebula.AbsoluteURL(cfg.URL, p.CoverImage)
	}
	return meta
}
