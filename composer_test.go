package nebula

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/eringen/nebula/content"
)

const threeSectionBody = "Intro paragraph.\n\n## First\n\nAlpha text.\n\n[[IMAGE_PLACEHOLDER_1]]\n\n## Second\n\nBeta text.\n\n[[IMAGE_PLACEHOLDER_2]]\n\n## Third\n\nGamma text."

func newTestComposer(text *stubText, imgs *stubImages, search *stubSearch, opts ...ComposerOption) *Composer {
	var searcher content.ImageSearcher
	if search != nil {
		searcher = search
	}
	b := content.NewBuilder(text, nil)
	a := content.NewAssembler(imgs, searcher, nil)
	return NewComposer(b, a, opts...)
}

func TestComposeSplicesImages(t *testing.T) {
	text := &stubText{reply: draftJSON(t, content.GeneratedContent{
		Title:           "Go Tips",
		Content:         threeSectionBody,
		Excerpt:         "Short tips.",
		Tags:            []string{"go", "tips"},
		MetaDescription: "",
		SuggestedSlug:   "Go Tips & Tricks!",
	})}
	imgs := &stubImages{refs: []string{"https://ai.example/1.png"}}
	search := &stubSearch{urls: []string{"https://s.example/1.jpg", "https://s.example/2.jpg", "https://s.example/3.jpg"}}
	c := newTestComposer(text, imgs, search)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cfg := content.ContentConfig{ImageCount: 3, SectionCount: 3, ImageSource: content.SourceBoth}
	post, set, err := c.Compose(context.Background(), "golang tips", cfg, ComposeOptions{Author: "Admin", Now: now})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	if text.calls != 1 {
		t.Errorf("text calls = %d, want 1", text.calls)
	}
	want := []string{"https://s.example/1.jpg", "https://s.example/2.jpg", "https://ai.example/1.png"}
	if strings.Join(post.Images, ",") != strings.Join(want, ",") {
		t.Errorf("Images = %v, want %v", post.Images, want)
	}
	if post.CoverImage != want[0] {
		t.Errorf("CoverImage = %q, want %q", post.CoverImage, want[0])
	}
	if set.SearchObtained != 2 || set.AIObtained != 1 || set.FellBack {
		t.Errorf("set = %+v", set)
	}
	if !strings.Contains(post.Content, "![Go Tips - Image 1](https://s.example/2.jpg)") {
		t.Errorf("image 1 not spliced: %q", post.Content)
	}
	if !strings.Contains(post.Content, "![Go Tips - Image 2](https://ai.example/1.png)") {
		t.Errorf("image 2 not spliced: %q", post.Content)
	}
	if content.HasPlaceholders(post.Content) {
		t.Errorf("placeholder left in content: %q", post.Content)
	}
	if post.Slug != "go-tips-tricks" {
		t.Errorf("Slug = %q, want %q", post.Slug, "go-tips-tricks")
	}
	if post.MetaDescription != "Short tips." {
		t.Errorf("MetaDescription = %q, want excerpt", post.MetaDescription)
	}
	if post.Status != StatusDraft || post.Author != "Admin" || !post.PublishDate.Equal(now) {
		t.Errorf("record fields = %q %q %v", post.Status, post.Author, post.PublishDate)
	}
	if post.ID == "" {
		t.Error("ID should be set")
	}
}

func TestComposeDropsUnfilledSlots(t *testing.T) {
	text := &stubText{reply: draftJSON(t, content.GeneratedContent{
		Title: "Solo", Content: threeSectionBody, Excerpt: "e", Tags: []string{}, MetaDescription: "m", SuggestedSlug: "solo",
	})}
	// Only the cover arrives.
	imgs := &stubImages{refs: []string{"https://ai.example/cover.png", "", ""}}
	c := newTestComposer(text, imgs, nil)

	post, set, err := c.Compose(context.Background(), "solo", content.ContentConfig{ImageCount: 3}, ComposeOptions{Status: StatusPublished})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if set.Obtained() != 1 || len(set.Failures) != 2 {
		t.Errorf("set = %+v", set)
	}
	if post.CoverImage != "https://ai.example/cover.png" {
		t.Errorf("CoverImage = %q", post.CoverImage)
	}
	if strings.Contains(post.Content, "![") || content.HasPlaceholders(post.Content) {
		t.Errorf("content should have no images or tokens: %q", post.Content)
	}
	if post.Status != StatusPublished {
		t.Errorf("Status = %q", post.Status)
	}
}

func TestComposeNoImages(t *testing.T) {
	text := &stubText{reply: draftJSON(t, content.GeneratedContent{
		Title: "Plain", Content: "## A\n\na\n\n## B\n\nb\n\n## C\n\nc", Excerpt: "e", Tags: []string{"x"}, MetaDescription: "m", SuggestedSlug: "",
	})}
	imgs := &stubImages{}
	c := newTestComposer(text, imgs, &stubSearch{})

	post, _, err := c.Compose(context.Background(), "plain", content.ContentConfig{ImageCount: 0}, ComposeOptions{})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if imgs.calls != 0 {
		t.Errorf("image calls = %d, want 0", imgs.calls)
	}
	if post.CoverImage != "" || len(post.Images) != 0 {
		t.Errorf("expected no images, got %q %v", post.CoverImage, post.Images)
	}
	if post.Slug != "plain" {
		t.Errorf("Slug = %q, want title slug", post.Slug)
	}
}

func TestComposeErrors(t *testing.T) {
	tests := []struct {
		name  string
		topic string
		cfg   content.ContentConfig
		text  *stubText
		want  error
		calls int
	}{
		{"empty topic", "  ", content.DefaultConfig(), &stubText{}, content.ErrInvalidConfig, 0},
		{"negative images", "go", content.ContentConfig{ImageCount: -1}, &stubText{}, content.ErrInvalidConfig, 0},
		{"model error", "go", content.DefaultConfig(), &stubText{err: errors.New("boom")}, content.ErrGenerationFailed, 1},
		{"missing field", "go", content.DefaultConfig(), &stubText{reply: `{"title":"x","content":"y"}`}, content.ErrGenerationFailed, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			imgs := &stubImages{refs: []string{"https://ai.example/1.png"}}
			c := newTestComposer(tt.text, imgs, nil)
			_, _, err := c.Compose(context.Background(), tt.topic, tt.cfg, ComposeOptions{})
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if tt.text.calls != tt.calls {
				t.Errorf("text calls = %d, want %d", tt.text.calls, tt.calls)
			}
			if imgs.calls != 0 {
				t.Errorf("image calls = %d, want 0 after a failed draft", imgs.calls)
			}
		})
	}
}

func TestComposeMaterializesInlineImages(t *testing.T) {
	dir := t.TempDir()
	text := &stubText{reply: draftJSON(t, content.GeneratedContent{
		Title: "Pics", Content: threeSectionBody, Excerpt: "e", Tags: []string{}, MetaDescription: "m", SuggestedSlug: "pics",
	})}
	imgs := &stubImages{refs: []string{pngDataURL(t, 1200, 600), "data:image/png;base64,%%%"}}
	c := newTestComposer(text, imgs, nil, WithImageStore(NewImageStore(dir, nil)))

	post, _, err := c.Compose(context.Background(), "pics", content.ContentConfig{ImageCount: 2}, ComposeOptions{})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if len(post.Images) != 2 {
		t.Fatalf("Images = %d, want 2", len(post.Images))
	}
	if !strings.HasPrefix(post.CoverImage, "/public/uploads/") {
		t.Fatalf("cover not stored: %q", post.CoverImage)
	}
	if _, err := os.Stat(filepath.Join(dir, "uploads", filepath.Base(post.CoverImage))); err != nil {
		t.Errorf("stored cover missing: %v", err)
	}
	// Undecodable inline images stay as they were.
	if post.Images[1] != "data:image/png;base64,%%%" {
		t.Errorf("Images[1] = %q", post.Images[1])
	}
}
