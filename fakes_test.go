package nebula

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/eringen/nebula/content"
	"github.com/eringen/nebula/genai"
)

// stubText replies with a fixed draft.
type stubText struct {
	reply string
	err   error
	calls int
}

func (s *stubText) GenerateJSON(context.Context, string, *genai.Schema) (string, error) {
	s.calls++
	return s.reply, s.err
}

func draftJSON(t *testing.T, gc content.GeneratedContent) string {
	t.Helper()
	b, err := json.Marshal(gc)
	if err != nil {
		t.Fatalf("marshal draft: %v", err)
	}
	return string(b)
}

// stubImages returns refs in order; an empty ref is a failed slot.
type stubImages struct {
	refs  []string
	calls int
}

func (s *stubImages) GenerateImage(context.Context, string) (string, error) {
	s.calls++
	if s.calls > len(s.refs) || s.refs[s.calls-1] == "" {
		return "", errors.New("no image")
	}
	return s.refs[s.calls-1], nil
}

type stubSearch struct {
	urls []string
	err  error
}

func (s *stubSearch) SearchImages(_ context.Context, _ string, count int) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.urls) > count {
		return s.urls[:count], nil
	}
	return s.urls, nil
}

// fakeComposer hands out numbered posts and fails once failAt calls have
// been made (0 never fails). during, when set, runs inside every call.
type fakeComposer struct {
	mu     sync.Mutex
	calls  int
	failAt int
	during func()
	topics []string
	cfgs   []content.ContentConfig
	opts   []ComposeOptions
}

func (f *fakeComposer) Compose(_ context.Context, topic string, cfg content.ContentConfig, opts ComposeOptions) (BlogPost, content.ImageSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.topics = append(f.topics, topic)
	f.cfgs = append(f.cfgs, cfg)
	f.opts = append(f.opts, opts)
	if f.during != nil {
		f.during()
	}
	if f.failAt > 0 && f.calls >= f.failAt {
		return BlogPost{}, content.ImageSet{}, fmt.Errorf("%w: quota exceeded", content.ErrGenerationFailed)
	}
	set := content.ImageSet{
		Images:    []string{"https://img.example/cover.jpg"},
		Requested: cfg.ImageCount,
	}
	status := opts.Status
	if status == "" {
		status = StatusDraft
	}
	post := BlogPost{
		ID:          fmt.Sprintf("gen-%d", f.calls),
		Title:       fmt.Sprintf("%s #%d", topic, f.calls),
		Content:     "body",
		Excerpt:     "excerpt",
		Tags:        []string{"ai"},
		CoverImage:  set.Images[0],
		Images:      set.Images,
		Author:      opts.Author,
		PublishDate: opts.Now,
		Status:      status,
		Slug:        Slugify(topic),
	}
	return post, set, nil
}

func (f *fakeComposer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// pngDataURL returns a solid w x h PNG as a data URL.
func pngDataURL(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}
