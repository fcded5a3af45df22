package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/nebula"
	"github.com/eringen/nebula/content"
)

// testEnv points the binary at a temp database and a config file that does
// not exist, so only environment variables apply.
func testEnv(t *testing.T) (configPath, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "nebula.db")
	t.Setenv("DATABASE_PATH", dbPath)
	t.Setenv("LOG_LEVEL", "error")
	return filepath.Join(dir, "missing.yaml"), dbPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCommandTree(t *testing.T) {
	root := newRootCmd(&bytes.Buffer{})
	for _, path := range [][]string{
		{"serve"}, {"generate"}, {"seed"}, {"version"},
		{"schedule", "add"}, {"schedule", "list"}, {"schedule", "run"}, {"schedule", "delete"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "nebula dev\n", out)
}

func TestSeed(t *testing.T) {
	cfg, _ := testEnv(t)

	out, err := execute(t, "-c", cfg, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "seeded welcome post")

	out, err = execute(t, "-c", cfg, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing to do")
}

func TestScheduleAddListDelete(t *testing.T) {
	cfg, _ := testEnv(t)

	out, err := execute(t, "-c", cfg, "schedule", "add", "Go concurrency",
		"--frequency", "custom", "--interval", "12", "--posts", "2", "--images", "3", "--source", "BOTH")
	require.NoError(t, err)
	id := string(bytes.TrimSpace([]byte(out)))
	require.NotEmpty(t, id)

	out, err = execute(t, "-c", cfg, "schedule", "list")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "Go concurrency")
	assert.Contains(t, out, "custom (12h)")

	out, err = execute(t, "-c", cfg, "schedule", "delete", id)
	require.NoError(t, err)
	assert.Equal(t, "deleted "+id+"\n", out)

	_, err = execute(t, "-c", cfg, "schedule", "delete", id)
	var ee *exitErr
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, exitStore, ee.code)
}

func TestScheduleAddInvalid(t *testing.T) {
	cfg, _ := testEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{"custom without interval", []string{"--frequency", "custom"}},
		{"unknown frequency", []string{"--frequency", "hourly"}},
		{"too many posts", []string{"--posts", "11"}},
		{"too many images", []string{"--images", "6"}},
		{"bad source", []string{"--source", "STOCK"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"-c", cfg, "schedule", "add", "topic"}, tt.args...)
			_, err := execute(t, args...)
			var ee *exitErr
			require.ErrorAs(t, err, &ee)
			assert.Equal(t, exitConfig, ee.code)
		})
	}
}

type fakeComposer struct {
	err  error
	opts nebula.ComposeOptions
	cfg  content.ContentConfig
}

func (f *fakeComposer) Compose(_ context.Context, topic string, cfg content.ContentConfig, opts nebula.ComposeOptions) (nebula.BlogPost, content.ImageSet, error) {
	f.opts, f.cfg = opts, cfg
	if f.err != nil {
		return nebula.BlogPost{}, content.ImageSet{}, f.err
	}
	post := nebula.BlogPost{
		ID:          "p1",
		Title:       topic,
		Content:     "## One\n\nbody",
		Excerpt:     "excerpt",
		Author:      opts.Author,
		PublishDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:      opts.Status,
		Slug:        nebula.Slugify(topic),
		CoverImage:  "https://img.example/cover.jpg",
		Images:      []string{"https://img.example/cover.jpg"},
	}
	set := content.ImageSet{
		Images:    post.Images,
		Requested: cfg.ImageCount,
		Failures:  []content.SlotFailure{{Source: content.FromAI, Slot: 2, Err: errors.New("quota")}},
	}
	return post, set, nil
}

func openStore(t *testing.T) *nebula.Store {
	t.Helper()
	store, err := nebula.NewStore(filepath.Join(t.TempDir(), "nebula.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunGenerate(t *testing.T) {
	store := openStore(t)
	comp := &fakeComposer{}
	cfg := content.ContentConfig{ImageCount: 2, SectionCount: 3, ImageSource: content.SourceAI}

	var out bytes.Buffer
	err := runGenerate(context.Background(), &out, store, comp, "Go Generics", cfg, generateFlags{}, "Admin")
	require.NoError(t, err)

	var report generateReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, "p1", report.ID)
	assert.Equal(t, "PUBLISHED", report.Status)
	assert.True(t, report.Stored)
	assert.Equal(t, 2, report.ImagesRequested)
	assert.Equal(t, 1, report.ImagesObtained)
	assert.Equal(t, []string{"ai slot 2: quota"}, report.Failures)
	assert.Equal(t, "Admin", comp.opts.Author)

	saved, err := store.GetPost("p1")
	require.NoError(t, err)
	assert.Equal(t, "go-generics", saved.Slug)
}

func TestRunGenerateDraftAndDryRun(t *testing.T) {
	store := openStore(t)
	comp := &fakeComposer{}

	var out bytes.Buffer
	err := runGenerate(context.Background(), &out, store, comp, "Draft", content.DefaultConfig(),
		generateFlags{draft: true, dryRun: true}, "Admin")
	require.NoError(t, err)
	assert.Equal(t, nebula.StatusDraft, comp.opts.Status)
	assert.Contains(t, out.String(), `"post"`)
	assert.Contains(t, out.String(), `"stored": false`)

	_, err = store.GetPost("p1")
	assert.ErrorIs(t, err, nebula.ErrNotFound)
}

func TestRunGenerateErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"invalid config", content.ErrInvalidConfig, exitConfig},
		{"generation failed", content.ErrGenerationFailed, exitGeneration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := openStore(t)
			err := runGenerate(context.Background(), &bytes.Buffer{}, store, &fakeComposer{err: tt.err},
				"topic", content.DefaultConfig(), generateFlags{}, "Admin")
			var ee *exitErr
			require.ErrorAs(t, err, &ee)
			assert.Equal(t, tt.code, ee.code)

			posts, err := store.ListPosts()
			require.NoError(t, err)
			assert.Empty(t, posts)
		})
	}
}

func TestContentFlags(t *testing.T) {
	f := contentFlags{images: 3, sections: 4, source: "both", faq: true}
	cfg, err := f.config()
	require.NoError(t, err)
	assert.Equal(t, content.SourceBoth, cfg.ImageSource)
	assert.Equal(t, 4, cfg.SectionCount)
	assert.True(t, cfg.IncludeFAQ)

	_, err = (&contentFlags{images: -1, sections: 3, source: "AI"}).config()
	assert.Error(t, err)
}
