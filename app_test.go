package nebula

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/a-h/templ"

	"github.com/eringen/nebula/content"
	"github.com/eringen/nebula/metrics"
)

const testPassword = "correct horse"

func textComponent(s string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	})
}

func testViews() ViewFuncs {
	return ViewFuncs{
		Home: func(posts []BlogPost, activeTag string, tags []string, _ SiteConfig) templ.Component {
			titles := make([]string, len(posts))
			for i, p := range posts {
				titles[i] = p.Title
			}
			return textComponent("home:" + strings.Join(titles, "|"))
		},
		Post: func(post BlogPost, related []BlogPost, _ SiteConfig) templ.Component {
			return textComponent(fmt.Sprintf("post:%s:%d", post.Title, len(related)))
		},
		AdminLogin: func(showError bool, _ string) templ.Component {
			return textComponent(fmt.Sprintf("login:%v", showError))
		},
		AdminDashboard: func(posts []BlogPost, status PostStatus, schedules []ScheduleConfig, _ string) templ.Component {
			return textComponent(fmt.Sprintf("dashboard:%d:%s:%d", len(posts), status, len(schedules)))
		},
		NotFound:    func() templ.Component { return textComponent("not found") },
		ServerError: func() templ.Component { return textComponent("server error") },
	}
}

func newTestApp(t *testing.T, opts ...Option) *App {
	t.Helper()
	cfg := SiteConfig{
		Name:          "Test Blog",
		URL:           "https://example.com",
		AdminPassword: testPassword,
		SessionSecret: "0123456789abcdef0123456789abcdef",
		StaticDir:     t.TempDir(),
		SchedulerTick: -1,
	}
	app := New(cfg, setupTestStore(t), testViews(), opts...)
	if err := app.Setup(); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	t.Cleanup(app.Close)
	return app
}

// client keeps cookies between requests the way a browser would.
type client struct {
	t       *testing.T
	app     *App
	cookies map[string]*http.Cookie
}

func newClient(t *testing.T, app *App) *client {
	return &client{t: t, app: app, cookies: map[string]*http.Cookie{}}
}

func (c *client) do(method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	c.t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	if tok, ok := c.cookies["_csrf"]; ok {
		req.Header.Set("X-CSRF-Token", tok.Value)
	}
	rec := httptest.NewRecorder()
	c.app.Echo.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return rec
}

func (c *client) get(target string) *httptest.ResponseRecorder {
	return c.do(http.MethodGet, target, nil, "")
}

func (c *client) sendJSON(method, target string, v any) *httptest.ResponseRecorder {
	c.t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		c.t.Fatalf("marshal: %v", err)
	}
	return c.do(method, target, bytes.NewReader(b), "application/json")
}

func (c *client) login() {
	c.t.Helper()
	c.get("/admin/")
	tok, ok := c.cookies["_csrf"]
	if !ok {
		c.t.Fatal("no CSRF cookie after GET /admin/")
	}
	form := url.Values{"password": {testPassword}, "_csrf": {tok.Value}}
	rec := c.do(http.MethodPost, "/admin/login/", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if rec.Code != http.StatusSeeOther {
		c.t.Fatalf("login status = %d, body %q", rec.Code, rec.Body.String())
	}
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestSetupRequiresSecrets(t *testing.T) {
	app := New(SiteConfig{SessionSecret: "x"}, setupTestStore(t), testViews())
	if err := app.Setup(); err == nil {
		t.Error("expected error without AdminPassword")
	}
	app = New(SiteConfig{AdminPassword: "x", SessionSecret: "y"}, nil, testViews())
	if err := app.Setup(); err == nil {
		t.Error("expected error without Store")
	}
}

func TestPublicPages(t *testing.T) {
	app := newTestApp(t)
	for _, p := range []BlogPost{
		{ID: "1", Title: "Live Post", Slug: "live-post", Status: StatusPublished, PublishDate: day0, Tags: []string{"go"}},
		{ID: "2", Title: "Draft Post", Slug: "draft-post", Status: StatusDraft, PublishDate: day0},
	} {
		if err := app.Store.SavePost(p); err != nil {
			t.Fatalf("SavePost failed: %v", err)
		}
	}
	c := newClient(t, app)

	rec := c.get("/")
	if rec.Code != http.StatusOK || rec.Body.String() != "home:Live Post" {
		t.Errorf("GET / = %d %q", rec.Code, rec.Body.String())
	}
	if rec := c.get("/blog/live-post/"); rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "post:Live Post") {
		t.Errorf("GET post = %d %q", rec.Code, rec.Body.String())
	}
	if rec := c.get("/blog/draft-post/"); rec.Code != http.StatusNotFound || rec.Body.String() != "not found" {
		t.Errorf("GET draft = %d %q", rec.Code, rec.Body.String())
	}
	if rec := c.get("/blog"); rec.Code != http.StatusMovedPermanently {
		t.Errorf("GET /blog = %d, want a redirect", rec.Code)
	}

	rec = c.get("/feed.xml")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Header().Get("Content-Type"), "rss+xml") {
		t.Errorf("GET /feed.xml = %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "https://example.com/blog/live-post/") || strings.Contains(rec.Body.String(), "draft-post") {
		t.Errorf("feed body = %q", rec.Body.String())
	}
	rec = c.get("/sitemap.xml")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "?tag=go") {
		t.Errorf("GET /sitemap.xml = %d %q", rec.Code, rec.Body.String())
	}
}

func TestAdminAPIRequiresLogin(t *testing.T) {
	app := newTestApp(t)
	c := newClient(t, app)

	rec := c.get("/admin/api/posts")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	body := decodeBody[map[string]string](t, rec)
	if body["error"] != "login required" {
		t.Errorf("error = %q", body["error"])
	}
	if rec := c.get("/admin/"); rec.Body.String() != "login:false" {
		t.Errorf("GET /admin/ = %q, want login page", rec.Body.String())
	}
}

func TestAdminLoginWrongPassword(t *testing.T) {
	app := newTestApp(t)
	c := newClient(t, app)
	c.get("/admin/")
	form := url.Values{"password": {"nope"}, "_csrf": {c.cookies["_csrf"].Value}}
	rec := c.do(http.MethodPost, "/admin/login/", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if rec.Code != http.StatusUnauthorized || rec.Body.String() != "login:true" {
		t.Errorf("wrong password = %d %q", rec.Code, rec.Body.String())
	}
	if rec := c.get("/admin/api/posts"); rec.Code != http.StatusUnauthorized {
		t.Errorf("API after failed login = %d", rec.Code)
	}
}

func TestAdminLoginRejectsMissingCSRF(t *testing.T) {
	app := newTestApp(t)
	c := newClient(t, app)
	form := url.Values{"password": {testPassword}}
	rec := c.do(http.MethodPost, "/admin/login/", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestAdminPostLifecycle(t *testing.T) {
	app := newTestApp(t)
	c := newClient(t, app)
	c.login()

	rec := c.sendJSON(http.MethodPost, "/admin/api/posts", map[string]any{
		"title":   "My New Post",
		"content": "Intro\n\n[[IMAGE_PLACEHOLDER_1]]\n\n## Body\n\nText [[IMAGE_PLACEHOLDER_5]]",
		"excerpt": "Short excerpt",
		"tags":    []string{"go", " "},
		"images":  []string{"https://img.example/cover.jpg", "https://img.example/one.jpg"},
		"status":  "published",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create = %d %q", rec.Code, rec.Body.String())
	}
	post := decodeBody[BlogPost](t, rec)
	if post.ID == "" || post.Slug != "my-new-post" {
		t.Errorf("id = %q slug = %q", post.ID, post.Slug)
	}
	if post.MetaDescription != "Short excerpt" || post.Author != "Admin" || post.Status != StatusPublished {
		t.Errorf("defaults = %q %q %q", post.MetaDescription, post.Author, post.Status)
	}
	if post.CoverImage != "https://img.example/cover.jpg" || len(post.Tags) != 1 {
		t.Errorf("cover = %q tags = %v", post.CoverImage, post.Tags)
	}
	if content.HasPlaceholders(post.Content) || !strings.Contains(post.Content, "![My New Post - Image 1](https://img.example/one.jpg)") {
		t.Errorf("content = %q", post.Content)
	}

	// The public cache sees the save immediately.
	if rec := c.get("/blog/my-new-post/"); rec.Code != http.StatusOK {
		t.Errorf("public post = %d", rec.Code)
	}

	rec = c.sendJSON(http.MethodPut, "/admin/api/posts/"+post.ID, map[string]any{
		"title":  "Renamed Post",
		"status": "draft",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update = %d %q", rec.Code, rec.Body.String())
	}
	updated := decodeBody[BlogPost](t, rec)
	if updated.ID != post.ID || updated.Slug != "renamed-post" || len(updated.Images) != 0 {
		t.Errorf("update is not a full replace: %+v", updated)
	}
	if rec := c.get("/blog/my-new-post/"); rec.Code != http.StatusNotFound {
		t.Errorf("draft still public: %d", rec.Code)
	}

	rec = c.get("/admin/api/posts?status=DRAFT")
	if list := decodeBody[[]BlogPost](t, rec); len(list) != 1 {
		t.Errorf("draft list = %d", len(list))
	}
	if rec := c.get("/admin/api/posts?status=archived"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad status filter = %d", rec.Code)
	}
	if rec := c.get("/admin/"); rec.Body.String() != "dashboard:1::0" {
		t.Errorf("dashboard = %q", rec.Body.String())
	}

	if rec := c.sendJSON(http.MethodPut, "/admin/api/posts/"+post.ID, map[string]any{"title": "  "}); rec.Code != http.StatusBadRequest {
		t.Errorf("empty title = %d", rec.Code)
	}

	if rec := c.do(http.MethodDelete, "/admin/api/posts/"+post.ID, nil, ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete = %d", rec.Code)
	}
	if rec := c.get("/admin/api/posts/" + post.ID); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d", rec.Code)
	}
	if rec := c.do(http.MethodDelete, "/admin/api/posts/"+post.ID, nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("second delete = %d", rec.Code)
	}
}

func TestAdminGenerate(t *testing.T) {
	comp := &fakeComposer{}
	app := newTestApp(t, WithComposer(comp))
	c := newClient(t, app)
	c.login()

	rec := c.sendJSON(http.MethodPost, "/admin/api/generate", map[string]any{"topic": "Go generics"})
	if rec.Code != http.StatusOK {
		t.Fatalf("generate = %d %q", rec.Code, rec.Body.String())
	}
	resp := decodeBody[generateResponse](t, rec)
	if resp.Post.Status != StatusDraft || resp.Post.Author != "Admin" {
		t.Errorf("post = %+v", resp.Post)
	}
	if resp.Images.Requested != 1 || resp.Images.Obtained != 1 {
		t.Errorf("images = %+v", resp.Images)
	}
	if comp.cfgs[0] != content.DefaultConfig() {
		t.Errorf("cfg = %+v, want the editor default", comp.cfgs[0])
	}
	if posts, _ := app.Store.ListPosts(); len(posts) != 0 {
		t.Errorf("generate persisted %d posts", len(posts))
	}

	rec = c.sendJSON(http.MethodPost, "/admin/api/generate", map[string]any{
		"topic":  "Go",
		"config": map[string]any{"imageCount": 4, "includeFaq": true, "sectionCount": 5, "imageSource": "BOTH"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("generate with config = %d", rec.Code)
	}
	want := content.ContentConfig{ImageCount: 4, IncludeFAQ: true, SectionCount: 5, ImageSource: content.SourceBoth}
	if comp.cfgs[1] != want {
		t.Errorf("cfg = %+v, want %+v", comp.cfgs[1], want)
	}
}

func TestAdminGenerateErrors(t *testing.T) {
	app := newTestApp(t)
	c := newClient(t, app)
	c.login()
	if rec := c.sendJSON(http.MethodPost, "/admin/api/generate", map[string]any{"topic": "x"}); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("without composer = %d", rec.Code)
	}

	app = newTestApp(t, WithComposer(&fakeComposer{failAt: 1}))
	c = newClient(t, app)
	c.login()
	rec := c.sendJSON(http.MethodPost, "/admin/api/generate", map[string]any{"topic": "x"})
	if rec.Code != http.StatusBadGateway {
		t.Errorf("failed generation = %d", rec.Code)
	}
}

func TestAdminSchedules(t *testing.T) {
	comp := &fakeComposer{}
	store := setupTestStore(t)
	cfg := SiteConfig{
		AdminPassword: testPassword,
		SessionSecret: "0123456789abcdef0123456789abcdef",
		StaticDir:     t.TempDir(),
		SchedulerTick: -1,
	}
	app := New(cfg, store, testViews(), WithScheduler(NewScheduler(store, comp)))
	if err := app.Setup(); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	t.Cleanup(app.Close)
	c := newClient(t, app)
	c.login()

	// Prime the public cache so the run has to invalidate it.
	if rec := c.get("/"); rec.Body.String() != "home:" {
		t.Fatalf("home = %q", rec.Body.String())
	}

	rec := c.sendJSON(http.MethodPost, "/admin/api/schedules", map[string]any{
		"topic": "Weekly Go", "frequency": "weekly", "enabled": true, "postsPerRun": 1,
		"contentConfig": map[string]any{"imageCount": 2, "imageSource": "search"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create schedule = %d %q", rec.Code, rec.Body.String())
	}
	sc := decodeBody[ScheduleConfig](t, rec)
	if sc.ID == "" || sc.ContentConfig.ImageSource != content.SourceSearch {
		t.Errorf("schedule = %+v", sc)
	}

	if rec := c.sendJSON(http.MethodPost, "/admin/api/schedules", map[string]any{"topic": ""}); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid schedule = %d", rec.Code)
	}
	if list := decodeBody[[]ScheduleConfig](t, c.get("/admin/api/schedules")); len(list) != 1 {
		t.Errorf("schedules = %d, want 1", len(list))
	}

	rec = c.do(http.MethodPost, "/admin/api/schedules/"+sc.ID+"/run", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("run = %d %q", rec.Code, rec.Body.String())
	}
	res := decodeBody[RunResult](t, rec)
	if len(res.PostIDs) != 1 {
		t.Errorf("run result = %+v", res)
	}
	if rec := c.get("/"); rec.Body.String() != "home:Weekly Go #1" {
		t.Errorf("home after run = %q", rec.Body.String())
	}

	if rec := c.do(http.MethodPost, "/admin/api/schedules/missing/run", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("run missing = %d", rec.Code)
	}
	if rec := c.do(http.MethodDelete, "/admin/api/schedules/"+sc.ID, nil, ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete schedule = %d", rec.Code)
	}
}

func TestAdminCoverUpload(t *testing.T) {
	app := newTestApp(t)
	post := BlogPost{ID: "p1", Title: "Cover", Slug: "cover", Status: StatusDraft, CoverImage: "old.jpg", Images: []string{"old.jpg", "body.jpg"}}
	if err := app.Store.SavePost(post); err != nil {
		t.Fatalf("SavePost failed: %v", err)
	}
	c := newClient(t, app)
	c.login()

	raw, _ := base64.StdEncoding.DecodeString(strings.TrimPrefix(pngDataURL(t, 40, 20), "data:image/png;base64,"))
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("image", "cover.png")
	fw.Write(raw)
	mw.Close()

	rec := c.do(http.MethodPost, "/admin/api/posts/p1/cover", &body, mw.FormDataContentType())
	if rec.Code != http.StatusOK {
		t.Fatalf("upload = %d %q", rec.Code, rec.Body.String())
	}
	got := decodeBody[BlogPost](t, rec)
	if !strings.HasPrefix(got.CoverImage, "/public/uploads/") || got.Images[0] != got.CoverImage || got.Images[1] != "body.jpg" {
		t.Errorf("post after upload = %+v", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t, WithMetrics(metrics.New()))
	c := newClient(t, app)
	c.login()
	c.sendJSON(http.MethodPost, "/admin/api/posts", map[string]any{"title": "Counted", "status": "PUBLISHED"})

	rec := c.get("/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `nebula_store_posts_saved_total{status="PUBLISHED"} 1`) {
		t.Errorf("posts_saved counter missing from %q", rec.Body.String())
	}
}
