package nebula

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/eringen/nebula/content"
)

func (a *App) handleAdmin(c echo.Context) error {
	if !IsAdmin(c) {
		return Render(c, a.Views.AdminLogin(false, CsrfToken(c)))
	}
	status, ok := ParseStatus(c.QueryParam("status"))
	if !ok || c.QueryParam("status") == "" {
		status = ""
	}
	posts, err := a.Store.ListPostsByStatus(status)
	if err != nil {
		return err
	}
	var schedules []ScheduleConfig
	if a.Scheduler != nil {
		if schedules, err = a.Scheduler.List(); err != nil {
			return err
		}
	}
	return Render(c, a.Views.AdminDashboard(posts, status, schedules, CsrfToken(c)))
}

func (a *App) handleAdminLogin(c echo.Context) error {
	if !a.loginLimiter.Allow(c.RealIP()) {
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	pass := c.FormValue("password")
	if subtle.ConstantTimeCompare([]byte(pass), []byte(a.Config.AdminPassword)) == 1 {
		if err := setAdminSession(c); err != nil {
			return err
		}
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	return RenderStatus(c, http.StatusUnauthorized, a.Views.AdminLogin(true, CsrfToken(c)))
}

func handleAdminLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

func (a *App) handleListPosts(c echo.Context) error {
	raw := c.QueryParam("status")
	status, ok := ParseStatus(raw)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown status "+raw)
	}
	if raw == "" {
		status = ""
	}
	posts, err := a.Store.ListPostsByStatus(status)
	if err != nil {
		return err
	}
	if posts == nil {
		posts = []BlogPost{}
	}
	return c.JSON(http.StatusOK, posts)
}

func (a *App) handleGetPost(c echo.Context) error {
	post, err := a.Store.GetPost(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, post)
}

// postInput is the editor's save payload. Every save replaces the record.
type postInput struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	Excerpt         string    `json:"excerpt"`
	Tags            []string  `json:"tags"`
	CoverImage      string    `json:"coverImage"`
	Images          []string  `json:"images"`
	Author          string    `json:"author"`
	PublishDate     time.Time `json:"publishDate"`
	Status          string    `json:"status"`
	Slug            string    `json:"slug"`
	MetaDescription string    `json:"metaDescription"`
}

func (a *App) postFromInput(in postInput) (BlogPost, error) {
	status, ok := ParseStatus(in.Status)
	if !ok {
		return BlogPost{}, echo.NewHTTPError(http.StatusBadRequest, "unknown status "+in.Status)
	}
	title := strings.TrimSpace(in.Title)
	slug := Slugify(in.Slug)
	if slug == "" {
		slug = Slugify(title)
	}
	excerpt := strings.TrimSpace(in.Excerpt)
	meta := strings.TrimSpace(in.MetaDescription)
	if meta == "" {
		meta = excerpt
	}
	author := strings.TrimSpace(in.Author)
	if author == "" {
		author = a.Config.EditorAuthor
	}
	published := in.PublishDate
	if published.IsZero() {
		published = time.Now()
	}
	images := FilterEmpty(in.Images)
	cover := strings.TrimSpace(in.CoverImage)
	if cover == "" && len(images) > 0 {
		cover = images[0]
	}
	post := BlogPost{
		ID:              in.ID,
		Title:           title,
		Content:         content.SubstituteImages(in.Content, title, images),
		Excerpt:         excerpt,
		Tags:            FilterEmpty(in.Tags),
		CoverImage:      cover,
		Images:          images,
		Author:          author,
		PublishDate:     published.UTC(),
		Status:          status,
		Slug:            slug,
		MetaDescription: meta,
	}
	return post, post.Validate()
}

func (a *App) handleSavePost(c echo.Context) error {
	var in postInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid post payload")
	}
	if id := c.Param("id"); id != "" {
		in.ID = id
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	post, err := a.postFromInput(in)
	if err != nil {
		return err
	}
	if err := a.Store.SavePost(post); err != nil {
		return err
	}
	a.Cache.Invalidate()
	a.Metrics.ObservePostSaved(string(post.Status))
	return c.JSON(http.StatusOK, post)
}

func (a *App) handleDeletePost(c echo.Context) error {
	if err := a.Store.DeletePost(c.Param("id")); err != nil {
		return err
	}
	a.Cache.Invalidate()
	return c.NoContent(http.StatusNoContent)
}

type generateRequest struct {
	Topic  string                 `json:"topic"`
	Config *content.ContentConfig `json:"config"`
}

// generateResponse carries an unsaved draft and how the images turned out.
type generateResponse struct {
	Post   BlogPost     `json:"post"`
	Images imageSummary `json:"images"`
}

type imageSummary struct {
	Requested      int      `json:"requested"`
	Obtained       int      `json:"obtained"`
	SearchFallback bool     `json:"searchFallback"`
	Failures       []string `json:"failures,omitempty"`
}

func summarizeImages(set content.ImageSet) imageSummary {
	s := imageSummary{
		Requested:      set.Requested,
		Obtained:       set.Obtained(),
		SearchFallback: set.FellBack,
	}
	for _, f := range set.Failures {
		s.Failures = append(s.Failures, f.Source+": "+f.Err.Error())
	}
	return s
}

func (a *App) handleGenerate(c echo.Context) error {
	if a.Composer == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "AI generation is not configured")
	}
	if !a.generateLimiter.Allow(c.RealIP()) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "generation limit reached, try again later")
	}
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid generate payload")
	}
	// Without a config the editor asks for text and a single cover image.
	cfg := content.DefaultConfig()
	if req.Config != nil {
		cfg = *req.Config
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), a.Config.GenerateTimeout)
	defer cancel()
	post, set, err := a.Composer.Compose(ctx, req.Topic, cfg, ComposeOptions{
		Author: a.Config.EditorAuthor,
		Status: StatusDraft,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, generateResponse{Post: post, Images: summarizeImages(set)})
}

func (a *App) requireScheduler() error {
	if a.Scheduler == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "scheduler is not configured")
	}
	return nil
}

func (a *App) handleListSchedules(c echo.Context) error {
	if err := a.requireScheduler(); err != nil {
		return err
	}
	schedules, err := a.Scheduler.List()
	if err != nil {
		return err
	}
	if schedules == nil {
		schedules = []ScheduleConfig{}
	}
	return c.JSON(http.StatusOK, schedules)
}

func (a *App) handleSaveSchedule(c echo.Context) error {
	if err := a.requireScheduler(); err != nil {
		return err
	}
	var sc ScheduleConfig
	if err := c.Bind(&sc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid schedule payload")
	}
	if id := c.Param("id"); id != "" {
		sc.ID = id
	}
	saved, err := a.Scheduler.Save(sc)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, saved)
}

func (a *App) handleDeleteSchedule(c echo.Context) error {
	if err := a.requireScheduler(); err != nil {
		return err
	}
	if err := a.Scheduler.Delete(c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *App) handleRunSchedule(c echo.Context) error {
	if err := a.requireScheduler(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), a.Config.GenerateTimeout)
	defer cancel()
	res, err := a.Scheduler.RunNow(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
