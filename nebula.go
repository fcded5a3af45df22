// Package nebula is an AI-assisted blog publishing engine built with Go,
// Echo, and templ. It serves a public blog, an admin API for editing and
// generating posts, and a scheduler that publishes generated posts on a
// timetable.
//
// Callers provide templ components via the ViewFuncs struct and an open
// Store; nebula handles routing, middleware and generation.
package nebula

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/eringen/nebula/logger"
	"github.com/eringen/nebula/metrics"
)

// ViewFuncs holds the templ components the App renders.
type ViewFuncs struct {
	Home           func(posts []BlogPost, activeTag string, tags []string, cfg SiteConfig) templ.Component
	Post           func(post BlogPost, related []BlogPost, cfg SiteConfig) templ.Component
	AdminLogin     func(showError bool, csrfToken string) templ.Component
	AdminDashboard func(posts []BlogPost, status PostStatus, schedules []ScheduleConfig, csrfToken string) templ.Component
	NotFound       func() templ.Component
	ServerError    func() templ.Component
}

// App is the central nebula application. It wires together the store,
// cache, composer, scheduler, handlers and middleware.
type App struct {
	Config    SiteConfig
	Echo      *echo.Echo
	Store     *Store
	Cache     *PostCache
	Views     ViewFuncs
	Composer  PostComposer
	Scheduler *Scheduler
	Log       logger.Logger
	Metrics   *metrics.Metrics

	images          *ImageStore
	loginLimiter    *RateLimiter
	generateLimiter *RateLimiter
	customRoutes    []func(*App)
	stopScheduler   func()
	setupOnce       sync.Once
	setupErr        error
}

// New creates an App serving store. The caller owns the store and closes it
// after the App.
func New(cfg SiteConfig, store *Store, views ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		Store:  store,
		Views:  views,
		Log:    logger.NewNop(),
	}
	a.Echo.HideBanner = true

	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Setup validates the configuration and registers middleware and routes.
// Start calls it; tests call it directly and drive a.Echo.
func (a *App) Setup() error {
	a.setupOnce.Do(func() {
		a.setupErr = a.setup()
	})
	return a.setupErr
}

func (a *App) setup() error {
	if a.Config.AdminPassword == "" {
		return errors.New("nebula: AdminPassword is required")
	}
	if a.Config.SessionSecret == "" {
		return errors.New("nebula: SessionSecret is required")
	}
	if a.Store == nil {
		return errors.New("nebula: Store is required")
	}

	a.Cache = NewPostCache(a.Store, a.Config.PostCacheTTL)
	a.images = NewImageStore(a.Config.StaticDir, a.Log)
	a.loginLimiter = NewRateLimiter(5, time.Minute)
	a.generateLimiter = NewRateLimiter(a.Config.GenerateLimit, time.Hour)
	if a.Scheduler != nil && a.Scheduler.onPublish == nil {
		a.Scheduler.onPublish = a.Cache.Invalidate
	}

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	return nil
}

// Start sets the App up, starts the scheduler ticker and serves until the
// server is shut down.
func (a *App) Start() error {
	if err := a.Setup(); err != nil {
		return err
	}
	if a.Scheduler != nil && a.Config.SchedulerTick > 0 {
		a.stopScheduler = a.Scheduler.Start(a.Config.SchedulerTick)
	}

	a.Log.Info("Starting server", logger.String("addr", a.Config.Addr))
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("nebula: serve: %w", err)
	}
	return nil
}

// Shutdown stops the scheduler and gracefully stops the server.
func (a *App) Shutdown(ctx context.Context) error {
	a.Close()
	return a.Echo.Shutdown(ctx)
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.Static("/public", a.Config.StaticDir)
	e.GET("/favicon.svg", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)

	// Public routes
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/blog", handleBlogRedirect)
	e.GET("/", a.handleHome)
	e.GET("/blog/:slug/", a.handlePost)
	if a.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(a.Metrics.Handler()))
	}

	// Admin pages
	e.GET("/admin/", a.handleAdmin)
	e.POST("/admin/login/", a.handleAdminLogin)
	e.POST("/admin/logout/", handleAdminLogout)

	// Admin JSON API
	api := e.Group("/admin/api", requireAdmin)
	api.GET("/posts", a.handleListPosts)
	api.GET("/posts/:id", a.handleGetPost)
	api.POST("/posts", a.handleSavePost)
	api.PUT("/posts/:id", a.handleSavePost)
	api.DELETE("/posts/:id", a.handleDeletePost)
	api.POST("/posts/:id/cover", a.handleCoverUpload)
	api.POST("/generate", a.handleGenerate)
	api.GET("/schedules", a.handleListSchedules)
	api.POST("/schedules", a.handleSaveSchedule)
	api.PUT("/schedules/:id", a.handleSaveSchedule)
	api.DELETE("/schedules/:id", a.handleDeleteSchedule)
	api.POST("/schedules/:id/run", a.handleRunSchedule)
}

// Close stops background work. It does not close the Store.
func (a *App) Close() {
	if a.stopScheduler != nil {
		a.stopScheduler()
		a.stopScheduler = nil
	}
	if a.loginLimiter != nil {
		a.loginLimiter.Stop()
	}
	if a.generateLimiter != nil {
		a.generateLimiter.Stop()
	}
	_ = a.Log.Sync()
}
