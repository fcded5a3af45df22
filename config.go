package nebula

import (
	"fmt"
	"time"

	"github.com/eringen/nebula/config"
	"github.com/eringen/nebula/genai"
	"github.com/eringen/nebula/logger"
	"github.com/eringen/nebula/metrics"
)

// SiteConfig holds all configuration for a nebula site.
type SiteConfig struct {
	Name        string `yaml:"name" env:"SITE_NAME"`               // default "Nebula"
	URL         string `yaml:"url" env:"SITE_URL"`                 // canonical URL, default "http://localhost:3000"
	Description string `yaml:"description" env:"SITE_DESCRIPTION"` // RSS and meta tags
	Author      string `yaml:"author" env:"SITE_AUTHOR"`           // JSON-LD

	Addr         string `yaml:"addr" env:"ADDR"`                   // default ":3000"
	DatabasePath string `yaml:"database_path" env:"DATABASE_PATH"` // default "data/nebula.db"
	StaticDir    string `yaml:"static_dir" env:"STATIC_DIR"`       // default "public"

	AdminPassword string `yaml:"admin_password" env:"ADMIN_PASSWORD"` // required to serve
	SessionSecret string `yaml:"session_secret" env:"SESSION_SECRET"` // required to serve
	CookieSecure  bool   `yaml:"cookie_secure" env:"COOKIE_SECURE"`

	PostCacheTTL time.Duration `yaml:"post_cache_ttl" env:"POST_CACHE_TTL"` // default 5m

	EditorAuthor    string        `yaml:"editor_author" env:"EDITOR_AUTHOR"`       // default "Admin"
	SchedulerAuthor string        `yaml:"scheduler_author" env:"SCHEDULER_AUTHOR"` // default "AI Scheduler"
	SchedulerTick   time.Duration `yaml:"scheduler_tick" env:"SCHEDULER_TICK"`     // default 1m; negative disables
	GenerateLimit   int           `yaml:"generate_limit" env:"GENERATE_LIMIT"`     // generations per IP per hour, default 20
	StoreImages     bool          `yaml:"store_images" env:"STORE_IMAGES"`         // write generated images to uploads
	GenerateTimeout time.Duration `yaml:"generate_timeout" env:"GENERATE_TIMEOUT"` // default 5m
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Nebula"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/nebula.db"
	}
	if c.StaticDir == "" {
		c.StaticDir = "public"
	}
	if c.PostCacheTTL == 0 {
		c.PostCacheTTL = 5 * time.Minute
	}
	if c.EditorAuthor == "" {
		c.EditorAuthor = "Admin"
	}
	if c.SchedulerAuthor == "" {
		c.SchedulerAuthor = "AI Scheduler"
	}
	if c.SchedulerTick == 0 {
		c.SchedulerTick = time.Minute
	}
	if c.GenerateLimit == 0 {
		c.GenerateLimit = 20
	}
	if c.GenerateTimeout == 0 {
		c.GenerateTimeout = 5 * time.Minute
	}
}

// AIConfig selects and configures the generation backends. Gemini always
// serves images and search; Provider picks the text backend.
type AIConfig struct {
	Provider  string                `yaml:"provider" env:"AI_PROVIDER"` // "gemini" (default) or "anthropic"
	Gemini    genai.Config          `yaml:"gemini"`
	Anthropic genai.AnthropicConfig `yaml:"anthropic"`
}

// Config is the full file/env configuration of the nebula binary.
type Config struct {
	Site SiteConfig    `yaml:"site"`
	Log  logger.Config `yaml:"log"`
	AI   AIConfig      `yaml:"ai"`
}

// LoadConfig reads path (which may not exist) and the environment.
func LoadConfig(path string) (*Config, error) {
	cfg, err := config.Load[Config](path)
	if err != nil {
		return nil, err
	}
	cfg.Site.setDefaults()
	cfg.Log.SetDefaults()
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "gemini"
	}
	switch cfg.AI.Provider {
	case "gemini", "anthropic":
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.AI.Provider)
	}
	return cfg, nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithLogger sets the application logger (default no-op).
func WithLogger(l logger.Logger) Option {
	return func(a *App) {
		a.Log = l
	}
}

// WithMetrics exposes m at /metrics and records into it.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *App) {
		a.Metrics = m
	}
}

// WithComposer enables the AI endpoints.
func WithComposer(c PostComposer) Option {
	return func(a *App) {
		a.Composer = c
	}
}

// WithScheduler enables the schedule endpoints and the background ticker.
func WithScheduler(s *Scheduler) Option {
	return func(a *App) {
		a.Scheduler = s
	}
}
