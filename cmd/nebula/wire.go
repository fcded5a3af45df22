package main

import (
	"fmt"

	"github.com/eringen/nebula"
	"github.com/eringen/nebula/content"
	"github.com/eringen/nebula/genai"
	"github.com/eringen/nebula/logger"
	"github.com/eringen/nebula/metrics"
)

// env is everything a command needs, built from one config file.
type env struct {
	cfg     *nebula.Config
	log     logger.Logger
	metrics *metrics.Metrics
	store   *nebula.Store
}

func loadEnv(configPath string) (*env, error) {
	cfg, err := nebula.LoadConfig(configPath)
	if err != nil {
		return nil, codeError(exitConfig, "load config: %s", err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, codeError(exitConfig, "build logger: %s", err)
	}
	store, err := nebula.NewStore(cfg.Site.DatabasePath)
	if err != nil {
		return nil, codeError(exitStore, "open store %s: %s", cfg.Site.DatabasePath, err)
	}
	return &env{cfg: cfg, log: log, metrics: metrics.New(), store: store}, nil
}

func (e *env) Close() {
	if err := e.store.Close(); err != nil {
		e.log.Error("Closing store", logger.Error(err))
	}
	_ = e.log.Sync()
}

// textGenerator picks the configured text backend. Gemini always serves
// images and search.
func textGenerator(cfg nebula.AIConfig, gemini *genai.Client) (content.TextGenerator, error) {
	if cfg.Provider != "anthropic" {
		return gemini, nil
	}
	client, err := genai.NewAnthropicClient(cfg.Anthropic)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (e *env) composer() (*nebula.Composer, error) {
	gemini, err := genai.NewClient(e.cfg.AI.Gemini)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	text, err := textGenerator(e.cfg.AI, gemini)
	if err != nil {
		return nil, fmt.Errorf("%s client: %w", e.cfg.AI.Provider, err)
	}

	builder := content.NewBuilder(text, e.log.With(logger.String("component", "builder")))
	assembler := content.NewAssembler(gemini, gemini, e.log.With(logger.String("component", "assembler")))
	opts := []nebula.ComposerOption{
		nebula.WithComposerLogger(e.log.With(logger.String("component", "composer"))),
		nebula.WithComposerMetrics(e.metrics),
	}
	if e.cfg.Site.StoreImages {
		opts = append(opts, nebula.WithImageStore(nebula.NewImageStore(e.cfg.Site.StaticDir, e.log)))
	}
	return nebula.NewComposer(builder, assembler, opts...), nil
}

func (e *env) scheduler(comp nebula.PostComposer) *nebula.Scheduler {
	return nebula.NewScheduler(e.store, comp,
		nebula.WithSchedulerAuthor(e.cfg.Site.SchedulerAuthor),
		nebula.WithSchedulerLogger(e.log.With(logger.String("component", "scheduler"))),
		nebula.WithSchedulerMetrics(e.metrics),
	)
}
