package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eringen/nebula"
	"github.com/eringen/nebula/logger"
	"github.com/eringen/nebula/views"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the blog, admin API and scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	e, err := loadEnv(configPath)
	if err != nil {
		return err
	}
	defer e.Close()

	if seeded, err := e.store.Seed(time.Now()); err != nil {
		return codeError(exitStore, "seed: %s", err)
	} else if seeded {
		e.log.Info("Seeded welcome post")
	}

	opts := []nebula.Option{
		nebula.WithLogger(e.log),
		nebula.WithMetrics(e.metrics),
	}
	comp, err := e.composer()
	if err != nil {
		e.log.Warn("AI generation disabled", logger.Error(err))
	} else {
		opts = append(opts, nebula.WithComposer(comp), nebula.WithScheduler(e.scheduler(comp)))
	}

	app := nebula.New(e.cfg.Site, e.store, views.New(e.cfg.Site), opts...)
	if err := app.Setup(); err != nil {
		return codeError(exitConfig, "%s", err)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- app.Start() }()

	select {
	case err := <-errc:
		app.Close()
		return err
	case <-ctx.Done():
	}

	e.log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.Shutdown(shutdownCtx)
}
