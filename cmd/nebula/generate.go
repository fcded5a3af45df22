package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/eringen/nebula"
	"github.com/eringen/nebula/content"
)

type generateFlags struct {
	content contentFlags
	draft   bool
	dryRun  bool
	timeout time.Duration
}

func newGenerateCmd(configPath *string) *cobra.Command {
	var flags generateFlags
	cmd := &cobra.Command{
		Use:   "generate <topic>",
		Short: "Draft a post for a topic and store it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.content.config()
			if err != nil {
				return codeError(exitConfig, "invalid flags: %s", err)
			}
			e, err := loadEnv(*configPath)
			if err != nil {
				return err
			}
			defer e.Close()
			comp, err := e.composer()
			if err != nil {
				return codeError(exitConfig, "%s", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
			defer cancel()
			return runGenerate(ctx, cmd.OutOrStdout(), e.store, comp, args[0], cfg, flags, e.cfg.Site.EditorAuthor)
		},
	}
	flags.content.register(cmd.Flags())
	cmd.Flags().BoolVar(&flags.draft, "draft", false, "Store the post as a draft instead of publishing it")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Print the post without storing it")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 5*time.Minute, "Give up after this long")
	return cmd
}

// generateReport is what generate prints.
type generateReport struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Slug            string   `json:"slug"`
	Status          string   `json:"status"`
	Stored          bool     `json:"stored"`
	ImagesRequested int      `json:"imagesRequested"`
	ImagesObtained  int      `json:"imagesObtained"`
	SearchFallback  bool     `json:"searchFallback"`
	Failures        []string `json:"failures,omitempty"`
}

func runGenerate(ctx context.Context, out io.Writer, store *nebula.Store, comp nebula.PostComposer, topic string, cfg content.ContentConfig, flags generateFlags, author string) error {
	status := nebula.StatusPublished
	if flags.draft {
		status = nebula.StatusDraft
	}
	post, set, err := comp.Compose(ctx, topic, cfg, nebula.ComposeOptions{Author: author, Status: status})
	switch {
	case errors.Is(err, content.ErrInvalidConfig):
		return codeError(exitConfig, "%s", err)
	case err != nil:
		return codeError(exitGeneration, "%s", err)
	}

	if !flags.dryRun {
		if err := store.SavePost(post); err != nil {
			return codeError(exitStore, "save post: %s", err)
		}
	}

	report := generateReport{
		ID:              post.ID,
		Title:           post.Title,
		Slug:            post.Slug,
		Status:          string(post.Status),
		Stored:          !flags.dryRun,
		ImagesRequested: set.Requested,
		ImagesObtained:  set.Obtained(),
		SearchFallback:  set.FellBack,
	}
	for _, f := range set.Failures {
		report.Failures = append(report.Failures, fmt.Sprintf("%s slot %d: %v", f.Source, f.Slot, f.Err))
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if flags.dryRun {
		return enc.Encode(struct {
			generateReport
			Post nebula.BlogPost `json:"post"`
		}{report, post})
	}
	return enc.Encode(report)
}
