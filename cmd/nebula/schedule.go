package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/eringen/nebula"
	"github.com/eringen/nebula/content"
)

func newScheduleCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage recurring generation schedules",
	}
	cmd.AddCommand(
		newScheduleAddCmd(configPath),
		newScheduleListCmd(configPath),
		newScheduleRunCmd(configPath),
		newScheduleDeleteCmd(configPath),
	)
	return cmd
}

type scheduleAddFlags struct {
	content   contentFlags
	frequency string
	interval  int
	posts     int
	disabled  bool
}

func newScheduleAddCmd(configPath *string) *cobra.Command {
	var flags scheduleAddFlags
	cmd := &cobra.Command{
		Use:   "add <topic>",
		Short: "Create a schedule that is due immediately",
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

			sc, err := e.scheduler(nil).Save(nebula.ScheduleConfig{
				Topic:         args[0],
				Frequency:     nebula.Frequency(flags.frequency),
				IntervalHours: flags.interval,
				Enabled:       !flags.disabled,
				PostsPerRun:   flags.posts,
				ContentConfig: cfg,
			})
			switch {
			case errors.Is(err, content.ErrInvalidConfig):
				return codeError(exitConfig, "%s", err)
			case err != nil:
				return codeError(exitStore, "%s", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), sc.ID)
			return nil
		},
	}
	flags.content.register(cmd.Flags())
	cmd.Flags().StringVar(&flags.frequency, "frequency", string(nebula.FrequencyDaily), "daily, weekly or custom")
	cmd.Flags().IntVar(&flags.interval, "interval", 0, "Hours between runs for --frequency custom")
	cmd.Flags().IntVar(&flags.posts, "posts", 1, "Posts generated per run (1-10)")
	cmd.Flags().BoolVar(&flags.disabled, "disabled", false, "Create the schedule without enabling it")
	return cmd
}

func newScheduleListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List schedules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv(*configPath)
			if err != nil {
				return err
			}
			defer e.Close()
			schedules, err := e.store.ListSchedules()
			if err != nil {
				return codeError(exitStore, "list schedules: %s", err)
			}
			return writeSchedules(cmd.OutOrStdout(), schedules)
		},
	}
}

func writeSchedules(out io.Writer, schedules []nebula.ScheduleConfig) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTOPIC\tFREQUENCY\tPOSTS\tNEXT RUN\tENABLED")
	for _, sc := range schedules {
		freq := string(sc.Frequency)
		if sc.Frequency == nebula.FrequencyCustom {
			freq += " (" + strconv.Itoa(sc.IntervalHours) + "h)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%t\n",
			sc.ID, sc.Topic, freq, sc.PostsPerRun, sc.NextRun.UTC().Format(time.RFC3339), sc.Enabled)
	}
	return tw.Flush()
}

func newScheduleRunCmd(configPath *string) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "run <id>",
		Short: "Run a schedule now, whether or not it is due",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(*configPath)
			if err != nil {
				return err
			}
			defer e.Close()
			comp, err := e.composer()
			if err != nil {
				return codeError(exitConfig, "%s", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			res, err := e.scheduler(comp).RunNow(ctx, args[0])
			switch {
			case errors.Is(err, nebula.ErrNotFound):
				return codeError(exitStore, "schedule %s not found", args[0])
			case err != nil:
				return codeError(exitGeneration, "%s", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Minute, "Give up after this long")
	return cmd
}

func newScheduleDeleteCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(*configPath)
			if err != nil {
				return err
			}
			defer e.Close()
			if err := e.store.DeleteSchedule(args[0]); err != nil {
				if errors.Is(err, nebula.ErrNotFound) {
					return codeError(exitStore, "schedule %s not found", args[0])
				}
				return codeError(exitStore, "delete schedule: %s", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}
