package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the welcome post into an empty database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv(*configPath)
			if err != nil {
				return err
			}
			defer e.Close()
			seeded, err := e.store.Seed(time.Now())
			if err != nil {
				return codeError(exitStore, "seed: %s", err)
			}
			if seeded {
				fmt.Fprintln(cmd.OutOrStdout(), "seeded welcome post")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "posts already present, nothing to do")
			}
			return nil
		},
	}
}
