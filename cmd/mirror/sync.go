package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull changes since the last sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if reset, _ := cmd.Flags().GetBool("reset"); reset {
			if err := e.syncer.Reset(ctx); err != nil {
				return err
			}
		}

		every, _ := cmd.Flags().GetDuration("every")
		for {
			res, err := e.syncer.Sync(ctx)
			if err != nil {
				if every == 0 {
					return err
				}
				e.logger.Error(ctx, "sync failed", "error", err)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "maps=%d components=%d deleted=%d since=%d next=%d\n",
					res.Maps, res.Components, res.Deleted, res.Since, res.Next)
			}
			if every == 0 {
				return nil
			}

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(every):
			}
		}
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the cursor and row counts of the local mirror",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		cursor, err := e.syncer.Cursor(ctx)
		if err != nil {
			return err
		}
		maps, components, err := e.repos.Records.Counts(ctx)
		if err != nil {
			return err
		}

		last := "never"
		if cursor > 0 {
			last = time.Unix(cursor, 0).UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "last sync: %s\nmaps: %d\ncomponents: %d\n", last, maps, components)
		return nil
	},
}

func init() {
	syncCmd.Flags().Bool("reset", false, "forget the cursor and resync from the epoch")
	syncCmd.Flags().Duration("every", 0, "keep syncing at this interval until interrupted")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
}
