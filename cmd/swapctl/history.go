package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List recorded swaps and approvals, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			if cfg.Redis.Addr == "" {
				fmt.Fprintln(out, color.YellowString("No redis configured; history is only kept for the duration of a command."))
			}

			ledger, _, closeLedger, err := openLedger(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeLedger()

			entries, err := ledger.List(ctx)
			if err != nil {
				return fmt.Errorf("failed to list transactions: %w", err)
			}
			printHistory(out, entries)
			return nil
		},
	}
}
