package main

import (
	"context"
	"fmt"
	"io"

	"github.com/defistate/swapintent-go/approval"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newApproveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <intent>",
		Short: "Approve the best route's router to spend the input token",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			a, err := newApp(ctx, opts, args, newTerminal(cmd.InOrStdin(), out))
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.resolve(ctx); err != nil {
				return err
			}
			info := a.pipeline.Derive(ctx)
			switch info.Approval {
			case approval.Approved:
				fmt.Fprintln(out, color.GreenString("\nNo approval needed."))
				return nil
			case approval.Pending:
				fmt.Fprintln(out, color.YellowString("\nAn approval is already pending."))
				return nil
			case approval.Unknown:
				if info.InputError != "" {
					return fmt.Errorf("cannot approve: %s", info.InputError)
				}
				return fmt.Errorf("cannot approve: approval state is %s", info.Approval)
			}
			return a.approve(ctx, out)
		},
	}
}

// approve submits the approval of the current trade and waits for it.
func (a *app) approve(ctx context.Context, out io.Writer) error {
	s := newSpinner("Submitting approval...")
	s.Start()
	hash, err := a.pipeline.Approve(ctx)
	s.Stop()
	if err != nil {
		return fmt.Errorf("approval failed: %w", err)
	}
	fmt.Fprintf(out, "\nApproval submitted: %s\n", color.CyanString("%s", hash.Hex()))

	receipt, err := a.waitApproval(ctx, hash)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, color.GreenString("Approval confirmed in block %d", receipt.BlockNumber))
	return nil
}
