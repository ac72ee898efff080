package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/defistate/swapintent-go/approval"
	"github.com/defistate/swapintent-go/executor"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newSwapCmd(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "swap <intent>",
		Short: "Approve if needed, then confirm and execute a swap",
		Long: `Resolves the best route for the intent, approves the router when the
input token needs it, asks for confirmation and executes the swap.

Expert mode skips the confirmation step and allows swaps whose price impact
would otherwise be blocked.`,
		Example: `  swapctl swap 10 USDC to MATIC
  swapctl swap 1 MATIC to USDC --yes`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			ui := newTerminal(cmd.InOrStdin(), out)
			a, err := newApp(ctx, opts, args, ui)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.swap(ctx, ui, out, yes)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the approval and swap confirmation prompts")
	cmd.Flags().BoolVar(&opts.expert, "expert", false, "Expert mode: no confirmation step and no price impact block")
	return cmd
}

func (a *app) swap(ctx context.Context, ui *terminal, out io.Writer, yes bool) error {
	if err := a.resolve(ctx); err != nil {
		return err
	}
	st := a.pipeline.Status(ctx)
	printQuote(out, st)

	if st.ShowApproveFlow && st.Info.Approval == approval.NotApproved {
		symbol := st.Info.ApprovalRequest.Amount.Symbol
		if !yes && !ui.YesNo(fmt.Sprintf("Approve %s for %s?", symbol, st.Info.Trade.Version().Name)) {
			fmt.Fprintln(out, "\nSwap cancelled.")
			return nil
		}
		if err := a.approve(ctx, out); err != nil {
			return err
		}
		st = a.pipeline.Status(ctx)
	}
	if st.Disabled {
		return fmt.Errorf("cannot swap: %s", st.Text)
	}

	session := a.pipeline.Session()
	if session.Expert() {
		fmt.Fprintln(out, "\nSubmitting swap...")
		hash, err := a.pipeline.RequestSwap(ctx)
		return a.report(out, hash.Hex(), err)
	}

	if _, err := a.pipeline.RequestSwap(ctx); err != nil {
		return err
	}
	for {
		trade := session.State().TradeToConfirm
		fmt.Fprintf(out, "\n  %s\n", executor.Summary(trade, st.Info.Recipient, st.Info.Account.Address))
		if !yes && !ui.YesNo("Proceed with swap?") {
			a.pipeline.DismissSwap()
			fmt.Fprintln(out, "\nSwap cancelled.")
			return nil
		}

		// The book may have moved while the prompt was open.
		if err := a.resolve(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "\nSubmitting swap...")
		hash, err := a.pipeline.ConfirmSwap(ctx)
		if errors.Is(err, executor.ErrQuoteChanged) && !yes {
			fmt.Fprintln(out, color.YellowString("\nThe price has changed since the quote was shown."))
			a.pipeline.AcceptChanges()
			st = a.pipeline.Status(ctx)
			printQuote(out, st)
			continue
		}
		return a.report(out, hash.Hex(), err)
	}
}

func (a *app) report(out io.Writer, hash string, err error) error {
	if err != nil {
		if msg := a.pipeline.Session().State().SwapErrorMessage; msg != "" {
			fmt.Fprintln(out, color.RedString("\nSwap failed: %s", msg))
		}
		return err
	}
	fmt.Fprintln(out, color.GreenString("\nSwap confirmed."))
	fmt.Fprintf(out, "  Transaction: %s\n", color.CyanString("%s", hash))
	return nil
}
