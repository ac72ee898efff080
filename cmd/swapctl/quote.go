package main

import (
	"github.com/spf13/cobra"
)

func newQuoteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "quote <intent>",
		Short: "Show the routes, price impact and swap status of an intent",
		Example: `  swapctl quote 1 MATIC to USDC
  swapctl quote 'inputCurrency=0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174&outputCurrency=ETH&exactAmount=100&exactField=output'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts, args, newTerminal(cmd.InOrStdin(), cmd.OutOrStdout()))
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.resolve(ctx); err != nil {
				return err
			}
			printQuote(cmd.OutOrStdout(), a.pipeline.Status(ctx))
			return nil
		},
	}
}
