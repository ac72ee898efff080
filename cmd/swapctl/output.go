package main

import (
	"fmt"
	"io"
	"math/big"

	"github.com/defistate/swapintent-go/currency"
	"github.com/defistate/swapintent-go/pipeline"
	"github.com/defistate/swapintent-go/prices"
	"github.com/defistate/swapintent-go/route"
	"github.com/defistate/swapintent-go/swapstate"
	"github.com/defistate/swapintent-go/txhistory"
	"github.com/fatih/color"
)

const rule = "============================================================"

func banner(w io.Writer, title string) {
	fmt.Fprintln(w, "\n"+rule)
	fmt.Fprintln(w, color.GreenString("%*s", (len(rule)+len(title))/2, title))
	fmt.Fprintln(w, rule)
}

// severityString colors an impact by its warning tier.
func severityString(sev prices.Severity, s string) string {
	switch {
	case sev.Blocked():
		return color.New(color.FgRed, color.Bold).Sprint(s)
	case sev >= 3:
		return color.RedString("%s", s)
	case sev >= 2:
		return color.YellowString("%s", s)
	case sev >= 1:
		return s
	}
	return color.GreenString("%s", s)
}

func amountString(a *currency.Amount) string {
	if a == nil {
		return "-"
	}
	return a.Significant(6) + " " + color.YellowString("%s", a.Currency.Symbol)
}

func tradeLine(t *route.Trade, best bool) string {
	in, out := t.InputAmount(), t.OutputAmount()
	line := fmt.Sprintf("%s -> %s  impact %s  hops %d", amountString(&in), amountString(&out), prices.Percent(t.PriceImpact()), t.Hops())
	if best {
		line += color.CyanString("  (best)")
	}
	return line
}

// printQuote renders the derived swap info and the button status.
func printQuote(w io.Writer, st pipeline.Status) {
	info := st.Info
	banner(w, "SWAP QUOTE")

	if info.Account != nil {
		fmt.Fprintf(w, "\n  Account:           %s\n", color.CyanString("%s", info.Account.Address.Hex()))
	}
	for _, f := range []swapstate.Field{swapstate.FieldInput, swapstate.FieldOutput} {
		label := "From"
		if f == swapstate.FieldOutput {
			label = "To"
		}
		c := info.Currencies[f]
		if c == nil {
			fmt.Fprintf(w, "  %-18s %s\n", label+":", color.RedString("not selected"))
			continue
		}
		fmt.Fprintf(w, "  %-18s %s (balance %s)\n", label+":", color.YellowString("%s", c.Symbol), amountString(info.Balances[f]))
	}

	if len(info.Trades) > 0 {
		fmt.Fprintln(w, "\n  Routes:")
		for _, t := range info.Trades {
			fmt.Fprintf(w, "    %-16s %s\n", t.Version().Name, tradeLine(t, t == info.Trade))
		}
	}
	if info.QuoteErr != nil {
		fmt.Fprintf(w, "\n  Quote error:       %s\n", color.RedString("%s", info.QuoteErr.Error()))
	}

	if info.Trade != nil {
		breakdown := prices.ComputeBreakdown(info.Trade)
		fmt.Fprintln(w)
		if info.Trade.Type() == route.ExactInput {
			fmt.Fprintf(w, "  Minimum received:  %s\n", amountString(info.SlippageAdjusted[swapstate.FieldOutput]))
		} else {
			fmt.Fprintf(w, "  Maximum sold:      %s\n", amountString(info.SlippageAdjusted[swapstate.FieldInput]))
		}
		fmt.Fprintf(w, "  Price impact:      %s\n", severityString(info.Severity, prices.Percent(breakdown.PriceImpactWithoutFee)))
		fmt.Fprintf(w, "  Liquidity fee:     %s\n", amountString(breakdown.RealizedLPFee))
		fmt.Fprintf(w, "  Slippage:          %s\n", prices.Percent(big.NewRat(int64(info.SlippageBps), 10000)))
		fmt.Fprintf(w, "  Router:            %s (%s)\n", info.Trade.Version().Name, info.Trade.Router().Hex())
	}
	if info.Recipient != nil && info.State.Recipient != nil {
		fmt.Fprintf(w, "  Recipient:         %s\n", info.Recipient.Hex())
	}
	fmt.Fprintf(w, "  Approval:          %s\n", info.Approval)

	status := color.GreenString("%s", st.Text)
	if st.Disabled {
		status = color.RedString("%s", st.Text+" (disabled)")
	}
	fmt.Fprintf(w, "\n  Status:            %s\n", status)
	fmt.Fprint(w, "\n"+rule+"\n\n")
}

func printHistory(w io.Writer, entries []txhistory.Entry) {
	banner(w, "TRANSACTIONS")
	if len(entries) == 0 {
		fmt.Fprintln(w, "\n  No transactions recorded.")
	}
	for _, e := range entries {
		state := color.YellowString("pending")
		switch {
		case e.Receipt != nil && e.Receipt.Status == 1:
			state = color.GreenString("confirmed in %d", e.Receipt.BlockNumber)
		case e.Receipt != nil:
			state = color.RedString("failed in %d", e.Receipt.BlockNumber)
		}
		fmt.Fprintf(w, "\n  %s  %s\n", e.AddedAt.Local().Format("2006-01-02 15:04:05"), e.Summary)
		fmt.Fprintf(w, "    %s  %s\n", color.CyanString("%s", e.Hash.Hex()), state)
	}
	fmt.Fprint(w, "\n"+rule+"\n\n")
}
