package pipeline

import (
	"context"
	"math/big"

	"github.com/defistate/swapintent-go/approval"
	"github.com/defistate/swapintent-go/currency"
	"github.com/defistate/swapintent-go/executor"
	"github.com/defistate/swapintent-go/prices"
	"github.com/defistate/swapintent-go/route"
	"github.com/defistate/swapintent-go/swapstate"
	"github.com/ethereum/go-ethereum/common"
)

// Input errors, in priority order. The balance error is only reported when
// nothing else is wrong.
const (
	InputConnectWallet    = "Connect Wallet"
	InputEnterAmount      = "Enter an amount"
	InputSelectToken      = "Select a token"
	InputEnterRecipient   = "Enter a recipient"
	InputInvalidRecipient = "Invalid recipient"
)

// Automatic slippage in basis points.
const (
	AutoSlippageStableBps = 10
	AutoSlippageBps       = 50
)

// SwapInfo is everything derived from the current input. It is recomputed on
// every call and never cached.
type SwapInfo struct {
	State   swapstate.State
	Account *executor.Account
	// Currencies and Balances are indexed by swapstate.Field.
	Currencies [2]*currency.Currency
	Balances   [2]*currency.Amount
	// ParsedAmount is the typed value in the independent currency, nil when
	// empty, zero or unparseable.
	ParsedAmount *currency.Amount

	// Trades holds one trade per router version; Trade is the best of them.
	Trades   []*route.Trade
	Trade    *route.Trade
	QuoteErr error

	SlippageBps uint16
	// SlippageAdjusted holds the maximum input and minimum output of Trade.
	SlippageAdjusted [2]*currency.Amount
	PriceImpact      *big.Rat
	Severity         prices.Severity

	// Recipient is where the output goes: the typed recipient, else the account.
	Recipient  *common.Address
	InputError string

	ApprovalRequest approval.Request
	Approval        approval.State

	FetchingBestRoute bool
}

// Derive computes the SwapInfo of the current input.
func (p *Pipeline) Derive(ctx context.Context) SwapInfo {
	st := p.store.State()
	info := SwapInfo{
		State:             st,
		FetchingBestRoute: st.SwapDelay.Fetching(),
	}

	account, connected := p.accounts.Account(ctx)
	if connected {
		info.Account = &account
	}

	for _, f := range []swapstate.Field{swapstate.FieldInput, swapstate.FieldOutput} {
		if c, ok := p.registry.Lookup(st.CurrencyID(f)); ok {
			info.Currencies[f] = &c
		}
	}
	if c := info.Currencies[st.IndependentField]; c != nil {
		if amount, ok := currency.TryParseAmount(st.TypedValue, *c); ok {
			info.ParsedAmount = &amount
		}
	}

	info.Trades, info.QuoteErr = p.trades(st)
	info.Trade = route.Best(info.Trades)
	info.SlippageBps = p.slippage(info.Currencies)
	if info.Trade != nil {
		maxIn := info.Trade.MaximumAmountIn(info.SlippageBps)
		minOut := info.Trade.MinimumAmountOut(info.SlippageBps)
		info.SlippageAdjusted = [2]*currency.Amount{&maxIn, &minOut}
		info.PriceImpact = prices.ComputeBreakdown(info.Trade).PriceImpactWithoutFee
		info.Severity = p.thresholds.Severity(info.PriceImpact)
	}

	if connected && p.balances != nil {
		for f, c := range info.Currencies {
			if c == nil {
				continue
			}
			raw, err := p.balances.Balance(ctx, account.Address, *c)
			if err != nil {
				p.logger.Warn("Failed to read balance", "currency", c.ID(), "error", err)
				continue
			}
			amount := currency.NewAmount(*c, raw)
			info.Balances[f] = &amount
		}
	}

	info.Recipient, info.InputError = p.inputError(st, info)

	if connected && info.Trade != nil {
		info.ApprovalRequest = approval.FromTrade(account.Address, info.Trade, info.SlippageBps)
		info.Approval = p.approvals.State(ctx, info.ApprovalRequest)
	}
	return info
}

// inputError returns the resolved recipient and the first input error.
func (p *Pipeline) inputError(st swapstate.State, info SwapInfo) (*common.Address, string) {
	var msg string
	set := func(m string) {
		if msg == "" {
			msg = m
		}
	}

	if info.Account == nil {
		set(InputConnectWallet)
	}
	if info.ParsedAmount == nil {
		set(InputEnterAmount)
	}
	if info.Currencies[swapstate.FieldInput] == nil || info.Currencies[swapstate.FieldOutput] == nil {
		set(InputSelectToken)
	}

	to := st.Recipient
	if to == nil && info.Account != nil {
		hex := info.Account.Address.Hex()
		to = &hex
	}
	var recipient *common.Address
	if to != nil {
		if addr, ok := currency.CheckAddress(*to); ok {
			recipient = &addr
		}
	}
	switch {
	case recipient == nil:
		set(InputEnterRecipient)
	case p.badRecipient(*recipient, info.Trades):
		set(InputInvalidRecipient)
	}

	balanceIn, amountIn := info.Balances[swapstate.FieldInput], info.SlippageAdjusted[swapstate.FieldInput]
	if msg == "" && p.swapIndex != "0" && balanceIn != nil && amountIn != nil && balanceIn.LessThan(*amountIn) {
		msg = "Insufficient " + amountIn.Symbol + " balance"
	}
	return recipient, msg
}

// badRecipient reports whether sending to addr would lose the funds: a
// known router or factory, or a token or pair the trades pass through.
func (p *Pipeline) badRecipient(addr common.Address, trades []*route.Trade) bool {
	if _, ok := p.badRecipients[addr]; ok {
		return true
	}
	for _, t := range trades {
		if t.InvolvesAddress(addr) {
			return true
		}
	}
	return false
}

// slippage is the configured tolerance, or the automatic one: tighter when
// both sides are stablecoins.
func (p *Pipeline) slippage(currencies [2]*currency.Currency) uint16 {
	if p.slippageBps != 0 {
		return p.slippageBps
	}
	in, out := currencies[swapstate.FieldInput], currencies[swapstate.FieldOutput]
	if in != nil && out != nil && p.registry.IsStable(*in) && p.registry.IsStable(*out) {
		return AutoSlippageStableBps
	}
	return AutoSlippageBps
}
