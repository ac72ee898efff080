package pipeline

import (
	"context"

	"github.com/defistate/swapintent-go/approval"
	"github.com/defistate/swapintent-go/swapstate"
)

const (
	TextSwap                  = "Swap"
	TextInsufficientLiquidity = "Insufficient liquidity for this trade."
	TextPriceImpactTooHigh    = "Price Impact Too High"
)

// Status is what the swap button shows and whether it can be pressed.
type Status struct {
	Info SwapInfo
	Text string
	// Disabled is false for "Connect Wallet", which is actionable.
	Disabled bool
	// NoRoute is set when the input is complete but no version has a route.
	NoRoute bool
	// ShowApproveFlow is set while an approval is needed, in flight, or was
	// just completed by this user.
	ShowApproveFlow   bool
	ApprovalSubmitted bool
}

// Status derives the swap button. Seeing an approval PENDING marks it as
// submitted until the next currency selection.
func (p *Pipeline) Status(ctx context.Context) Status {
	info := p.Derive(ctx)
	st := info.State

	p.mu.Lock()
	if info.Approval == approval.Pending {
		p.approvalSubmitted = true
	}
	submitted := p.approvalSubmitted
	p.mu.Unlock()

	selected := info.Currencies[swapstate.FieldInput] != nil && info.Currencies[swapstate.FieldOutput] != nil
	specified := selected && info.ParsedAmount != nil
	noRoute := info.Trade == nil
	blocked := info.Severity.Blocked() && !p.session.Expert()
	valid := info.InputError == ""

	needsApproval := info.Approval == approval.NotApproved || info.Approval == approval.Pending ||
		(submitted && info.Approval == approval.Approved)

	s := Status{
		Info:              info,
		NoRoute:           noRoute && specified,
		ShowApproveFlow:   valid && !blocked && needsApproval,
		ApprovalSubmitted: submitted,
	}

	switch {
	case info.Account == nil:
		s.Text = InputConnectWallet
		return s
	case !selected:
		s.Text = InputSelectToken
	case st.TypedValue == "":
		s.Text = InputEnterAmount
	case noRoute && specified:
		s.Text = TextInsufficientLiquidity
	case blocked:
		s.Text = TextPriceImpactTooHigh
	case !valid:
		s.Text = info.InputError
	default:
		s.Text = TextSwap
	}

	inputNative := info.Currencies[swapstate.FieldInput] != nil && info.Currencies[swapstate.FieldInput].Native
	switch {
	case noRoute && specified:
		s.Disabled = true
	case s.ShowApproveFlow:
		s.Disabled = !valid || info.Approval != approval.Approved || blocked
	default:
		s.Disabled = (inputNative && info.Approval == approval.Unknown) || !valid || blocked
	}
	return s
}
