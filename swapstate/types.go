// Package swapstate holds the user's swap intent: which currencies are
// selected, the typed amount, the independent field, the recipient and the
// debounce status that gates route resolution.
package swapstate

// Field identifies a side of the trade.
type Field uint8

const (
	FieldInput Field = iota
	FieldOutput
)

// Other returns the opposite side.
func (f Field) Other() Field {
	if f == FieldInput {
		return FieldOutput
	}
	return FieldInput
}

func (f Field) String() string {
	if f == FieldOutput {
		return "OUTPUT"
	}
	return "INPUT"
}

// SwapDelay tracks the debounce and fetch lifecycle of route computation.
type SwapDelay uint8

const (
	DelayInit SwapDelay = iota
	DelayUserInput
	DelayUserInputComplete
	DelayFetchingSwap
	DelayFetchingBonus
)

func (d SwapDelay) String() string {
	switch d {
	case DelayUserInput:
		return "USER_INPUT"
	case DelayUserInputComplete:
		return "USER_INPUT_COMPLETE"
	case DelayFetchingSwap:
		return "FETCHING_SWAP"
	case DelayFetchingBonus:
		return "FETCHING_BONUS"
	default:
		return "INIT"
	}
}

// Fetching reports whether a best route is still being worked out, either
// because typing has not settled or because a resolution is in flight.
func (d SwapDelay) Fetching() bool {
	return d == DelayUserInput || d == DelayFetchingSwap || d == DelayFetchingBonus
}

// RouterType names the family of router that produced the best route.
type RouterType string

const (
	RouterTypeQuickswap RouterType = "QUICKSWAP"
	RouterTypeSmart     RouterType = "SMART"
	RouterTypeBonus     RouterType = "BONUS"
)

// SmartRouter names the aggregator behind a SMART or BONUS route.
type SmartRouter string

const (
	SmartRouterQuickswap SmartRouter = "QUICKSWAP"
	SmartRouterParaswap  SmartRouter = "PARASWAP"
)

// BestRoute records which router the current best trade goes through.
type BestRoute struct {
	RouterType  RouterType  `json:"routerType" yaml:"routerType"`
	SmartRouter SmartRouter `json:"smartRouter" yaml:"smartRouter"`
}

// DefaultBestRoute is the route assumed before any resolution.
var DefaultBestRoute = BestRoute{RouterType: RouterTypeQuickswap, SmartRouter: SmartRouterQuickswap}

// State is the swap intent. Exactly one field is independent (typed by the
// user); the other side's amount is derived from the quote.
type State struct {
	CurrencyIDs      [2]string
	TypedValue       string
	IndependentField Field
	Recipient        *string
	SwapDelay        SwapDelay
	BestRoute        BestRoute
}

// InitialState is the empty intent.
func InitialState() State {
	return State{
		IndependentField: FieldInput,
		SwapDelay:        DelayInit,
		BestRoute:        DefaultBestRoute,
	}
}

// CurrencyID returns the currency id selected for f.
func (s State) CurrencyID(f Field) string {
	return s.CurrencyIDs[f]
}

// DependentField is the side whose amount comes from the quote.
func (s State) DependentField() Field {
	return s.IndependentField.Other()
}

// Clone returns a copy that shares no pointers with s.
func (s State) Clone() State {
	out := s
	if s.Recipient != nil {
		r := *s.Recipient
		out.Recipient = &r
	}
	return out
}

// SameIntent reports whether two states would resolve to the same quote.
// Recipient, delay and route bookkeeping do not affect the quote.
func (s State) SameIntent(o State) bool {
	return s.CurrencyIDs == o.CurrencyIDs &&
		s.TypedValue == o.TypedValue &&
		s.IndependentField == o.IndependentField
}
