package swapstate

// Action is a state transition request. The concrete action types are the
// only way SwapState changes.
type Action interface {
	isAction()
}

type (
	// SelectCurrencyAction selects CurrencyID for Field.
	SelectCurrencyAction struct {
		Field      Field
		CurrencyID string
	}
	// SwitchCurrenciesAction swaps input and output.
	SwitchCurrenciesAction struct{}
	// TypeInputAction records a keystroke on Field.
	TypeInputAction struct {
		Field      Field
		TypedValue string
	}
	// SetRecipientAction sets or clears the recipient.
	SetRecipientAction struct {
		Recipient *string
	}
	// SetSwapDelayAction moves the debounce lifecycle.
	SetSwapDelayAction struct {
		SwapDelay SwapDelay
	}
	// SetBestRouteAction records the router of the current best trade.
	SetBestRouteAction struct {
		BestRoute BestRoute
	}
	// ReplaceStateAction replaces the whole state, e.g. from URL parameters.
	ReplaceStateAction struct {
		State State
	}
)

func (SelectCurrencyAction) isAction()   {}
func (SwitchCurrenciesAction) isAction() {}
func (TypeInputAction) isAction()        {}
func (SetRecipientAction) isAction()     {}
func (SetSwapDelayAction) isAction()     {}
func (SetBestRouteAction) isAction()     {}
func (ReplaceStateAction) isAction()     {}

// Reduce applies a to s and returns the next state. It never mutates s.
func Reduce(s State, a Action) State {
	next := s.Clone()

	switch a := a.(type) {
	case SelectCurrencyAction:
		other := a.Field.Other()
		if a.CurrencyID != "" && a.CurrencyID == s.CurrencyIDs[other] {
			// picking the other side's currency flips the pair
			next.IndependentField = s.IndependentField.Other()
			next.CurrencyIDs[a.Field] = a.CurrencyID
			next.CurrencyIDs[other] = s.CurrencyIDs[a.Field]
		} else {
			next.CurrencyIDs[a.Field] = a.CurrencyID
		}

	case SwitchCurrenciesAction:
		next.IndependentField = s.IndependentField.Other()
		next.CurrencyIDs[FieldInput] = s.CurrencyIDs[FieldOutput]
		next.CurrencyIDs[FieldOutput] = s.CurrencyIDs[FieldInput]

	case TypeInputAction:
		next.IndependentField = a.Field
		next.TypedValue = a.TypedValue

	case SetRecipientAction:
		next.Recipient = nil
		if a.Recipient != nil {
			r := *a.Recipient
			next.Recipient = &r
		}

	case SetSwapDelayAction:
		next.SwapDelay = a.SwapDelay

	case SetBestRouteAction:
		next.BestRoute = a.BestRoute

	case ReplaceStateAction:
		next = a.State.Clone()
	}

	return next
}
