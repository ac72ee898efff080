package swapstate

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/defistate/swapintent-go/currency"
)

// Query parameter names understood by QueryParametersToSwapState.
const (
	ParamCurrency0      = "currency0"
	ParamInputCurrency  = "inputCurrency"
	ParamCurrency1      = "currency1"
	ParamOutputCurrency = "outputCurrency"
	ParamExactAmount    = "exactAmount"
	ParamExactField     = "exactField"
	ParamRecipient      = "recipient"
	ParamSwapIndex      = "swapIndex"
)

var (
	ensNameRegex = regexp.MustCompile(`^[-a-zA-Z0-9@:%._+~#=]{1,256}\.[a-zA-Z0-9()]{1,6}\b([-a-zA-Z0-9()@:%_+.~#?&/=]*)?$`)
	addressRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
)

func first(q url.Values, keys ...string) (string, bool) {
	for _, k := range keys {
		if vs, ok := q[k]; ok && len(vs) > 0 {
			return vs[0], true
		}
	}
	return "", false
}

// parseCurrencyParam maps a supplied value to a currency id. Any supplied
// value that is not an address selects the native asset; an absent value
// selects nothing.
func parseCurrencyParam(v string, present bool) string {
	if !present {
		return ""
	}
	if addr, ok := currency.CheckAddress(v); ok {
		return addr.Hex()
	}
	return currency.NativeID
}

func parseAmountParam(v string, present bool) string {
	if !present {
		return ""
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	return v
}

func parseFieldParam(v string) Field {
	if strings.EqualFold(v, "output") {
		return FieldOutput
	}
	return FieldInput
}

// ValidatedRecipient returns v checksummed when it is an address, v itself
// when it looks like a name or a raw address, and nil otherwise.
func ValidatedRecipient(v string) *string {
	if addr, ok := currency.CheckAddress(v); ok {
		s := addr.Hex()
		return &s
	}
	if ensNameRegex.MatchString(v) || addressRegex.MatchString(v) {
		return &v
	}
	return nil
}

// QueryParametersToSwapState builds the initial state from URL parameters.
func QueryParametersToSwapState(q url.Values) State {
	in, inOK := first(q, ParamCurrency0, ParamInputCurrency)
	out, outOK := first(q, ParamCurrency1, ParamOutputCurrency)
	inputID := parseCurrencyParam(in, inOK)
	outputID := parseCurrencyParam(out, outOK)

	if inputID == outputID {
		if _, ok := q[ParamOutputCurrency]; ok {
			inputID = ""
		} else {
			outputID = ""
		}
	}

	amount, amountOK := first(q, ParamExactAmount)
	field, _ := first(q, ParamExactField)

	var recipient *string
	if r, ok := first(q, ParamRecipient); ok {
		recipient = ValidatedRecipient(r)
	}

	st := InitialState()
	st.CurrencyIDs = [2]string{inputID, outputID}
	st.TypedValue = parseAmountParam(amount, amountOK)
	st.IndependentField = parseFieldParam(field)
	st.Recipient = recipient
	return st
}

// EncodeSwapState is the inverse of QueryParametersToSwapState. Empty fields
// are omitted because a supplied empty currency would parse as native.
func EncodeSwapState(s State) url.Values {
	q := url.Values{}
	if id := s.CurrencyIDs[FieldInput]; id != "" {
		q.Set(ParamInputCurrency, id)
	}
	if id := s.CurrencyIDs[FieldOutput]; id != "" {
		q.Set(ParamOutputCurrency, id)
	}
	if s.TypedValue != "" {
		q.Set(ParamExactAmount, s.TypedValue)
	}
	q.Set(ParamExactField, strings.ToLower(s.IndependentField.String()))
	if s.Recipient != nil {
		q.Set(ParamRecipient, *s.Recipient)
	}
	return q
}

// SwapIndex returns the swapIndex flag, empty when absent.
func SwapIndex(q url.Values) string {
	v, _ := first(q, ParamSwapIndex)
	return v
}
