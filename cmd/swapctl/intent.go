package main

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/defistate/swapintent-go/currency"
	"github.com/defistate/swapintent-go/swapstate"
)

// "1.5 MATIC to USDC" sells exactly 1.5 MATIC; "MATIC to 100 USDC" buys
// exactly 100 USDC.
var (
	exactInPattern  = regexp.MustCompile(`^(\d+\.?\d*)\s+([A-Z0-9.]+)\s+TO\s+([A-Z0-9.]+)$`)
	exactOutPattern = regexp.MustCompile(`^([A-Z0-9.]+)\s+TO\s+(\d+\.?\d*)\s+([A-Z0-9.]+)$`)
)

var errIntentFormat = errors.New("invalid swap intent. Expected '<amount> <token> to <token>', '<token> to <amount> <token>' or a query such as 'inputCurrency=ETH&outputCurrency=0x...&exactAmount=1'")

// intent is a parsed command line swap request.
type intent struct {
	State     swapstate.State
	SwapIndex string
}

// parseIntent accepts either a swap query string or a short phrase with
// token symbols, resolved against reg.
func parseIntent(args []string, reg *currency.Registry) (intent, error) {
	raw := strings.TrimSpace(strings.Join(args, " "))
	if raw == "" {
		return intent{}, errIntentFormat
	}

	if strings.Contains(raw, "=") {
		q, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
		if err != nil {
			return intent{}, fmt.Errorf("invalid swap query: %w", err)
		}
		return intent{State: swapstate.QueryParametersToSwapState(q), SwapIndex: swapstate.SwapIndex(q)}, nil
	}

	phrase := strings.ToUpper(raw)
	phrase = strings.TrimPrefix(phrase, "SWAP ")

	q := url.Values{}
	var in, out string
	if m := exactInPattern.FindStringSubmatch(phrase); m != nil {
		q.Set(swapstate.ParamExactAmount, m[1])
		q.Set(swapstate.ParamExactField, "input")
		in, out = m[2], m[3]
	} else if m := exactOutPattern.FindStringSubmatch(phrase); m != nil {
		q.Set(swapstate.ParamExactAmount, m[2])
		q.Set(swapstate.ParamExactField, "output")
		in, out = m[1], m[3]
	} else {
		return intent{}, errIntentFormat
	}

	inID, err := currencyID(in, reg)
	if err != nil {
		return intent{}, err
	}
	outID, err := currencyID(out, reg)
	if err != nil {
		return intent{}, err
	}
	q.Set(swapstate.ParamInputCurrency, inID)
	q.Set(swapstate.ParamOutputCurrency, outID)
	return intent{State: swapstate.QueryParametersToSwapState(q)}, nil
}

// currencyID maps a symbol to the id stored in swap state.
func currencyID(symbol string, reg *currency.Registry) (string, error) {
	if strings.EqualFold(symbol, reg.Native().Symbol) || strings.EqualFold(symbol, currency.NativeID) {
		return currency.NativeID, nil
	}
	for _, c := range reg.All() {
		if strings.EqualFold(c.Symbol, symbol) {
			return c.ID(), nil
		}
	}
	return "", fmt.Errorf("unknown token %q", symbol)
}
