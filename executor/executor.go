// Package executor drives a single swap attempt from confirmation through
// submission to its receipt.
package executor

import (
	"context"
	"errors"
	"time"

	"github.com/defistate/swapintent-go/analytics"
	"github.com/defistate/swapintent-go/prices"
	"github.com/defistate/swapintent-go/route"
	"github.com/defistate/swapintent-go/swapstate"
	"github.com/defistate/swapintent-go/txhistory"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// DefaultDeadline is how long a submitted swap stays valid on chain.
const DefaultDeadline = 20 * time.Minute

var (
	// ErrSwapInFlight is returned while another attempt is submitting or pending.
	ErrSwapInFlight = errors.New("swap already in flight")
	// ErrNothingToConfirm is returned by Confirm without a requested swap.
	ErrNothingToConfirm = errors.New("no swap awaiting confirmation")
	// ErrQuoteChanged is returned when the current trade differs from the one
	// shown for confirmation. AcceptChanges must be called first.
	ErrQuoteChanged = errors.New("quote changed since confirmation was requested")
	// ErrNoAccount is returned when no wallet is connected.
	ErrNoAccount = errors.New("wallet not connected")
	// ErrReverted is returned when the receipt reports a failed transaction.
	ErrReverted = errors.New("transaction reverted")
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Account is the connected wallet.
type Account struct {
	Address common.Address
	ChainID uint64
	// Wallet names the connection, such as "MetaMask". Empty when unknown.
	Wallet string
}

// AccountProvider supplies the connected account, if any.
type AccountProvider interface {
	Account(ctx context.Context) (Account, bool)
}

// Swap is a fully specified swap transaction.
type Swap struct {
	Trade       *route.Trade
	From        common.Address
	Recipient   common.Address
	SlippageBps uint16
	Deadline    time.Time
}

// Submitter signs and broadcasts swaps and waits for their receipts.
type Submitter interface {
	SubmitSwap(ctx context.Context, s Swap) (common.Hash, error)
	WaitReceipt(ctx context.Context, hash common.Hash) (txhistory.Receipt, error)
}

// PriceOracle prices a token in USD.
type PriceOracle interface {
	USDPrice(ctx context.Context, token common.Address) (decimal.Decimal, error)
}

// Order is what the user asked to execute: the trade plus their settings.
type Order struct {
	Trade       *route.Trade
	SlippageBps uint16
	// Recipient is nil when the output goes back to the sender.
	Recipient *common.Address
}

// InputClearer clears the typed amount after a swap went through.
type InputClearer interface {
	TypeInput(field swapstate.Field, value string) swapstate.State
}

// Phase is the stage of the current attempt.
type Phase uint8

const (
	Idle Phase = iota
	ConfirmPending
	Submitting
	Pending
	Settled
	Failed
)

func (p Phase) String() string {
	switch p {
	case ConfirmPending:
		return "CONFIRM_PENDING"
	case Submitting:
		return "SUBMITTING"
	case Pending:
		return "PENDING"
	case Settled:
		return "SETTLED"
	case Failed:
		return "FAILED"
	}
	return "IDLE"
}

// InFlight reports whether a transaction is being submitted or awaited.
func (p Phase) InFlight() bool {
	return p == Submitting || p == Pending
}

// State is the attempt state shown to the user.
type State struct {
	Phase            Phase
	ShowConfirm      bool
	TradeToConfirm   *route.Trade
	AttemptingTxn    bool
	TxPending        bool
	SwapErrorMessage string
	TxHash           *common.Hash
	// AttemptID identifies the attempt in logs and metrics.
	AttemptID string
}

// Config holds the configuration for a Session.
type Config struct {
	Submitter Submitter
	Ledger    txhistory.Ledger
	Accounts  AccountProvider
	Input     InputClearer
	Logger    Logger
	Registry  prometheus.Registerer

	// Optional collaborators.
	Analytics analytics.Sink
	Oracle    PriceOracle
	Confirmer prices.Confirmer

	Thresholds prices.Thresholds
	// Expert skips the confirmation step and the blocked-impact refusal.
	Expert bool
	// Deadline defaults to DefaultDeadline.
	Deadline time.Duration
	// PrimaryChainID is the only chain analytics events are fired for.
	PrimaryChainID uint64
	Network        string
}

func (c *Config) validate() error {
	if c.Submitter == nil {
		return errors.New("config: Submitter is required")
	}
	if c.Ledger == nil {
		return errors.New("config: Ledger is required")
	}
	if c.Accounts == nil {
		return errors.New("config: Accounts is required")
	}
	if c.Input == nil {
		return errors.New("config: Input is required")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	if c.Registry == nil {
		return errors.New("config: Registry is required")
	}
	if c.Thresholds.BlockedNonExpert == nil {
		return errors.New("config: Thresholds are required")
	}
	return nil
}
