package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/defistate/swapintent-go/analytics"
	"github.com/defistate/swapintent-go/prices"
	"github.com/defistate/swapintent-go/route"
	"github.com/defistate/swapintent-go/swapstate"
	"github.com/defistate/swapintent-go/txhistory"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Session owns the state of one swap at a time. All methods are safe for
// concurrent use; Confirm and an expert RequestSwap block until the receipt
// arrives or the attempt fails.
type Session struct {
	mu    sync.Mutex
	state State

	submitter  Submitter
	ledger     txhistory.Ledger
	accounts   AccountProvider
	input      InputClearer
	sink       analytics.Sink
	oracle     PriceOracle
	confirmer  prices.Confirmer
	thresholds prices.Thresholds
	expert     bool
	deadline   time.Duration
	primary    uint64
	network    string
	now        func() time.Time

	logger  Logger
	metrics *Metrics
}

// NewSession validates cfg and builds a Session in the Idle phase.
func NewSession(cfg Config) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	deadline := cfg.Deadline
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	return &Session{
		submitter:  cfg.Submitter,
		ledger:     cfg.Ledger,
		accounts:   cfg.Accounts,
		input:      cfg.Input,
		sink:       cfg.Analytics,
		oracle:     cfg.Oracle,
		confirmer:  cfg.Confirmer,
		thresholds: cfg.Thresholds,
		expert:     cfg.Expert,
		deadline:   deadline,
		primary:    cfg.PrimaryChainID,
		network:    cfg.Network,
		now:        time.Now,
		logger:     cfg.Logger,
		metrics:    NewMetrics(cfg.Registry),
	}, nil
}

// State returns a copy of the current attempt state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyStateLocked()
}

func (s *Session) copyStateLocked() State {
	st := s.state
	if st.TxHash != nil {
		h := *st.TxHash
		st.TxHash = &h
	}
	return st
}

// Expert reports whether the session executes without confirmation.
func (s *Session) Expert() bool {
	return s.expert
}

// RequestSwap starts a swap of o. In expert mode the swap is executed at once
// and the hash is returned; otherwise the trade is captured for confirmation
// and the zero hash is returned.
func (s *Session) RequestSwap(ctx context.Context, o Order) (common.Hash, error) {
	if o.Trade == nil {
		return common.Hash{}, ErrNothingToConfirm
	}
	if s.expert {
		return s.execute(ctx, o)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Phase.InFlight() {
		return common.Hash{}, ErrSwapInFlight
	}
	s.state = State{
		Phase:          ConfirmPending,
		ShowConfirm:    true,
		TradeToConfirm: o.Trade,
	}
	return common.Hash{}, nil
}

// AcceptChanges replaces the trade awaiting confirmation with current and
// leaves the rest of the state alone.
func (s *Session) AcceptChanges(current *route.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.TradeToConfirm = current
}

// Dismiss closes the confirmation. If a transaction hash was recorded the
// typed amount is cleared. A transaction already broadcast is not affected.
func (s *Session) Dismiss() {
	s.mu.Lock()
	hadHash := s.state.TxHash != nil
	if s.state.Phase.InFlight() {
		s.state.ShowConfirm = false
	} else {
		s.state = State{Phase: Idle}
	}
	s.mu.Unlock()

	if hadHash {
		s.input.TypeInput(swapstate.FieldInput, "")
	}
}

// Confirm executes the trade awaiting confirmation. current is the trade the
// resolver holds now; when it no longer matches the snapshot the swap is
// refused with ErrQuoteChanged until AcceptChanges is called.
func (s *Session) Confirm(ctx context.Context, current Order) (common.Hash, error) {
	s.mu.Lock()
	snapshot := s.state.TradeToConfirm
	showing := s.state.ShowConfirm
	phase := s.state.Phase
	s.mu.Unlock()

	if phase.InFlight() {
		return common.Hash{}, ErrSwapInFlight
	}
	// Failed attempts may be retried from the same confirmation.
	if !showing || snapshot == nil || (phase != ConfirmPending && phase != Failed) {
		return common.Hash{}, ErrNothingToConfirm
	}
	if !snapshot.Equivalent(current.Trade) {
		return common.Hash{}, ErrQuoteChanged
	}
	current.Trade = snapshot
	return s.execute(ctx, current)
}

// execute runs the impact gate, then submits and waits for the receipt.
func (s *Session) execute(ctx context.Context, o Order) (common.Hash, error) {
	if s.State().Phase.InFlight() {
		return common.Hash{}, ErrSwapInFlight
	}
	impact := prices.ComputeBreakdown(o.Trade).PriceImpactWithoutFee
	if err := prices.ConfirmPriceImpact(impact, s.thresholds, s.expert, s.confirmer); err != nil {
		s.metrics.attempts.WithLabelValues("refused").Inc()
		s.logger.Warn("Swap refused by price impact check", "impact", prices.Percent(impact), "error", err)
		return common.Hash{}, err
	}

	s.mu.Lock()
	if s.state.Phase.InFlight() {
		s.mu.Unlock()
		return common.Hash{}, ErrSwapInFlight
	}
	attemptID := uuid.NewString()
	s.state = State{
		Phase:          Submitting,
		ShowConfirm:    s.state.ShowConfirm,
		TradeToConfirm: s.state.TradeToConfirm,
		AttemptingTxn:  true,
		AttemptID:      attemptID,
	}
	s.mu.Unlock()

	account, ok := s.accounts.Account(ctx)
	if !ok {
		return common.Hash{}, s.fail(attemptID, ErrNoAccount)
	}
	swap := Swap{
		Trade:       o.Trade,
		From:        account.Address,
		Recipient:   account.Address,
		SlippageBps: o.SlippageBps,
		Deadline:    s.now().Add(s.deadline),
	}
	if o.Recipient != nil {
		swap.Recipient = *o.Recipient
	}

	hash, err := s.submitter.SubmitSwap(ctx, swap)
	if err != nil {
		return common.Hash{}, s.fail(attemptID, err)
	}
	submittedAt := s.now()

	s.mu.Lock()
	s.state.Phase = Pending
	s.state.AttemptingTxn = false
	s.state.TxPending = true
	s.state.TxHash = &hash
	s.mu.Unlock()

	summary := Summary(o.Trade, o.Recipient, account.Address)
	if err := s.ledger.Add(ctx, txhistory.Entry{Hash: hash, From: account.Address, Summary: summary}); err != nil {
		s.logger.Error("Failed to record swap", "attempt", attemptID, "hash", hash, "error", err)
	}
	s.logger.Info("Swap submitted", "attempt", attemptID, "hash", hash, "summary", summary)

	receipt, err := s.submitter.WaitReceipt(ctx, hash)
	if err == nil && receipt.Status == 0 {
		err = fmt.Errorf("%w: %s in block %d", ErrReverted, hash.Hex(), receipt.BlockNumber)
	}
	if err != nil {
		return common.Hash{}, s.fail(attemptID, err)
	}
	s.metrics.receiptLatency.Observe(s.now().Sub(submittedAt).Seconds())

	if err := s.ledger.Finalize(ctx, hash, receipt); err != nil {
		s.logger.Error("Failed to finalize swap", "attempt", attemptID, "hash", hash, "error", err)
	}

	s.mu.Lock()
	s.state.Phase = Settled
	s.state.TxPending = false
	s.mu.Unlock()
	s.metrics.attempts.WithLabelValues("settled").Inc()

	in, out := o.Trade.InputAmount(), o.Trade.OutputAmount()
	s.logger.Info("Swap settled",
		"attempt", attemptID,
		"hash", hash,
		"block", receipt.BlockNumber,
		"action", Action(o.Recipient, account.Address),
		"label", in.Symbol+"/"+out.Symbol,
	)
	s.fireTrade(ctx, attemptID, account, o.Trade)
	return hash, nil
}

func (s *Session) fail(attemptID string, err error) error {
	s.mu.Lock()
	s.state.Phase = Failed
	s.state.AttemptingTxn = false
	s.state.TxPending = false
	s.state.TxHash = nil
	s.state.SwapErrorMessage = err.Error()
	s.mu.Unlock()

	s.metrics.attempts.WithLabelValues("failed").Inc()
	s.logger.Error("Swap failed", "attempt", attemptID, "error", err)
	return err
}

// fireTrade emits the trade event when the swap ran on the primary chain
// from a known wallet.
func (s *Session) fireTrade(ctx context.Context, attemptID string, account Account, trade *route.Trade) {
	if s.sink == nil || account.ChainID != s.primary || account.Wallet == "" {
		return
	}

	in := trade.InputAmount()
	token := trade.Path()[0]
	amount := in.Decimal()

	e := analytics.NewTradeEvent()
	e.UserAddress = account.Address.Hex()
	e.Network = s.network
	e.ContractAddress = trade.Router().Hex()
	e.AssetAmount = amount
	e.AssetTicker = trade.WrappedInput().Symbol
	e.Wallet = account.Wallet
	e.AssetUSDAmount = decimal.Zero
	if s.oracle != nil {
		price, err := s.oracle.USDPrice(ctx, token)
		if err != nil {
			s.logger.Warn("Failed to price input token", "attempt", attemptID, "token", token, "error", err)
		} else {
			e.AssetUSDAmount = amount.Mul(price)
		}
	}

	if err := s.sink.Fire(ctx, e); err != nil {
		s.logger.Warn("Failed to fire analytics event", "attempt", attemptID, "event", e.Name, "error", err)
	}
}

// Summary is the history text of a swap, such as "Swap 1 ETH for 3000 USDC".
func Summary(trade *route.Trade, recipient *common.Address, sender common.Address) string {
	in, out := trade.InputAmount(), trade.OutputAmount()
	base := fmt.Sprintf("Swap %s %s for %s %s", in.Significant(3), in.Symbol, out.Significant(3), out.Symbol)
	if recipient == nil || *recipient == sender {
		return base
	}
	return base + " to " + recipient.Hex()
}

// Action is the tracking label of a settled swap.
func Action(recipient *common.Address, sender common.Address) string {
	switch {
	case recipient == nil:
		return "Swap w/o Send"
	case *recipient == sender:
		return "Swap w/o Send + recipient"
	}
	return "Swap w/ Send"
}
