// Package approval tracks whether a spender may move a token on the
// user's behalf and submits ERC-20 approvals when it may not.
package approval

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/defistate/swapintent-go/currency"
	"github.com/defistate/swapintent-go/route"
	"github.com/defistate/swapintent-go/txhistory"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	// ErrNotRequired is returned by Approve when the state is not NOT_APPROVED.
	ErrNotRequired = errors.New("approval not required")
	// ErrApprovalFailed wraps gas estimation and submission failures.
	ErrApprovalFailed = errors.New("approval failed")
)

// State is the derived approval status of (token, spender, amount).
type State uint8

const (
	Unknown State = iota
	NotApproved
	Pending
	Approved
)

func (s State) String() string {
	switch s {
	case NotApproved:
		return "NOT_APPROVED"
	case Pending:
		return "PENDING"
	case Approved:
		return "APPROVED"
	}
	return "UNKNOWN"
}

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// TokenContract is the ERC-20 surface the manager needs.
type TokenContract interface {
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	EstimateApprove(ctx context.Context, token, spender common.Address, amount *big.Int) (uint64, error)
	Approve(ctx context.Context, token, spender common.Address, amount *big.Int, gasLimit uint64) (common.Hash, error)
}

// Request names the amount to be spent and who spends it. Nil fields are
// unknown.
type Request struct {
	Owner   common.Address
	Amount  *currency.Amount
	Spender *common.Address
}

// FromTrade builds the request for executing trade: the most input it may
// spend at slippageBps, approved to the trade's router. A nil trade yields
// an empty request.
func FromTrade(owner common.Address, trade *route.Trade, slippageBps uint16) Request {
	if trade == nil {
		return Request{Owner: owner}
	}
	amount := trade.MaximumAmountIn(slippageBps)
	spender := trade.Router()
	return Request{Owner: owner, Amount: &amount, Spender: &spender}
}

// Compute derives the approval state. The checks run in order: a missing
// amount or spender is UNKNOWN, native currency needs no approval, an unknown
// allowance is UNKNOWN, and an allowance below the amount is PENDING while an
// approval is in flight and NOT_APPROVED otherwise.
func Compute(amount *currency.Amount, spender *common.Address, allowance *big.Int, pending bool) State {
	if amount == nil || spender == nil {
		return Unknown
	}
	if amount.Native {
		return Approved
	}
	if allowance == nil {
		return Unknown
	}
	if allowance.Cmp(amount.Raw) < 0 {
		if pending {
			return Pending
		}
		return NotApproved
	}
	return Approved
}

// Config holds the configuration for the Manager.
type Config struct {
	Token  TokenContract
	Ledger txhistory.Ledger
	Logger Logger
}

func (c *Config) validate() error {
	if c.Token == nil {
		return errors.New("config: Token is required")
	}
	if c.Ledger == nil {
		return errors.New("config: Ledger is required")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	return nil
}

// Manager reads approval state and submits approvals. Approve calls are
// serialized, so a second call sees the first one's approval as PENDING.
type Manager struct {
	token  TokenContract
	ledger txhistory.Ledger
	logger Logger

	approveMu sync.Mutex

	mu sync.Mutex
	// unrecorded holds approvals that were broadcast but could not be
	// written to the ledger, keyed by pair, with the time they were sent.
	unrecorded map[pair]time.Time
	now        func() time.Time
}

type pair struct {
	token, spender common.Address
}

// NewManager validates cfg and builds a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Manager{
		token:      cfg.Token,
		ledger:     cfg.Ledger,
		logger:     cfg.Logger,
		unrecorded: make(map[pair]time.Time),
		now:        time.Now,
	}, nil
}

// State derives the approval state of req from the on-chain allowance and
// the ledger's pending approvals. Read failures degrade to UNKNOWN.
func (m *Manager) State(ctx context.Context, req Request) State {
	if req.Amount == nil || req.Spender == nil {
		return Unknown
	}
	if req.Amount.Native {
		return Approved
	}

	token := req.Amount.Address
	allowance, err := m.token.Allowance(ctx, token, req.Owner, *req.Spender)
	if err != nil {
		m.logger.Warn("Failed to read allowance", "token", token, "spender", *req.Spender, "error", err)
		allowance = nil
	}
	pending, err := m.ledger.HasPendingApproval(ctx, token, *req.Spender)
	if err != nil {
		m.logger.Warn("Failed to read pending approvals", "token", token, "spender", *req.Spender, "error", err)
	}
	key := pair{token: token, spender: *req.Spender}
	if m.isUnrecorded(key) {
		pending = true
	}
	state := Compute(req.Amount, req.Spender, allowance, pending)
	if state == Approved {
		m.mu.Lock()
		delete(m.unrecorded, key)
		m.mu.Unlock()
	}
	return state
}

func (m *Manager) isUnrecorded(key pair) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	sent, ok := m.unrecorded[key]
	if !ok {
		return false
	}
	if m.now().Sub(sent) >= txhistory.PendingApprovalWindow {
		delete(m.unrecorded, key)
		return false
	}
	return true
}

// Approve submits an approval for req. It tries an unlimited allowance first
// and falls back to the exact amount when that cannot be estimated. On
// success the transaction is recorded in the ledger, which moves the state
// to PENDING until its receipt arrives.
func (m *Manager) Approve(ctx context.Context, req Request) (common.Hash, error) {
	m.approveMu.Lock()
	defer m.approveMu.Unlock()

	if state := m.State(ctx, req); state != NotApproved {
		m.logger.Error("Approve was called unnecessarily", "state", state)
		return common.Hash{}, fmt.Errorf("%w: state is %s", ErrNotRequired, state)
	}

	token, spender := req.Amount.Address, *req.Spender
	amount, unlimited := maxUint256(), true
	gas, err := m.token.EstimateApprove(ctx, token, spender, amount)
	if err != nil {
		m.logger.Debug("Unlimited approval cannot be estimated, using exact amount", "token", token, "error", err)
		amount, unlimited = new(big.Int).Set(req.Amount.Raw), false
		gas, err = m.token.EstimateApprove(ctx, token, spender, amount)
	}
	if err != nil {
		m.logger.Error("Failed to estimate approval gas", "token", token, "spender", spender, "error", err)
		return common.Hash{}, fmt.Errorf("%w: estimate gas: %w", ErrApprovalFailed, err)
	}

	hash, err := m.token.Approve(ctx, token, spender, amount, GasMargin(gas))
	if err != nil {
		m.logger.Error("Failed to approve token", "token", token, "spender", spender, "error", err)
		return common.Hash{}, fmt.Errorf("%w: %w", ErrApprovalFailed, err)
	}

	entry := txhistory.Entry{
		Hash:     hash,
		From:     req.Owner,
		Summary:  Summary(req.Amount.Currency),
		Approval: &txhistory.ApprovalInfo{TokenAddress: token, Spender: spender},
	}
	if err := m.ledger.Add(ctx, entry); err != nil {
		// The approval is on its way regardless; keep the pair PENDING.
		m.mu.Lock()
		m.unrecorded[pair{token: token, spender: spender}] = m.now()
		m.mu.Unlock()
		m.logger.Error("Failed to record approval", "hash", hash, "error", err)
		return hash, fmt.Errorf("failed to record approval %s: %w", hash.Hex(), err)
	}
	m.logger.Info("Approval submitted", "hash", hash, "token", token, "spender", spender, "unlimited", unlimited)
	return hash, nil
}

// Summary is the ledger text for an approval of c.
func Summary(c currency.Currency) string {
	if c.Symbol == "" {
		return "Approve LP-tokens"
	}
	return "Approve " + c.Symbol
}

// GasMargin adds 10% to a gas estimate.
func GasMargin(gas uint64) uint64 {
	return gas * 11000 / 10000
}

func maxUint256() *big.Int {
	return new(uint256.Int).SetAllOne().ToBig()
}
