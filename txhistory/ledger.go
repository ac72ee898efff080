// Package txhistory records the transactions a user has sent: swaps and
// approvals, pending until a receipt finalizes them.
package txhistory

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PendingApprovalWindow bounds how long an unconfirmed approval keeps the
// token in the PENDING state. Older entries are treated as dropped.
const PendingApprovalWindow = 24 * time.Hour

var (
	// ErrNotFound is returned when no entry exists for a hash.
	ErrNotFound = errors.New("transaction not found")
	// ErrDuplicate is returned when an entry for the hash already exists.
	ErrDuplicate = errors.New("transaction already recorded")
)

// ApprovalInfo marks an entry as an ERC-20 approval.
type ApprovalInfo struct {
	TokenAddress common.Address `json:"tokenAddress"`
	Spender      common.Address `json:"spender"`
}

// Receipt is the part of a transaction receipt the ledger keeps.
type Receipt struct {
	Status      uint64 `json:"status"`
	BlockNumber uint64 `json:"blockNumber"`
}

// Entry is one recorded transaction.
type Entry struct {
	Hash        common.Hash    `json:"hash"`
	From        common.Address `json:"from"`
	Summary     string         `json:"summary"`
	Approval    *ApprovalInfo  `json:"approval,omitempty"`
	AddedAt     time.Time      `json:"addedAt"`
	ConfirmedAt *time.Time     `json:"confirmedAt,omitempty"`
	Receipt     *Receipt       `json:"receipt,omitempty"`
}

// Pending reports whether the entry has no receipt yet.
func (e Entry) Pending() bool {
	return e.Receipt == nil
}

// isPendingApproval reports whether e is a recent, unconfirmed approval of
// token for spender.
func (e Entry) isPendingApproval(token, spender common.Address, now time.Time) bool {
	if e.Approval == nil || !e.Pending() {
		return false
	}
	if e.Approval.TokenAddress != token || e.Approval.Spender != spender {
		return false
	}
	return now.Sub(e.AddedAt) < PendingApprovalWindow
}

// Ledger is the transaction history store.
type Ledger interface {
	// Add records a newly submitted transaction. AddedAt is set when zero.
	Add(ctx context.Context, e Entry) error
	// Finalize attaches the receipt to a recorded transaction.
	Finalize(ctx context.Context, hash common.Hash, r Receipt) error
	Get(ctx context.Context, hash common.Hash) (Entry, error)
	// List returns entries newest first.
	List(ctx context.Context) ([]Entry, error)
	// HasPendingApproval reports whether a recent approval of token for
	// spender is still waiting for its receipt.
	HasPendingApproval(ctx context.Context, token, spender common.Address) (bool, error)
}
