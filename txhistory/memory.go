package txhistory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MemoryLedger is an in-process Ledger.
type MemoryLedger struct {
	mu      sync.RWMutex
	entries map[common.Hash]Entry
	order   []common.Hash
	now     func() time.Time
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		entries: make(map[common.Hash]Entry),
		now:     time.Now,
	}
}

func (l *MemoryLedger) Add(_ context.Context, e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.entries[e.Hash]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, e.Hash.Hex())
	}
	if e.AddedAt.IsZero() {
		e.AddedAt = l.now()
	}
	l.entries[e.Hash] = copyEntry(e)
	l.order = append(l.order, e.Hash)
	return nil
}

func (l *MemoryLedger) Finalize(_ context.Context, hash common.Hash, r Receipt) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[hash]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, hash.Hex())
	}
	confirmedAt := l.now()
	e.ConfirmedAt = &confirmedAt
	e.Receipt = &r
	l.entries[hash] = e
	return nil
}

func (l *MemoryLedger) Get(_ context.Context, hash common.Hash) (Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.entries[hash]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, hash.Hex())
	}
	return copyEntry(e), nil
}

func (l *MemoryLedger) List(_ context.Context) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, 0, len(l.order))
	for i := len(l.order) - 1; i >= 0; i-- {
		out = append(out, copyEntry(l.entries[l.order[i]]))
	}
	return out, nil
}

func (l *MemoryLedger) HasPendingApproval(_ context.Context, token, spender common.Address) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	now := l.now()
	for _, e := range l.entries {
		if e.isPendingApproval(token, spender, now) {
			return true, nil
		}
	}
	return false, nil
}

func copyEntry(e Entry) Entry {
	out := e
	if e.Approval != nil {
		a := *e.Approval
		out.Approval = &a
	}
	if e.ConfirmedAt != nil {
		c := *e.ConfirmedAt
		out.ConfirmedAt = &c
	}
	if e.Receipt != nil {
		r := *e.Receipt
		out.Receipt = &r
	}
	return out
}
