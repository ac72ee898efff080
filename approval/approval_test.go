package approval

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/defistate/swapintent-go/currency"
	"github.com/defistate/swapintent-go/txhistory"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	usdc    = currency.NewToken(common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"), "USDC", 6)
	lp      = currency.NewToken(common.HexToAddress("0x6e7a5FAFcec6BB1e78bAE2A1F0B612012BF14827"), "", 18)
	native  = currency.NewNative("MATIC", 18)
	router  = common.HexToAddress("0xa5E0829CaCEd8fFDD4De3c43696c57F7D7A678ff")
	owner   = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	txHash  = common.HexToHash("0xabc1")
	errBoom = errors.New("boom")
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func amountOf(c currency.Currency, raw int64) *currency.Amount {
	a := currency.NewAmount(c, big.NewInt(raw))
	return &a
}

type approveCall struct {
	amount   *big.Int
	gasLimit uint64
}

type fakeToken struct {
	mu           sync.Mutex
	allowance    *big.Int
	allowanceErr error
	// estimateErr fails estimation for amounts it returns true for.
	estimateErr  func(amount *big.Int) error
	estimates    []*big.Int
	approveErr   error
	approveDelay time.Duration
	approvals    []approveCall
}

func (f *fakeToken) Allowance(_ context.Context, _, _, _ common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.allowance, f.allowanceErr
}

func (f *fakeToken) EstimateApprove(_ context.Context, _, _ common.Address, amount *big.Int) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.estimates = append(f.estimates, new(big.Int).Set(amount))
	if f.estimateErr != nil {
		if err := f.estimateErr(amount); err != nil {
			return 0, err
		}
	}
	return 50000, nil
}

func (f *fakeToken) Approve(_ context.Context, _, _ common.Address, amount *big.Int, gasLimit uint64) (common.Hash, error) {
	time.Sleep(f.approveDelay)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.approveErr != nil {
		return common.Hash{}, f.approveErr
	}
	f.approvals = append(f.approvals, approveCall{amount: new(big.Int).Set(amount), gasLimit: gasLimit})
	return txHash, nil
}

func newTestManager(t *testing.T, token *fakeToken) (*Manager, *txhistory.MemoryLedger) {
	t.Helper()
	ledger := txhistory.NewMemoryLedger()
	m, err := NewManager(Config{Token: token, Ledger: ledger, Logger: newTestLogger()})
	require.NoError(t, err)
	return m, ledger
}

func TestCompute(t *testing.T) {
	spender := router
	tests := []struct {
		name      string
		amount    *currency.Amount
		spender   *common.Address
		allowance *big.Int
		pending   bool
		want      State
	}{
		{"no amount", nil, &spender, big.NewInt(0), false, Unknown},
		{"no spender", amountOf(usdc, 1), nil, big.NewInt(0), false, Unknown},
		{"native needs nothing", amountOf(native, 1), &spender, nil, false, Approved},
		{"allowance unknown", amountOf(usdc, 1), &spender, nil, false, Unknown},
		{"allowance short", amountOf(usdc, 100), &spender, big.NewInt(99), false, NotApproved},
		{"allowance short with pending approval", amountOf(usdc, 100), &spender, big.NewInt(99), true, Pending},
		{"allowance exact", amountOf(usdc, 100), &spender, big.NewInt(100), false, Approved},
		{"allowance ample ignores pending", amountOf(usdc, 100), &spender, big.NewInt(1000), true, Approved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compute(tt.amount, tt.spender, tt.allowance, tt.pending))
		})
	}
}

func TestManagerState(t *testing.T) {
	ctx := context.Background()
	spender := router

	t.Run("allowance read failure is unknown", func(t *testing.T) {
		m, _ := newTestManager(t, &fakeToken{allowanceErr: errBoom})
		assert.Equal(t, Unknown, m.State(ctx, Request{Owner: owner, Amount: amountOf(usdc, 1), Spender: &spender}))
	})

	t.Run("ledger approval makes it pending", func(t *testing.T) {
		m, ledger := newTestManager(t, &fakeToken{allowance: big.NewInt(0)})
		req := Request{Owner: owner, Amount: amountOf(usdc, 1), Spender: &spender}
		assert.Equal(t, NotApproved, m.State(ctx, req))

		require.NoError(t, ledger.Add(ctx, txhistory.Entry{
			Hash:     txHash,
			Approval: &txhistory.ApprovalInfo{TokenAddress: usdc.Address, Spender: router},
		}))
		assert.Equal(t, Pending, m.State(ctx, req))

		require.NoError(t, ledger.Finalize(ctx, txHash, txhistory.Receipt{Status: 1}))
		assert.Equal(t, NotApproved, m.State(ctx, req), "confirmed but allowance still short")
	})
}

func TestManagerApprove(t *testing.T) {
	ctx := context.Background()
	spender := router
	req := Request{Owner: owner, Amount: amountOf(usdc, 5_000_000), Spender: &spender}

	t.Run("unlimited approval", func(t *testing.T) {
		token := &fakeToken{allowance: big.NewInt(0)}
		m, ledger := newTestManager(t, token)

		hash, err := m.Approve(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, txHash, hash)

		require.Len(t, token.estimates, 1)
		require.Len(t, token.approvals, 1)
		assert.Zero(t, maxUint256().Cmp(token.approvals[0].amount))
		assert.Equal(t, uint64(55000), token.approvals[0].gasLimit)

		e, err := ledger.Get(ctx, txHash)
		require.NoError(t, err)
		assert.Equal(t, "Approve USDC", e.Summary)
		require.NotNil(t, e.Approval)
		assert.Equal(t, usdc.Address, e.Approval.TokenAddress)
		assert.Equal(t, router, e.Approval.Spender)
		assert.Equal(t, owner, e.From)

		assert.Equal(t, Pending, m.State(ctx, req))
	})

	t.Run("falls back to exact amount", func(t *testing.T) {
		token := &fakeToken{
			allowance: big.NewInt(0),
			estimateErr: func(amount *big.Int) error {
				if amount.Cmp(maxUint256()) == 0 {
					return errBoom
				}
				return nil
			},
		}
		m, _ := newTestManager(t, token)

		_, err := m.Approve(ctx, req)
		require.NoError(t, err)
		require.Len(t, token.estimates, 2)
		require.Len(t, token.approvals, 1)
		assert.Equal(t, "5000000", token.approvals[0].amount.String())
	})

	t.Run("estimation failure", func(t *testing.T) {
		token := &fakeToken{
			allowance:   big.NewInt(0),
			estimateErr: func(*big.Int) error { return errBoom },
		}
		m, ledger := newTestManager(t, token)

		_, err := m.Approve(ctx, req)
		assert.ErrorIs(t, err, ErrApprovalFailed)
		assert.ErrorIs(t, err, errBoom)
		assert.Empty(t, token.approvals)

		entries, err := ledger.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, entries)
		assert.Equal(t, NotApproved, m.State(ctx, req))
	})

	t.Run("submission rejected", func(t *testing.T) {
		m, ledger := newTestManager(t, &fakeToken{allowance: big.NewInt(0), approveErr: errBoom})

		_, err := m.Approve(ctx, req)
		assert.ErrorIs(t, err, ErrApprovalFailed)

		entries, err := ledger.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("already approved", func(t *testing.T) {
		token := &fakeToken{allowance: big.NewInt(10_000_000)}
		m, _ := newTestManager(t, token)

		_, err := m.Approve(ctx, req)
		assert.ErrorIs(t, err, ErrNotRequired)
		assert.Empty(t, token.estimates)
	})

	t.Run("unknown state", func(t *testing.T) {
		m, _ := newTestManager(t, &fakeToken{allowance: big.NewInt(0)})

		_, err := m.Approve(ctx, Request{Owner: owner})
		assert.ErrorIs(t, err, ErrNotRequired)
	})
}

// failingLedger records nothing.
type failingLedger struct {
	*txhistory.MemoryLedger
}

func (failingLedger) Add(context.Context, txhistory.Entry) error {
	return errBoom
}

func TestManagerApproveConcurrent(t *testing.T) {
	ctx := context.Background()
	spender := router
	req := Request{Owner: owner, Amount: amountOf(usdc, 5_000_000), Spender: &spender}

	token := &fakeToken{allowance: big.NewInt(0), approveDelay: 50 * time.Millisecond}
	m, _ := newTestManager(t, token)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.Approve(ctx, req)
		}(i)
	}
	wg.Wait()

	token.mu.Lock()
	defer token.mu.Unlock()
	assert.Len(t, token.approvals, 1)
	succeeded, refused := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrNotRequired):
			refused++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, refused)
}

func TestManagerApproveUnrecorded(t *testing.T) {
	ctx := context.Background()
	spender := router
	req := Request{Owner: owner, Amount: amountOf(usdc, 5_000_000), Spender: &spender}

	token := &fakeToken{allowance: big.NewInt(0)}
	m, err := NewManager(Config{
		Token:  token,
		Ledger: failingLedger{txhistory.NewMemoryLedger()},
		Logger: newTestLogger(),
	})
	require.NoError(t, err)
	now := time.Now()
	m.now = func() time.Time { return now }

	hash, err := m.Approve(ctx, req)
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, txHash, hash, "the broadcast hash is still returned")
	assert.Equal(t, Pending, m.State(ctx, req))

	_, err = m.Approve(ctx, req)
	assert.ErrorIs(t, err, ErrNotRequired)
	assert.Len(t, token.approvals, 1)

	t.Run("expires with the pending window", func(t *testing.T) {
		now = now.Add(txhistory.PendingApprovalWindow)
		assert.Equal(t, NotApproved, m.State(ctx, req))
	})
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "Approve USDC", Summary(usdc))
	assert.Equal(t, "Approve LP-tokens", Summary(lp))
}

func TestGasMargin(t *testing.T) {
	assert.Equal(t, uint64(110000), GasMargin(100000))
	assert.Equal(t, uint64(23100), GasMargin(21000))
}

func TestMaxUint256(t *testing.T) {
	want := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	assert.Zero(t, want.Cmp(maxUint256()))
}

func TestNewManagerValidates(t *testing.T) {
	_, err := NewManager(Config{})
	assert.Error(t, err)
}
