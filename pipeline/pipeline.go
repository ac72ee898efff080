// Package pipeline wires the swap intent components together: typed input
// is debounced by the store, resolved into trades once the quiet period
// passes, checked for approval and handed to the executor.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/defistate/swapintent-go/approval"
	"github.com/defistate/swapintent-go/currency"
	"github.com/defistate/swapintent-go/executor"
	"github.com/defistate/swapintent-go/prices"
	"github.com/defistate/swapintent-go/route"
	"github.com/defistate/swapintent-go/swapstate"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ErrStale is returned by Resolve when the input changed while the
	// request was in flight. The result is discarded.
	ErrStale = errors.New("resolution superseded by newer input")
	// ErrInvalidInput wraps the user-facing input error of a swap request.
	ErrInvalidInput = errors.New("invalid swap input")
	// ErrNoRoute is returned when a swap is requested without a trade.
	ErrNoRoute = errors.New("no route for swap")
	// ErrApprovalRequired is returned when the router may not spend the input yet.
	ErrApprovalRequired = errors.New("approval required")
	// ErrNotConnected is returned when an operation needs an account.
	ErrNotConnected = errors.New("no account connected")
)

// DefaultBadRecipients are contracts that must never receive swap output:
// the Uniswap V2 factory and both V2 routers.
var DefaultBadRecipients = []common.Address{
	common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"),
	common.HexToAddress("0xf164fC0Ec4E93095b804a4795bBe1e041497b92a"),
	common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"),
}

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// BalanceSource supplies the owner's balance of a currency in smallest units.
type BalanceSource interface {
	Balance(ctx context.Context, owner common.Address, c currency.Currency) (*big.Int, error)
}

// Config holds the configuration for a Pipeline.
type Config struct {
	Resolver   *route.Resolver
	Approvals  *approval.Manager
	Accounts   executor.AccountProvider
	Currencies *currency.Registry
	Logger     Logger
	Registry   prometheus.Registerer
	// Executor configures the swap session. Input is always the pipeline's
	// store; Accounts, Logger, Registry and Thresholds default to the
	// pipeline's own.
	Executor executor.Config
	// Balances is optional. Without it the balance check is skipped.
	Balances BalanceSource
	// StoreOptions are passed to swapstate.NewStore.
	StoreOptions []swapstate.Option

	Thresholds prices.Thresholds
	// SlippageBps is the user's tolerance. Zero selects automatic slippage.
	SlippageBps uint16
	// BadRecipients extend DefaultBadRecipients and the configured routers.
	BadRecipients []common.Address
	// SwapIndex is the swapIndex query flag. "0" skips the balance check.
	SwapIndex string
}

func (c *Config) validate() error {
	if c.Resolver == nil {
		return errors.New("config: Resolver is required")
	}
	if c.Approvals == nil {
		return errors.New("config: Approvals is required")
	}
	if c.Accounts == nil {
		return errors.New("config: Accounts is required")
	}
	if c.Currencies == nil {
		return errors.New("config: Currencies is required")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	if c.Registry == nil {
		return errors.New("config: Registry is required")
	}
	return nil
}

// resolution is the outcome of quoting one intent.
type resolution struct {
	intent swapstate.State
	trades []*route.Trade
	err    error
}

// Pipeline is the swap intent pipeline of one user.
type Pipeline struct {
	store     *swapstate.Store
	resolver  *route.Resolver
	approvals *approval.Manager
	session   *executor.Session
	accounts  executor.AccountProvider
	balances  BalanceSource
	registry  *currency.Registry

	thresholds    prices.Thresholds
	slippageBps   uint16
	badRecipients map[common.Address]struct{}
	swapIndex     string

	mu                sync.Mutex
	result            *resolution
	approvalSubmitted bool
	// inflight counts background resolutions; idle is signalled on p.mu
	// when it drops to zero.
	inflight int
	idle     *sync.Cond

	logger  Logger
	metrics *Metrics
}

// New validates cfg and builds a Pipeline with its own store and swap session.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	thresholds := cfg.Thresholds
	if thresholds.BlockedNonExpert == nil {
		thresholds = prices.DefaultThresholds()
	}

	p := &Pipeline{
		resolver:      cfg.Resolver,
		approvals:     cfg.Approvals,
		accounts:      cfg.Accounts,
		balances:      cfg.Balances,
		registry:      cfg.Currencies,
		thresholds:    thresholds,
		slippageBps:   cfg.SlippageBps,
		badRecipients: make(map[common.Address]struct{}),
		swapIndex:     cfg.SwapIndex,
		logger:        cfg.Logger,
		metrics:       NewMetrics(cfg.Registry),
	}
	p.idle = sync.NewCond(&p.mu)
	for _, a := range DefaultBadRecipients {
		p.badRecipients[a] = struct{}{}
	}
	for _, a := range cfg.BadRecipients {
		p.badRecipients[a] = struct{}{}
	}
	for _, v := range cfg.Resolver.Versions() {
		p.badRecipients[v.Router] = struct{}{}
	}

	opts := append([]swapstate.Option{swapstate.WithSelectCurrencyHook(p.resetApprovalSubmitted)}, cfg.StoreOptions...)
	p.store = swapstate.NewStore(opts...)

	ecfg := cfg.Executor
	ecfg.Input = p.store
	if ecfg.Accounts == nil {
		ecfg.Accounts = cfg.Accounts
	}
	if ecfg.Logger == nil {
		ecfg.Logger = cfg.Logger
	}
	if ecfg.Registry == nil {
		ecfg.Registry = cfg.Registry
	}
	if ecfg.Thresholds.BlockedNonExpert == nil {
		ecfg.Thresholds = thresholds
	}
	session, err := executor.NewSession(ecfg)
	if err != nil {
		return nil, fmt.Errorf("executor %w", err)
	}
	p.session = session
	return p, nil
}

// Store returns the input state store. All user input goes through it.
func (p *Pipeline) Store() *swapstate.Store {
	return p.store
}

// Session returns the swap session.
func (p *Pipeline) Session() *executor.Session {
	return p.session
}

// Start resolves routes in the background each time typing settles, until
// ctx is cancelled. Every quiet period triggers one resolution.
func (p *Pipeline) Start(ctx context.Context) {
	unsubscribe := p.store.SubscribeInputComplete(func(st swapstate.State) {
		p.mu.Lock()
		p.inflight++
		p.mu.Unlock()
		go func() {
			defer p.done()
			if _, err := p.resolve(ctx, st); err != nil && !errors.Is(err, ErrStale) {
				p.logger.Warn("Route resolution failed", "error", err)
			}
		}()
	})

	go func() {
		<-ctx.Done()
		unsubscribe()
	}()
}

func (p *Pipeline) done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inflight--
	if p.inflight == 0 {
		p.idle.Broadcast()
	}
}

// Wait blocks until no background resolution is running. Resolutions
// started after it returns are not waited for.
func (p *Pipeline) Wait() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.inflight > 0 {
		p.idle.Wait()
	}
}

// Resolve quotes the current input synchronously and returns one trade per
// router version that found a route.
func (p *Pipeline) Resolve(ctx context.Context) ([]*route.Trade, error) {
	return p.resolve(ctx, p.store.State())
}

func (p *Pipeline) resolve(ctx context.Context, st swapstate.State) ([]*route.Trade, error) {
	var regular, bonus []route.Version
	for _, v := range p.resolver.Versions() {
		if v.Bonus {
			bonus = append(bonus, v)
		} else {
			regular = append(regular, v)
		}
	}

	if _, ok := p.store.DispatchIf(st, swapstate.SetSwapDelayAction{SwapDelay: swapstate.DelayFetchingSwap}); !ok {
		return p.discard(st)
	}
	req := p.request(st)
	trades, err := p.resolver.ResolveVersions(ctx, req, regular)

	if len(bonus) > 0 {
		if _, ok := p.store.DispatchIf(st, swapstate.SetSwapDelayAction{SwapDelay: swapstate.DelayFetchingBonus}); !ok {
			return p.discard(st)
		}
		more, bonusErr := p.resolver.ResolveVersions(ctx, req, bonus)
		if bonusErr != nil {
			p.logger.Warn("Bonus route resolution failed", "error", bonusErr)
		}
		trades = append(trades, more...)
		if len(trades) > 0 {
			err = nil
		}
	}

	return p.apply(st, trades, err)
}

// apply stores the result of resolving st unless the input has moved on.
func (p *Pipeline) apply(st swapstate.State, trades []*route.Trade, err error) ([]*route.Trade, error) {
	p.mu.Lock()
	if !p.store.State().SameIntent(st) {
		p.mu.Unlock()
		return p.discard(st)
	}
	p.result = &resolution{intent: st.Clone(), trades: trades, err: err}
	p.mu.Unlock()

	actions := []swapstate.Action{swapstate.SetSwapDelayAction{SwapDelay: swapstate.DelayInit}}
	if best := route.Best(trades); best != nil {
		actions = append([]swapstate.Action{swapstate.SetBestRouteAction{BestRoute: best.Version().Route}}, actions...)
	}
	if _, ok := p.store.DispatchIf(st, actions...); !ok {
		return p.discard(st)
	}

	if err != nil {
		p.metrics.resolutions.WithLabelValues("error").Inc()
		return nil, err
	}
	p.metrics.resolutions.WithLabelValues("applied").Inc()
	p.logger.Debug("Applied route resolution", "value", st.TypedValue, "field", st.IndependentField, "trades", len(trades))
	return trades, nil
}

func (p *Pipeline) discard(st swapstate.State) ([]*route.Trade, error) {
	p.metrics.resolutions.WithLabelValues("stale").Inc()
	p.logger.Debug("Discarding stale route resolution", "value", st.TypedValue, "field", st.IndependentField)
	return nil, ErrStale
}

func (p *Pipeline) request(st swapstate.State) route.Request {
	req := route.Request{TypedValue: st.TypedValue, Independent: st.IndependentField}
	if c, ok := p.registry.Lookup(st.CurrencyID(swapstate.FieldInput)); ok {
		req.Input = &c
	}
	if c, ok := p.registry.Lookup(st.CurrencyID(swapstate.FieldOutput)); ok {
		req.Output = &c
	}
	return req
}

// trades returns the resolved trades for st, or nothing when st has not
// been resolved yet.
func (p *Pipeline) trades(st swapstate.State) ([]*route.Trade, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.result == nil || !p.result.intent.SameIntent(st) {
		return nil, nil
	}
	return p.result.trades, p.result.err
}

func (p *Pipeline) resetApprovalSubmitted(swapstate.Field) {
	p.mu.Lock()
	p.approvalSubmitted = false
	p.mu.Unlock()
}

// ApprovalSubmitted reports whether an approval was sent since the last
// currency selection.
func (p *Pipeline) ApprovalSubmitted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.approvalSubmitted
}

// Approve approves the best trade's router to spend the input currency.
func (p *Pipeline) Approve(ctx context.Context) (common.Hash, error) {
	info := p.Derive(ctx)
	if info.Account == nil {
		return common.Hash{}, ErrNotConnected
	}
	hash, err := p.approvals.Approve(ctx, info.ApprovalRequest)
	if hash != (common.Hash{}) {
		p.mu.Lock()
		p.approvalSubmitted = true
		p.mu.Unlock()
	}
	return hash, err
}

// order builds the executor order from the current input. It refuses
// anything the swap button would not allow.
func (p *Pipeline) order(ctx context.Context) (executor.Order, error) {
	info := p.Derive(ctx)
	switch {
	case info.InputError != "":
		return executor.Order{}, fmt.Errorf("%w: %s", ErrInvalidInput, info.InputError)
	case info.Trade == nil:
		return executor.Order{}, ErrNoRoute
	case info.Approval != approval.Approved:
		return executor.Order{}, fmt.Errorf("%w: approval is %s", ErrApprovalRequired, info.Approval)
	}

	o := executor.Order{Trade: info.Trade, SlippageBps: info.SlippageBps}
	if info.State.Recipient != nil {
		o.Recipient = info.Recipient
	}
	return o, nil
}

// RequestSwap starts a swap of the best trade. Outside expert mode it only
// opens the confirmation.
func (p *Pipeline) RequestSwap(ctx context.Context) (common.Hash, error) {
	o, err := p.order(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	return p.session.RequestSwap(ctx, o)
}

// ConfirmSwap executes the trade awaiting confirmation, provided the best
// trade has not changed since it was captured.
func (p *Pipeline) ConfirmSwap(ctx context.Context) (common.Hash, error) {
	o, err := p.order(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	return p.session.Confirm(ctx, o)
}

// DismissSwap closes the confirmation.
func (p *Pipeline) DismissSwap() {
	p.session.Dismiss()
}

// AcceptChanges re-captures the current best trade for confirmation.
func (p *Pipeline) AcceptChanges() {
	st := p.store.State()
	trades, _ := p.trades(st)
	p.session.AcceptChanges(route.Best(trades))
}
