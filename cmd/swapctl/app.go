package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/defistate/swapintent-go/analytics"
	"github.com/defistate/swapintent-go/approval"
	"github.com/defistate/swapintent-go/cmd/swapctl/config"
	"github.com/defistate/swapintent-go/evm"
	"github.com/defistate/swapintent-go/executor"
	"github.com/defistate/swapintent-go/liquidity"
	"github.com/defistate/swapintent-go/liquidity/stream"
	"github.com/defistate/swapintent-go/pipeline"
	"github.com/defistate/swapintent-go/route"
	"github.com/defistate/swapintent-go/swapstate"
	"github.com/defistate/swapintent-go/txhistory"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// privateKeyEnv holds the hex signing key.
const privateKeyEnv = "SWAPCTL_PRIVATE_KEY"

// app is everything a swap command needs, wired from the config file.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	chain    *evm.Client
	ledger   txhistory.Ledger
	resolver *route.Resolver
	pipeline *pipeline.Pipeline
	closers  []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newLogger(level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	// stdout carries the command output.
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l})), nil
}

func newSpinner(suffix string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + suffix
	return s
}

// openLedger returns the redis ledger and sinks when redis is configured and
// the in-memory ones otherwise.
func openLedger(ctx context.Context, cfg *config.Config, logger *slog.Logger) (txhistory.Ledger, analytics.Sink, func(), error) {
	logSink := analytics.NewLogSink(logger.With("component", "analytics"))
	if cfg.Redis.Addr == "" {
		return txhistory.NewMemoryLedger(), logSink, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
	}
	sink := analytics.MultiSink{logSink, analytics.NewRedisSink(client)}
	return txhistory.NewRedisLedger(client, cfg.Redis.Prefix), sink, func() { _ = client.Close() }, nil
}

// openBook returns the static pools, or subscribes to the pool stream and
// waits for its first snapshot.
func openBook(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*liquidity.Book, error) {
	if cfg.Liquidity.StreamURL == "" {
		return liquidity.NewStaticBook(cfg.StaticPools()), nil
	}

	book := liquidity.NewBook()
	streamLogger := logger.With("component", "pool-stream")
	client, err := stream.NewClient(ctx, stream.Config{
		URL:        cfg.Liquidity.StreamURL,
		Logger:     streamLogger,
		BufferSize: cfg.Liquidity.BufferSize,
		Book:       book,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start pool stream: %w", err)
	}

	s := newSpinner("Waiting for pool snapshot...")
	s.Start()
	select {
	case <-client.Updates():
		s.Stop()
	case err := <-client.Err():
		s.Stop()
		return nil, fmt.Errorf("pool stream failed: %w", err)
	case <-ctx.Done():
		s.Stop()
		return nil, ctx.Err()
	}

	go func() {
		for {
			select {
			case u := <-client.Updates():
				streamLogger.Debug("Pool book updated", "type", u.Type, "block", u.Block)
			case err := <-client.Err():
				streamLogger.Error("Fatal pool stream error", "error", err)
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return book, nil
}

// serveMetrics exposes the default prometheus registry until the returned
// func is called.
func serveMetrics(addr string, logger *slog.Logger) func() {
	srv := &http.Server{
		Addr:              addr,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server stopped", "addr", addr, "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// newApp parses the intent in args, dials the chain, opens the ledger and
// pool book, and builds the pipeline.
func newApp(ctx context.Context, opts *rootOptions, args []string, ui *terminal) (*app, error) {
	cfg, logger, err := opts.load()
	if err != nil {
		return nil, err
	}
	currencies := cfg.Currencies()
	in, err := parseIntent(args, currencies)
	if err != nil {
		return nil, err
	}
	registry := prometheus.DefaultRegisterer

	a := &app{cfg: cfg, logger: logger}
	ready := false
	defer func() {
		if !ready {
			a.Close()
		}
	}()

	if cfg.Metrics.Enabled {
		a.closers = append(a.closers, serveMetrics(cfg.Metrics.Addr, logger.With("component", "metrics")))
	}

	key := os.Getenv(privateKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("%s is not set", privateKeyEnv)
	}
	a.chain, err = evm.Dial(ctx, cfg.Chain.RPCURL, evm.Config{
		PrivateKey:     key,
		Wallet:         cfg.Wallet,
		Logger:         logger.With("component", "evm"),
		ReceiptTimeout: cfg.Swap.ReceiptTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Chain.RPCURL, err)
	}
	a.closers = append(a.closers, a.chain.Close)
	if got := a.chain.ChainID(); got != cfg.Chain.ID {
		return nil, fmt.Errorf("rpc endpoint serves chain %d, config expects %d", got, cfg.Chain.ID)
	}

	ledger, sink, closeLedger, err := openLedger(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.ledger = ledger
	a.closers = append(a.closers, closeLedger)

	book, err := openBook(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	a.resolver, err = route.NewResolver(route.Config{
		Versions: cfg.Versions(),
		Source:   book,
		Wrapped:  cfg.Chain.Wrapped,
		Limiter:  rate.NewLimiter(rate.Limit(cfg.Swap.RateLimit), len(cfg.Routers)),
		Logger:   logger.With("component", "route-resolver"),
		Registry: registry,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create route resolver: %w", err)
	}

	approvals, err := approval.NewManager(approval.Config{
		Token:  a.chain,
		Ledger: ledger,
		Logger: logger.With("component", "approval"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create approval manager: %w", err)
	}

	a.pipeline, err = pipeline.New(pipeline.Config{
		Resolver:   a.resolver,
		Approvals:  approvals,
		Accounts:   a.chain,
		Currencies: currencies,
		Logger:     logger.With("component", "pipeline"),
		Registry:   registry,
		Executor: executor.Config{
			Submitter:      a.chain,
			Ledger:         ledger,
			Logger:         logger.With("component", "executor"),
			Analytics:      sink,
			Oracle:         newRouteOracle(a.resolver, currencies, cfg.Stablecoins),
			Confirmer:      ui,
			Expert:         opts.expert || cfg.Swap.Expert,
			Deadline:       cfg.Swap.Deadline,
			PrimaryChainID: cfg.Swap.PrimaryChainID,
			Network:        cfg.Chain.Name,
		},
		Balances: a.chain,
		StoreOptions: []swapstate.Option{
			swapstate.WithInitialState(in.State),
			swapstate.WithQuietPeriod(cfg.Swap.QuietPeriod),
		},
		Thresholds:    cfg.Thresholds(),
		SlippageBps:   cfg.Swap.SlippageBps,
		BadRecipients: cfg.Swap.BadRecipients,
		SwapIndex:     in.SwapIndex,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}
	ready = true
	return a, nil
}

// resolve quotes the current intent behind a spinner.
func (a *app) resolve(ctx context.Context) error {
	s := newSpinner("Fetching best route...")
	s.Start()
	_, err := a.pipeline.Resolve(ctx)
	s.Stop()
	if err != nil && !errors.Is(err, route.ErrSourceUnavailable) {
		return err
	}
	return nil
}

// waitApproval waits for an approval to be mined and records its receipt,
// which takes it out of the PENDING state.
func (a *app) waitApproval(ctx context.Context, hash common.Hash) (txhistory.Receipt, error) {
	s := newSpinner(fmt.Sprintf("Waiting for %s to be mined...", hash.Hex()))
	s.Start()
	receipt, err := a.chain.WaitReceipt(ctx, hash)
	s.Stop()
	if err != nil && !errors.Is(err, evm.ErrTransactionFailed) {
		return receipt, err
	}
	if ferr := a.ledger.Finalize(ctx, hash, receipt); ferr != nil {
		a.logger.Warn("Failed to record approval receipt", "hash", hash, "error", ferr)
	}
	return receipt, err
}
