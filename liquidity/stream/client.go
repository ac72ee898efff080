// Package stream keeps a liquidity.Book current from a JSON-RPC websocket
// subscription of pool snapshots and diffs.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/defistate/swapintent-go/liquidity"
	"github.com/ethereum/go-ethereum/rpc"
)

// Constants for reconnection logic
const (
	initialReconnectDelay = 1 * time.Second
	maxReconnectDelay     = 30 * time.Second

	// RpcNamespace is the namespace under which the pool streamer is registered.
	RpcNamespace                 = "liquidity"
	PoolStreamSubscriptionMethod = "subscribePoolStream"

	EventFull = "full"
	EventDiff = "diff"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the configuration for the client.
type Config struct {
	URL        string
	Logger     Logger
	BufferSize uint
	Book       *liquidity.Book
}

// validate checks if the configuration is valid.
func (c *Config) validate() error {
	if c.URL == "" {
		return errors.New("config: URL is required")
	}
	if c.BufferSize < 1 {
		return errors.New("config: BufferSize must be greater than 0")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	if c.Book == nil {
		return errors.New("config: Book is required")
	}
	return nil
}

// -----------------------------------------------------------------------------
// StreamProcessor
// -----------------------------------------------------------------------------

// StreamProcessor parses events and applies them to the book. It is
// decoupled from the networking layer.
type StreamProcessor struct {
	book     *liquidity.Book
	received bool
	updateCh chan Update
	logger   Logger
}

// NewStreamProcessor creates a pure logic processor without networking.
func NewStreamProcessor(logger Logger, bufferSize uint, book *liquidity.Book) *StreamProcessor {
	return &StreamProcessor{
		book:     book,
		updateCh: make(chan Update, bufferSize),
		logger:   logger,
	}
}

// Updates returns a read-only channel announcing applied events. When
// nobody drains it, notifications are dropped; the book is always current.
func (sp *StreamProcessor) Updates() <-chan Update {
	return sp.updateCh
}

// ProcessMessage decodes one raw subscription event and applies it.
func (sp *StreamProcessor) ProcessMessage(rawData json.RawMessage) error {
	processingStart := time.Now()
	var event SubscriptionEvent

	if err := json.Unmarshal(rawData, &event); err != nil {
		return fmt.Errorf("failed to unmarshal subscription event: %w", err)
	}

	switch event.Type {
	case EventFull:
		return sp.handleFull(event, processingStart)
	case EventDiff:
		return sp.handleDiff(event, processingStart)
	default:
		return fmt.Errorf("received unknown event type: %s", event.Type)
	}
}

func (sp *StreamProcessor) handleFull(event SubscriptionEvent, start time.Time) error {
	var snapshot Snapshot
	if err := json.Unmarshal(event.Payload, &snapshot); err != nil {
		return fmt.Errorf("failed to unmarshal full payload: %w", err)
	}

	changed := 0
	for _, diff := range sp.book.Replace(snapshot.Block, snapshot.Versions) {
		changed += diff.Len()
	}
	sp.received = true
	sp.logger.Debug("Replaced pool snapshot", "block", snapshot.Block, "changed_pools", changed)

	sp.logLatency(EventFull, snapshot.Block, snapshot.Timestamp, time.Since(start), event.SentAt)
	sp.publish(Update{Type: EventFull, Block: snapshot.Block})
	return nil
}

func (sp *StreamProcessor) handleDiff(event SubscriptionEvent, start time.Time) error {
	var diff Diff
	if err := json.Unmarshal(event.Payload, &diff); err != nil {
		return fmt.Errorf("failed to unmarshal diff payload: %w", err)
	}

	if !sp.received {
		return fmt.Errorf("received diff before full state; from_block: %d, to_block: %d", diff.FromBlock, diff.ToBlock)
	}

	err := sp.book.Apply(diff.FromBlock, diff.ToBlock, diff.Versions)
	if errors.Is(err, liquidity.ErrBlockGap) {
		sp.logger.Warn(
			"Received out-of-order diff; pools may be out of sync. Discarding.",
			"last_known_block", sp.book.Block(),
			"diff_from_block", diff.FromBlock,
			"diff_to_block", diff.ToBlock,
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to apply diff: %w", err)
	}

	sp.logLatency(EventDiff, diff.ToBlock, diff.Timestamp, time.Since(start), event.SentAt)
	sp.publish(Update{Type: EventDiff, Block: diff.ToBlock})
	return nil
}

func (sp *StreamProcessor) publish(u Update) {
	select {
	case sp.updateCh <- u:
	default:
		sp.logger.Debug("Update channel full, dropping notification", "block", u.Block)
	}
}

func (sp *StreamProcessor) logLatency(eventType string, block, blockTimestamp uint64, processingDur time.Duration, sentAt int64) {
	clientFinishTime := time.Now()
	clientStartTime := clientFinishTime.Add(-processingDur)

	args := []any{
		"block", block,
		"type", eventType,
		"latency_proc_ms", processingDur.Milliseconds(),
	}
	if sentAt > 0 {
		args = append(args, "latency_transport_ms", clientStartTime.Sub(time.Unix(0, sentAt)).Milliseconds())
	}
	if blockTimestamp > 0 {
		args = append(args, "latency_total_ms", clientFinishTime.Sub(time.Unix(int64(blockTimestamp), 0)).Milliseconds())
	}
	sp.logger.Debug("Pools processed", args...)
}

// -----------------------------------------------------------------------------
// Client (Networking Wrapper)
// -----------------------------------------------------------------------------

// Client manages the connection and uses StreamProcessor for logic.
type Client struct {
	processor *StreamProcessor
	errCh     chan error
	logger    Logger
}

// NewClient creates a new client and starts streaming into cfg.Book until
// ctx is canceled.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	client := &Client{
		processor: NewStreamProcessor(cfg.Logger, cfg.BufferSize, cfg.Book),
		errCh:     make(chan error, 1),
		logger:    cfg.Logger,
	}

	go client.run(ctx, cfg.URL)
	return client, nil
}

// Updates delegates to the processor's update channel.
func (c *Client) Updates() <-chan Update {
	return c.processor.Updates()
}

// Err returns a channel that is closed when the client stops.
func (c *Client) Err() <-chan error {
	return c.errCh
}

// run handles the networking lifecycle and feeds data to the processor.
func (c *Client) run(ctx context.Context, url string) {
	defer close(c.errCh)
	reconnectDelay := initialReconnectDelay

	for {
		if ctx.Err() != nil {
			c.logger.Info("Client context canceled, shutting down.")
			return
		}

		c.logger.Info("Attempting to connect to RPC server", "url", url)
		rpcClient, err := rpc.DialContext(ctx, url)
		if err != nil {
			c.logger.Error("Failed to connect to RPC server, will retry...", "error", err, "delay", reconnectDelay)
			if !sleep(ctx, reconnectDelay) {
				return
			}
			reconnectDelay = min(reconnectDelay*2, maxReconnectDelay)
			continue
		}

		c.logger.Info("Successfully connected to RPC server.")
		reconnectDelay = initialReconnectDelay

		err = c.subscribeAndProcess(ctx, rpcClient)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.logger.Info("Context canceled, shutting down.")
				return
			}
			c.logger.Error("Subscription failed, will reconnect...", "error", err, "delay", reconnectDelay)
			if !sleep(ctx, reconnectDelay) {
				return
			}
			reconnectDelay = min(reconnectDelay*2, maxReconnectDelay)
		}
	}
}

func (c *Client) subscribeAndProcess(ctx context.Context, rpcClient *rpc.Client) error {
	defer rpcClient.Close()

	rawCh := make(chan json.RawMessage)
	sub, err := rpcClient.Subscribe(ctx, RpcNamespace, rawCh, PoolStreamSubscriptionMethod)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	c.logger.Info("Successfully subscribed. Waiting for pools...")
	for {
		select {
		case rawData := <-rawCh:
			if err := c.processor.ProcessMessage(rawData); err != nil {
				c.logger.Error("Error processing message", "error", err)
			}
		case err := <-sub.Err():
			if err == nil {
				return errors.New("subscription closed by server")
			}
			return err
		case <-ctx.Done():
			c.logger.Info("Context cancelled, stopping subscription.")
			return ctx.Err()
		}
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
