// Package analytics delivers product events about completed swaps.
package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TradeEvent is the name of the event fired once per settled swap.
const TradeEvent = "trade"

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Event is one analytics record.
type Event struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	UserAddress     string          `json:"user_address"`
	Network         string          `json:"network"`
	ContractAddress string          `json:"contract_address"`
	AssetAmount     decimal.Decimal `json:"asset_amount"`
	AssetTicker     string          `json:"asset_ticker"`
	Wallet          string          `json:"wallet"`
	AssetUSDAmount  decimal.Decimal `json:"asset_usd_amount"`
	FiredAt         time.Time       `json:"fired_at"`
}

// NewTradeEvent returns a trade event with a fresh ID.
func NewTradeEvent() Event {
	return Event{
		ID:      uuid.NewString(),
		Name:    TradeEvent,
		FiredAt: time.Now().UTC(),
	}
}

// Sink receives analytics events.
type Sink interface {
	Fire(ctx context.Context, e Event) error
}

// LogSink writes events to a logger.
type LogSink struct {
	logger Logger
}

// NewLogSink returns a sink logging at info level.
func NewLogSink(logger Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Fire(_ context.Context, e Event) error {
	s.logger.Info("Analytics event",
		"id", e.ID,
		"name", e.Name,
		"user_address", e.UserAddress,
		"network", e.Network,
		"contract_address", e.ContractAddress,
		"asset_amount", e.AssetAmount.String(),
		"asset_ticker", e.AssetTicker,
		"wallet", e.Wallet,
		"asset_usd_amount", e.AssetUSDAmount.StringFixed(2),
	)
	return nil
}

// MultiSink fans events out to several sinks. Every sink is tried; the
// first error is returned.
type MultiSink []Sink

func (m MultiSink) Fire(ctx context.Context, e Event) error {
	var first error
	for _, s := range m {
		if err := s.Fire(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
