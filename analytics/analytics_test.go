package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent() Event {
	e := NewTradeEvent()
	e.UserAddress = "0x00000000000000000000000000000000000000aa"
	e.Network = "Polygon"
	e.ContractAddress = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"
	e.AssetAmount = decimal.RequireFromString("12.5")
	e.AssetTicker = "USDC"
	e.Wallet = "metamask"
	e.AssetUSDAmount = decimal.RequireFromString("12.49")
	return e
}

func TestNewTradeEvent(t *testing.T) {
	e := NewTradeEvent()
	assert.Equal(t, TradeEvent, e.Name)
	_, err := uuid.Parse(e.ID)
	assert.NoError(t, err)
	assert.NotEqual(t, e.ID, NewTradeEvent().ID)
}

func TestEventJSON(t *testing.T) {
	data, err := json.Marshal(sampleEvent())
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, key := range []string{"user_address", "network", "contract_address", "asset_amount", "asset_ticker", "wallet", "asset_usd_amount"} {
		assert.Contains(t, fields, key)
	}
	assert.Equal(t, "12.5", fields["asset_amount"])
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, sink.Fire(context.Background(), sampleEvent()))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "trade", record["name"])
	assert.Equal(t, "USDC", record["asset_ticker"])
	assert.Equal(t, "12.49", record["asset_usd_amount"])
}

type recordingSink struct {
	events []Event
	err    error
}

func (r *recordingSink) Fire(_ context.Context, e Event) error {
	r.events = append(r.events, e)
	return r.err
}

func TestMultiSink(t *testing.T) {
	failing := &recordingSink{err: errors.New("down")}
	ok := &recordingSink{}

	err := MultiSink{failing, ok}.Fire(context.Background(), sampleEvent())
	assert.EqualError(t, err, "down")
	assert.Len(t, failing.events, 1)
	assert.Len(t, ok.events, 1, "later sinks still receive the event")
}

func TestChannels(t *testing.T) {
	assert.Equal(t, []string{"analytics:trades", "analytics:trades:polygon"}, Channels(sampleEvent()))
	assert.Equal(t, []string{"analytics:trades"}, Channels(Event{}))
}

func TestRedisSinkPublishes(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	sub := client.Subscribe(ctx, "analytics:trades:polygon")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	want := sampleEvent()
	require.NoError(t, NewRedisSink(client).Fire(ctx, want))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	var got Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, want.ID, got.ID)
	assert.True(t, want.AssetUSDAmount.Equal(got.AssetUSDAmount))
}
