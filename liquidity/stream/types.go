package stream

import (
	"encoding/json"

	"github.com/defistate/swapintent-go/protocols/uniswapv2"
)

// SubscriptionEvent is the wrapper object received from the server.
type SubscriptionEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	// SentAt is the server's send time in unix nanoseconds.
	SentAt int64 `json:"sentAt"`
}

// Snapshot is the payload of a "full" event.
type Snapshot struct {
	Block     uint64                      `json:"block"`
	Timestamp uint64                      `json:"timestamp"`
	Versions  map[string][]uniswapv2.Pool `json:"versions"`
}

// Diff is the payload of a "diff" event.
type Diff struct {
	FromBlock uint64                        `json:"fromBlock"`
	ToBlock   uint64                        `json:"toBlock"`
	Timestamp uint64                        `json:"timestamp"`
	Versions  map[string]uniswapv2.PoolDiff `json:"versions"`
}

// Update announces that the book moved to Block.
type Update struct {
	Type  string
	Block uint64
}
