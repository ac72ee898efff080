package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const tradesChannel = "analytics:trades"

// RedisSink publishes events as JSON on analytics:trades and on the
// per-network channel analytics:trades:<network>.
type RedisSink struct {
	client redis.Cmdable
}

// NewRedisSink returns a sink publishing through client.
func NewRedisSink(client redis.Cmdable) *RedisSink {
	return &RedisSink{client: client}
}

// Channels lists the channels an event is published to.
func Channels(e Event) []string {
	channels := []string{tradesChannel}
	if e.Network != "" {
		channels = append(channels, fmt.Sprintf("%s:%s", tradesChannel, strings.ToLower(e.Network)))
	}
	return channels
}

func (s *RedisSink) Fire(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	pipe := s.client.Pipeline()
	for _, channel := range Channels(e) {
		pipe.Publish(ctx, channel, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
