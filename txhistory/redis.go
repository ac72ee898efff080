package txhistory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "txhistory"

// RedisLedger stores entries as JSON under <prefix>:tx:<hash>, orders them
// in the sorted set <prefix>:index and tracks unconfirmed approvals in the
// set <prefix>:approvals:<token>:<spender>.
type RedisLedger struct {
	client redis.Cmdable
	prefix string
	now    func() time.Time
}

// NewRedisLedger creates a ledger on client. An empty prefix uses "txhistory";
// scope the prefix per account and chain to keep histories apart.
func NewRedisLedger(client redis.Cmdable, prefix string) *RedisLedger {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisLedger{client: client, prefix: prefix, now: time.Now}
}

func (l *RedisLedger) txKey(hash common.Hash) string {
	return fmt.Sprintf("%s:tx:%s", l.prefix, strings.ToLower(hash.Hex()))
}

func (l *RedisLedger) indexKey() string {
	return l.prefix + ":index"
}

func (l *RedisLedger) approvalKey(token, spender common.Address) string {
	return fmt.Sprintf("%s:approvals:%s:%s", l.prefix, strings.ToLower(token.Hex()), strings.ToLower(spender.Hex()))
}

func (l *RedisLedger) Add(ctx context.Context, e Entry) error {
	if e.AddedAt.IsZero() {
		e.AddedAt = l.now()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	created, err := l.client.SetNX(ctx, l.txKey(e.Hash), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to store entry: %w", err)
	}
	if !created {
		return fmt.Errorf("%w: %s", ErrDuplicate, e.Hash.Hex())
	}

	pipe := l.client.TxPipeline()
	pipe.ZAdd(ctx, l.indexKey(), redis.Z{Score: float64(e.AddedAt.UnixNano()), Member: e.Hash.Hex()})
	if e.Approval != nil {
		pipe.SAdd(ctx, l.approvalKey(e.Approval.TokenAddress, e.Approval.Spender), e.Hash.Hex())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to index entry: %w", err)
	}
	return nil
}

func (l *RedisLedger) Finalize(ctx context.Context, hash common.Hash, r Receipt) error {
	e, err := l.Get(ctx, hash)
	if err != nil {
		return err
	}
	confirmedAt := l.now()
	e.ConfirmedAt = &confirmedAt
	e.Receipt = &r

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	pipe := l.client.TxPipeline()
	pipe.Set(ctx, l.txKey(hash), data, 0)
	if e.Approval != nil {
		pipe.SRem(ctx, l.approvalKey(e.Approval.TokenAddress, e.Approval.Spender), hash.Hex())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to finalize entry: %w", err)
	}
	return nil
}

func (l *RedisLedger) Get(ctx context.Context, hash common.Hash) (Entry, error) {
	data, err := l.client.Get(ctx, l.txKey(hash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, hash.Hex())
	}
	if err != nil {
		return Entry{}, fmt.Errorf("failed to load entry: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("failed to decode entry: %w", err)
	}
	return e, nil
}

func (l *RedisLedger) List(ctx context.Context) ([]Entry, error) {
	hashes, err := l.client.ZRevRange(ctx, l.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}
	out := make([]Entry, 0, len(hashes))
	for _, h := range hashes {
		e, err := l.Get(ctx, common.HexToHash(h))
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (l *RedisLedger) HasPendingApproval(ctx context.Context, token, spender common.Address) (bool, error) {
	hashes, err := l.client.SMembers(ctx, l.approvalKey(token, spender)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read approvals: %w", err)
	}
	now := l.now()
	for _, h := range hashes {
		e, err := l.Get(ctx, common.HexToHash(h))
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return false, err
		}
		if e.isPendingApproval(token, spender, now) {
			return true, nil
		}
	}
	return false, nil
}
