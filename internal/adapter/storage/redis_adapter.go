package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/marketplace/internal/core/domain"
)

const (
	stockKeyPrefix    = "stock:"
	idempotencyKeyTTL = 24 * time.Hour
	eventStream       = "market:events"
	streamMaxLen      = 100_000
)

// setAvailabilityScript stores an availability snapshot unless a snapshot
// with an equal or newer seq is already present.
var setAvailabilityScript = redis.NewScript(`
local key = KEYS[1]
local available = ARGV[1]
local seq = tonumber(ARGV[2])

local current = redis.call('HGET', key, 'seq')
if current and tonumber(current) >= seq then
	return 0
end

redis.call('HSET', key, 'available', available, 'seq', seq)
return 1
`)

type RedisAdapter struct {
	client *redis.Client
	stream string
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client, stream: eventStream}
}

func stockKey(id domain.ItemID) string {
	return stockKeyPrefix + strconv.FormatUint(uint64(id), 10)
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisAdapter) SetAvailability(ctx context.Context, a domain.Availability) error {
	return setAvailabilityScript.Run(ctx, r.client, []string{stockKey(a.ItemID)}, uint64(a.Available), a.Seq).Err()
}

// GetAvailability reads the mirrored snapshot for an item. ok is false when
// nothing has been mirrored yet.
func (r *RedisAdapter) GetAvailability(ctx context.Context, id domain.ItemID) (a domain.Availability, ok bool, err error) {
	fields, err := r.client.HGetAll(ctx, stockKey(id)).Result()
	if err != nil {
		return domain.Availability{}, false, err
	}
	if len(fields) == 0 {
		return domain.Availability{}, false, nil
	}

	available, err := strconv.ParseUint(fields["available"], 10, 64)
	if err != nil {
		return domain.Availability{}, false, fmt.Errorf("parse available: %w", err)
	}
	seq, err := strconv.ParseUint(fields["seq"], 10, 64)
	if err != nil {
		return domain.Availability{}, false, fmt.Errorf("parse seq: %w", err)
	}
	return domain.Availability{ItemID: id, Available: domain.Quantity(available), Seq: seq}, true, nil
}

// Publish appends a committed batch to the event stream, one entry per event.
func (r *RedisAdapter) Publish(ctx context.Context, events []domain.Event) error {
	pipe := r.client.Pipeline()
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal event %d: %w", ev.Seq, err)
		}
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: r.stream,
			MaxLen: streamMaxLen,
			Approx: true,
			Values: map[string]any{
				"seq":   ev.Seq,
				"kind":  string(ev.Kind),
				"event": data,
			},
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("xadd %s: %w", r.stream, err)
	}
	return nil
}
