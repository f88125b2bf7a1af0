package alerts

import (
	"context"
	"fmt"
	"time"

	"fulfillment_backend/internal/sla"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Store keeps dispatcher accounting: dedup reservations, daily counters and
// disabled channels.
type Store interface {
	// Reserve claims the dedup slot for an alert. It returns false when an
	// alert with the same key was sent inside the window.
	Reserve(ctx context.Context, key DedupKey, at time.Time, window time.Duration) (bool, error)
	// Release drops a reservation whose delivery failed so a later cycle can retry.
	Release(ctx context.Context, key DedupKey) error
	// ReserveDaily takes one of the recipient's daily slots. It returns false
	// once limit slots are taken for day. Check and increment are atomic.
	ReserveDaily(ctx context.Context, recipientID uuid.UUID, day string, limit int) (bool, error)
	// ReleaseDaily gives back a slot whose send failed.
	ReleaseDaily(ctx context.Context, recipientID uuid.UUID, day string) error
	DisableChannel(ctx context.Context, recipientID uuid.UUID, ch Channel, reason string) error
	DisabledChannels(ctx context.Context, recipientID uuid.UUID) (map[Channel]string, error)
}

// DedupKey identifies alerts that must not repeat inside the dedup window.
type DedupKey struct {
	BookingID  uuid.UUID
	BreachType sla.BreachType
	Kind       Kind
	// RecipientID scopes the key so each recipient is retried on its own.
	RecipientID uuid.UUID
}

// dailyCounterTTL keeps a day's counter long enough to cover any timezone offset.
const dailyCounterTTL = 48 * time.Hour

// reserveDailyScript increments the counter and undoes it when the limit is
// exceeded, so concurrent dispatchers never send past the cap.
var reserveDailyScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
if n > tonumber(ARGV[1]) then
	redis.call('DECR', KEYS[1])
	return 0
end
return 1
`)

var releaseDailyScript = redis.NewScript(`
local n = tonumber(redis.call('GET', KEYS[1]) or '0')
if n > 0 then
	return redis.call('DECR', KEYS[1])
end
return 0
`)

// RedisStore implements Store on redis keys with expiries.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a store. Keys are namespaced under prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "sla:alert"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) sentKey(k DedupKey) string {
	return fmt.Sprintf("%s:sent:%s:%s:%s:%s", s.prefix, k.BookingID, k.BreachType, k.Kind, k.RecipientID)
}

func (s *RedisStore) capKey(recipientID uuid.UUID, day string) string {
	return fmt.Sprintf("%s:cap:%s:%s", s.prefix, recipientID, day)
}

func (s *RedisStore) disabledKey(recipientID uuid.UUID) string {
	return fmt.Sprintf("%s:disabled:%s", s.prefix, recipientID)
}

func (s *RedisStore) Reserve(ctx context.Context, key DedupKey, at time.Time, window time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.sentKey(key), at.UTC().Format(time.RFC3339), window).Result()
	if err != nil {
		return false, fmt.Errorf("reserve alert: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) Release(ctx context.Context, key DedupKey) error {
	if err := s.client.Del(ctx, s.sentKey(key)).Err(); err != nil {
		return fmt.Errorf("release alert: %w", err)
	}
	return nil
}

func (s *RedisStore) ReserveDaily(ctx context.Context, recipientID uuid.UUID, day string, limit int) (bool, error) {
	ok, err := reserveDailyScript.Run(ctx, s.client, []string{s.capKey(recipientID, day)}, limit, dailyCounterTTL.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("reserve daily slot: %w", err)
	}
	return ok == 1, nil
}

func (s *RedisStore) ReleaseDaily(ctx context.Context, recipientID uuid.UUID, day string) error {
	if err := releaseDailyScript.Run(ctx, s.client, []string{s.capKey(recipientID, day)}).Err(); err != nil {
		return fmt.Errorf("release daily slot: %w", err)
	}
	return nil
}

func (s *RedisStore) DisableChannel(ctx context.Context, recipientID uuid.UUID, ch Channel, reason string) error {
	if err := s.client.HSet(ctx, s.disabledKey(recipientID), string(ch), reason).Err(); err != nil {
		return fmt.Errorf("disable channel: %w", err)
	}
	return nil
}

func (s *RedisStore) DisabledChannels(ctx context.Context, recipientID uuid.UUID) (map[Channel]string, error) {
	raw, err := s.client.HGetAll(ctx, s.disabledKey(recipientID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read disabled channels: %w", err)
	}
	out := make(map[Channel]string, len(raw))
	for ch, reason := range raw {
		out[Channel(ch)] = reason
	}
	return out, nil
}

var _ Store = (*RedisStore)(nil)
