package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/webitel/webhooks-service/internal/domain/model"
)

var _ EventStore = (*RedisStore)(nil)

const redisKeyPrefix = "webhooks:events:"

// redisClockSkew widens the XRANGE lower bound so that a store clock running ahead of
// the Redis server cannot hide fresh entries. The ts field stays authoritative.
const redisClockSkew = 5 * time.Second

// RedisStore keeps one Redis stream per wallet so that ingestion and delivery can run
// as separate processes. Streams are capped by length and expire after the max age;
// age filtering on read is still authoritative.
type RedisStore struct {
	client     redis.UniversalClient
	breaker    *gobreaker.CircuitBreaker
	maxAge     time.Duration
	maxEntries int64
	now        Clock
	logger     *slog.Logger
}

type RedisOption func(*RedisStore)

func WithRedisClock(c Clock) RedisOption {
	return func(s *RedisStore) { s.now = c }
}

func WithRedisLogger(l *slog.Logger) RedisOption {
	return func(s *RedisStore) { s.logger = l }
}

// NewRedisStore connects to url (redis://host:port/db) and verifies the connection.
func NewRedisStore(ctx context.Context, url string, maxAge time.Duration, maxEntries int, opts ...RedisOption) (*RedisStore, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return NewRedisStoreFromClient(client, maxAge, maxEntries, opts...), nil
}

func NewRedisStoreFromClient(client redis.UniversalClient, maxAge time.Duration, maxEntries int, opts ...RedisOption) *RedisStore {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	s := &RedisStore{
		client:     client,
		maxAge:     maxAge,
		maxEntries: int64(maxEntries),
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	// [RESILIENCE] Stop hammering an unavailable Redis; callers treat store errors as
	// non-fatal (ingestion still broadcasts, streams fall back to live-only).
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-event-store",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn("STORE_BREAKER_STATE_CHANGED", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return s
}

func streamKey(walletID string) string {
	return redisKeyPrefix + walletID
}

func (s *RedisStore) Append(ctx context.Context, walletID string, ev *model.Event) error {
	data, err := model.EncodeRecord(ev)
	if err != nil {
		return err
	}
	key := streamKey(walletID)

	_, err = s.breaker.Execute(func() (interface{}, error) {
		pipe := s.client.TxPipeline()
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: key,
			MaxLen: s.maxEntries,
			Approx: true,
			Values: map[string]interface{}{
				"ts":    strconv.FormatInt(s.now().UnixMicro(), 10),
				"event": data,
			},
		})
		if s.maxAge > 0 {
			pipe.Expire(ctx, key, s.maxAge)
		}
		_, err := pipe.Exec(ctx)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("append to %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Read(ctx context.Context, walletID string, maxAge time.Duration) ([]*model.Event, error) {
	if maxAge <= 0 {
		return nil, nil
	}
	key := streamKey(walletID)
	now := s.now()
	start := rangeStart(now, maxAge)

	res, err := s.breaker.Execute(func() (interface{}, error) {
		msgs, err := s.client.XRange(ctx, key, start, "+").Result()
		if errors.Is(err, redis.Nil) {
			return []redis.XMessage(nil), nil
		}
		return msgs, err
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	msgs := res.([]redis.XMessage)
	out := make([]*model.Event, 0, len(msgs))
	for _, msg := range msgs {
		ev, at, err := decodeStreamEntry(msg)
		if err != nil {
			s.logger.Warn("STORE_ENTRY_DECODE_FAILED", "key", key, "entry_id", msg.ID, "err", err)
			continue
		}
		if within(now, at, maxAge) {
			out = append(out, ev)
		}
	}
	return out, nil
}

// rangeStart is the smallest entry id that can still be younger than maxAge. Entry ids
// carry the server's millisecond clock.
func rangeStart(now time.Time, maxAge time.Duration) string {
	ms := now.Add(-maxAge - redisClockSkew).UnixMilli()
	if ms <= 0 {
		return "-"
	}
	return strconv.FormatInt(ms, 10)
}

func decodeStreamEntry(msg redis.XMessage) (*model.Event, time.Time, error) {
	rawTS, _ := msg.Values["ts"].(string)
	micros, err := strconv.ParseInt(rawTS, 10, 64)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("bad timestamp %q: %w", rawTS, err)
	}
	rawEvent, _ := msg.Values["event"].(string)
	ev, err := model.DecodeRecord([]byte(rawEvent))
	if err != nil {
		return nil, time.Time{}, err
	}
	return ev, time.UnixMicro(micros), nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
