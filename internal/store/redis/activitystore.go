// Package redis backs model.ActivityStore with Redis: the ingest
// service's heartbeat writer and marketdata-activity publisher, and the
// volatility guard breaker's 5-minute VIX cache, per spec.md §4.3, §4.4,
// and §4.5b. Grounded on the teacher's internal/store/redis Writer (the
// WriterConfig/New connection idiom, keyspace-by-prefix naming) and
// Reader (Get/Set usage for the indicator snapshot key), generalized
// from candle/TF-candle persistence to the small KV surface ActivityStore
// actually needs.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"trading-systemv1/internal/model"
	"trading-systemv1/internal/retry"

	goredis "github.com/go-redis/redis/v8"
)

const (
	heartbeatKeyPrefix  = "marketdata:heartbeat:"
	lastTickKey         = "marketdata:last_tick_ts"
	vixCacheKey         = "marketdata:vix"
	heartbeatTTL        = 5 * time.Minute
	vixCacheTTL         = 5 * time.Minute // spec.md §4.5b
	defaultMaxFailures  = 5
	defaultResetTimeout = 10 * time.Second
	defaultMaxBuffered  = 10000
)

// ActivityStoreConfig configures the Redis-backed ActivityStore.
type ActivityStoreConfig struct {
	Addr     string
	Password string
	DB       int

	// MaxFailures/ResetTimeout configure the circuit breaker guarding
	// every write; zero values fall back to defaultMaxFailures/
	// defaultResetTimeout.
	MaxFailures  int
	ResetTimeout time.Duration
	MaxBuffered  int
}

// ActivityStore implements model.ActivityStore against Redis. Writes go
// through a retry.CircuitBreaker wrapped in a retry.BufferedWriter: a
// Redis outage buffers heartbeat/VIX/activity writes locally instead of
// returning an error up to the ingest hot path, and replays them once
// Redis recovers (spec.md §7: store failures must not block the
// market-data pipeline).
type ActivityStore struct {
	client *goredis.Client
	cb     *retry.CircuitBreaker
	bw     *retry.BufferedWriter
}

// NewActivityStore creates a Redis-backed ActivityStore and pings the
// server.
func NewActivityStore(cfg ActivityStoreConfig) (*ActivityStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	maxFailures := cfg.MaxFailures
	if maxFailures <= 0 {
		maxFailures = defaultMaxFailures
	}
	resetTimeout := cfg.ResetTimeout
	if resetTimeout <= 0 {
		resetTimeout = defaultResetTimeout
	}

	cb := retry.NewCircuitBreaker(maxFailures, resetTimeout)
	cb.OnStateChange = func(from, to retry.State) {
		log.Printf("[redis-activity] circuit breaker %s -> %s", from, to)
	}
	bw := retry.NewBufferedWriter(cb, cfg.MaxBuffered)

	log.Printf("[redis-activity] connected to %s", cfg.Addr)
	return &ActivityStore{client: client, cb: cb, bw: bw}, nil
}

// WriteHeartbeat persists a service's liveness record, keyed by
// service_id, with a TTL so a crashed writer's last heartbeat eventually
// expires rather than reading as healthy forever.
func (s *ActivityStore) WriteHeartbeat(ctx context.Context, h model.HeartbeatInfo) error {
	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("redis activity: marshal heartbeat: %w", err)
	}
	key := heartbeatKeyPrefix + h.ServiceID
	return s.bw.Write(func() error {
		return s.client.Set(ctx, key, data, heartbeatTTL).Err()
	})
}

// ReadHeartbeat returns the last-written heartbeat for serviceID. A
// missing or expired key is not an error — it returns the zero
// HeartbeatInfo with Status HeartbeatUnknown, which the safety evaluator
// treats as not-safe-to-run per the fail-closed default.
func (s *ActivityStore) ReadHeartbeat(ctx context.Context, serviceID string) (model.HeartbeatInfo, error) {
	data, err := s.client.Get(ctx, heartbeatKeyPrefix+serviceID).Bytes()
	if err == goredis.Nil {
		return model.HeartbeatInfo{ServiceID: serviceID, Status: model.HeartbeatUnknown, IsStale: true}, nil
	}
	if err != nil {
		return model.HeartbeatInfo{}, fmt.Errorf("redis activity: get heartbeat %s: %w", serviceID, err)
	}
	var h model.HeartbeatInfo
	if err := json.Unmarshal(data, &h); err != nil {
		return model.HeartbeatInfo{}, fmt.Errorf("redis activity: unmarshal heartbeat %s: %w", serviceID, err)
	}
	return h, nil
}

// WriteMarketdataActivity records the timestamp of the most recently
// accepted tick, read by the safety evaluator to judge marketdata
// freshness.
func (s *ActivityStore) WriteMarketdataActivity(ctx context.Context, t model.Tick) error {
	ts := t.TS.UTC().UnixMilli()
	return s.bw.Write(func() error {
		return s.client.Set(ctx, lastTickKey, ts, 0).Err()
	})
}

// ReadLastMarketdataTS returns the last tick timestamp in Unix
// milliseconds, or nil if no tick has ever been recorded.
func (s *ActivityStore) ReadLastMarketdataTS(ctx context.Context) (*int64, error) {
	v, err := s.client.Get(ctx, lastTickKey).Result()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis activity: get last tick ts: %w", err)
	}
	ts, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis activity: parse last tick ts %q: %w", v, err)
	}
	return &ts, nil
}

// CacheVIX stores the current VIX reading with a 5-minute TTL, per
// spec.md §4.5b.
func (s *ActivityStore) CacheVIX(ctx context.Context, value float64) error {
	return s.bw.Write(func() error {
		return s.client.Set(ctx, vixCacheKey, value, vixCacheTTL).Err()
	})
}

// ReadVIX returns the cached VIX value and whether the cache had a live
// (non-expired) entry.
func (s *ActivityStore) ReadVIX(ctx context.Context) (float64, bool, error) {
	v, err := s.client.Get(ctx, vixCacheKey).Float64()
	if err == goredis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis activity: get vix: %w", err)
	}
	return v, true, nil
}

// PendingWrites returns the number of writes currently buffered because
// the circuit breaker is open, for observability.
func (s *ActivityStore) PendingWrites() int {
	return s.bw.PendingCount()
}

// Client returns the underlying Redis client, so callers that need a
// second Redis-backed collaborator in the same process (e.g.
// CandleStreamWriter/Reader) can share one connection rather than
// opening another.
func (s *ActivityStore) Client() *goredis.Client {
	return s.client
}

// Close closes the underlying Redis client.
func (s *ActivityStore) Close() error {
	return s.client.Close()
}

var _ model.ActivityStore = (*ActivityStore)(nil)
