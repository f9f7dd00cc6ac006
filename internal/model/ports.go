package model

import "context"

// ── Storage Port Interfaces ──
// These interfaces decouple the core components from concrete storage
// implementations (file-partitioned NDJSON, Redis, SQLite). Each store
// implementation under internal/store satisfies one or more of these.

// CandleStore persists candles at the file/Redis layout of spec §6:
// <root>/candles/<tf>/YYYY/MM/DD/<symbol>.ndjson.
type CandleStore interface {
	// WriteCandle appends or replaces a candle emission. Re-emission of an
	// already-final bucket (late tick within tolerance) must overwrite the
	// prior emission for that bucket, not duplicate it.
	WriteCandle(ctx context.Context, c Candle) error

	// ReadCandles returns candles for symbol/timeframe with ts_start_utc
	// at or after afterTS, ascending.
	ReadCandles(ctx context.Context, symbol, tfLabel string, afterTS int64) ([]Candle, error)

	Close() error
}

// TickStore persists raw ticks at <root>/ticks/YYYY/MM/DD/<symbol>.ndjson.
type TickStore interface {
	WriteTick(ctx context.Context, t Tick) error
	Close() error
}

// ProposalStore persists sized order proposals at
// <root>/proposals/YYYY/MM/DD/proposals.ndjson.
type ProposalStore interface {
	WriteProposal(ctx context.Context, p OrderProposal) error
	Close() error
}

// AuditStore persists the append-only NDJSON audit trail for AgentIntents,
// partitioned by UTC date under audit_artifacts/agent_intents/YYYY-MM-DD/.
type AuditStore interface {
	WriteIntent(ctx context.Context, i AgentIntent) error
	Close() error
}

// LedgerStore provides read access to the append-only fill ledger written
// by the execution collaborator (out of core scope to produce, read-only
// here) plus persistence for circuit breaker audit events.
type LedgerStore interface {
	ReadTrades(ctx context.Context, groupKey string, asOf *int64, inclusive bool) ([]LedgerTrade, error)
	AppendTrade(ctx context.Context, t LedgerTrade) error
	AppendBreakerEvent(ctx context.Context, e CircuitBreakerEvent) error
	Close() error
}

// ActivityStore is the process-wide marketdata-activity surface: the
// ingest service's heartbeat writer publishes to it and the safety
// evaluator reads from it (spec §4.3, §4.4).
type ActivityStore interface {
	WriteHeartbeat(ctx context.Context, h HeartbeatInfo) error
	ReadHeartbeat(ctx context.Context, serviceID string) (HeartbeatInfo, error)
	WriteMarketdataActivity(ctx context.Context, ts Tick) error
	ReadLastMarketdataTS(ctx context.Context) (*int64, error)

	// CacheVIX / ReadVIX back the 5-minute TTL VIX cache used by the
	// volatility guard breaker (spec §4.5b).
	CacheVIX(ctx context.Context, value float64) error
	ReadVIX(ctx context.Context) (float64, bool, error)

	Close() error
}
