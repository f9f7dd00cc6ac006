package model

import "time"

// SafetyState is the fail-closed readiness evaluation result (spec §4.3).
type SafetyState struct {
	TradingEnabled     bool       `json:"trading_enabled"`
	KillSwitch         bool       `json:"kill_switch"`
	MarketdataFresh    bool       `json:"marketdata_fresh"`
	MarketdataLastTS   *time.Time `json:"marketdata_last_ts,omitempty"`
	ReasonCodes        []string   `json:"reason_codes"`
	UpdatedAt          time.Time  `json:"updated_at"`
	TTLSeconds         int        `json:"ttl_seconds"`
}

// SafeToRun is the single readiness predicate: trading enabled, kill switch
// clear, marketdata fresh, and a last-tick timestamp present.
func (s SafetyState) SafeToRun() bool {
	return s.TradingEnabled && !s.KillSwitch && s.MarketdataFresh && s.MarketdataLastTS != nil
}

// HeartbeatStatus classifies a service's liveness based on how stale its
// last heartbeat is relative to the configured threshold.
type HeartbeatStatus string

const (
	HeartbeatHealthy  HeartbeatStatus = "healthy"
	HeartbeatDegraded HeartbeatStatus = "degraded"
	HeartbeatDown     HeartbeatStatus = "down"
	HeartbeatUnknown  HeartbeatStatus = "unknown"
)

// HeartbeatInfo is a service's liveness record as read by the readiness
// evaluator.
type HeartbeatInfo struct {
	ServiceID       string          `json:"service_id"`
	LastHeartbeat   *time.Time      `json:"last_heartbeat,omitempty"`
	Status          HeartbeatStatus `json:"status"`
	SecondsSince    float64         `json:"seconds_since"`
	IsStale         bool            `json:"is_stale"`
}
