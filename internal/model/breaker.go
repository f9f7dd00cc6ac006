package model

import "time"

// BreakerType identifies which of the three risk circuit breakers fired.
type BreakerType string

const (
	BreakerDailyLoss     BreakerType = "daily_loss"
	BreakerVIXGuard      BreakerType = "vix_guard"
	BreakerConcentration BreakerType = "concentration"
)

// Severity is the audit severity of a circuit breaker event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// CircuitBreakerEvent is the audit record written whenever a breaker
// triggers. Event writes are best-effort: a failure to persist must never
// prevent the breaker decision itself from being applied (spec §4.5, §7).
type CircuitBreakerEvent struct {
	BreakerType BreakerType    `json:"breaker_type"`
	TS          time.Time      `json:"ts"`
	UserID      string         `json:"user_id"`
	TenantID    string         `json:"tenant_id"`
	StrategyID  string         `json:"strategy_id,omitempty"`
	Severity    Severity       `json:"severity"`
	Message     string         `json:"message"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}
