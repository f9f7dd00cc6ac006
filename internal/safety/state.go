package safety

import (
	"time"

	"trading-systemv1/internal/model"
)

// Inputs are the raw evaluation inputs for Evaluate, mirroring spec §4.3.
type Inputs struct {
	TradingEnabled      bool
	KillSwitch          bool
	MarketdataLastTS    *time.Time
	StaleThresholdSeconds int
	Now                 time.Time
	TTLSeconds          int
}

// Evaluate runs the fail-closed readiness rules from spec §4.3 in order,
// accumulating every applicable reason code rather than short-circuiting —
// an operator reading reason_codes should see every contributing cause, not
// just the first.
func Evaluate(in Inputs) model.SafetyState {
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var reasons []string
	if !in.TradingEnabled {
		reasons = append(reasons, "trading_disabled")
	}
	if in.KillSwitch {
		reasons = append(reasons, "kill_switch_enabled")
	}

	fresh := false
	if in.MarketdataLastTS == nil {
		reasons = append(reasons, "marketdata_last_ts_missing")
	} else {
		age := now.Sub(*in.MarketdataLastTS)
		if age.Seconds() > float64(in.StaleThresholdSeconds) {
			reasons = append(reasons, "marketdata_stale")
		} else {
			fresh = true
		}
	}

	return model.SafetyState{
		TradingEnabled:   in.TradingEnabled,
		KillSwitch:       in.KillSwitch,
		MarketdataFresh:  fresh,
		MarketdataLastTS: in.MarketdataLastTS,
		ReasonCodes:      reasons,
		UpdatedAt:        now,
		TTLSeconds:       in.TTLSeconds,
	}
}

// EvaluateFromSource loads kill_switch/trading_enabled/stale_threshold from
// src and evaluates against lastTS/now, wiring ConfigSource into Evaluate
// for callers that don't want to read config knobs themselves.
func EvaluateFromSource(src ConfigSource, lastTS *time.Time, now time.Time, ttlSeconds int) model.SafetyState {
	return Evaluate(Inputs{
		TradingEnabled:        src.TradingEnabled(),
		KillSwitch:            src.KillSwitch(),
		MarketdataLastTS:      lastTS,
		StaleThresholdSeconds: src.StaleThresholdSeconds(),
		Now:                   now,
		TTLSeconds:            ttlSeconds,
	})
}
