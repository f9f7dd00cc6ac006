// Package breaker implements the three risk circuit breakers from spec
// §4.5, evaluated in a fixed order on every outgoing signal: daily loss
// limit, VIX guard, concentration check. The daily loss limit
// short-circuits the remaining breakers; the other two always run.
package breaker

import (
	"context"
	"fmt"
	"time"

	"trading-systemv1/internal/ledger"
	"trading-systemv1/internal/model"

	"github.com/shopspring/decimal"
)

const (
	defaultDailyLossThreshold     = -0.02
	defaultVIXThreshold           = 30.0
	defaultConcentrationThreshold = 0.20
	allocationReduction           = 0.5
)

// Thresholds holds the three risk-breaker cutoffs from spec.md §4.5.
// Zero-valued fields fall back to the package defaults, so callers that
// don't load config/strategies.yaml (internal/config.BreakerConfig) get
// the teacher's original fixed thresholds unchanged.
type Thresholds struct {
	DailyLoss     float64
	VIX           float64
	Concentration float64
}

func (t Thresholds) dailyLoss() float64 {
	if t.DailyLoss == 0 {
		return defaultDailyLossThreshold
	}
	return t.DailyLoss
}

func (t Thresholds) vix() float64 {
	if t.VIX == 0 {
		return defaultVIXThreshold
	}
	return t.VIX
}

func (t Thresholds) concentration() float64 {
	if t.Concentration == 0 {
		return defaultConcentrationThreshold
	}
	return t.Concentration
}

// Signal is the outgoing trade signal the breakers evaluate and mutate —
// the risk-sizing sibling of model.OrderProposal, carrying an allocation
// amount rather than a final order quantity.
type Signal struct {
	TenantID   string
	UserID     string
	StrategyID string
	Symbol     string
	Action     string // "BUY", "SELL", "HOLD"
	Allocation float64

	CircuitBreakerMessages []string
}

func (s *Signal) appendMessage(msg string) {
	s.CircuitBreakerMessages = append(s.CircuitBreakerMessages, msg)
}

// Position is a current portfolio holding, used by the concentration check.
type Position struct {
	Qty          float64
	CurrentPrice float64
}

// Inputs bundles the external state the three breakers read. Trades should
// already be scoped to the (tenant,uid,strategy) group the Signal
// concerns; the daily loss check further filters them to today.
type Inputs struct {
	Trades              []model.LedgerTrade
	StartingEquity      float64
	VIX                 float64
	VIXAvailable        bool
	Positions           map[string]Position
	TotalPortfolioValue float64
	Now                 time.Time
}

// ShadowModeRegistry records which (tenant,uid) pairs have been switched to
// shadow mode by a daily-loss breach. Kept as an interface so callers can
// back it with whatever store they have; breaker ships an in-memory
// implementation for tests and single-process deployments.
type ShadowModeRegistry interface {
	SetShadowMode(ctx context.Context, tenantID, userID, reason string) error
}

// Manager evaluates the three breakers in spec order.
type Manager struct {
	Registry   ShadowModeRegistry
	Events     model.LedgerStore // AppendBreakerEvent only; nil disables persistence
	Thresholds Thresholds

	// OnEvent is called for every triggered breaker in addition to the
	// best-effort store write — useful for wiring a notification
	// collaborator without coupling this package to one.
	OnEvent func(model.CircuitBreakerEvent)
}

// Evaluate runs the daily-loss, VIX-guard, and concentration breakers in
// order against sig, returning the (possibly mutated) signal and every
// event raised. Event persistence is best-effort: a store failure is
// discarded (OnEvent is still called), never returned as an error — a
// failure to persist must not block the breaker decision from being applied.
func (m *Manager) Evaluate(ctx context.Context, sig Signal, in Inputs) (Signal, []model.CircuitBreakerEvent) {
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var events []model.CircuitBreakerEvent

	if ev, triggered := m.checkDailyLoss(sig, in, now); triggered {
		sig.Action = "HOLD"
		sig.appendMessage(ev.Message)
		events = append(events, ev)
		m.record(ctx, ev)
		if m.Registry != nil {
			_ = m.Registry.SetShadowMode(ctx, sig.TenantID, sig.UserID, "daily_loss_limit_breached")
		}
		return sig, events
	}

	if ev, adjusted, triggered := m.checkVIXGuard(sig, in); triggered {
		sig.Allocation = adjusted
		sig.appendMessage(ev.Message)
		events = append(events, ev)
		m.record(ctx, ev)
	}

	if ev, adjustedAction, triggered := m.checkConcentration(sig, in); triggered {
		sig.Action = adjustedAction
		sig.appendMessage(ev.Message)
		events = append(events, ev)
		m.record(ctx, ev)
	}

	return sig, events
}

func (m *Manager) record(ctx context.Context, ev model.CircuitBreakerEvent) {
	if m.Events != nil {
		_ = m.Events.AppendBreakerEvent(ctx, ev)
	}
	if m.OnEvent != nil {
		m.OnEvent(ev)
	}
}

func (m *Manager) checkDailyLoss(sig Signal, in Inputs, now time.Time) (model.CircuitBreakerEvent, bool) {
	if len(in.Trades) == 0 || in.StartingEquity <= 0 {
		return model.CircuitBreakerEvent{}, false
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	var today []model.LedgerTrade
	for _, t := range in.Trades {
		if !t.TS.Before(midnight) {
			today = append(today, t)
		}
	}
	if len(today) == 0 {
		return model.CircuitBreakerEvent{}, false
	}

	result, err := ledger.Compute(today, ledger.Config{}, nil, true, nil)
	if err != nil {
		return model.CircuitBreakerEvent{}, false
	}

	var realized decimal.Decimal
	for _, g := range result.Groups {
		realized = realized.Add(g.Realized)
	}

	pct, _ := realized.Div(decimal.NewFromFloat(in.StartingEquity)).Float64()
	threshold := m.Thresholds.dailyLoss()
	if pct > threshold {
		return model.CircuitBreakerEvent{}, false
	}

	realizedF, _ := realized.Float64()
	ev := model.CircuitBreakerEvent{
		BreakerType: model.BreakerDailyLoss,
		TS:          now,
		UserID:      sig.UserID,
		TenantID:    sig.TenantID,
		StrategyID:  sig.StrategyID,
		Severity:    model.SeverityCritical,
		Message: fmt.Sprintf("daily loss limit breached: %.2f%% ($%.2f). switching to SHADOW_MODE.",
			pct*100, realizedF),
		Metadata: map[string]any{
			"realized_pnl":    realizedF,
			"pnl_percentage":  pct,
			"starting_equity": in.StartingEquity,
			"threshold":       threshold,
		},
	}
	return ev, true
}

func (m *Manager) checkVIXGuard(sig Signal, in Inputs) (model.CircuitBreakerEvent, float64, bool) {
	threshold := m.Thresholds.vix()
	if !in.VIXAvailable || in.VIX <= threshold {
		return model.CircuitBreakerEvent{}, sig.Allocation, false
	}

	adjusted := sig.Allocation * allocationReduction
	ev := model.CircuitBreakerEvent{
		BreakerType: model.BreakerVIXGuard,
		TS:          time.Now().UTC(),
		UserID:      sig.UserID,
		TenantID:    sig.TenantID,
		StrategyID:  sig.StrategyID,
		Severity:    model.SeverityWarning,
		Message: fmt.Sprintf("VIX elevated at %.2f (threshold %.0f). reducing allocation from %.2f to %.2f.",
			in.VIX, threshold, sig.Allocation, adjusted),
		Metadata: map[string]any{
			"vix_value":            in.VIX,
			"threshold":            threshold,
			"original_allocation":  sig.Allocation,
			"adjusted_allocation":  adjusted,
			"reduction_factor":     allocationReduction,
		},
	}
	return ev, adjusted, true
}

func (m *Manager) checkConcentration(sig Signal, in Inputs) (model.CircuitBreakerEvent, string, bool) {
	threshold := m.Thresholds.concentration()
	if sig.Action != "BUY" || in.TotalPortfolioValue <= 0 {
		return model.CircuitBreakerEvent{}, sig.Action, false
	}

	var tickerValue float64
	if p, ok := in.Positions[sig.Symbol]; ok {
		tickerValue = p.Qty * p.CurrentPrice
	}
	concentration := tickerValue / in.TotalPortfolioValue
	if concentration <= threshold {
		return model.CircuitBreakerEvent{}, sig.Action, false
	}

	ev := model.CircuitBreakerEvent{
		BreakerType: model.BreakerConcentration,
		TS:          time.Now().UTC(),
		UserID:      sig.UserID,
		TenantID:    sig.TenantID,
		StrategyID:  sig.StrategyID,
		Severity:    model.SeverityWarning,
		Message: fmt.Sprintf("concentration limit exceeded for %s: %.2f%% (threshold %.0f%%). downgrading BUY to HOLD.",
			sig.Symbol, concentration*100, threshold*100),
		Metadata: map[string]any{
			"ticker":          sig.Symbol,
			"ticker_value":    tickerValue,
			"portfolio_value": in.TotalPortfolioValue,
			"concentration":   concentration,
			"threshold":       threshold,
			"original_action": sig.Action,
			"adjusted_action": "HOLD",
		},
	}
	return ev, "HOLD", true
}
