package model

import (
	"fmt"
	"time"
)

// AssetType distinguishes the tradeable instrument class an intent targets.
type AssetType string

const (
	AssetEquity AssetType = "EQUITY"
	AssetOption AssetType = "OPTION"
	AssetFuture AssetType = "FUTURE"
)

// IntentKind classifies what an intent is asking for.
type IntentKind string

const (
	KindDirectional IntentKind = "DIRECTIONAL"
	KindDeltaHedge  IntentKind = "DELTA_HEDGE"
	KindExit        IntentKind = "EXIT"
)

// IntentSide is the directional instruction of an intent or proposal.
type IntentSide string

const (
	SideBuyIntent  IntentSide = "BUY"
	SideSellIntent IntentSide = "SELL"
	SideFlat       IntentSide = "FLAT"
)

// OptionDetails carries the option-specific fields when AssetType is OPTION.
type OptionDetails struct {
	Underlying string    `json:"underlying"`
	Expiry     time.Time `json:"expiry"`
	Strike     float64   `json:"strike"`
	Right      string    `json:"right"` // "C" or "P"
}

// Rationale explains why a strategy produced an intent. IndicatorsMap is
// recursively redacted before any persistence (see internal/intent.Redact).
type Rationale struct {
	ShortReason   string         `json:"short_reason"`
	IndicatorsMap map[string]any `json:"indicators_map,omitempty"`
}

// Constraints carries the time/price/approval constraints attached to an
// intent. These are capital-free: no quantity, no notional.
type Constraints struct {
	ValidUntilUTC         time.Time `json:"valid_until_utc"`
	RequiresHumanApproval bool      `json:"requires_human_approval"`
	OrderType             string    `json:"order_type"` // e.g. "MARKET", "LIMIT"
	TimeInForce           string    `json:"time_in_force"`
	LimitPrice            *float64  `json:"limit_price,omitempty"`
	DeltaToHedge          *float64  `json:"delta_to_hedge,omitempty"`
}

// AgentIntent is the capital-free trade request contract. Constructing one
// with a non-zero quantity or notional field is a hard error — there are no
// such fields on this struct; New validates the rest of the invariants a
// strategy must uphold.
type AgentIntent struct {
	IntentID        string        `json:"intent_id"`
	CreatedAtUTC    time.Time     `json:"created_at_utc"`
	RepoID          string        `json:"repo_id"`
	AgentName       string        `json:"agent_name"`
	StrategyName    string        `json:"strategy_name"`
	StrategyVersion string        `json:"strategy_version,omitempty"`
	CorrelationID   string        `json:"correlation_id"`
	Symbol          string        `json:"symbol"`
	AssetType       AssetType     `json:"asset_type"`
	Option          *OptionDetails `json:"option,omitempty"`
	Kind            IntentKind    `json:"kind"`
	Side            IntentSide    `json:"side"`
	Confidence      *float64      `json:"confidence,omitempty"`
	Rationale       Rationale     `json:"rationale"`
	Constraints     Constraints   `json:"constraints"`
}

// NewAgentIntent validates and returns an AgentIntent. It is the only
// sanctioned constructor: strategies must go through it so the capital-free
// invariant and the other required fields are checked at the API boundary,
// per spec §4.6 ("violating this is a hard error at construction").
func NewAgentIntent(i AgentIntent) (AgentIntent, error) {
	if i.IntentID == "" {
		return AgentIntent{}, fmt.Errorf("agent intent: intent_id is required")
	}
	if i.Symbol == "" {
		return AgentIntent{}, fmt.Errorf("agent intent: symbol is required")
	}
	switch i.AssetType {
	case AssetEquity, AssetOption, AssetFuture:
	default:
		return AgentIntent{}, fmt.Errorf("agent intent: invalid asset_type %q", i.AssetType)
	}
	switch i.Kind {
	case KindDirectional, KindDeltaHedge, KindExit:
	default:
		return AgentIntent{}, fmt.Errorf("agent intent: invalid kind %q", i.Kind)
	}
	switch i.Side {
	case SideBuyIntent, SideSellIntent, SideFlat:
	default:
		return AgentIntent{}, fmt.Errorf("agent intent: invalid side %q", i.Side)
	}
	if i.Kind == KindDeltaHedge && i.Constraints.DeltaToHedge == nil {
		return AgentIntent{}, fmt.Errorf("agent intent: DELTA_HEDGE requires constraints.delta_to_hedge")
	}
	if i.Confidence != nil && (*i.Confidence < 0 || *i.Confidence > 1) {
		return AgentIntent{}, fmt.Errorf("agent intent: confidence must be in [0,1], got %v", *i.Confidence)
	}
	if i.AssetType == AssetOption && i.Option == nil {
		return AgentIntent{}, fmt.Errorf("agent intent: OPTION asset_type requires option details")
	}
	if i.CreatedAtUTC.IsZero() {
		i.CreatedAtUTC = time.Now().UTC()
	}
	return i, nil
}

// OrderProposal is the sized sibling of AgentIntent, produced only by the
// allocator (never by a strategy directly).
type OrderProposal struct {
	Intent     AgentIntent `json:"intent"`
	Quantity   float64     `json:"quantity"`
	LimitPrice *float64    `json:"limit_price,omitempty"`
}

// Validate checks the allocator's own output invariant: quantity must be
// positive. A FLAT intent must never reach this constructor — the
// allocator enforces that upstream.
func (p OrderProposal) Validate() error {
	if p.Quantity <= 0 {
		return fmt.Errorf("order proposal: quantity must be > 0, got %v", p.Quantity)
	}
	return nil
}
