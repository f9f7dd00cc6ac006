package strategy

import (
	"time"

	"trading-systemv1/internal/indicator"
	"trading-systemv1/internal/model"

	"github.com/google/uuid"
)

// SMACrossover implements a simple SMA crossover strategy.
//
// Buy: fast SMA crosses above slow SMA (golden cross).
// Sell: fast SMA crosses below slow SMA (death cross).
// An optional RSI filter suppresses a buy when overbought (>70) or a
// sell when oversold (<30).
type SMACrossover struct {
	name            string
	repoID          string
	agentName       string
	strategyVersion string
	validFor        time.Duration

	fast *indicator.SMA
	slow *indicator.SMA
	rsi  *indicator.RSI

	prevFast, prevSlow float64
	ready              bool
}

// NewSMACrossover creates a new SMA crossover strategy. fastPeriod <
// slowPeriod (e.g. 9 and 21). When rsiPeriod > 0 the RSI filter is active.
func NewSMACrossover(repoID, agentName string, fastPeriod, slowPeriod, rsiPeriod int) *SMACrossover {
	s := &SMACrossover{
		name:            "sma_crossover",
		repoID:          repoID,
		agentName:       agentName,
		strategyVersion: "v1",
		validFor:        5 * time.Minute,
		fast:            indicator.NewSMA(fastPeriod),
		slow:            indicator.NewSMA(slowPeriod),
	}
	if rsiPeriod > 0 {
		s.rsi = indicator.NewRSI(rsiPeriod)
	}
	return s
}

func (s *SMACrossover) Name() string { return s.name }

func (s *SMACrossover) OnTick(tick model.Tick) {}

func (s *SMACrossover) OnCandle(candle model.Candle) (*model.AgentIntent, error) {
	s.fast.Update(candle)
	s.slow.Update(candle)
	if s.rsi != nil {
		s.rsi.Update(candle)
	}

	if !s.fast.Ready() || !s.slow.Ready() {
		return nil, nil
	}

	fastVal, slowVal := s.fast.Value(), s.slow.Value()
	defer func() {
		s.prevFast, s.prevSlow = fastVal, slowVal
		s.ready = true
	}()

	if !s.ready {
		return nil, nil
	}

	indicators := map[string]any{
		"fast_sma": fastVal,
		"slow_sma": slowVal,
	}
	var rsiVal float64
	if s.rsi != nil {
		rsiVal = s.rsi.Value()
		indicators["rsi"] = rsiVal
	}

	goldenCross := s.prevFast <= s.prevSlow && fastVal > slowVal
	deathCross := s.prevFast >= s.prevSlow && fastVal < slowVal

	var side model.IntentSide
	var reason string
	switch {
	case goldenCross:
		if s.rsi != nil && rsiVal > 70 {
			return nil, nil
		}
		side = model.SideBuyIntent
		reason = "SMA golden cross (fast > slow)"
	case deathCross:
		if s.rsi != nil && rsiVal < 30 {
			return nil, nil
		}
		side = model.SideSellIntent
		reason = "SMA death cross (fast < slow)"
	default:
		return nil, nil
	}

	intent, err := model.NewAgentIntent(model.AgentIntent{
		IntentID:        uuid.NewString(),
		RepoID:          s.repoID,
		AgentName:       s.agentName,
		StrategyName:    s.name,
		StrategyVersion: s.strategyVersion,
		CorrelationID:   uuid.NewString(),
		Symbol:          candle.Symbol,
		AssetType:       model.AssetEquity,
		Kind:            model.KindDirectional,
		Side:            side,
		Rationale: model.Rationale{
			ShortReason:   reason,
			IndicatorsMap: indicators,
		},
		Constraints: model.Constraints{
			ValidUntilUTC:         candle.TSEnd.Add(s.validFor),
			RequiresHumanApproval: true,
			OrderType:             "MARKET",
			TimeInForce:           "DAY",
		},
	})
	if err != nil {
		return nil, err
	}
	return &intent, nil
}
