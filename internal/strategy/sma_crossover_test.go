package strategy

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"trading-systemv1/internal/model"
	"trading-systemv1/internal/timeframe"
)

func candleAt(i int, close float64) model.Candle {
	start := time.Date(2026, 7, 31, 9, 30, 0, 0, time.UTC).Add(time.Duration(i) * time.Minute)
	return model.Candle{
		Symbol:    "AAPL",
		Timeframe: timeframe.Timeframe{Unit: timeframe.UnitMinute, Step: 1},
		TFLabel:   "1m",
		TSStart:   start,
		TSEnd:     start.Add(time.Minute),
		Open:      close, High: close, Low: close, Close: close,
		IsFinal: true,
	}
}

func TestSMACrossoverEmitsNoQuantityFields(t *testing.T) {
	s := NewSMACrossover("repo1", "agent1", 2, 4, 0)

	prices := []float64{10, 10, 10, 10, 20, 20}
	var lastIntent *model.AgentIntent
	for i, p := range prices {
		intent, err := s.OnCandle(candleAt(i, p))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if intent != nil {
			lastIntent = intent
		}
	}
	if lastIntent == nil {
		t.Fatalf("expected a golden-cross intent to be emitted")
	}
	if lastIntent.Side != model.SideBuyIntent {
		t.Errorf("expected BUY intent, got %s", lastIntent.Side)
	}
	if lastIntent.Kind != model.KindDirectional {
		t.Errorf("expected DIRECTIONAL kind, got %s", lastIntent.Kind)
	}

	raw, err := json.Marshal(lastIntent)
	if err != nil {
		t.Fatalf("unexpected error marshalling intent: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("unexpected error decoding intent: %v", err)
	}
	for _, k := range []string{"quantity", "qty", "notional", "notional_usd"} {
		if _, ok := fields[k]; ok {
			t.Errorf("expected intent to carry no %q field", k)
		}
	}
}

func TestSMACrossoverRSIFilterSuppressesOverboughtBuy(t *testing.T) {
	s := NewSMACrossover("repo1", "agent1", 2, 3, 2)

	// The fast SMA crosses above the slow one on the last candle, after a
	// sharp rise that puts RSI(2) near 89.
	prices := []float64{12, 11, 10, 10, 14}
	for i, p := range prices {
		intent, err := s.OnCandle(candleAt(i, p))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if intent != nil && intent.Side == model.SideBuyIntent {
			t.Fatalf("did not expect a BUY intent once RSI indicates overbought, got one at step %d", i)
		}
	}

	// Without the RSI filter the same prices produce the golden-cross BUY.
	control := NewSMACrossover("repo1", "agent1", 2, 3, 0)
	sawBuy := false
	for i, p := range prices {
		intent, err := control.OnCandle(candleAt(i, p))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if intent != nil && intent.Side == model.SideBuyIntent {
			sawBuy = true
		}
	}
	if !sawBuy {
		t.Fatalf("expected the unfiltered strategy to emit a BUY on these prices")
	}
}

func TestEngineSkipsNonFinalCandles(t *testing.T) {
	e := NewEngine(4)
	s := NewSMACrossover("repo1", "agent1", 1, 2, 0)
	e.Register(s)

	candleCh := make(chan model.Candle, 4)
	c := candleAt(0, 10)
	c.IsFinal = false
	candleCh <- c
	close(candleCh)

	done := make(chan struct{})
	go func() {
		e.Run(context.Background(), candleCh)
		close(done)
	}()
	<-done

	select {
	case <-e.Intents():
		t.Fatalf("expected no intents from a non-final candle")
	default:
	}
}
