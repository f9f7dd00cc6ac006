package model

import (
	"encoding/json"
	"fmt"

	"trading-systemv1/internal/timeframe"

	"time"
)

// Candle is a multi-timeframe OHLCV bar produced by the aggregator.
// Invariants: TSEnd-TSStart equals the timeframe duration for intraday
// units and Low <= Open,Close <= High (both checked by Validate); Volume
// is the sum of contributing tick sizes and VWAP = sum(p*s)/sum(s) when
// sum(s) > 0 (neither checked by Validate).
type Candle struct {
	Symbol     string             `json:"symbol"`
	Timeframe  timeframe.Timeframe `json:"-"`
	TFLabel    string             `json:"timeframe"` // Timeframe.String(), kept for round-trip JSON
	TSStart    time.Time          `json:"ts_start_utc"`
	TSEnd      time.Time          `json:"ts_end_utc"`
	Open       float64            `json:"open"`
	High       float64            `json:"high"`
	Low        float64            `json:"low"`
	Close      float64            `json:"close"`
	Volume     float64            `json:"volume"`
	VWAP       *float64           `json:"vwap,omitempty"`
	TradeCount int                `json:"trade_count"`
	IsFinal    bool               `json:"is_final"`
}

// Key returns a unique key for this candle's (symbol, timeframe) partition.
func (c *Candle) Key() string {
	return c.Symbol + ":" + c.TFLabel
}

// Validate checks the data-model invariants from spec §3. Intended to be
// called by the aggregator immediately before emission — a violation here
// indicates a bug in the aggregator, not bad input, so callers should
// treat it as a programmer error.
func (c *Candle) Validate() error {
	if c.Low > c.Open || c.Open > c.High {
		return fmt.Errorf("candle: invalid open %v outside [low %v, high %v]", c.Open, c.Low, c.High)
	}
	if c.Low > c.Close || c.Close > c.High {
		return fmt.Errorf("candle: invalid close %v outside [low %v, high %v]", c.Close, c.Low, c.High)
	}
	if d, ok := c.Timeframe.Duration(); ok {
		if c.TSEnd.Sub(c.TSStart) != d {
			return fmt.Errorf("candle: ts_end-ts_start %v != timeframe duration %v", c.TSEnd.Sub(c.TSStart), d)
		}
	}
	return nil
}

// JSON returns the JSON-encoded candle (ignoring marshal errors — Candle's
// fields are all trivially encodable).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}
