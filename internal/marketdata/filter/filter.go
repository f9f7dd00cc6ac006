// Package filter implements the spec §4.4 tick filter: a sliding-window
// anomaly rejector with an optional price clamp, sitting between the raw
// stream and the candle aggregator.
package filter

import "trading-systemv1/internal/model"

// Config controls the anomaly rejector and optional clamp.
type Config struct {
	// PctThreshold is the fractional deviation from the rolling median
	// that marks a tick as an outlier: |price-median|/median > PctThreshold.
	PctThreshold float64
	// Confirm is the number of consecutive outlier ticks required before
	// the series reanchors to the new price level instead of continuing
	// to drop outliers.
	Confirm int
	// ClampPct, if > 0, clamps an accepted tick's price to
	// [last*(1-ClampPct), last*(1+ClampPct)] before it reaches the
	// aggregator. Zero disables clamping.
	ClampPct float64
	// Window bounds how many recent accepted prices feed the rolling
	// median. Default 21 (odd, so the median is a single sample).
	Window int
}

func (c *Config) defaults() {
	if c.Window <= 0 {
		c.Window = 21
	}
	if c.PctThreshold <= 0 {
		c.PctThreshold = 0.10
	}
	if c.Confirm <= 0 {
		c.Confirm = 3
	}
}

// Filter holds the per-symbol sliding window state. Not safe for
// concurrent use by multiple goroutines on the same symbol — the ingest
// pipeline is single-threaded per stream per spec §4.4's backpressure note.
type Filter struct {
	cfg     Config
	history map[string][]float64
	last    map[string]float64
	strikes map[string]int

	// OnReject is called for each tick dropped as an anomaly.
	OnReject func(t model.Tick)
	// OnReanchor is called when Confirm consecutive outliers force the
	// series to accept a new price level.
	OnReanchor func(symbol string, newLevel float64)
}

// New builds a Filter with cfg (zero-value fields take defaults).
func New(cfg Config) *Filter {
	cfg.defaults()
	return &Filter{
		cfg:     cfg,
		history: make(map[string][]float64),
		last:    make(map[string]float64),
		strikes: make(map[string]int),
	}
}

// Apply runs t through the anomaly rejector and optional clamp, returning
// the (possibly clamped) tick and true if it should be forwarded, or the
// zero tick and false if it was rejected as an outlier.
func (f *Filter) Apply(t model.Tick) (model.Tick, bool) {
	hist := f.history[t.Symbol]
	if len(hist) == 0 {
		f.accept(t)
		return t, true
	}

	median := rollingMedian(hist)
	deviation := 0.0
	if median != 0 {
		deviation = abs(t.Price-median) / median
	}

	if deviation <= f.cfg.PctThreshold {
		f.strikes[t.Symbol] = 0
		out := f.clamp(t)
		f.accept(out)
		return out, true
	}

	f.strikes[t.Symbol]++
	if f.strikes[t.Symbol] >= f.cfg.Confirm {
		if f.OnReanchor != nil {
			f.OnReanchor(t.Symbol, t.Price)
		}
		f.history[t.Symbol] = nil
		f.strikes[t.Symbol] = 0
		f.accept(t)
		return t, true
	}

	if f.OnReject != nil {
		f.OnReject(t)
	}
	return model.Tick{}, false
}

func (f *Filter) accept(t model.Tick) {
	hist := append(f.history[t.Symbol], t.Price)
	if len(hist) > f.cfg.Window {
		hist = hist[len(hist)-f.cfg.Window:]
	}
	f.history[t.Symbol] = hist
	f.last[t.Symbol] = t.Price
}

func (f *Filter) clamp(t model.Tick) model.Tick {
	if f.cfg.ClampPct <= 0 {
		return t
	}
	last, ok := f.last[t.Symbol]
	if !ok || last <= 0 {
		return t
	}
	lo := last * (1 - f.cfg.ClampPct)
	hi := last * (1 + f.cfg.ClampPct)
	if t.Price < lo {
		t.Price = lo
	} else if t.Price > hi {
		t.Price = hi
	}
	return t
}

func rollingMedian(xs []float64) float64 {
	sorted := append([]float64(nil), xs...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
