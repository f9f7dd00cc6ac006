// Package aggregator builds multi-timeframe OHLCV candles from a stream of
// ticks under the watermark-based finalization protocol: buckets finalize
// either on rollover (a later tick arrives) or once the event-time watermark
// passes their end plus a configured lateness tolerance. Late ticks that
// still land within the tolerance re-open and re-emit an already-final
// candle; ticks older than the tolerance are dropped and counted.
package aggregator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"trading-systemv1/internal/model"
	"trading-systemv1/internal/timeframe"
)

// EmitMode controls how many candle emissions the aggregator produces per
// ingested tick.
type EmitMode int

const (
	// EmitFinalOnly emits a bucket only once it is finalized (deterministic
	// backfill / downstream storage).
	EmitFinalOnly EmitMode = iota
	// EmitPerTick additionally emits a non-final snapshot of the live
	// bucket after every tick (realtime UI preview).
	EmitPerTick
)

// evictAfterLatenessFactor and evictAfterExtraSeconds implement the
// eviction rule from spec §4.1: states whose ts_end <= now - 3*lateness -
// 60s and that are final with no dirty updates are discarded.
const (
	evictAfterLatenessFactor = 3
	evictAfterExtraSeconds   = 60 * time.Second
)

// Config configures an Aggregator instance.
type Config struct {
	// Timeframes lists every (symbol-independent) timeframe the aggregator
	// maintains state for. Every ingested tick is fanned out to all of them.
	Timeframes []timeframe.Timeframe

	// Lateness is the tolerance window past a bucket's ts_end (and past the
	// watermark) before a tick targeting it is dropped outright.
	Lateness time.Duration

	// EmitMode selects per-tick vs finals-only emission.
	EmitMode EmitMode

	// FlushInterval is the wall-clock cadence at which Run's internal
	// ticker checks for buckets whose watermark-based deadline has passed.
	// Ticks still drive finalization primarily through rollover; this is
	// the backstop for symbols that go quiet.
	FlushInterval time.Duration
}

// bucketState is the in-progress or recently-finalized state for one
// (symbol, timeframe, bucket_start).
type bucketState struct {
	candle      model.Candle
	pvSum       float64
	vSum        float64
	lastTickUTC time.Time // latest event-time tick folded into this bucket; decides Close
	final       bool
	dirty       bool // finalized, then mutated again by a late-but-tolerated tick
}

func newBucketState(symbol string, tf timeframe.Timeframe, bucketStart time.Time) *bucketState {
	return &bucketState{
		candle: model.Candle{
			Symbol:    symbol,
			Timeframe: tf,
			TFLabel:   tf.String(),
			TSStart:   bucketStart,
			TSEnd:     tf.BucketEnd(bucketStart),
		},
	}
}

// apply folds tick into the bucket. Volume, trade count, and high/low extend
// unconditionally; close only advances if this tick's event-time is at least
// as new as anything already folded in, per spec's "close follows the tick
// with the latest event-time seen".
func (st *bucketState) apply(tick model.Tick) {
	c := &st.candle
	if c.TradeCount == 0 {
		c.Open = tick.Price
		c.High = tick.Price
		c.Low = tick.Price
	} else {
		if tick.Price > c.High {
			c.High = tick.Price
		}
		if tick.Price < c.Low {
			c.Low = tick.Price
		}
	}
	if c.TradeCount == 0 || !tick.TS.Before(st.lastTickUTC) {
		c.Close = tick.Price
		st.lastTickUTC = tick.TS
	}
	c.Volume += tick.Size
	c.TradeCount++
	st.pvSum += tick.Price * tick.Size
	st.vSum += tick.Size
}

// snapshot returns a copy of the candle with vwap/is_final populated,
// suitable for emission (the aggregator must not hand out pointers into its
// own state — callers may hold onto the value across the next tick).
func (st *bucketState) snapshot(final bool) model.Candle {
	c := st.candle
	if st.vSum > 0 {
		vwap := st.pvSum / st.vSum
		c.VWAP = &vwap
	}
	c.IsFinal = final
	return c
}

// Aggregator is the stateful per-process candle builder. Safe for concurrent
// IngestTick/Flush/Evict calls; internally single-mutex-serialized, matching
// the teacher's single-writer-goroutine design generalized to allow direct
// (non-channel) callers too.
type Aggregator struct {
	mu  sync.Mutex
	cfg Config

	// forming holds the one currently-open bucket per (symbol, timeframe)
	// key, keyed by symbol+"\x00"+tf.String().
	forming map[string]*bucketState

	// recent holds finalized-but-not-yet-evicted buckets per key, keyed by
	// bucket start unix seconds, so a late-but-tolerated tick can find and
	// re-finalize them.
	recent map[string]map[int64]*bucketState

	// watermark is the monotonic max observed tick event-time, per key.
	watermark map[string]int64

	// OnLateTick fires when a tick is dropped for landing behind the
	// watermark minus lateness.
	OnLateTick func(symbol string, tf timeframe.Timeframe)
	// OnParseError fires when a tick fails Validate and is skipped.
	OnParseError func(err error)
	// OnDropped fires when a finalized candle cannot be delivered because
	// candleCh (in Run) is full.
	OnDropped func(c model.Candle)
}

// New creates an Aggregator. cfg.FlushInterval defaults to 200ms and
// cfg.Lateness defaults to 2s if left zero.
func New(cfg Config) *Aggregator {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 200 * time.Millisecond
	}
	if cfg.Lateness <= 0 {
		cfg.Lateness = 2 * time.Second
	}
	return &Aggregator{
		cfg:       cfg,
		forming:   make(map[string]*bucketState),
		recent:    make(map[string]map[int64]*bucketState),
		watermark: make(map[string]int64),
	}
}

func key(symbol string, tf timeframe.Timeframe) string {
	return symbol + "\x00" + tf.String()
}

// WatermarkDelay reports how far behind wall-clock the (symbol, timeframe)
// watermark currently sits. Zero if no tick has been seen yet.
func (a *Aggregator) WatermarkDelay(symbol string, tf timeframe.Timeframe) time.Duration {
	a.mu.Lock()
	wm, ok := a.watermark[key(symbol, tf)]
	a.mu.Unlock()
	if !ok {
		return 0
	}
	return time.Since(time.Unix(wm, 0).UTC())
}

// IngestTick folds a single tick into every configured timeframe's bucket
// state and returns the ordered list of candle emissions it produced. A tick
// failing Validate is counted via OnParseError and skipped entirely (never
// raises). A tick landing behind the watermark-lateness cutoff for a given
// timeframe is dropped for that timeframe only; other timeframes still see
// it.
func (a *Aggregator) IngestTick(tick model.Tick) ([]model.Candle, error) {
	if err := tick.Validate(); err != nil {
		if a.OnParseError != nil {
			a.OnParseError(err)
		}
		return nil, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var emitted []model.Candle
	for _, tf := range a.cfg.Timeframes {
		emitted = append(emitted, a.ingestOne(tick, tf)...)
	}
	return emitted, nil
}

func (a *Aggregator) ingestOne(tick model.Tick, tf timeframe.Timeframe) []model.Candle {
	k := key(tick.Symbol, tf)

	tsUnix := tick.TS.Unix()
	if tsUnix > a.watermark[k] {
		a.watermark[k] = tsUnix
	}
	watermark := a.watermark[k]
	cutoff := watermark - int64(a.cfg.Lateness.Seconds())

	if tsUnix < cutoff {
		if a.OnLateTick != nil {
			a.OnLateTick(tick.Symbol, tf)
		}
		return nil
	}

	bucketStart := tf.BucketStart(tick.TS)

	cur, hasForming := a.forming[k]

	switch {
	case hasForming && bucketStart.After(cur.candle.TSStart):
		// Rollover: a tick for a later bucket arrived. Finalize the
		// previous bucket immediately (TradingView-style closure), park
		// it in recent for late re-emission, then start the new bucket.
		final := a.finalize(k, cur)
		a.startForming(k, tick, tf, bucketStart)
		out := []model.Candle{final}
		if a.cfg.EmitMode == EmitPerTick {
			out = append(out, a.currentSnapshot(k))
		}
		return out

	case hasForming && bucketStart.Before(cur.candle.TSStart):
		// Tick targets an older bucket than the one currently forming.
		// Look for it among already-finalized-but-not-evicted states; if
		// found, fold it in and re-emit as final (still-authoritative
		// update). If not found, it predates anything we've tracked for
		// this key and is treated as unrecoverable — drop and count.
		return a.applyToRecent(k, tick, tf, bucketStart)

	case !hasForming:
		a.startForming(k, tick, tf, bucketStart)
		if a.cfg.EmitMode == EmitPerTick {
			return []model.Candle{a.currentSnapshot(k)}
		}
		return nil

	default:
		// Same bucket as the one forming.
		cur.apply(tick)
		if a.cfg.EmitMode == EmitPerTick {
			return []model.Candle{cur.snapshot(false)}
		}
		return nil
	}
}

func (a *Aggregator) startForming(k string, tick model.Tick, tf timeframe.Timeframe, bucketStart time.Time) {
	st := newBucketState(tick.Symbol, tf, bucketStart)
	st.apply(tick)
	a.forming[k] = st
}

func (a *Aggregator) currentSnapshot(k string) model.Candle {
	return a.forming[k].snapshot(false)
}

// applyToRecent folds a late-but-tolerated tick into an already-finalized
// bucket and returns its re-emission, or drops the tick if that bucket was
// never tracked (too old to recover).
func (a *Aggregator) applyToRecent(k string, tick model.Tick, tf timeframe.Timeframe, bucketStart time.Time) []model.Candle {
	byBucket, ok := a.recent[k]
	if !ok {
		byBucket = make(map[int64]*bucketState)
		a.recent[k] = byBucket
	}
	st, ok := byBucket[bucketStart.Unix()]
	if !ok {
		if a.OnLateTick != nil {
			a.OnLateTick(tick.Symbol, tf)
		}
		return nil
	}
	st.apply(tick)
	st.dirty = true
	final := st.snapshot(true)
	st.dirty = false
	return []model.Candle{final}
}

// finalize marks cur final, moves it into recent for late-arrival handling,
// and returns its finalized snapshot.
func (a *Aggregator) finalize(k string, cur *bucketState) model.Candle {
	cur.final = true
	final := cur.snapshot(true)
	byBucket, ok := a.recent[k]
	if !ok {
		byBucket = make(map[int64]*bucketState)
		a.recent[k] = byBucket
	}
	byBucket[cur.candle.TSStart.Unix()] = cur
	delete(a.forming, k)
	return final
}

// Flush force-finalizes every forming bucket whose end is at or before
// now - lateness. It does not discard finalized state — Evict handles
// memory bounding separately.
func (a *Aggregator) Flush(now time.Time) []model.Candle {
	a.mu.Lock()
	defer a.mu.Unlock()

	deadline := now.Add(-a.cfg.Lateness)
	var out []model.Candle
	for k, cur := range a.forming {
		if !cur.candle.TSEnd.After(deadline) {
			out = append(out, a.finalize(k, cur))
		}
	}
	return out
}

// Evict discards finalized, non-dirty states whose bucket end is older than
// now - 3*lateness - 60s, bounding memory per spec §4.1's eviction rule.
func (a *Aggregator) Evict(now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := now.Add(-evictAfterLatenessFactor * a.cfg.Lateness).Add(-evictAfterExtraSeconds)
	for k, byBucket := range a.recent {
		for bucket, st := range byBucket {
			if st.final && !st.dirty && !st.candle.TSEnd.After(cutoff) {
				delete(byBucket, bucket)
			}
		}
		if len(byBucket) == 0 {
			delete(a.recent, k)
		}
	}
}

// Run consumes ticks from tickCh in a single goroutine, aggregating into
// candles per the configured timeframes, and sends emissions to candleCh.
// Blocks until ctx is cancelled, at which point any open buckets are
// finalized and flushed before returning.
func (a *Aggregator) Run(ctx context.Context, tickCh <-chan model.Tick, candleCh chan<- model.Candle) {
	ticker := time.NewTicker(a.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.flushAllForming(candleCh)
			return

		case tick, ok := <-tickCh:
			if !ok {
				a.flushAllForming(candleCh)
				return
			}
			emitted, err := a.IngestTick(tick)
			if err != nil {
				log.Printf("aggregator: ingest error: %v", err)
				continue
			}
			for _, c := range emitted {
				a.send(candleCh, c)
			}
			a.Evict(time.Now())

		case <-ticker.C:
			now := time.Now()
			for _, c := range a.Flush(now) {
				a.send(candleCh, c)
			}
			a.Evict(now)
		}
	}
}

// flushAllForming finalizes every open bucket unconditionally — used at
// shutdown so the last candle includes the final tick seen.
func (a *Aggregator) flushAllForming(candleCh chan<- model.Candle) {
	a.mu.Lock()
	keys := make([]string, 0, len(a.forming))
	for k := range a.forming {
		keys = append(keys, k)
	}
	var out []model.Candle
	for _, k := range keys {
		out = append(out, a.finalize(k, a.forming[k]))
	}
	a.mu.Unlock()

	for _, c := range out {
		a.send(candleCh, c)
	}
}

// send delivers a candle non-blockingly so a full channel never deadlocks
// the aggregation goroutine.
func (a *Aggregator) send(candleCh chan<- model.Candle, c model.Candle) {
	select {
	case candleCh <- c:
	default:
		if a.OnDropped != nil {
			a.OnDropped(c)
		}
		log.Printf("aggregator: candleCh full, dropping candle %s", fmt.Sprintf("%s@%s", c.Key(), c.TSStart))
	}
}
