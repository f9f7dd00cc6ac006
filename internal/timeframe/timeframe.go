// Package timeframe provides canonical UTC parsing and market-timezone
// bucket alignment for candle construction. It has no dependency on the
// candle or aggregator packages so it can be reused by strategies,
// backtests, and the ledger's period attribution alike.
package timeframe

import (
	"fmt"
	"time"
)

// Unit is the timeframe's base unit.
type Unit string

const (
	UnitSecond Unit = "s"
	UnitMinute Unit = "m"
	UnitHour   Unit = "h"
	UnitDay    Unit = "d"
	UnitWeek   Unit = "w"
	UnitMonth  Unit = "mo"
)

// allowedMinuteSteps mirrors the enumerated step set a UI/strategy config
// is restricted to for intraday minute timeframes.
var allowedMinuteSteps = map[int]bool{1: true, 2: true, 3: true, 5: true, 15: true, 30: true}

// DefaultMarketTimezone is used for day/week/month bucket alignment when a
// Timeframe does not carry an explicit Location.
const DefaultMarketTimezone = "America/New_York"

// RTHOpenHour/RTHOpenMinute is the regular-trading-hours open, 09:30 local.
const (
	RTHOpenHour   = 9
	RTHOpenMinute = 30
)

// Timeframe is a (unit, step) pair plus the bucketing options that affect
// where day/week/month boundaries fall.
type Timeframe struct {
	Unit Unit
	Step int

	// MarketLocation is the timezone used to align d/w/mo buckets.
	// Defaults to DefaultMarketTimezone (America/New_York) when nil.
	MarketLocation *time.Location

	// SessionDaily shifts daily buckets to the local 09:30 RTH open
	// instead of local midnight.
	SessionDaily bool
}

// New constructs a Timeframe, validating the step against the enumerated
// set for minute timeframes. Other units are not step-restricted here;
// callers that need day/week/month step validation should do so at the
// config layer, matching the teacher's config.ParseTFs validate-on-load
// idiom.
func New(unit Unit, step int) (Timeframe, error) {
	if step <= 0 {
		return Timeframe{}, fmt.Errorf("timeframe: step must be positive, got %d", step)
	}
	if unit == UnitMinute && !allowedMinuteSteps[step] {
		return Timeframe{}, fmt.Errorf("timeframe: unsupported minute step %d", step)
	}
	return Timeframe{Unit: unit, Step: step}, nil
}

// String renders the timeframe as a compact identifier, e.g. "5m", "1d".
func (tf Timeframe) String() string {
	return fmt.Sprintf("%d%s", tf.Step, tf.Unit)
}

// location returns the configured market timezone, defaulting to
// DefaultMarketTimezone.
func (tf Timeframe) location() *time.Location {
	if tf.MarketLocation != nil {
		return tf.MarketLocation
	}
	loc, err := time.LoadLocation(DefaultMarketTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Duration returns the timeframe's bucket length for intraday units.
// Day/week/month buckets do not have a fixed Duration (months vary in
// length) — callers must use BucketStart/BucketEnd for those units.
func (tf Timeframe) Duration() (time.Duration, bool) {
	switch tf.Unit {
	case UnitSecond:
		return time.Duration(tf.Step) * time.Second, true
	case UnitMinute:
		return time.Duration(tf.Step) * time.Minute, true
	case UnitHour:
		return time.Duration(tf.Step) * time.Hour, true
	default:
		return 0, false
	}
}

// Intraday reports whether this timeframe floors in UTC (s/m/h) rather
// than aligning to the market timezone (d/w/mo).
func (tf Timeframe) Intraday() bool {
	switch tf.Unit {
	case UnitSecond, UnitMinute, UnitHour:
		return true
	default:
		return false
	}
}

// BucketStart returns the start of the bucket containing ts, in UTC.
func (tf Timeframe) BucketStart(ts time.Time) time.Time {
	ts = ts.UTC()
	if tf.Intraday() {
		d, _ := tf.Duration()
		secs := d.Seconds()
		epoch := float64(ts.Unix())
		bucket := int64(epoch - mod(epoch, secs))
		return time.Unix(bucket, 0).UTC()
	}
	return tf.alignCalendar(ts)
}

// BucketEnd returns the (exclusive) end of the bucket containing ts.
func (tf Timeframe) BucketEnd(ts time.Time) time.Time {
	start := tf.BucketStart(ts)
	return tf.NextBucketStart(start)
}

// NextBucketStart returns the start of the bucket immediately following
// the bucket that begins at bucketStart.
func (tf Timeframe) NextBucketStart(bucketStart time.Time) time.Time {
	if tf.Intraday() {
		d, _ := tf.Duration()
		return bucketStart.Add(d)
	}
	local := bucketStart.In(tf.location())
	switch tf.Unit {
	case UnitDay:
		next := local.AddDate(0, 0, tf.Step)
		return tf.alignCalendar(next)
	case UnitWeek:
		next := local.AddDate(0, 0, 7*tf.Step)
		return tf.alignCalendar(next)
	case UnitMonth:
		next := local.AddDate(0, tf.Step, 0)
		return tf.alignCalendar(next)
	default:
		return bucketStart
	}
}

// alignCalendar computes the start of the d/w/mo bucket containing ts, in
// the configured market timezone, converted back to UTC. SessionDaily
// shifts the daily anchor from local midnight to the 09:30 RTH open.
func (tf Timeframe) alignCalendar(ts time.Time) time.Time {
	loc := tf.location()
	local := ts.In(loc)

	switch tf.Unit {
	case UnitDay:
		h, m := 0, 0
		if tf.SessionDaily {
			h, m = RTHOpenHour, RTHOpenMinute
		}
		start := time.Date(local.Year(), local.Month(), local.Day(), h, m, 0, 0, loc)
		if local.Before(start) {
			start = start.AddDate(0, 0, -1)
		}
		return start.UTC()

	case UnitWeek:
		// Weeks start Monday 00:00 local (session_daily does not apply to
		// week/month bucketing — only the daily open shifts).
		wd := int(local.Weekday())
		if wd == 0 {
			wd = 7 // ISO: Sunday = 7
		}
		monday := local.AddDate(0, 0, -(wd - 1))
		start := time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, loc)
		return start.UTC()

	case UnitMonth:
		start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
		return start.UTC()

	default:
		return ts.UTC()
	}
}

func mod(a, b float64) float64 {
	m := int64(a) % int64(b)
	if m < 0 {
		m += int64(b)
	}
	return float64(m)
}
