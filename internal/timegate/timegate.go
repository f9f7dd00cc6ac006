// Package timegate generalizes the teacher's hardcoded-IST NSE market
// hours into a configurable (timezone, open, close, holiday calendar)
// gate, and adds the spec §4.6 entry/EOD-flatten window semantics the
// teacher's markethours package didn't need: half-open entry windows and
// an EOD flatten window that is allowed to emit exit proposals even after
// the entry cutoff has passed.
package timegate

import (
	"time"
)

// Calendar reports whether a date is a trading holiday. A nil Calendar
// (via NoHolidays) treats every weekday as a trading day.
type Calendar interface {
	IsHoliday(t time.Time) bool
}

// NoHolidays is a Calendar with an empty holiday set.
type NoHolidays struct{}

func (NoHolidays) IsHoliday(time.Time) bool { return false }

// StaticCalendar is a Calendar backed by a fixed set of calendar dates,
// generalizing the teacher's per-year holiday table to any location.
type StaticCalendar struct {
	Location *time.Location
	Dates    map[string]bool // "YYYY-MM-DD" in Location
}

// NewStaticCalendar builds a StaticCalendar from a list of dates in loc.
func NewStaticCalendar(loc *time.Location, dates []time.Time) StaticCalendar {
	m := make(map[string]bool, len(dates))
	for _, d := range dates {
		m[d.In(loc).Format("2006-01-02")] = true
	}
	return StaticCalendar{Location: loc, Dates: m}
}

func (c StaticCalendar) IsHoliday(t time.Time) bool {
	return c.Dates[t.In(c.Location).Format("2006-01-02")]
}

// Session describes one market's trading-hours configuration: local
// timezone, open/close clock times, and an EOD flatten window that opens
// before the close and is allowed to emit exits after the entry cutoff.
type Session struct {
	Location *time.Location
	Calendar Calendar

	OpenHour, OpenMinute   int
	CloseHour, CloseMinute int

	// FlattenBeforeClose is how long before Close the EOD flatten window
	// opens (default 2 minutes, matching spec §4.6's 15:58-16:00 example
	// for a 16:00 close).
	FlattenBeforeClose time.Duration
}

// DefaultUSEquitySession is the regular-trading-hours session spec §4.6
// describes: 09:30-16:00 local, 2-minute EOD flatten window.
func DefaultUSEquitySession(loc *time.Location, cal Calendar) Session {
	if cal == nil {
		cal = NoHolidays{}
	}
	return Session{
		Location:           loc,
		Calendar:           cal,
		OpenHour:           9,
		OpenMinute:         30,
		CloseHour:          16,
		CloseMinute:        0,
		FlattenBeforeClose: 2 * time.Minute,
	}
}

func (s Session) open(t time.Time) time.Time {
	local := t.In(s.Location)
	return time.Date(local.Year(), local.Month(), local.Day(), s.OpenHour, s.OpenMinute, 0, 0, s.Location)
}

func (s Session) close(t time.Time) time.Time {
	local := t.In(s.Location)
	return time.Date(local.Year(), local.Month(), local.Day(), s.CloseHour, s.CloseMinute, 0, 0, s.Location)
}

// IsTradingDay reports whether t's local date is a weekday and not a
// calendar holiday.
func (s Session) IsTradingDay(t time.Time) bool {
	wd := t.In(s.Location).Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !s.Calendar.IsHoliday(t)
}

// InEntryWindow reports whether t falls in the half-open entry window
// [open, close) per spec §4.6 — the close boundary is exclusive, so a
// signal landing exactly at the close is not a valid entry.
func (s Session) InEntryWindow(t time.Time) bool {
	if !s.IsTradingDay(t) {
		return false
	}
	local := t.In(s.Location)
	open, close := s.open(local), s.close(local)
	return !local.Before(open) && local.Before(close)
}

// InFlattenWindow reports whether t falls in the EOD flatten window
// [close-FlattenBeforeClose, close], inclusive of both ends per spec
// §4.6's literal "[15:58, 16:00]" — unlike the entry window, this window
// is allowed to emit exit proposals even once the entry cutoff (close)
// has passed at its upper bound.
func (s Session) InFlattenWindow(t time.Time) bool {
	if !s.IsTradingDay(t) {
		return false
	}
	local := t.In(s.Location)
	close := s.close(local)
	start := close.Add(-s.FlattenBeforeClose)
	return !local.Before(start) && !local.After(close)
}

// NextOpen returns the first session open strictly after t.
func (s Session) NextOpen(t time.Time) time.Time {
	local := t.In(s.Location)
	todayOpen := s.open(local)
	if local.Before(todayOpen) && s.IsTradingDay(local) {
		return todayOpen
	}
	d := local.AddDate(0, 0, 1)
	for i := 0; i < 14; i++ {
		if s.IsTradingDay(d) {
			return s.open(d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return s.open(local.AddDate(0, 0, 1))
}
