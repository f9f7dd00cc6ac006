package timegate

import (
	"testing"
	"time"
)

func mustLoc(t *testing.T, name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load location %q: %v", name, err)
	}
	return loc
}

func TestEntryWindowHalfOpenAtClose(t *testing.T) {
	loc := mustLoc(t, "America/New_York")
	s := DefaultUSEquitySession(loc, nil)

	atClose := time.Date(2026, 7, 31, 16, 0, 0, 0, loc)
	if s.InEntryWindow(atClose) {
		t.Fatalf("expected entry window to exclude the close boundary")
	}

	justBefore := atClose.Add(-time.Second)
	if !s.InEntryWindow(justBefore) {
		t.Fatalf("expected entry window to include a moment just before close")
	}

	atOpen := time.Date(2026, 7, 31, 9, 30, 0, 0, loc)
	if !s.InEntryWindow(atOpen) {
		t.Fatalf("expected entry window to include the open boundary (inclusive)")
	}
}

func TestFlattenWindowInclusiveBothEnds(t *testing.T) {
	loc := mustLoc(t, "America/New_York")
	s := DefaultUSEquitySession(loc, nil)

	start := time.Date(2026, 7, 31, 15, 58, 0, 0, loc)
	end := time.Date(2026, 7, 31, 16, 0, 0, 0, loc)
	if !s.InFlattenWindow(start) {
		t.Errorf("expected flatten window to include its start (15:58)")
	}
	if !s.InFlattenWindow(end) {
		t.Errorf("expected flatten window to include its end (16:00), unlike the entry window")
	}
	if s.InFlattenWindow(start.Add(-time.Second)) {
		t.Errorf("expected flatten window to exclude a moment before 15:58")
	}
}

func TestWeekendAndHolidayExcluded(t *testing.T) {
	loc := mustLoc(t, "America/New_York")
	holiday := time.Date(2026, 1, 1, 10, 0, 0, 0, loc)
	cal := NewStaticCalendar(loc, []time.Time{holiday})
	s := DefaultUSEquitySession(loc, cal)

	if s.InEntryWindow(holiday) {
		t.Errorf("expected a calendar holiday to be excluded from the entry window")
	}

	saturday := time.Date(2026, 8, 1, 10, 0, 0, 0, loc) // Aug 1 2026 is a Saturday
	if s.InEntryWindow(saturday) {
		t.Errorf("expected a weekend to be excluded from the entry window")
	}
}

func TestNextOpenSkipsWeekendAndHoliday(t *testing.T) {
	loc := mustLoc(t, "America/New_York")
	s := DefaultUSEquitySession(loc, nil)

	friday := time.Date(2026, 7, 31, 17, 0, 0, 0, loc) // after Friday close
	next := s.NextOpen(friday)
	if next.Weekday() != time.Monday {
		t.Fatalf("expected next open after Friday close to land on Monday, got %s", next.Weekday())
	}

	monday := time.Date(2026, 8, 3, 10, 0, 0, 0, loc)
	withHoliday := DefaultUSEquitySession(loc, NewStaticCalendar(loc, []time.Time{monday}))
	if got := withHoliday.NextOpen(friday); got.Weekday() != time.Tuesday {
		t.Fatalf("expected next open to skip a Monday holiday and land on Tuesday, got %s", got.Weekday())
	}
}
