package workflow

import (
	"fmt"
	"time"
	_ "time/tzdata" // business timezone must resolve on hosts without a zone database
)

const dateLayout = "2006-01-02"

// StartOfDay returns midnight of t's calendar day in loc
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// DaysBetween returns the number of calendar days from `from` to `to`, both
// read as dates in loc. The result is negative when `to` is earlier.
func DaysBetween(from, to time.Time, loc *time.Location) int {
	fy, fm, fd := from.In(loc).Date()
	ty, tm, td := to.In(loc).Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// ParseDay parses a YYYY-MM-DD date (or an RFC 3339 timestamp) and returns
// the start of that day in loc.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation(dateLayout, s, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return StartOfDay(t, loc), nil
}

// DayRange converts optional start/end dates into an inclusive time range:
// start at 00:00 and end at the last instant of its day. Empty strings give
// a nil bound.
func DayRange(start, end string, loc *time.Location) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if start != "" {
		t, err := ParseDay(start, loc)
		if err != nil {
			return nil, nil, err
		}
		from = &t
	}
	if end != "" {
		t, err := ParseDay(end, loc)
		if err != nil {
			return nil, nil, err
		}
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		to = &t
	}
	return from, to, nil
}

// FormatDay renders t as YYYY-MM-DD in loc
func FormatDay(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dateLayout)
}
