package importer

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// serialEpochOffset is the spreadsheet serial number of 1970-01-01
const serialEpochOffset = 25569

var (
	serialRx    = regexp.MustCompile(`^\d+(\.\d+)?$`)
	separatorRx = regexp.MustCompile(`[/\-]`)

	fallbackLayouts = []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"Jan 2, 2006",
		"January 2, 2006",
		"2 Jan 2006",
		"02 Jan 2006",
	}
)

// ParseDOS parses a date of service. Numbers are spreadsheet serial dates.
// Strings with three parts split on '/' or '-' are read as DD/MM/YY[YY], or
// YYYY-MM-DD when the first part has four digits; two-digit years land in
// the 2000s. Any other string is tried against a few common layouts.
func ParseDOS(v any, loc *time.Location) *time.Time {
	if loc == nil {
		loc = time.UTC
	}

	switch val := v.(type) {
	case string:
		return parseDOSString(val, loc)
	default:
		if serial, ok := toFloat(val); ok {
			t := FromSerial(serial, loc)
			return &t
		}
	}
	return nil
}

// FromSerial converts a spreadsheet serial day number to a wall-clock time
// in loc. The serial counts calendar days, so the date stays the same
// whatever the zone; the fraction is the time of day.
func FromSerial(serial float64, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	ms := (serial - serialEpochOffset) * 86400 * 1000
	u := time.UnixMilli(int64(ms)).UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), u.Minute(), u.Second(), u.Nanosecond(), loc)
}

func parseDOSString(s string, loc *time.Location) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if serialRx.MatchString(s) {
		serial, err := strconv.ParseFloat(s, 64)
		if err == nil {
			t := FromSerial(serial, loc)
			return &t
		}
	}

	parts := separatorRx.Split(s, -1)
	if len(parts) == 3 {
		if t := parseParts(parts, loc); t != nil {
			return t
		}
	}

	for _, layout := range fallbackLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return &t
		}
	}
	return nil
}

func parseParts(parts []string, loc *time.Location) *time.Time {
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil
		}
		nums[i] = n
	}

	day, month, year := nums[0], nums[1], nums[2]
	if len(strings.TrimSpace(parts[0])) == 4 {
		year, month, day = nums[0], nums[1], nums[2]
	}
	if year < 100 {
		year += 2000
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return nil
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if t.Day() != day {
		// rolled over, e.g. 31/02
		return nil
	}
	return &t
}
