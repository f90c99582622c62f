package xmlparse

import (
	"strconv"
	"strings"
	"time"
)

// ParseBusinessDate parses a YYYYMMDD business date. Empty input maps to
// nil, never to the zero/epoch date.
func ParseBusinessDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse("20060102", s)
	if err != nil {
		return nil
	}
	return &t
}

var monthAbbrev = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// ParseExpiryDate attempts DD-Mon-YY, DD-Mon-YYYY, then a bare Julian-day
// field, in that order. Returns nil when no format matches and julianDay
// is empty (the caller falls back to storing the raw text elsewhere if
// it needs to).
func ParseExpiryDate(text, julianDay string) *time.Time {
	text = strings.TrimSpace(text)
	if text != "" {
		parts := strings.Split(text, "-")
		if len(parts) == 3 {
			day, errD := strconv.Atoi(parts[0])
			mon, okM := monthAbbrev[strings.ToLower(parts[1])]
			year, errY := strconv.Atoi(parts[2])
			if errD == nil && okM && errY == nil {
				if year < 100 {
					if year < 70 {
						year += 2000
					} else {
						year += 1900
					}
				}
				t := time.Date(year, mon, day, 0, 0, 0, 0, time.UTC)
				return &t
			}
		}
	}

	if julianDay = strings.TrimSpace(julianDay); julianDay != "" {
		if jd, err := strconv.Atoi(julianDay); err == nil && jd > 0 {
			// Tally's JD attribute counts days from 1900-01-01.
			base := time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)
			t := base.AddDate(0, 0, jd)
			return &t
		}
	}

	return nil
}

// CleanText trims surrounding whitespace and collapses internal runs of
// whitespace.
func CleanText(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
