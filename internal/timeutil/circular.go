// Package timeutil provides circular 24-hour clock arithmetic shared by
// the aggregator and diff engine, so that a shift crossing midnight
// (23:50 → 00:10) merges and compares correctly instead of appearing as
// a 23h40m gap under naive integer min/max (§9 "Circular time math").
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
)

const minutesPerDay = 24 * 60

// ParseMinutes converts a zero-padded "HH:MM" string into minutes since
// midnight (0-1439). The input is assumed already canonicalized.
func ParseMinutes(hhmm string) (int, error) {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("timeutil: malformed time %q", hhmm)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("timeutil: malformed hour in %q", hhmm)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("timeutil: malformed minute in %q", hhmm)
	}
	return h*60 + m, nil
}

// FormatMinutes is ParseMinutes's inverse.
func FormatMinutes(m int) string {
	m = ((m % minutesPerDay) + minutesPerDay) % minutesPerDay
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// CircularDistance returns the shorter of the two arcs between a and b on
// a 24-hour clock face, so 23:50 and 00:10 are 20 minutes apart, never
// 1420.
func CircularDistance(a, b int) int {
	d := ((a - b) % minutesPerDay + minutesPerDay) % minutesPerDay
	if d > minutesPerDay-d {
		return minutesPerDay - d
	}
	return d
}

// forwardArc returns the clockwise distance walking from start to end,
// i.e. how many minutes after start you reach end going forward in time.
func forwardArc(start, end int) int {
	return ((end-start)%minutesPerDay + minutesPerDay) % minutesPerDay
}

// RangeContains reports whether the arc [innerStart, innerEnd] lies
// entirely within the arc [outerStart, outerEnd], both read clockwise
// (forward in time) and wrap-aware.
func RangeContains(outerStart, outerEnd, innerStart, innerEnd int) bool {
	outerLen := forwardArc(outerStart, outerEnd)
	innerLen := forwardArc(innerStart, innerEnd)
	if innerLen > outerLen {
		return false
	}
	startOffset := forwardArc(outerStart, innerStart)
	endOffset := forwardArc(outerStart, innerEnd)
	return startOffset <= outerLen && endOffset <= outerLen
}
