// Package interval provides half-open minute ranges and disjoint interval sets.
package interval

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalid is returned for ranges that are empty, reversed or negative.
var ErrInvalid = errors.New("invalid interval")

// Interval is an immutable half-open range [Begin, End) in minutes from midnight.
type Interval struct {
	Begin int
	End   int
	Data  any
}

// New builds an interval after checking 0 <= begin < end.
func New(begin, end int, data any) (Interval, error) {
	if begin < 0 || begin >= end {
		return Interval{}, fmt.Errorf("%w: [%d, %d)", ErrInvalid, begin, end)
	}
	return Interval{Begin: begin, End: end, Data: data}, nil
}

// Parse builds an interval from two "H:MM" clock strings.
func Parse(start, end string, data any) (Interval, error) {
	b, err := ParseClock(start)
	if err != nil {
		return Interval{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Interval{}, err
	}
	return New(b, e, data)
}

// Len returns the length in minutes.
func (iv Interval) Len() int {
	return iv.End - iv.Begin
}

// WithData returns a copy carrying a different payload.
func (iv Interval) WithData(data any) Interval {
	return Interval{Begin: iv.Begin, End: iv.End, Data: data}
}

// Overlaps reports whether the two ranges share at least one minute.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Begin < other.End && other.Begin < iv.End
}

// Contains reports whether other lies entirely within iv.
func (iv Interval) Contains(other Interval) bool {
	return iv.Begin <= other.Begin && other.End <= iv.End
}

// Less orders by Begin, then End.
func (iv Interval) Less(other Interval) bool {
	if iv.Begin != other.Begin {
		return iv.Begin < other.Begin
	}
	return iv.End < other.End
}

// String renders the range as "H:MM - H:MM".
func (iv Interval) String() string {
	return FormatClock(iv.Begin) + " - " + FormatClock(iv.End)
}

// Sort orders intervals in place by Begin, then End.
func Sort(ivs []Interval) {
	sort.SliceStable(ivs, func(i, j int) bool {
		return ivs[i].Less(ivs[j])
	})
}

// FormatClock converts minutes from midnight to "H:MM", e.g. 643 -> "10:43".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%d:%02d", minutes/60, minutes%60)
}

// ParseClock converts "H:MM" (or "HH:MM") to minutes from midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time format: %q", s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 24 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}

	return hour*60 + minute, nil
}
