package model

import (
	"fmt"
	"strings"
)

// Weekday is a school day the worker is available on.
type Weekday int

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
)

// Weekdays lists the working week in calendar order.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday}

var weekdayTokens = map[Weekday]string{
	Monday:    "M",
	Tuesday:   "T",
	Wednesday: "W",
	Thursday:  "Th",
	Friday:    "F",
}

var weekdayNames = map[Weekday]string{
	Monday:    "Monday",
	Tuesday:   "Tuesday",
	Wednesday: "Wednesday",
	Thursday:  "Thursday",
	Friday:    "Friday",
}

// Token returns the short roster token, e.g. "Th".
func (d Weekday) Token() string {
	return weekdayTokens[d]
}

// String returns the full day name.
func (d Weekday) String() string {
	if name, ok := weekdayNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Weekday(%d)", int(d))
}

// Valid reports whether d is one of the five working days.
func (d Weekday) Valid() bool {
	_, ok := weekdayTokens[d]
	return ok
}

// ParseWeekday accepts roster tokens (M, T, W, Th, F) and full English names,
// case-insensitively.
func ParseWeekday(s string) (Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, d := range Weekdays {
		if key == strings.ToLower(d.Token()) || key == strings.ToLower(d.String()) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown day %q", s)
}
