// Package calendar models one weekday of a worker's availability.
package calendar

import (
	"errors"
	"fmt"
	"strings"

	"scheduler/internal/interval"
)

// ErrDoubleBooking signals a booking attempt on time that is not free.
// It means the caller skipped or disagreed with IsFree.
var ErrDoubleBooking = errors.New("attempt to double-book")

// Day holds the free and booked time of a single weekday. Every booking
// consumes its own span plus the trailing buffer from the free set.
type Day struct {
	free   *interval.Set
	booked *interval.Set
	buffer int
}

// NewDay creates a day that is free over [start, end).
func NewDay(start, end, buffer int) (*Day, error) {
	hours, err := interval.New(start, end, nil)
	if err != nil {
		return nil, fmt.Errorf("working hours: %w", err)
	}
	if buffer < 0 {
		return nil, fmt.Errorf("buffer cannot be negative, got %d", buffer)
	}
	return &Day{
		free:   interval.NewSet(hours),
		booked: interval.NewSet(),
		buffer: buffer,
	}, nil
}

// IsFree reports whether iv touches free time and no booked time.
func (d *Day) IsFree(iv interval.Interval) bool {
	return d.free.Overlaps(iv) && !d.booked.Overlaps(iv)
}

// Window returns the free interval that fully contains iv, if any.
func (d *Day) Window(iv interval.Interval) (interval.Interval, bool) {
	return d.free.Containing(iv)
}

// Fits reports whether iv lies inside a single free interval and its
// trailing buffer does not run into a later booking.
func (d *Day) Fits(iv interval.Interval) bool {
	if _, ok := d.free.Containing(iv); !ok {
		return false
	}
	return !d.booked.Overlaps(interval.Interval{Begin: iv.Begin, End: iv.End + d.buffer})
}

// Book records iv and removes [iv.Begin, iv.End+buffer) from free time.
func (d *Day) Book(iv interval.Interval) error {
	if !d.IsFree(iv) {
		return fmt.Errorf("%w: %s", ErrDoubleBooking, iv)
	}
	d.free.Chop(iv.Begin, iv.End+d.buffer)
	d.booked.Add(iv)
	return nil
}

// Free returns a copy of the free intervals in order.
func (d *Day) Free() []interval.Interval {
	return d.free.Items()
}

// Booked returns a copy of the booked intervals in order.
func (d *Day) Booked() []interval.Interval {
	return d.booked.Items()
}

// Buffer returns the gap enforced after each booking.
func (d *Day) Buffer() int {
	return d.buffer
}

// Dump lists bookings as "<start> - <end>  <payload>" lines ordered by start.
func (d *Day) Dump() string {
	var b strings.Builder
	for _, iv := range d.booked.Items() {
		fmt.Fprintf(&b, "%s - %s  %s\n", interval.FormatClock(iv.Begin), interval.FormatClock(iv.End), describe(iv.Data))
	}
	return b.String()
}

type labeler interface {
	Label() string
}

func describe(payload any) string {
	if l, ok := payload.(labeler); ok {
		return l.Label()
	}
	return fmt.Sprint(payload)
}
