// Package engine places students and groups on a worker's week using
// first-fit over each entity's candidate windows.
package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"scheduler/internal/calendar"
	"scheduler/internal/interval"
	"scheduler/internal/model"
)

// Settings describes the worker's week.
type Settings struct {
	Start       int // minutes from midnight
	End         int
	Buffer      int // idle minutes enforced after every booking
	Granularity int // advisory slot size, not used for placement
}

// DefaultSettings mirrors a school day of 8:00-15:40 with a 5 minute buffer.
func DefaultSettings() Settings {
	return Settings{Start: 480, End: 940, Buffer: 5, Granularity: 10}
}

// Placement is a booking made for an entity.
type Placement struct {
	Entity   model.Schedulable
	Day      model.Weekday
	Interval interval.Interval
}

func (p Placement) String() string {
	return fmt.Sprintf("%s %s %s", p.Day.Token(), p.Interval, p.Entity.Label())
}

// Engine owns one calendar per weekday. It is not safe for concurrent use;
// scheduling order is part of its semantics.
type Engine struct {
	settings Settings
	days     map[model.Weekday]*calendar.Day
	logger   zerolog.Logger
}

// New creates an engine with an empty week.
func New(settings Settings, logger zerolog.Logger) (*Engine, error) {
	if settings.Granularity <= 0 {
		return nil, fmt.Errorf("granularity must be positive, got %d", settings.Granularity)
	}

	days := make(map[model.Weekday]*calendar.Day, len(model.Weekdays))
	for _, d := range model.Weekdays {
		day, err := calendar.NewDay(settings.Start, settings.End, settings.Buffer)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", d, err)
		}
		days[d] = day
	}

	return &Engine{
		settings: settings,
		days:     days,
		logger:   logger.With().Str("component", "engine").Logger(),
	}, nil
}

// Settings returns the week configuration.
func (e *Engine) Settings() Settings {
	return e.settings
}

// Day returns the calendar for d, or nil for a non-working day.
func (e *Engine) Day(d model.Weekday) *calendar.Day {
	return e.days[d]
}

// PlaceFirstFit books minutes for entity in the first candidate, in the
// given order, that has room. Each candidate's payload must be the Weekday
// it falls on. Zero minutes is a successful no-op and returns nil.
func (e *Engine) PlaceFirstFit(entity model.Schedulable, minutes int, candidates []interval.Interval) (*Placement, error) {
	if minutes == 0 {
		return nil, nil
	}
	if minutes < 0 {
		return nil, fmt.Errorf("%s: negative duration %d", entity.Label(), minutes)
	}

	for _, c := range candidates {
		day, ok := c.Data.(model.Weekday)
		if !ok || !day.Valid() {
			return nil, fmt.Errorf("%s: %w: %v", entity.Label(), ErrBadCandidate, c.Data)
		}
		if minutes > c.Len() {
			continue
		}

		cal := e.days[day]
		if _, ok := cal.Window(c); !ok {
			continue
		}

		slot := interval.Interval{Begin: c.Begin, End: c.Begin + minutes, Data: entity}
		if !cal.Fits(slot) {
			continue
		}
		if err := cal.Book(slot); err != nil {
			return nil, fmt.Errorf("%s on %s: %w", entity.Label(), day, err)
		}

		e.logger.Debug().
			Str("entity", entity.Label()).
			Str("day", day.Token()).
			Str("slot", slot.String()).
			Msg("booked")

		return &Placement{Entity: entity, Day: day, Interval: slot}, nil
	}

	return nil, &OverBookedError{
		Entity:     entity,
		Candidates: append([]interval.Interval(nil), candidates...),
		Week:       e.Dump(),
	}
}

// Schedule places a single student against their own options.
func (e *Engine) Schedule(s *model.Student) (*Placement, error) {
	if s.Minutes == 0 {
		return nil, nil
	}
	if len(s.Options) == 0 {
		return nil, fmt.Errorf("%s: %w", s.Name, ErrNoOptions)
	}
	return e.PlaceFirstFit(s, s.Minutes, s.Options)
}

// ScheduleGroup places a group in a window every member offered. A group
// needing no time is a no-op before any member checks.
func (e *Engine) ScheduleGroup(g *model.Group) (*Placement, error) {
	if g.Minutes == 0 {
		return nil, nil
	}
	candidates, err := CommonOptions(g)
	if err != nil {
		return nil, err
	}
	return e.PlaceFirstFit(g, g.Minutes, candidates)
}

// CommonOptions intersects the members' options by weekday and bounds and
// returns them sorted by weekday, then begin, then end.
func CommonOptions(g *model.Group) ([]interval.Interval, error) {
	if len(g.Members) == 0 {
		return nil, fmt.Errorf("%s: %w", g.Label(), ErrEmptyGroup)
	}

	school := g.Members[0].School
	for _, m := range g.Members[1:] {
		if m.School != school {
			return nil, fmt.Errorf("%s: %w: %q and %q", g.Label(), ErrMixedSchools, school, m.School)
		}
	}

	type key struct {
		day        model.Weekday
		begin, end int
	}

	counts := make(map[key]int)
	for _, m := range g.Members {
		seen := make(map[key]bool)
		for _, o := range m.Options {
			day, ok := o.Data.(model.Weekday)
			if !ok {
				return nil, fmt.Errorf("%s: member %s: %w", g.Label(), m.Name, ErrBadCandidate)
			}
			k := key{day, o.Begin, o.End}
			if !seen[k] {
				seen[k] = true
				counts[k]++
			}
		}
	}

	common := make([]key, 0)
	for k, n := range counts {
		if n == len(g.Members) {
			common = append(common, k)
		}
	}
	if len(common) == 0 {
		return nil, fmt.Errorf("%s: %w", g.Label(), ErrNoCommonOptions)
	}

	sort.Slice(common, func(i, j int) bool {
		a, b := common[i], common[j]
		if a.day != b.day {
			return a.day < b.day
		}
		if a.begin != b.begin {
			return a.begin < b.begin
		}
		return a.end < b.end
	})

	out := make([]interval.Interval, len(common))
	for i, k := range common {
		out[i] = interval.Interval{Begin: k.begin, End: k.end, Data: k.day}
	}
	return out, nil
}

// Dump renders the whole week: a header per weekday followed by its bookings.
func (e *Engine) Dump() string {
	var b strings.Builder
	for _, d := range model.Weekdays {
		b.WriteString(d.String())
		b.WriteString("\n")
		for _, line := range strings.Split(strings.TrimSuffix(e.days[d].Dump(), "\n"), "\n") {
			if line == "" {
				continue
			}
			b.WriteString("\t")
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// BookedMinutes sums booked time per weekday.
func (e *Engine) BookedMinutes() map[model.Weekday]int {
	out := make(map[model.Weekday]int, len(e.days))
	for d, cal := range e.days {
		for _, iv := range cal.Booked() {
			out[d] += iv.Len()
		}
	}
	return out
}
