package engine

import (
	"errors"
	"fmt"

	"scheduler/internal/calendar"
	"scheduler/internal/model"
)

// Failure records an entity that could not be placed.
type Failure struct {
	Entity model.Schedulable
	Err    error
}

// Result is the outcome of a full scheduling pass.
type Result struct {
	Placements []Placement
	Skipped    []model.Schedulable // zero-minute entities
	Failures   []Failure
	Week       string
}

// OK reports whether every entity was handled without failure.
func (r *Result) OK() bool {
	return len(r.Failures) == 0
}

// ScheduleAll places every distinct group first, then every ungrouped
// student in input order. Over-booking and data-integrity failures are
// collected and the pass continues; members of a failed group are not
// placed on their own. A double-booking aborts the pass with an error.
func (e *Engine) ScheduleAll(students []*model.Student) (*Result, error) {
	res := &Result{}

	var groups []*model.Group
	seen := make(map[*model.Group]bool)
	var solo []*model.Student
	for _, s := range students {
		if s.Group == nil {
			solo = append(solo, s)
			continue
		}
		if !seen[s.Group] {
			seen[s.Group] = true
			groups = append(groups, s.Group)
		}
	}

	for _, g := range groups {
		p, err := e.ScheduleGroup(g)
		if abort := e.record(res, g, p, err); abort != nil {
			return res, abort
		}
	}

	for _, s := range solo {
		p, err := e.Schedule(s)
		if abort := e.record(res, s, p, err); abort != nil {
			return res, abort
		}
	}

	res.Week = e.Dump()
	e.logger.Info().
		Int("placed", len(res.Placements)).
		Int("skipped", len(res.Skipped)).
		Int("failed", len(res.Failures)).
		Msg("scheduling pass finished")

	return res, nil
}

func (e *Engine) record(res *Result, entity model.Schedulable, p *Placement, err error) error {
	switch {
	case errors.Is(err, calendar.ErrDoubleBooking):
		res.Week = e.Dump()
		return fmt.Errorf("scheduling aborted: %w", err)
	case err != nil:
		e.logger.Warn().
			Str("entity", entity.Label()).
			Str("reason", Reason(err)).
			Err(err).
			Msg("could not schedule")
		res.Failures = append(res.Failures, Failure{Entity: entity, Err: err})
	case p == nil:
		res.Skipped = append(res.Skipped, entity)
	default:
		res.Placements = append(res.Placements, *p)
	}
	return nil
}
