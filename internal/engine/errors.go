package engine

import (
	"errors"
	"fmt"
	"strings"

	"scheduler/internal/interval"
	"scheduler/internal/model"
)

// Data-integrity errors. They signal malformed input, not a full calendar.
var (
	ErrEmptyGroup      = errors.New("group has no members")
	ErrMixedSchools    = errors.New("group members span different schools")
	ErrNoCommonOptions = errors.New("group members share no options")
	ErrNoOptions       = errors.New("no options to choose from")
	ErrBadCandidate    = errors.New("candidate is not tagged with a weekday")
)

// OverBookedError is returned when none of an entity's candidates can hold
// its duration. Week is the state of the calendar at the time of failure.
type OverBookedError struct {
	Entity     model.Schedulable
	Candidates []interval.Interval
	Week       string
}

func (e *OverBookedError) Error() string {
	opts := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		opts[i] = fmt.Sprintf("%v %s", c.Data, c)
	}
	return fmt.Sprintf("could not book %s given options [%s]", e.Entity.Label(), strings.Join(opts, "; "))
}

// IsOverBooked reports whether err carries an OverBookedError.
func IsOverBooked(err error) bool {
	var ob *OverBookedError
	return errors.As(err, &ob)
}

// Reason classifies a failure for reports and metrics.
func Reason(err error) string {
	switch {
	case IsOverBooked(err):
		return "overbooked"
	case errors.Is(err, ErrEmptyGroup):
		return "empty_group"
	case errors.Is(err, ErrMixedSchools):
		return "mixed_schools"
	case errors.Is(err, ErrNoCommonOptions):
		return "no_common_options"
	case errors.Is(err, ErrNoOptions):
		return "no_options"
	case errors.Is(err, ErrBadCandidate):
		return "bad_candidate"
	default:
		return "other"
	}
}
