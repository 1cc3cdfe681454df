// Package roster turns source rows into students and groups ready for the engine.
package roster

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"scheduler/internal/catalog"
	"scheduler/internal/interval"
	"scheduler/internal/model"
)

// Column names of the roster sheet.
const (
	ColStudent       = "Student"
	ColGrade         = "Grade"
	ColMinutes       = "Minutes"
	ColServedThrough = "Served Through"
	MaxOptions       = 20
)

var (
	ErrBadMinutes = errors.New("unable to parse minutes")
	ErrBadOption  = errors.New("unable to parse option")
	ErrBadGrade   = errors.New("no school for grade")
	ErrBadRow     = errors.New("malformed row")
)

var (
	minutesRe   = regexp.MustCompile(`(?i)^\s*(\d+)\s*(m|w)\b`)
	optionDayRe = regexp.MustCompile(`(?i)^\s*p(\d+).*(m|th|w|t|f)`)
	optionRe    = regexp.MustCompile(`(?i)^\s*p(\d+)`)
	groupRe     = regexp.MustCompile(`(?i)^\s*group - (.*)`)
)

// Row is one record keyed by column header.
type Row map[string]string

// Catalog resolves a period on a day to a concrete window.
type Catalog interface {
	Lookup(school string, day model.Weekday, period string) (interval.Interval, error)
}

// Builder accumulates students and the groups they are served through.
type Builder struct {
	catalog  Catalog
	schools  map[int]string
	groups   map[string]*model.Group
	students []*model.Student
}

// NewBuilder creates a builder; schools maps grade to school name.
func NewBuilder(catalog Catalog, schools map[int]string) *Builder {
	return &Builder{
		catalog: catalog,
		schools: schools,
		groups:  make(map[string]*model.Group),
	}
}

// AddRow parses one record into a student, joining or creating its group.
func (b *Builder) AddRow(row Row) (*model.Student, error) {
	name := strings.TrimSpace(row[ColStudent])
	if name == "" {
		return nil, fmt.Errorf("%w: missing %q", ErrBadRow, ColStudent)
	}

	grade, err := strconv.Atoi(strings.TrimSpace(row[ColGrade]))
	if err != nil {
		return nil, fmt.Errorf("%w: grade %q for %q", ErrBadRow, row[ColGrade], name)
	}
	school, ok := b.schools[grade]
	if !ok {
		return nil, fmt.Errorf("%w %d (%s)", ErrBadGrade, grade, name)
	}

	minutes, err := ParseMinutes(row[ColMinutes])
	if err != nil {
		return nil, fmt.Errorf("%w for %q", err, name)
	}

	student := model.NewStudent(name, grade, school, minutes)

	for i := 0; i < MaxOptions; i++ {
		text, ok := row[fmt.Sprintf("Option %d", i)]
		if !ok {
			continue
		}
		if err := b.addOption(student, text); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}

	if m := groupRe.FindStringSubmatch(row[ColServedThrough]); m != nil {
		groupName := strings.TrimSpace(m[1])
		g, ok := b.groups[groupName]
		if !ok {
			g = model.NewGroup(groupName, school, minutes)
			b.groups[groupName] = g
		}
		if err := g.Add(student); err != nil {
			return nil, err
		}
	}

	b.students = append(b.students, student)
	return student, nil
}

func (b *Builder) addOption(s *model.Student, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var period string
	var days []model.Weekday
	if m := optionDayRe.FindStringSubmatch(text); m != nil {
		day, err := model.ParseWeekday(m[2])
		if err != nil {
			return fmt.Errorf("%w %q: %v", ErrBadOption, text, err)
		}
		period, days = m[1], []model.Weekday{day}
	} else if m := optionRe.FindStringSubmatch(text); m != nil {
		period, days = m[1], model.Weekdays
	} else {
		return fmt.Errorf("%w %q", ErrBadOption, text)
	}

	// an every-day option skips days whose table lacks the period
	added := 0
	var lastErr error
	for _, day := range days {
		window, err := b.catalog.Lookup(s.School, day, period)
		if err != nil {
			if len(days) > 1 && errors.Is(err, catalog.ErrUnknownPeriod) {
				lastErr = err
				continue
			}
			return fmt.Errorf("%w %q: %w", ErrBadOption, text, err)
		}
		s.AddOption(day, window)
		added++
	}
	if added == 0 {
		return fmt.Errorf("%w %q: %w", ErrBadOption, text, lastErr)
	}
	return nil
}

// Students returns every student added so far in input order.
func (b *Builder) Students() []*model.Student {
	return append([]*model.Student(nil), b.students...)
}

// Groups returns the number of distinct groups seen.
func (b *Builder) Groups() int {
	return len(b.groups)
}

// ParseMinutes reads "<n>w" (weekly) or "<n>m" (monthly, a quarter of it
// per week) into weekly minutes.
func ParseMinutes(text string) (int, error) {
	m := minutesRe.FindStringSubmatch(text)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrBadMinutes, text)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadMinutes, text)
	}
	if strings.EqualFold(m[2], "m") {
		return n / 4, nil
	}
	return n, nil
}
