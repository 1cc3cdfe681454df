// Package catalog maps (school, weekday, period) to a concrete time window.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"scheduler/internal/interval"
	"scheduler/internal/model"
)

var (
	ErrUnknownSchool = errors.New("unknown school")
	ErrUnknownPeriod = errors.New("unknown period")
)

//go:embed default.yaml
var defaultTables []byte

// PeriodConfig is one row of a period table.
type PeriodConfig struct {
	ID    string `yaml:"id"`
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// ScheduleConfig is a period table shared by a set of days.
type ScheduleConfig struct {
	Days    []string       `yaml:"days"`
	Periods []PeriodConfig `yaml:"periods"`
}

// SchoolConfig lists the period tables of one school.
type SchoolConfig struct {
	Name      string           `yaml:"name"`
	Schedules []ScheduleConfig `yaml:"schedules"`
}

// File is the root of a catalog YAML document.
type File struct {
	Schools []SchoolConfig `yaml:"schools"`
}

// Period is a resolved table entry.
type Period struct {
	ID     string
	Window interval.Interval
}

// Catalog is an immutable lookup table built from a File.
type Catalog struct {
	tables map[string]map[model.Weekday][]Period
}

// Default returns the built-in high and middle school tables.
func Default() (*Catalog, error) {
	return Parse(defaultTables)
}

// Load reads a catalog from path; an empty path yields the defaults.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return Build(f)
}

// Build validates f and indexes it for lookups.
func Build(f File) (*Catalog, error) {
	if len(f.Schools) == 0 {
		return nil, fmt.Errorf("no schools defined")
	}

	c := &Catalog{tables: make(map[string]map[model.Weekday][]Period)}
	for i, school := range f.Schools {
		name := normalizeSchool(school.Name)
		if name == "" {
			return nil, fmt.Errorf("school[%d]: name is required", i)
		}
		if _, dup := c.tables[name]; dup {
			return nil, fmt.Errorf("school[%d]: duplicate name '%s'", i, school.Name)
		}
		days := make(map[model.Weekday][]Period)

		for j, sched := range school.Schedules {
			prefix := fmt.Sprintf("school[%d].schedules[%d]", i, j)
			periods, err := buildPeriods(sched.Periods, prefix)
			if err != nil {
				return nil, err
			}
			if len(sched.Days) == 0 {
				return nil, fmt.Errorf("%s: days are required", prefix)
			}
			for _, token := range sched.Days {
				day, err := model.ParseWeekday(token)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", prefix, err)
				}
				if _, dup := days[day]; dup {
					return nil, fmt.Errorf("%s: %s already has a table", prefix, day)
				}
				days[day] = periods
			}
		}
		c.tables[name] = days
	}
	return c, nil
}

func buildPeriods(rows []PeriodConfig, prefix string) ([]Period, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: no periods defined", prefix)
	}
	seen := make(map[string]bool)
	out := make([]Period, 0, len(rows))
	for k, p := range rows {
		id := NormalizePeriod(p.ID)
		if id == "" {
			return nil, fmt.Errorf("%s.periods[%d]: id is required", prefix, k)
		}
		if seen[id] {
			return nil, fmt.Errorf("%s.periods[%d]: duplicate id '%s'", prefix, k, p.ID)
		}
		seen[id] = true

		window, err := interval.Parse(p.Start, p.End, nil)
		if err != nil {
			return nil, fmt.Errorf("%s.periods[%d]: %w", prefix, k, err)
		}
		out = append(out, Period{ID: id, Window: window})
	}
	return out, nil
}

// Lookup returns the window of period on day at school, tagged with day.
// period is a number ("3", "03") or a named slot ("lunch").
func (c *Catalog) Lookup(school string, day model.Weekday, period string) (interval.Interval, error) {
	days, ok := c.tables[normalizeSchool(school)]
	if !ok {
		return interval.Interval{}, fmt.Errorf("%w: %q", ErrUnknownSchool, school)
	}
	periods, ok := days[day]
	if !ok {
		return interval.Interval{}, fmt.Errorf("%w: %s has no table for %s", ErrUnknownPeriod, school, day)
	}
	id := NormalizePeriod(period)
	for _, p := range periods {
		if p.ID == id {
			return p.Window.WithData(day), nil
		}
	}
	return interval.Interval{}, fmt.Errorf("%w: %q on %s at %s", ErrUnknownPeriod, period, day, school)
}

// Periods returns the table for school on day in declaration order.
func (c *Catalog) Periods(school string, day model.Weekday) []Period {
	periods := c.tables[normalizeSchool(school)][day]
	out := make([]Period, len(periods))
	copy(out, periods)
	return out
}

// HasSchool reports whether school has a table.
func (c *Catalog) HasSchool(school string) bool {
	_, ok := c.tables[normalizeSchool(school)]
	return ok
}

// NormalizePeriod lowercases named periods and strips leading zeros from
// numeric ones.
func NormalizePeriod(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	if n, err := strconv.Atoi(id); err == nil {
		return strconv.Itoa(n)
	}
	return id
}

func normalizeSchool(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
