// Package report renders a scheduling result as an Excel workbook.
package report

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"scheduler/internal/engine"
	"scheduler/internal/interval"
	"scheduler/internal/model"
)

// Sheet names besides the per-day ones.
const (
	SheetUnscheduled = "Unscheduled"
	SheetWeek        = "Week"
)

var (
	dayColumns         = []string{"Start", "End", "Minutes", "Kind", "Entity", "Members"}
	unscheduledColumns = []string{"Entity", "Kind", "Minutes", "Reason", "Error"}
)

// Filename names the workbook for a run at t, e.g. "schedule_2026-09-01.xlsx".
func Filename(t time.Time) string {
	return fmt.Sprintf("schedule_%s.xlsx", t.Format("2006-01-02"))
}

// Write renders res as a workbook: one sheet per weekday, then the entities
// that were not placed, then the plain-text week.
func Write(w io.Writer, res *engine.Result) error {
	sw, err := newSheetWriter()
	if err != nil {
		return err
	}
	defer sw.file.Close()

	byDay := make(map[model.Weekday][]engine.Placement)
	for _, p := range res.Placements {
		byDay[p.Day] = append(byDay[p.Day], p)
	}

	for _, d := range model.Weekdays {
		if err := sw.addSheet(d.String()); err != nil {
			return err
		}
		if err := sw.writeHeader(dayColumns...); err != nil {
			return err
		}
		placements := byDay[d]
		sort.SliceStable(placements, func(i, j int) bool {
			return placements[i].Interval.Begin < placements[j].Interval.Begin
		})
		for _, p := range placements {
			if err := sw.writeRow(
				interval.FormatClock(p.Interval.Begin),
				interval.FormatClock(p.Interval.End),
				p.Interval.Len(),
				p.Entity.Kind(),
				p.Entity.Label(),
				members(p.Entity),
			); err != nil {
				return err
			}
		}
	}

	if err := sw.addSheet(SheetUnscheduled); err != nil {
		return err
	}
	if err := sw.writeHeader(unscheduledColumns...); err != nil {
		return err
	}
	for _, f := range res.Failures {
		if err := sw.writeRow(f.Entity.Label(), f.Entity.Kind(), f.Entity.RequiredMinutes(), engine.Reason(f.Err), f.Err.Error()); err != nil {
			return err
		}
	}
	for _, s := range res.Skipped {
		if err := sw.writeRow(s.Label(), s.Kind(), 0, "no_time_required", ""); err != nil {
			return err
		}
	}

	if err := sw.addSheet(SheetWeek); err != nil {
		return err
	}
	for _, line := range strings.Split(strings.TrimSuffix(res.Week, "\n"), "\n") {
		if err := sw.writeRow(line); err != nil {
			return err
		}
	}

	sw.file.SetActiveSheet(0)
	return sw.file.Write(w)
}

// Bytes renders res into memory.
func Bytes(res *engine.Result) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, res); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func members(e model.Schedulable) string {
	g, ok := e.(*model.Group)
	if !ok {
		return ""
	}
	names := make([]string, len(g.Members))
	for i, m := range g.Members {
		names[i] = m.Name
	}
	return strings.Join(names, ", ")
}
