package report

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"scheduler/internal/engine"
	"scheduler/internal/interval"
	"scheduler/internal/model"
)

func sampleResult(t *testing.T) *engine.Result {
	t.Helper()

	ann := model.NewStudent("Ann", 7, "middle", 30)
	bob := model.NewStudent("Bob", 7, "middle", 30)
	g := model.NewGroup("Social", "middle", 60)
	require.NoError(t, g.Add(ann))
	require.NoError(t, g.Add(bob))
	cat := model.NewStudent("Cat", 9, "high", 45)
	dan := model.NewStudent("Dan", 9, "high", 0)

	return &engine.Result{
		Placements: []engine.Placement{
			{Entity: cat, Day: model.Monday, Interval: interval.Interval{Begin: 600, End: 645, Data: cat}},
			{Entity: g, Day: model.Monday, Interval: interval.Interval{Begin: 590, End: 650, Data: g}},
		},
		Failures: []engine.Failure{
			{Entity: ann, Err: fmt.Errorf("Ann: %w", engine.ErrNoOptions)},
		},
		Skipped: []model.Schedulable{dan},
		Week:    "Monday\n\t9:50 - 10:50  Group - Social\nTuesday\n",
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleResult(t)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t,
		[]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", SheetUnscheduled, SheetWeek},
		f.GetSheetList())

	rows, err := f.GetRows("Monday")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, dayColumns, rows[0])
	assert.Equal(t, []string{"9:50", "10:50", "60", "group", "Group - Social", "Ann, Bob"}, rows[1], "rows are ordered by start")
	require.GreaterOrEqual(t, len(rows[2]), 5)
	assert.Equal(t, []string{"10:00", "10:45", "45", "student", "Cat"}, rows[2][:5])

	rows, err = f.GetRows("Tuesday")
	require.NoError(t, err)
	assert.Len(t, rows, 1, "header only")

	rows, err = f.GetRows(SheetUnscheduled)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Ann", "student", "30", "no_options", "Ann: no options to choose from"}, rows[1])
	require.GreaterOrEqual(t, len(rows[2]), 4)
	assert.Equal(t, []string{"Dan", "student", "0", "no_time_required"}, rows[2][:4])

	rows, err = f.GetRows(SheetWeek)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Contains(t, rows[1][0], "9:50 - 10:50  Group - Social")
}

func TestBytes_EmptyResult(t *testing.T) {
	data, err := Bytes(&engine.Result{})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	assert.Len(t, f.GetSheetList(), 7)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "schedule_2026-09-01.xlsx", Filename(time.Date(2026, 9, 1, 7, 0, 0, 0, time.UTC)))
}

func TestSheetWriter_RequiresSheet(t *testing.T) {
	sw, err := newSheetWriter()
	require.NoError(t, err)
	defer sw.file.Close()

	assert.Error(t, sw.writeRow("x"))
	require.NoError(t, sw.addSheet("a very long sheet name that Excel would reject"))
	assert.Equal(t, 31, len(sw.sheet))
}
