package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"scheduler/internal/catalog"
	"scheduler/internal/config"
	"scheduler/internal/engine"
	"scheduler/internal/store"
)

const rosterCSV = `Student,Grade,Minutes,Served Through,Option 0,Option 1
Ann,7,60w,Group - Social,P2 M,P2 T
Bob,7,60w,Group - Social,P2 M,
Cat,7,70w,,P2 M,P2 T
Dan,7,70w,,P2 M,
Eve,3,30w,,P1,
`

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendReport(ctx context.Context, summary, filename string, data []byte) error {
	return m.Called(ctx, summary, filename, data).Error(0)
}

var runAt = time.Date(2026, 9, 1, 7, 30, 0, 0, time.UTC)

func testConfig(t *testing.T, redisAddr string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	roster := filepath.Join(dir, "roster.csv")
	require.NoError(t, os.WriteFile(roster, []byte(rosterCSV), 0o600))

	cfg, err := config.Parse([]byte(fmt.Sprintf(`
input:
  kind: csv
  path: %s
output:
  dir: %s
database:
  path: %s
  retention_days: 30
backup:
  enabled: true
  path: %s
redis:
  address: "%s"
metrics:
  textfile: %s
`,
		roster,
		filepath.Join(dir, "out"),
		filepath.Join(dir, "data", "scheduler.db"),
		filepath.Join(dir, "backups"),
		redisAddr,
		filepath.Join(dir, "scheduler.prom"),
	)))
	require.NoError(t, err)
	return cfg
}

func TestRun_Full(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, mr.Addr())

	a, err := New(context.Background(), cfg, Options{Now: func() time.Time { return runAt }}, zerolog.Nop())
	require.NoError(t, err)

	sender := new(mockSender)
	sender.On("SendReport", mock.Anything,
		mock.AnythingOfType("string"),
		"schedule_2026-09-01.xlsx", mock.Anything,
	).Return(nil).Once()
	a.SetNotifier(sender)

	out, err := a.Run(context.Background())
	require.NoError(t, err)
	a.Close()

	assert.False(t, out.OK())
	require.Error(t, out.RowErrors)
	assert.Contains(t, out.RowErrors.Error(), "row 6")

	res := out.Result
	require.Len(t, res.Placements, 2)
	assert.Equal(t, "Group - Social", res.Placements[0].Entity.Label())
	assert.Equal(t, "9:50 - 10:50", res.Placements[0].Interval.String())
	assert.Equal(t, "Cat", res.Placements[1].Entity.Label())
	assert.Equal(t, "Tuesday", res.Placements[1].Day.String())
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "Dan", res.Failures[0].Entity.Label())
	assert.True(t, engine.IsOverBooked(res.Failures[0].Err))

	assert.FileExists(t, out.Workbook)
	assert.Equal(t, "schedule_2026-09-01.xlsx", filepath.Base(out.Workbook))
	assert.FileExists(t, cfg.Metrics.Textfile)

	summary := sender.Calls[0].Arguments.String(1)
	assert.Contains(t, summary, out.RunID)
	assert.Contains(t, summary, "- Dan: overbooked")
	sender.AssertExpectations(t)

	assert.True(t, mr.Exists("schedule:latest"))
	assert.True(t, mr.Exists("schedule:run:"+out.RunID))

	logger := zerolog.Nop()
	db, err := store.NewDB(cfg.Database.Path, &logger)
	require.NoError(t, err)
	defer db.Close()
	run, err := db.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, out.RunID, run.ID)
	assert.Equal(t, 2, run.Placed)

	backups, err := os.ReadDir(cfg.Backup.Path)
	require.NoError(t, err)
	assert.Len(t, backups, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.Metrics().PlacementsTotal.WithLabelValues("group")))
}

func TestRun_DryRun(t *testing.T) {
	cfg := testConfig(t, "")

	a, err := New(context.Background(), cfg, Options{DryRun: true, Now: func() time.Time { return runAt }}, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	sender := new(mockSender)
	a.SetNotifier(sender)

	out, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DryRunID, out.RunID)
	assert.FileExists(t, out.Workbook)

	assert.NoFileExists(t, cfg.Database.Path)
	sender.AssertNotCalled(t, "SendReport", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_SourceError(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.Input.Path = filepath.Join(t.TempDir(), "missing.csv")

	a, err := New(context.Background(), cfg, Options{DryRun: true}, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Run(context.Background())
	assert.Error(t, err)
}

func TestRun_AllPlaced(t *testing.T) {
	cfg := testConfig(t, "")
	require.NoError(t, os.WriteFile(cfg.Input.Path, []byte("Student,Grade,Minutes,Option 0\nAnn,9,30w,P3 W\nBob,9,0w,\n"), 0o600))

	a, err := New(context.Background(), cfg, Options{DryRun: true}, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	out, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, out.OK())
	assert.Len(t, out.Result.Placements, 1)
	assert.Len(t, out.Result.Skipped, 1)
}

func TestRun_UnknownSchool(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.Schools["hihg"] = []int{3}

	a, err := New(context.Background(), cfg, Options{DryRun: true}, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	out, err := a.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, catalog.ErrUnknownSchool)
	assert.Contains(t, err.Error(), `"hihg"`)
	assert.NoDirExists(t, cfg.Output.Dir)
}
