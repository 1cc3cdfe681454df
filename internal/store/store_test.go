package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scheduler/internal/engine"
	"scheduler/internal/interval"
	"scheduler/internal/model"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "data", "scheduler.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleResult(t *testing.T) *engine.Result {
	t.Helper()
	ann := model.NewStudent("Ann", 7, "middle", 30)
	bob := model.NewStudent("Bob", 7, "middle", 30)
	g := model.NewGroup("Social", "middle", 60)
	require.NoError(t, g.Add(ann))
	require.NoError(t, g.Add(bob))
	cat := model.NewStudent("Cat", 9, "high", 45)
	dan := model.NewStudent("Dan", 9, "high", 20)

	return &engine.Result{
		Placements: []engine.Placement{
			{Entity: cat, Day: model.Thursday, Interval: interval.Interval{Begin: 600, End: 645}},
			{Entity: g, Day: model.Monday, Interval: interval.Interval{Begin: 590, End: 650}},
		},
		Failures: []engine.Failure{
			{Entity: dan, Err: &engine.OverBookedError{Entity: dan}},
		},
		Week: "Monday\n",
	}
}

func TestSaveRun_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	at := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)

	run, err := db.SaveRun(ctx, sampleResult(t), at)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, 2, run.Placed)
	assert.Equal(t, 1, run.Failed)

	got, err := db.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.True(t, at.Equal(got.CreatedAt))
	assert.Equal(t, "Monday\n", got.Week)

	placements, err := db.ListPlacements(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, placements, 2)
	assert.Equal(t, PlacementRecord{
		RunID: run.ID, Day: model.Monday, Begin: 590, End: 650,
		Kind: model.KindGroup, Entity: "Group - Social", Members: "Ann, Bob",
	}, placements[0])
	assert.Equal(t, model.Thursday, placements[1].Day)
	assert.Equal(t, "", placements[1].Members)

	failures, err := db.ListFailures(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "Dan", failures[0].Entity)
	assert.Equal(t, 20, failures[0].Minutes)
	assert.Equal(t, "overbooked", failures[0].Reason)
}

func TestLatestRun(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.LatestRun(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	base := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	var last *Run
	for i := 0; i < 3; i++ {
		last, err = db.SaveRun(ctx, &engine.Result{}, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
	}

	got, err := db.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, last.ID, got.ID)

	_, err = db.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRunsBefore(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)

	old, err := db.SaveRun(ctx, sampleResult(t), base)
	require.NoError(t, err)
	fresh, err := db.SaveRun(ctx, sampleResult(t), base.AddDate(0, 0, 10))
	require.NoError(t, err)

	n, err := db.DeleteRunsBefore(ctx, base.AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = db.GetRun(ctx, old.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	placements, err := db.ListPlacements(ctx, old.ID)
	require.NoError(t, err)
	assert.Empty(t, placements, "placements cascade with their run")

	_, err = db.GetRun(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestBackupAndCleanup(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "backups")
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)

	_, err := db.SaveRun(ctx, sampleResult(t), now)
	require.NoError(t, err)

	path, err := db.Backup(ctx, dir, now)
	require.NoError(t, err)
	assert.FileExists(t, path)

	logger := zerolog.Nop()
	restored, err := NewDB(path, &logger)
	require.NoError(t, err)
	defer restored.Close()
	_, err = restored.LatestRun(ctx)
	assert.NoError(t, err)

	stale := filepath.Join(dir, "backup_20250101_000000.db")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o600))
	old := now.AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(stale, old, old))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	require.NoError(t, os.Chtimes(filepath.Join(dir, "notes.txt"), old, old))

	removed, err := db.CleanupBackups(dir, 7, now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, stale)
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))

	removed, err = db.CleanupBackups(dir, 0, now)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestTrimSQL(t *testing.T) {
	long := fmt.Sprintf("CREATE TABLE x (\n\t%s\n)", "a TEXT, b TEXT, c TEXT, d TEXT, e TEXT, f TEXT, g TEXT")
	got := trimSQL(long)
	assert.Len(t, got, 63)
	assert.NotContains(t, got, "\n")
}
