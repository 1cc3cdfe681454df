// Package cache publishes scheduling snapshots to Redis for other readers.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"scheduler/internal/engine"
	"scheduler/internal/interval"
)

const (
	keyLatest = "schedule:latest"
	keyRun    = "schedule:run:%s"
)

// Entry is one booking in a snapshot.
type Entry struct {
	Day    string `json:"day"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Kind   string `json:"kind"`
	Entity string `json:"entity"`
}

// Miss is one entity that was not placed.
type Miss struct {
	Entity string `json:"entity"`
	Reason string `json:"reason"`
	Error  string `json:"error"`
}

// Snapshot is the JSON form of a run.
type Snapshot struct {
	RunID      string    `json:"run_id"`
	CreatedAt  time.Time `json:"created_at"`
	Placements []Entry   `json:"placements"`
	Failures   []Miss    `json:"failures"`
	Week       string    `json:"week"`
}

// NewSnapshot flattens res for storage.
func NewSnapshot(runID string, at time.Time, res *engine.Result) Snapshot {
	s := Snapshot{
		RunID:      runID,
		CreatedAt:  at.UTC(),
		Placements: make([]Entry, 0, len(res.Placements)),
		Failures:   make([]Miss, 0, len(res.Failures)),
		Week:       res.Week,
	}
	for _, p := range res.Placements {
		s.Placements = append(s.Placements, Entry{
			Day:    p.Day.Token(),
			Start:  interval.FormatClock(p.Interval.Begin),
			End:    interval.FormatClock(p.Interval.End),
			Kind:   p.Entity.Kind(),
			Entity: p.Entity.Label(),
		})
	}
	for _, f := range res.Failures {
		s.Failures = append(s.Failures, Miss{
			Entity: f.Entity.Label(),
			Reason: engine.Reason(f.Err),
			Error:  f.Err.Error(),
		})
	}
	return s
}

// ResultCache stores snapshots with a TTL. A nil client or non-positive
// TTL turns every call into a no-op.
type ResultCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewResultCache(client *redis.Client, ttl time.Duration) *ResultCache {
	return &ResultCache{redis: client, ttl: ttl}
}

func (c *ResultCache) enabled() bool {
	return c != nil && c.redis != nil && c.ttl > 0
}

// Save writes s under its run key and as the latest snapshot.
func (c *ResultCache) Save(ctx context.Context, s Snapshot) error {
	if !c.enabled() {
		return nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	pipe := c.redis.TxPipeline()
	pipe.Set(ctx, fmt.Sprintf(keyRun, s.RunID), data, c.ttl)
	pipe.Set(ctx, keyLatest, data, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save snapshot %s: %w", s.RunID, err)
	}
	return nil
}

// Latest returns the most recently saved snapshot.
func (c *ResultCache) Latest(ctx context.Context) (*Snapshot, bool) {
	return c.read(ctx, keyLatest)
}

// Get returns the snapshot of runID.
func (c *ResultCache) Get(ctx context.Context, runID string) (*Snapshot, bool) {
	return c.read(ctx, fmt.Sprintf(keyRun, runID))
}

func (c *ResultCache) read(ctx context.Context, key string) (*Snapshot, bool) {
	if !c.enabled() {
		return nil, false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return nil, false
	}
	var s Snapshot
	if err := json.Unmarshal([]byte(val), &s); err != nil {
		return nil, false
	}
	return &s, true
}
