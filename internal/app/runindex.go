package app

import (
	"context"
	"sync"

	"crosspost/internal/dispatch"
	"crosspost/internal/runstore"
	"crosspost/internal/verify"
)

// runIndex keeps recent runs in memory and mirrors them into the optional
// persistent store. It backs the report server even when persistence is
// disabled; memory always wins on reads so the index never goes backwards
// behind a slow store.
type runIndex struct {
	store runstore.Store // may be nil

	mu     sync.RWMutex
	byID   map[string]runstore.Record
	order  []string
	latest string
}

const memoryRunCap = 32

func newRunIndex(store runstore.Store) *runIndex {
	return &runIndex{store: store, byID: make(map[string]runstore.Record)}
}

func (x *runIndex) SaveBatch(ctx context.Context, batch *dispatch.Batch) error {
	x.mu.Lock()
	rec := x.byID[batch.RunID]
	rec.Batch = batch
	x.byID[batch.RunID] = rec
	x.order = append(x.order, batch.RunID)
	x.latest = batch.RunID
	x.evictLocked()
	x.mu.Unlock()

	if x.store != nil {
		return x.store.SaveBatch(ctx, batch)
	}
	return nil
}

func (x *runIndex) SaveChecks(ctx context.Context, checks verify.CheckSet) error {
	x.mu.Lock()
	if rec, ok := x.byID[checks.RunID]; ok {
		rec.Checks = &checks
		x.byID[checks.RunID] = rec
	}
	x.mu.Unlock()

	if x.store != nil {
		return x.store.SaveChecks(ctx, checks)
	}
	return nil
}

func (x *runIndex) GetRun(ctx context.Context, runID string) (runstore.Record, error) {
	x.mu.RLock()
	rec, ok := x.byID[runID]
	x.mu.RUnlock()
	if ok {
		return rec, nil
	}
	if x.store != nil {
		return x.store.GetRun(ctx, runID)
	}
	return runstore.Record{}, runstore.ErrNotFound
}

func (x *runIndex) LatestRunID(ctx context.Context) (string, error) {
	x.mu.RLock()
	latest := x.latest
	x.mu.RUnlock()
	if latest != "" {
		return latest, nil
	}
	if x.store != nil {
		return x.store.LatestRunID(ctx)
	}
	return "", runstore.ErrNotFound
}

func (x *runIndex) evictLocked() {
	for len(x.order) > memoryRunCap {
		old := x.order[0]
		x.order = x.order[1:]
		if old != x.latest {
			delete(x.byID, old)
		}
	}
}
