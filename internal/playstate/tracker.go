/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playstate records which media each schedule has already played.
package playstate

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_channel/internal/models"
)

// State is the persisted form: schedule name to category to played paths.
type State map[string]map[models.Category][]string

// Store persists the whole play-state document.
type Store interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
	Close() error
}

// Tracker is the durable per-schedule record of played items.
// Every mutation rewrites the store while holding the tracker lock; a failed
// write is rolled back so memory never runs ahead of the store.
type Tracker struct {
	mu     sync.Mutex
	store  Store
	played map[string]map[models.Category]map[string]struct{}
	logger zerolog.Logger
}

// Open loads the current state from store.
func Open(ctx context.Context, store Store, logger zerolog.Logger) (*Tracker, error) {
	state, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load play state: %w", err)
	}
	t := &Tracker{
		store:  store,
		played: make(map[string]map[models.Category]map[string]struct{}),
		logger: logger.With().Str("component", "playstate").Logger(),
	}
	for schedule, cats := range state {
		for cat, paths := range cats {
			if !cat.Tracked() {
				continue
			}
			set := t.setLocked(schedule, cat)
			for _, p := range paths {
				set[p] = struct{}{}
			}
		}
	}
	return t, nil
}

// Mark records path as played. Bumpers are ignored and repeated marks are
// no-ops; changed reports whether the store was rewritten.
func (t *Tracker) Mark(ctx context.Context, schedule, path string, category models.Category) (changed bool, err error) {
	if !category.Tracked() {
		return false, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	set := t.setLocked(schedule, category)
	if _, ok := set[path]; ok {
		return false, nil
	}
	set[path] = struct{}{}
	if err := t.store.Save(ctx, t.snapshotLocked()); err != nil {
		delete(set, path)
		t.pruneLocked(schedule, category)
		return false, fmt.Errorf("persist play state: %w", err)
	}
	t.logger.Debug().Str("schedule", schedule).Str("category", string(category)).Str("path", path).Msg("marked played")
	return true, nil
}

// Reset clears the played set for (schedule, category).
func (t *Tracker) Reset(ctx context.Context, schedule string, category models.Category) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	cats, ok := t.played[schedule]
	if !ok || len(cats[category]) == 0 {
		return nil
	}
	prev := cats[category]
	delete(cats, category)
	if len(cats) == 0 {
		delete(t.played, schedule)
	}
	if err := t.store.Save(ctx, t.snapshotLocked()); err != nil {
		cats[category] = prev
		t.played[schedule] = cats
		return fmt.Errorf("persist play state: %w", err)
	}
	t.logger.Info().Str("schedule", schedule).Str("category", string(category)).Msg("play state reset")
	return nil
}

// ResetAll forgets every played item.
func (t *Tracker) ResetAll(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.store.Save(ctx, State{}); err != nil {
		return fmt.Errorf("persist play state: %w", err)
	}
	t.played = make(map[string]map[models.Category]map[string]struct{})
	t.logger.Info().Msg("play state cleared")
	return nil
}

// IsPlayed reports whether path is recorded for (schedule, category).
func (t *Tracker) IsPlayed(schedule string, category models.Category, path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.played[schedule][category][path]
	return ok
}

// IsExhausted reports whether every path in pool has been played.
// An empty pool is never exhausted.
func (t *Tracker) IsExhausted(schedule string, category models.Category, pool []string) bool {
	if len(pool) == 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	set := t.played[schedule][category]
	for _, p := range pool {
		if _, ok := set[p]; !ok {
			return false
		}
	}
	return true
}

// Played returns the sorted played paths for (schedule, category).
func (t *Tracker) Played(schedule string, category models.Category) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return sortedKeys(t.played[schedule][category])
}

// Snapshot copies the full state.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Close releases the underlying store.
func (t *Tracker) Close() error {
	return t.store.Close()
}

func (t *Tracker) setLocked(schedule string, category models.Category) map[string]struct{} {
	cats, ok := t.played[schedule]
	if !ok {
		cats = make(map[models.Category]map[string]struct{})
		t.played[schedule] = cats
	}
	set, ok := cats[category]
	if !ok {
		set = make(map[string]struct{})
		cats[category] = set
	}
	return set
}

// pruneLocked drops empty sets left behind by a rolled back mark.
func (t *Tracker) pruneLocked(schedule string, category models.Category) {
	cats := t.played[schedule]
	if len(cats[category]) == 0 {
		delete(cats, category)
	}
	if len(cats) == 0 {
		delete(t.played, schedule)
	}
}

func (t *Tracker) snapshotLocked() State {
	out := make(State, len(t.played))
	for schedule, cats := range t.played {
		c := make(map[models.Category][]string, len(cats))
		for cat, set := range cats {
			if len(set) == 0 {
				continue
			}
			c[cat] = sortedKeys(set)
		}
		if len(c) > 0 {
			out[schedule] = c
		}
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
