/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package pool keeps the per-run working sets of selectable media.
package pool

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_channel/internal/models"
	"github.com/friendsincode/grimnir_channel/internal/telemetry"
)

// Lister expands source directories into media paths.
type Lister interface {
	ListAll(dirs []string) []string
}

// History is the slice of the play-state tracker the manager needs.
type History interface {
	Reset(ctx context.Context, schedule string, category models.Category) error
	IsExhausted(schedule string, category models.Category, pool []string) bool
}

type key struct {
	schedule string
	category models.Category
}

// Manager owns the pools of a single planning run. It is not safe for
// concurrent use.
type Manager struct {
	lister  Lister
	history History
	logger  zerolog.Logger

	pools   map[key][]string
	refills map[key]int
}

// NewManager creates an empty set of pools. history may be nil.
func NewManager(lister Lister, history History, logger zerolog.Logger) *Manager {
	return &Manager{
		lister:  lister,
		history: history,
		logger:  logger.With().Str("component", "pool").Logger(),
		pools:   make(map[key][]string),
		refills: make(map[key]int),
	}
}

// Pool returns the remaining candidates for (schedule, category), listing
// the source directories on first reference. The slice must not be mutated.
func (m *Manager) Pool(s *models.Schedule, c models.Category) []string {
	k := key{s.Name, c}
	files, ok := m.pools[k]
	if !ok {
		files = m.lister.ListAll(s.Media.Dirs(c))
		m.pools[k] = files
		m.logger.Debug().Str("schedule", s.Name).Str("category", string(c)).Int("files", len(files)).Msg("pool loaded")
	}
	return files
}

// Replenish applies the exhaustion rule to every category of s. An empty
// shows or ads pool resets its play history before the disk is rescanned;
// an empty bumpers pool is rescanned only. It returns the categories that
// were refilled.
func (m *Manager) Replenish(ctx context.Context, s *models.Schedule) []models.Category {
	var refilled []models.Category
	for _, c := range models.Categories {
		if len(m.Pool(s, c)) > 0 {
			continue
		}
		files := m.lister.ListAll(s.Media.Dirs(c))
		if c.Tracked() && m.history != nil {
			exhausted := m.history.IsExhausted(s.Name, c, files)
			if err := m.history.Reset(ctx, s.Name, c); err != nil {
				m.logger.Error().Err(err).Str("schedule", s.Name).Str("category", string(c)).Msg("play state reset failed")
			} else {
				m.logger.Debug().Str("schedule", s.Name).Str("category", string(c)).Bool("history_exhausted", exhausted).Msg("play state reset on pool exhaustion")
			}
		}
		k := key{s.Name, c}
		m.pools[k] = files
		m.refills[k]++
		if len(files) > 0 {
			telemetry.PoolRefillsTotal.WithLabelValues(string(c)).Inc()
			refilled = append(refilled, c)
		}
	}
	return refilled
}

// Take removes path from the pool so the run cannot pick it again.
func (m *Manager) Take(s *models.Schedule, c models.Category, path string) bool {
	k := key{s.Name, c}
	files := m.pools[k]
	for i, f := range files {
		if f == path {
			out := make([]string, 0, len(files)-1)
			out = append(out, files[:i]...)
			m.pools[k] = append(out, files[i+1:]...)
			return true
		}
	}
	return false
}

// Refills reports how many times (schedule, category) was refilled.
func (m *Manager) Refills(schedule string, c models.Category) int {
	return m.refills[key{schedule, c}]
}
