/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package planner fills the time until the next cutover with shows, ad
// breaks and bumpers drawn from the active schedule.
package planner

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_channel/internal/models"
	"github.com/friendsincode/grimnir_channel/internal/pool"
	"github.com/friendsincode/grimnir_channel/internal/schedule"
	"github.com/friendsincode/grimnir_channel/internal/telemetry"
)

var (
	// ErrNoActiveSchedule means planning reached an instant no schedule covers.
	ErrNoActiveSchedule = errors.New("no schedule active")
	// ErrExhaustedCandidates means nothing fit, not even a forced bumper.
	ErrExhaustedCandidates = errors.New("no playable candidate, bumper pool empty or unusable")
)

// adBreakLength is the maximum number of ads following a show.
const adBreakLength = 2

// Durations resolves a media path to whole seconds.
type Durations interface {
	Seconds(path string) (int, bool)
}

// Request describes one planning run.
type Request struct {
	Channel   *models.Channel
	Durations Durations
	Start     time.Time
	Cutover   time.Time
	RunID     string
}

// Engine builds playlists. Runs are serialized because the random source is
// shared between them.
type Engine struct {
	lister  pool.Lister
	history pool.History
	logger  zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates an engine. A nil rng is seeded from the clock; history may be
// nil when play state is not tracked.
func New(lister pool.Lister, history pool.History, rng *rand.Rand, logger zerolog.Logger) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{
		lister:  lister,
		history: history,
		rng:     rng,
		logger:  logger.With().Str("component", "planner").Logger(),
	}
}

// Err maps a plan's stop reason to a sentinel error. Plans that reached the
// cutover return nil.
func Err(plan *models.Plan) error {
	if plan == nil {
		return nil
	}
	switch plan.StopReason {
	case models.StopNoActiveSchedule:
		return ErrNoActiveSchedule
	case models.StopExhausted:
		return ErrExhaustedCandidates
	case models.StopCancelled:
		return context.Canceled
	}
	return nil
}

// Build plans from req.Start until req.Cutover. It always returns the entries
// accumulated so far; use Err on the result to inspect an early stop.
func (e *Engine) Build(ctx context.Context, req Request) *models.Plan {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, span := telemetry.StartSpan(ctx, "planner", "build")
	defer span.End()
	started := time.Now()

	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	if req.Channel == nil {
		req.Channel = &models.Channel{}
	}

	r := &run{
		engine:     e,
		req:        req,
		pools:      pool.NewManager(e.lister, e.history, e.logger),
		current:    req.Start,
		secsLeft:   int(req.Cutover.Sub(req.Start) / time.Second),
		lastPicked: make(map[pickKey]string),
		unknown:    make(map[string]struct{}),
		logger:     e.logger.With().Str("run_id", req.RunID).Logger(),
	}
	r.plan = &models.Plan{RunID: req.RunID, Start: req.Start, Cutover: req.Cutover}

	reason := r.loop(ctx)
	r.plan.StopReason = reason
	r.plan.StoppedAt = r.current

	unfilled := r.secsLeft
	if unfilled < 0 {
		unfilled = 0
	}
	telemetry.PlanningRunsTotal.WithLabelValues(string(reason)).Inc()
	telemetry.PlanningDuration.Observe(time.Since(started).Seconds())
	telemetry.PlanUnfilledSeconds.Set(float64(unfilled))
	telemetry.AddSpanAttributes(span, map[string]any{
		"run_id":      req.RunID,
		"entries":     len(r.plan.Entries),
		"stop_reason": string(reason),
		"unfilled_s":  unfilled,
	})
	telemetry.RecordError(span, Err(r.plan))

	ev := r.logger.Info()
	switch reason {
	case models.StopNoActiveSchedule:
		ev = r.logger.Warn()
	case models.StopExhausted:
		ev = r.logger.Error()
	}
	ev.Int("entries", len(r.plan.Entries)).
		Str("stop_reason", string(reason)).
		Time("stopped_at", r.current).
		Int("unfilled_seconds", unfilled).
		Msg("playlist built")

	return r.plan
}

type pickMode int

const (
	// pickFit accepts only candidates that fit the remaining budget.
	pickFit pickMode = iota
	// pickForced accepts any candidate with a positive duration.
	pickForced
)

type fallbackStep struct {
	category models.Category
	mode     pickMode
}

// fallbackChain is tried in order until one step yields a candidate.
var fallbackChain = []fallbackStep{
	{models.CategoryShows, pickFit},
	{models.CategoryAds, pickFit},
	{models.CategoryBumpers, pickForced},
}

type pickKey struct {
	schedule string
	category models.Category
}

type run struct {
	engine     *Engine
	req        Request
	pools      *pool.Manager
	current    time.Time
	secsLeft   int
	lastPicked map[pickKey]string
	unknown    map[string]struct{}
	plan       *models.Plan
	logger     zerolog.Logger
}

func (r *run) loop(ctx context.Context) models.StopReason {
	for r.secsLeft > 0 {
		if ctx.Err() != nil {
			return models.StopCancelled
		}

		active, ok := schedule.ActiveAt(r.req.Channel.Schedules, r.current)
		if !ok {
			return models.StopNoActiveSchedule
		}
		r.pools.Replenish(ctx, active)

		var (
			path     string
			secs     int
			category models.Category
			picked   bool
		)
		for _, step := range fallbackChain {
			if path, secs, picked = r.pick(active, step.category, step.mode, r.secsLeft); picked {
				category = step.category
				break
			}
		}
		if !picked {
			return models.StopExhausted
		}

		if category == models.CategoryShows && r.engine.rng.Float64() < active.BumperChance {
			// Fit entries never pass the cutover, so the bumper only gets
			// the seconds the show leaves over.
			if bumper, bsecs, ok := r.pick(active, models.CategoryBumpers, pickFit, r.secsLeft-secs); ok {
				r.appendEntry(active, bumper, models.CategoryBumpers, bsecs)
			}
		}

		r.appendEntry(active, path, category, secs)

		if category == models.CategoryShows {
			for i := 0; i < adBreakLength; i++ {
				ad, asecs, ok := r.pick(active, models.CategoryAds, pickFit, r.secsLeft)
				if !ok {
					break
				}
				r.appendEntry(active, ad, models.CategoryAds, asecs)
			}
		}
	}
	return models.StopCutover
}

// pick shuffles the pool and accepts the first usable candidate. The last
// pick of the category is skipped unless it is the only one left.
func (r *run) pick(s *models.Schedule, c models.Category, mode pickMode, budget int) (string, int, bool) {
	candidates := append([]string(nil), r.pools.Pool(s, c)...)
	if len(candidates) == 0 {
		return "", 0, false
	}
	r.engine.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	k := pickKey{s.Name, c}
	last := r.lastPicked[k]
	for _, p := range candidates {
		if p == last && len(candidates) > 1 {
			continue
		}
		secs, ok := r.req.Durations.Seconds(p)
		if !ok || secs <= 0 {
			r.noteUnusable(p, secs, ok)
			continue
		}
		if mode == pickForced || secs <= budget {
			r.pools.Take(s, c, p)
			r.lastPicked[k] = p
			return p, secs, true
		}
	}
	return "", 0, false
}

func (r *run) appendEntry(s *models.Schedule, path string, c models.Category, secs int) {
	r.plan.Entries = append(r.plan.Entries, models.PlaylistEntry{
		Path:     path,
		Category: c,
		Schedule: s.Name,
		StartsAt: r.current,
		Duration: time.Duration(secs) * time.Second,
	})
	telemetry.PlannedEntriesTotal.WithLabelValues(string(c)).Inc()
	r.logger.Debug().
		Str("schedule", s.Name).
		Str("category", string(c)).
		Str("path", path).
		Int("seconds", secs).
		Time("starts_at", r.current).
		Msg("entry planned")

	r.current = r.current.Add(time.Duration(secs) * time.Second)
	r.secsLeft -= secs
}

func (r *run) noteUnusable(path string, secs int, known bool) {
	reason := "unknown_duration"
	if known {
		reason = "non_positive_duration"
	}
	telemetry.PlannerSkippedTotal.WithLabelValues(reason).Inc()
	if _, seen := r.unknown[path]; seen {
		return
	}
	r.unknown[path] = struct{}{}
	r.logger.Debug().Str("path", path).Int("seconds", secs).Str("reason", reason).Msg("candidate skipped")
}
