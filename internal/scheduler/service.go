/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_channel/internal/events"
	"github.com/friendsincode/grimnir_channel/internal/models"
	"github.com/friendsincode/grimnir_channel/internal/planner"
	"github.com/friendsincode/grimnir_channel/internal/playout"
	"github.com/friendsincode/grimnir_channel/internal/playstate"
	"github.com/friendsincode/grimnir_channel/internal/schedule"
	"github.com/friendsincode/grimnir_channel/internal/telemetry"
)

// GlobalSchedule receives completions reported without a schedule while no
// schedule is active.
const GlobalSchedule = "global"

var (
	// ErrAlreadyRunning is returned by a second concurrent Run.
	ErrAlreadyRunning = errors.New("scheduler already running")
	// ErrNotRunning is returned by Replan while no run is in progress.
	ErrNotRunning = errors.New("scheduler not running")
)

// Cutover is the slice of the cutover timer the service needs.
type Cutover interface {
	Next(now time.Time) time.Time
	Run(ctx context.Context, fire func(context.Context, time.Time)) error
}

// Deps wires a Service.
type Deps struct {
	Channel   *models.Channel
	Durations planner.Durations
	Engine    *planner.Engine
	Tracker   *playstate.Tracker
	Queue     *playstate.QueueRecord
	Player    playout.Player
	Cutover   Cutover
	Broker    events.Broker

	RetryInterval time.Duration
	Now           func() time.Time
}

// Service plans the day up to the cutover, hands the plan to the player,
// records completions, and re-plans when a run stopped early.
type Service struct {
	channel   *models.Channel
	durations planner.Durations
	engine    *planner.Engine
	tracker   *playstate.Tracker
	queue     *playstate.QueueRecord
	player    playout.Player
	cutover   Cutover
	broker    events.Broker
	retry     time.Duration
	now       func() time.Time
	logger    zerolog.Logger

	mu         sync.RWMutex
	running    bool
	plan       *models.Plan
	nowPlaying *models.PlaylistEntry
	stopPlay   context.CancelFunc
	replan     chan struct{}
}

// New constructs the scheduler service.
func New(d Deps, logger zerolog.Logger) *Service {
	if d.RetryInterval <= 0 {
		d.RetryInterval = 30 * time.Second
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Broker == nil {
		d.Broker = events.NewBus()
	}
	if d.Channel == nil {
		d.Channel = &models.Channel{System: models.DefaultSystem()}
	}
	return &Service{
		channel:   d.Channel,
		durations: d.Durations,
		engine:    d.Engine,
		tracker:   d.Tracker,
		queue:     d.Queue,
		player:    d.Player,
		cutover:   d.Cutover,
		broker:    d.Broker,
		retry:     d.RetryInterval,
		now:       d.Now,
		logger:    logger.With().Str("component", "scheduler").Logger(),
		replan:    make(chan struct{}, 1),
	}
}

// Channel returns the loaded channel definition.
func (s *Service) Channel() *models.Channel {
	return s.channel
}

// Run plans and plays until the cutover fires, then returns nil. It returns
// ctx.Err() when cancelled first.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.stopPlay = nil
		s.mu.Unlock()
	}()

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	cutoverAt := s.cutover.Next(s.now())
	reached := make(chan time.Time, 1)
	go func() {
		_ = s.cutover.Run(runCtx, func(_ context.Context, at time.Time) {
			reached <- at
			s.broker.Publish(events.EventCutover, events.Payload{
				"at":     at,
				"action": string(s.channel.System.Action),
			})
			cancelRun()
		})
	}()

	s.logger.Info().Time("cutover", cutoverAt).Msg("scheduler run started")

	for {
		telemetry.SchedulerCyclesTotal.Inc()
		now := s.now()
		if !now.Before(cutoverAt) {
			// The timer fires momentarily.
			<-runCtx.Done()
			return s.finish(ctx, reached)
		}

		plan := s.BuildPlan(runCtx, now, cutoverAt)
		if len(plan.Entries) > 0 {
			s.play(runCtx, plan)
		}
		if runCtx.Err() != nil {
			return s.finish(ctx, reached)
		}
		if s.takeReplan() {
			continue
		}

		timer := time.NewTimer(s.nextWait(plan, cutoverAt))
		select {
		case <-runCtx.Done():
			timer.Stop()
			return s.finish(ctx, reached)
		case <-s.replan:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// nextWait is the pause before the next planning cycle. A complete plan
// waits for the cutover on the service clock, a partial one retries.
func (s *Service) nextWait(plan *models.Plan, cutoverAt time.Time) time.Duration {
	if !plan.Complete() {
		return s.retry
	}
	wait := cutoverAt.Sub(s.now())
	if wait < time.Second {
		wait = time.Second
	}
	return wait
}

func (s *Service) finish(ctx context.Context, reached <-chan time.Time) error {
	select {
	case at := <-reached:
		s.logger.Info().Time("at", at).Msg("scheduler run reached cutover")
		return nil
	default:
	}
	return ctx.Err()
}

// BuildPlan runs the planner from start to cutover, stores the result as the
// current plan, writes the queue record, and publishes the outcome.
func (s *Service) BuildPlan(ctx context.Context, start, cutover time.Time) *models.Plan {
	plan := s.engine.Build(ctx, planner.Request{
		Channel:   s.channel,
		Durations: s.durations,
		Start:     start,
		Cutover:   cutover,
		RunID:     uuid.NewString(),
	})

	s.mu.Lock()
	s.plan = plan
	s.mu.Unlock()

	if s.queue != nil {
		if err := s.queue.Write(plan); err != nil {
			telemetry.SchedulerErrorsTotal.WithLabelValues("queue_write").Inc()
			s.logger.Error().Err(err).Msg("failed to write queue record")
		}
	}

	s.broker.Publish(events.EventPlaylistBuilt, events.Payload{
		"run_id":      plan.RunID,
		"entries":     len(plan.Entries),
		"start":       plan.Start,
		"cutover":     plan.Cutover,
		"stop_reason": string(plan.StopReason),
	})
	if err := planner.Err(plan); err != nil && !errors.Is(err, context.Canceled) {
		telemetry.SchedulerErrorsTotal.WithLabelValues(string(plan.StopReason)).Inc()
		s.broker.Publish(events.EventPlanningStopped, events.Payload{
			"run_id":     plan.RunID,
			"reason":     string(plan.StopReason),
			"stopped_at": plan.StoppedAt,
			"error":      err.Error(),
		})
	}
	return plan
}

func (s *Service) play(runCtx context.Context, plan *models.Plan) {
	playCtx, stop := context.WithCancel(runCtx)
	defer stop()

	s.mu.Lock()
	s.stopPlay = stop
	s.mu.Unlock()

	markCtx := context.WithoutCancel(runCtx)
	err := s.player.Play(playCtx, plan.Entries, playout.Callbacks{
		Started: func(e models.PlaylistEntry) {
			s.mu.Lock()
			entry := e
			s.nowPlaying = &entry
			s.mu.Unlock()
			s.broker.Publish(events.EventItemStarted, events.EntryPayload(e))
		},
		Finished: func(e models.PlaylistEntry, err error) {
			s.mu.Lock()
			s.nowPlaying = nil
			s.mu.Unlock()
			if err != nil {
				return
			}
			if _, markErr := s.MarkPlayed(markCtx, e.Schedule, e.Path, e.Category); markErr != nil {
				s.logger.Error().Err(markErr).Str("path", e.Path).Msg("failed to record played item")
			}
		},
	})

	s.mu.Lock()
	s.stopPlay = nil
	s.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn().Err(err).Str("run_id", plan.RunID).Msg("playback ended with error")
	}
}

// Replan interrupts the current playback and builds a fresh plan from now.
func (s *Service) Replan() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return ErrNotRunning
	}
	select {
	case s.replan <- struct{}{}:
	default:
	}
	if s.stopPlay != nil {
		s.stopPlay()
	}
	s.logger.Info().Msg("replan requested")
	return nil
}

func (s *Service) takeReplan() bool {
	select {
	case <-s.replan:
		return true
	default:
		return false
	}
}

// MarkPlayed records a completed item. An empty schedule resolves to the
// schedule active now, or GlobalSchedule when none is.
func (s *Service) MarkPlayed(ctx context.Context, scheduleName, path string, category models.Category) (bool, error) {
	if path == "" {
		return false, fmt.Errorf("empty path")
	}
	if scheduleName == "" {
		scheduleName = GlobalSchedule
		if active, ok := schedule.ActiveAt(s.channel.Schedules, s.now()); ok {
			scheduleName = active.Name
		}
	}

	telemetry.ItemsPlayedTotal.WithLabelValues(string(category)).Inc()
	changed := false
	if s.tracker != nil {
		var err error
		changed, err = s.tracker.Mark(ctx, scheduleName, path, category)
		if err != nil {
			telemetry.SchedulerErrorsTotal.WithLabelValues("mark").Inc()
			return false, err
		}
	}

	s.broker.Publish(events.EventItemPlayed, events.Payload{
		"path":     path,
		"title":    models.Stem(path),
		"category": string(category),
		"schedule": scheduleName,
		"recorded": changed,
	})
	s.logger.Debug().Str("schedule", scheduleName).Str("path", path).Str("category", string(category)).Bool("recorded", changed).Msg("item played")
	return changed, nil
}

// Reset clears the played set of one schedule and category.
func (s *Service) Reset(ctx context.Context, scheduleName string, category models.Category) error {
	if s.tracker == nil {
		return nil
	}
	if err := s.tracker.Reset(ctx, scheduleName, category); err != nil {
		return err
	}
	s.broker.Publish(events.EventStateReset, events.Payload{"schedule": scheduleName, "category": string(category)})
	return nil
}

// ResetAll clears all play state.
func (s *Service) ResetAll(ctx context.Context) error {
	if s.tracker == nil {
		return nil
	}
	if err := s.tracker.ResetAll(ctx); err != nil {
		return err
	}
	s.broker.Publish(events.EventStateReset, events.Payload{"schedule": "*"})
	return nil
}

// Played lists played paths for a schedule and category.
func (s *Service) Played(scheduleName string, category models.Category) []string {
	if s.tracker == nil {
		return nil
	}
	return s.tracker.Played(scheduleName, category)
}

// Plan returns a copy of the current plan, or nil before the first build.
func (s *Service) Plan() *models.Plan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.plan == nil {
		return nil
	}
	cp := *s.plan
	cp.Entries = append([]models.PlaylistEntry(nil), s.plan.Entries...)
	return &cp
}

// NowPlaying returns the entry currently handed to the player.
func (s *Service) NowPlaying() (models.PlaylistEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.nowPlaying == nil {
		return models.PlaylistEntry{}, false
	}
	return *s.nowPlaying, true
}

// Running reports whether Run is in progress.
func (s *Service) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
