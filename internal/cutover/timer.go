/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cutover schedules the daily restart or shutdown of the channel.
package cutover

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_channel/internal/models"
)

// maxSleep bounds a single wait so wall-clock jumps are noticed.
const maxSleep = 60 * time.Second

// Timer computes and waits for the daily cutover instant.
type Timer struct {
	system models.System
	expr   string
	loc    *time.Location
	logger zerolog.Logger

	now func() time.Time
}

// NewTimer builds a timer for sys in loc. A nil loc uses local time.
func NewTimer(sys models.System, loc *time.Location, logger zerolog.Logger) (*Timer, error) {
	if loc == nil {
		loc = time.Local
	}
	expr := fmt.Sprintf("%d %d * * *", sys.Minute, sys.Hour)
	if !gronx.IsValid(expr) {
		return nil, fmt.Errorf("invalid cutover time %02d:%02d", sys.Hour, sys.Minute)
	}
	return &Timer{
		system: sys,
		expr:   expr,
		loc:    loc,
		logger: logger.With().Str("component", "cutover").Logger(),
		now:    time.Now,
	}, nil
}

// System returns the configured cutover settings.
func (t *Timer) System() models.System {
	return t.system
}

// Next returns the first HH:MM strictly after now. A cutover time equal to
// now rolls over to the following day.
func (t *Timer) Next(now time.Time) time.Time {
	next, err := gronx.NextTickAfter(t.expr, now.In(t.loc), false)
	if err != nil {
		// The expression is validated at construction; fall back to plain
		// calendar arithmetic rather than fail.
		local := now.In(t.loc)
		next = time.Date(local.Year(), local.Month(), local.Day(), t.system.Hour, t.system.Minute, 0, 0, t.loc)
		if !next.After(local) {
			next = next.AddDate(0, 0, 1)
		}
	}
	return next
}

// Run blocks until the next cutover and then calls fire with the instant.
// It returns ctx.Err() when cancelled first.
func (t *Timer) Run(ctx context.Context, fire func(context.Context, time.Time)) error {
	at := t.Next(t.now())
	t.logger.Info().Time("at", at).Str("action", string(t.system.Action)).Msg("cutover scheduled")

	for {
		wait := at.Sub(t.now())
		if wait <= 0 {
			break
		}
		if wait > maxSleep {
			wait = maxSleep
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	t.logger.Info().Time("at", at).Str("action", string(t.system.Action)).Msg("cutover reached")
	fire(ctx, at)
	return nil
}
