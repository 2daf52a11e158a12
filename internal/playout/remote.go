/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_channel/internal/events"
	"github.com/friendsincode/grimnir_channel/internal/models"
	"github.com/friendsincode/grimnir_channel/internal/telemetry"
)

// DefaultCompletionGrace is added to an entry's duration while waiting for
// the remote engine.
const DefaultCompletionGrace = 30 * time.Second

// RemotePlayer drives a playback engine in another process over the event
// broker. It publishes item.requested and waits for item.completed with the
// same path. A completion payload may carry an "error" string.
type RemotePlayer struct {
	broker events.Broker
	grace  time.Duration
	logger zerolog.Logger
}

// NewRemotePlayer wires a remote player. A non-positive grace uses the default.
func NewRemotePlayer(broker events.Broker, grace time.Duration, logger zerolog.Logger) *RemotePlayer {
	if grace <= 0 {
		grace = DefaultCompletionGrace
	}
	return &RemotePlayer{
		broker: broker,
		grace:  grace,
		logger: logger.With().Str("component", "player").Str("player", "remote").Logger(),
	}
}

// Play implements Player.
func (r *RemotePlayer) Play(ctx context.Context, entries []models.PlaylistEntry, cb Callbacks) error {
	completions := r.broker.Subscribe(events.EventItemCompleted)
	defer r.broker.Unsubscribe(events.EventItemCompleted, completions)

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		cb.started(e)
		r.broker.Publish(events.EventItemRequested, events.EntryPayload(e))

		err := r.await(ctx, completions, e)
		if err != nil && ctx.Err() == nil {
			telemetry.PlaybackErrorsTotal.WithLabelValues("remote").Inc()
			r.logger.Error().Err(err).Str("path", e.Path).Msg("remote playback failed")
		}
		cb.finished(e, err)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

func (r *RemotePlayer) await(ctx context.Context, completions events.Subscriber, e models.PlaylistEntry) error {
	timer := time.NewTimer(e.Duration + r.grace)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return ErrCompletionTimeout
		case p, ok := <-completions:
			if !ok {
				return errors.New("completion subscription closed")
			}
			if path, _ := p["path"].(string); path != e.Path {
				continue
			}
			if msg, _ := p["error"].(string); msg != "" {
				return errors.New(msg)
			}
			return nil
		}
	}
}
