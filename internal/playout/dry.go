/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_channel/internal/models"
)

// DryPlayer pretends to play. Each entry takes its duration multiplied by
// Scale; a zero Scale completes entries immediately.
type DryPlayer struct {
	Scale  float64
	logger zerolog.Logger
}

// NewDryPlayer returns a dry player.
func NewDryPlayer(scale float64, logger zerolog.Logger) *DryPlayer {
	return &DryPlayer{Scale: scale, logger: logger.With().Str("component", "player").Str("player", "dry").Logger()}
}

// Play implements Player.
func (d *DryPlayer) Play(ctx context.Context, entries []models.PlaylistEntry, cb Callbacks) error {
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		cb.started(e)
		d.logger.Info().Str("path", e.Path).Str("category", string(e.Category)).Dur("duration", e.Duration).Msg("playing")

		if wait := time.Duration(float64(e.Duration) * d.Scale); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				cb.finished(e, ctx.Err())
				return ctx.Err()
			case <-timer.C:
			}
		}
		cb.finished(e, nil)
	}
	return nil
}
