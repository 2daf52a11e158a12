/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playout hands planned entries to a playback engine.
package playout

import (
	"context"
	"errors"

	"github.com/friendsincode/grimnir_channel/internal/models"
)

// ErrCompletionTimeout is reported when a remote engine never confirms an item.
var ErrCompletionTimeout = errors.New("playback completion not reported in time")

// Callbacks observe playback. Finished receives a nil error only when the
// item played to its end.
type Callbacks struct {
	Started  func(models.PlaylistEntry)
	Finished func(models.PlaylistEntry, error)
}

func (c Callbacks) started(e models.PlaylistEntry) {
	if c.Started != nil {
		c.Started(e)
	}
}

func (c Callbacks) finished(e models.PlaylistEntry, err error) {
	if c.Finished != nil {
		c.Finished(e, err)
	}
}

// Player plays entries in order. Play returns once every entry has been
// attempted, or with ctx.Err() when cancelled; the interrupted item is
// reported as finished with that error.
type Player interface {
	Play(ctx context.Context, entries []models.PlaylistEntry, cb Callbacks) error
}
