/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_channel/internal/models"
	"github.com/friendsincode/grimnir_channel/internal/telemetry"
)

// DefaultCommand plays a file full screen without console output.
const DefaultCommand = "mpv --fs --really-quiet --no-terminal"

// stopGrace is how long an interrupted player gets before it is killed.
const stopGrace = 5 * time.Second

// ProcessPlayer runs an external player once per entry, passing the file
// path as the last argument.
type ProcessPlayer struct {
	argv   []string
	logger zerolog.Logger
}

// NewProcessPlayer parses command into program and arguments.
func NewProcessPlayer(command string, logger zerolog.Logger) (*ProcessPlayer, error) {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return nil, fmt.Errorf("player command is empty")
	}
	return &ProcessPlayer{
		argv:   argv,
		logger: logger.With().Str("component", "player").Str("player", argv[0]).Logger(),
	}, nil
}

// Play implements Player. A failing item is reported and playback moves on.
func (p *ProcessPlayer) Play(ctx context.Context, entries []models.PlaylistEntry, cb Callbacks) error {
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		cb.started(e)
		err := p.playOne(ctx, e)
		if err != nil && ctx.Err() == nil {
			telemetry.PlaybackErrorsTotal.WithLabelValues("process").Inc()
			p.logger.Error().Err(err).Str("path", e.Path).Msg("player exited with error")
		}
		cb.finished(e, err)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

func (p *ProcessPlayer) playOne(ctx context.Context, e models.PlaylistEntry) error {
	args := append(append([]string(nil), p.argv[1:]...), e.Path)
	cmd := exec.Command(p.argv[0], args...)
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", p.argv[0], err)
	}
	p.logger.Debug().Str("path", e.Path).Int("pid", cmd.Process.Pid).Msg("player started")

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}

	_ = cmd.Process.Signal(os.Interrupt)
	select {
	case <-time.After(stopGrace):
		_ = cmd.Process.Kill()
		<-done
	case <-done:
	}
	return ctx.Err()
}
