/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package cutover

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_channel/internal/models"
)

// Executor performs the process level side of a cutover.
type Executor struct {
	// ShutdownCommand is split on whitespace and run for the shutdown action.
	ShutdownCommand string

	exec func(argv0 string, argv []string, envv []string) error
	run  func(ctx context.Context, name string, args ...string) error
	self func() (string, error)
}

// NewExecutor returns an executor backed by the real process APIs.
func NewExecutor(shutdownCommand string) *Executor {
	return &Executor{
		ShutdownCommand: shutdownCommand,
		exec:            syscall.Exec,
		run: func(ctx context.Context, name string, args ...string) error {
			cmd := exec.CommandContext(ctx, name, args...)
			cmd.Stdout = os.Stdout
			cmd.Stderr = os.Stderr
			return cmd.Run()
		},
		self: os.Executable,
	}
}

// Perform restarts the current binary in place or runs the shutdown command.
// A successful restart does not return.
func (e *Executor) Perform(ctx context.Context, action models.CutoverAction, logger zerolog.Logger) error {
	switch action {
	case models.CutoverRestart:
		bin, err := e.self()
		if err != nil {
			return fmt.Errorf("resolve executable: %w", err)
		}
		logger.Info().Str("binary", bin).Msg("restarting")
		if err := e.exec(bin, os.Args, os.Environ()); err != nil {
			return fmt.Errorf("re-exec %s: %w", bin, err)
		}
		return nil
	case models.CutoverShutdown:
		fields := strings.Fields(e.ShutdownCommand)
		if len(fields) == 0 {
			return fmt.Errorf("shutdown command is empty")
		}
		logger.Info().Str("command", e.ShutdownCommand).Msg("shutting down")
		if err := e.run(ctx, fields[0], fields[1:]...); err != nil {
			return fmt.Errorf("run %q: %w", e.ShutdownCommand, err)
		}
		return nil
	default:
		return fmt.Errorf("unknown cutover action %q", action)
	}
}
