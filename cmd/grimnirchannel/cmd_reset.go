/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	resetForce      bool
	resetClearQueue bool
	resetClearErrs  bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget every played show and ad",
	Long: `Reset the channel's play state.

This command will:
- Clear the played record of every schedule and category
- Optionally delete the queued record of the last run
- Optionally delete the duration error log so failed files are retried

WARNING: This action is irreversible!

Examples:
  # Interactive reset (will prompt for confirmation)
  grimnirchannel reset

  # Force reset without confirmation
  grimnirchannel reset --force --clear-queue
`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVarP(&resetForce, "force", "f", false, "Skip confirmation prompt")
	resetCmd.Flags().BoolVar(&resetClearQueue, "clear-queue", false, "Also delete the queued record")
	resetCmd.Flags().BoolVar(&resetClearErrs, "clear-errors", false, "Also delete the duration error log")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	if !resetForce {
		ok, err := confirm(os.Stdin, os.Stdout)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Reset cancelled.")
			return nil
		}
	}

	logger.Info().
		Str("backend", string(cfg.StateBackend)).
		Bool("clear_queue", resetClearQueue).
		Bool("clear_errors", resetClearErrs).
		Msg("Starting play state reset")

	ctx := context.Background()
	tracker, err := openTracker(ctx)
	if err != nil {
		return err
	}
	defer tracker.Close()

	if err := tracker.ResetAll(ctx); err != nil {
		return fmt.Errorf("reset play state: %w", err)
	}

	if resetClearQueue {
		removeIfExists(cfg.QueueFile)
	}
	if resetClearErrs {
		removeIfExists(cfg.DurationErrorsFile)
	}

	logger.Info().Msg("Reset complete")
	return nil
}

// confirm prints the warning and requires the literal answer "yes".
func confirm(in io.Reader, out io.Writer) (bool, error) {
	fmt.Fprintln(out, "This will forget every played show and ad of every schedule.")
	fmt.Fprintln(out, "Playback will treat the whole library as unplayed. This action CANNOT be undone!")
	fmt.Fprint(out, "Type 'yes' to confirm reset: ")

	response, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && response != "") {
		return false, fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(strings.ToLower(response)) == "yes", nil
}

func removeIfExists(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn().Err(err).Str("path", path).Msg("failed to delete file")
		return
	}
	logger.Info().Str("path", path).Msg("deleted")
}
