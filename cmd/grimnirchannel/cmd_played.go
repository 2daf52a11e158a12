/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/friendsincode/grimnir_channel/internal/models"
	"github.com/friendsincode/grimnir_channel/internal/playstate"
	"github.com/friendsincode/grimnir_channel/internal/server"
)

var playedCmd = &cobra.Command{
	Use:   "played",
	Short: "Inspect and edit play state",
	Long: `Inspect and edit the per-schedule record of played shows and ads.

The bolt backend holds an exclusive lock; stop the server before editing, or
use the admin API (/api/v1/played) while it runs.`,
}

var playedListCmd = &cobra.Command{
	Use:   "list [schedule] [category]",
	Short: "List played items",
	Args:  cobra.MaximumNArgs(2),
	RunE:  runPlayedList,
}

var playedMarkCmd = &cobra.Command{
	Use:   "mark <schedule> <category> <path>",
	Short: "Record an item as played",
	Args:  cobra.ExactArgs(3),
	RunE:  runPlayedMark,
}

var playedResetCmd = &cobra.Command{
	Use:   "reset <schedule> <category>",
	Short: "Clear the played set of one schedule and category",
	Args:  cobra.ExactArgs(2),
	RunE:  runPlayedReset,
}

func init() {
	playedCmd.AddCommand(playedListCmd, playedMarkCmd, playedResetCmd)
	rootCmd.AddCommand(playedCmd)
}

func openTracker(ctx context.Context) (*playstate.Tracker, error) {
	if err := loadConfig(); err != nil {
		return nil, err
	}
	tracker, _, err := server.OpenTracker(ctx, cfg, afero.NewOsFs(), logger)
	return tracker, err
}

func runPlayedList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	tracker, err := openTracker(ctx)
	if err != nil {
		return err
	}
	defer tracker.Close()

	state := tracker.Snapshot()
	if len(args) > 0 {
		cats := state[args[0]]
		state = playstate.State{args[0]: cats}
		if len(args) > 1 {
			category, err := models.ParseCategory(args[1])
			if err != nil {
				return err
			}
			state[args[0]] = map[models.Category][]string{category: cats[category]}
		}
	}
	writeState(os.Stdout, state)
	return nil
}

func writeState(w io.Writer, state playstate.State) {
	names := make([]string, 0, len(state))
	for name := range state {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, category := range models.Categories {
			paths, ok := state[name][category]
			if !ok {
				continue
			}
			fmt.Fprintf(w, "%s/%s (%d)\n", name, category, len(paths))
			for _, p := range paths {
				fmt.Fprintf(w, "  %s\n", p)
			}
		}
	}
}

func runPlayedMark(cmd *cobra.Command, args []string) error {
	category, err := models.ParseCategory(args[1])
	if err != nil {
		return err
	}
	ctx := context.Background()
	tracker, err := openTracker(ctx)
	if err != nil {
		return err
	}
	defer tracker.Close()

	changed, err := tracker.Mark(ctx, args[0], args[2], category)
	if err != nil {
		return err
	}
	if !changed {
		fmt.Fprintln(os.Stderr, "already recorded (bumpers are never tracked)")
	}
	return nil
}

func runPlayedReset(cmd *cobra.Command, args []string) error {
	category, err := models.ParseCategory(args[1])
	if err != nil {
		return err
	}
	ctx := context.Background()
	tracker, err := openTracker(ctx)
	if err != nil {
		return err
	}
	defer tracker.Close()
	return tracker.Reset(ctx, args[0], category)
}
