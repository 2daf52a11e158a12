/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/friendsincode/grimnir_channel/internal/catalog"
	"github.com/friendsincode/grimnir_channel/internal/config"
	"github.com/friendsincode/grimnir_channel/internal/cutover"
	"github.com/friendsincode/grimnir_channel/internal/media"
	"github.com/friendsincode/grimnir_channel/internal/models"
	"github.com/friendsincode/grimnir_channel/internal/planner"
	"github.com/friendsincode/grimnir_channel/internal/schedule"
	"github.com/friendsincode/grimnir_channel/internal/server"
)

var (
	planFrom   string
	planUntil  string
	planFormat string
	planOutput string
	planSeed   int64
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the playlist the channel would play",
	Long: `Build a playlist from now (or --from) until the next cutover (or --until)
without playing it or touching play state.

Examples:
  grimnirchannel plan
  grimnirchannel plan --from 2026-03-04T18:00:00Z --format yaml
  grimnirchannel plan --format ics -o tonight.ics --seed 7`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planFrom, "from", "", "Start instant (RFC3339, default now)")
	planCmd.Flags().StringVar(&planUntil, "until", "", "End instant (RFC3339, default next cutover)")
	planCmd.Flags().StringVarP(&planFormat, "format", "f", schedule.FormatJSON, "Output format: json, yaml or ics")
	planCmd.Flags().StringVarP(&planOutput, "output", "o", "", "Output file (default: stdout)")
	planCmd.Flags().Int64Var(&planSeed, "seed", 0, "Planner seed (overrides GRIMNIR_PLANNER_SEED)")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	fs := afero.NewOsFs()
	channel, err := config.LoadChannel(fs, cfg.ChannelFile)
	if err != nil {
		return err
	}
	index, err := catalog.Load(fs, cfg.DurationsFile)
	if err != nil {
		return err
	}

	start := time.Now().In(loc)
	if planFrom != "" {
		if start, err = time.Parse(time.RFC3339, planFrom); err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}
		start = start.In(loc)
	}

	var until time.Time
	if planUntil != "" {
		if until, err = time.Parse(time.RFC3339, planUntil); err != nil {
			return fmt.Errorf("invalid --until: %w", err)
		}
		until = until.In(loc)
	} else {
		timer, err := cutover.NewTimer(channel.System, loc, logger)
		if err != nil {
			return err
		}
		until = timer.Next(start)
	}
	if !until.After(start) {
		return fmt.Errorf("end %s is not after start %s", until.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	rng := server.NewRand(cfg)
	if planSeed != 0 {
		rng = rand.New(rand.NewSource(planSeed))
	}

	// No history: a dry run must not reset play state on pool exhaustion.
	engine := planner.New(media.NewSource(fs, cfg.MediaExtensions, logger), nil, rng, logger)
	plan := engine.Build(context.Background(), planner.Request{
		Channel:   channel,
		Durations: index,
		Start:     start,
		Cutover:   until,
		RunID:     uuid.NewString(),
	})

	var out io.Writer = os.Stdout
	if planOutput != "" {
		f, err := os.Create(planOutput)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	if err := schedule.Write(out, plan, planFormat); err != nil {
		return err
	}

	printPlanSummary(os.Stderr, plan)
	return nil
}

func printPlanSummary(w io.Writer, plan *models.Plan) {
	counts := make(map[models.Category]int, len(models.Categories))
	for _, e := range plan.Entries {
		counts[e.Category]++
	}
	fmt.Fprintf(w, "%d entries (%d shows, %d ads, %d bumpers), %s planned, stopped: %s\n",
		len(plan.Entries),
		counts[models.CategoryShows], counts[models.CategoryAds], counts[models.CategoryBumpers],
		plan.Total(), plan.StopReason)
	if err := planner.Err(plan); err != nil {
		fmt.Fprintf(w, "warning: %v at %s\n", err, plan.StoppedAt.Format(time.RFC3339))
	}
}
