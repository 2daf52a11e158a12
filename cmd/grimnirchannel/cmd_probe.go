/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/friendsincode/grimnir_channel/internal/catalog"
	"github.com/friendsincode/grimnir_channel/internal/config"
	"github.com/friendsincode/grimnir_channel/internal/media"
	"github.com/friendsincode/grimnir_channel/internal/models"
	"github.com/friendsincode/grimnir_channel/internal/probe"
)

var (
	probeForce   bool
	probeWorkers int
	probeQuiet   bool
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Build the duration index for every media directory of the channel",
	Long: `Walk every show, ad and bumper directory of the channel file, run ffprobe on
each video file, and record whole-second durations in the duration index.
Files already indexed are skipped unless --force is given. Files ffprobe
cannot read are listed in the duration error log.

Examples:
  grimnirchannel probe
  grimnirchannel probe --force --workers 8`,
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().BoolVar(&probeForce, "force", false, "Re-probe files already in the index")
	probeCmd.Flags().IntVarP(&probeWorkers, "workers", "w", 0, "Parallel ffprobe workers (default GRIMNIR_PROBE_WORKERS)")
	probeCmd.Flags().BoolVarP(&probeQuiet, "quiet", "q", false, "Disable the progress bar")
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fs := afero.NewOsFs()
	channel, err := config.LoadChannel(fs, cfg.ChannelFile)
	if err != nil {
		return err
	}
	index, err := catalog.Load(fs, cfg.DurationsFile)
	if err != nil {
		return err
	}
	errs := catalog.LoadErrors(fs, cfg.DurationErrorsFile)

	workers := probeWorkers
	if workers <= 0 {
		workers = cfg.ProbeWorkers
	}

	var progress *barProgress
	opts := probe.Options{Workers: workers, Force: probeForce}
	if !probeQuiet {
		progress = newBarProgress(ctx)
		opts.Progress = progress
	}

	scanner := probe.NewScanner(
		media.NewSource(fs, cfg.MediaExtensions, logger),
		probe.FFprobe{Bin: cfg.FFprobeBin},
		index, errs, logger,
	)
	result, scanErr := scanner.Scan(ctx, channelDirs(channel), opts)
	if progress != nil {
		progress.Wait()
	}

	// Keep what was probed even when the scan was interrupted.
	if err := index.Save(fs, cfg.DurationsFile); err != nil {
		return err
	}
	if err := errs.Save(fs, cfg.DurationErrorsFile); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Probe complete: %d found, %d probed, %d skipped, %d failed, %.1fs\n",
		result.Found, result.Probed, result.Skipped, result.Failed, result.Elapsed.Seconds())
	if result.Failed > 0 {
		fmt.Fprintf(os.Stderr, "See %s for files ffprobe could not read\n", cfg.DurationErrorsFile)
	}
	return scanErr
}

// channelDirs lists every source directory of every schedule once.
func channelDirs(ch *models.Channel) []string {
	var all models.MediaGroups
	for _, s := range ch.Schedules {
		all = all.Merge(s.Media)
	}
	return all.AllDirs()
}

// barProgress renders scan progress with mpb.
type barProgress struct {
	p   *mpb.Progress
	bar *mpb.Bar
}

func newBarProgress(ctx context.Context) *barProgress {
	return &barProgress{p: mpb.NewWithContext(ctx, mpb.WithWidth(64), mpb.WithOutput(os.Stderr))}
}

func (b *barProgress) Start(total int) {
	if total <= 0 {
		return
	}
	barStyle := mpb.BarStyle().Lbound("╢").Filler("█").Tip("█").Padding("░").Rbound("╟")
	name := "Probing"
	b.bar = b.p.New(int64(total),
		barStyle,
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DindentRight}),
			decor.CountersNoUnit("%d / %d", decor.WC{W: 12}),
		),
		mpb.AppendDecorators(
			decor.OnComplete(
				decor.AverageETA(decor.ET_STYLE_GO, decor.WC{W: 4}), "Complete",
			),
		),
	)
}

func (b *barProgress) Done(path string, err error) {
	if b.bar != nil {
		b.bar.Increment()
	}
}

// Wait flushes the bar; an unfinished bar is aborted so Wait returns.
func (b *barProgress) Wait() {
	if b.bar != nil && !b.bar.Completed() {
		b.bar.Abort(false)
	}
	b.p.Wait()
}
