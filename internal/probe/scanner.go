/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package probe

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_channel/internal/catalog"
)

// Lister enumerates media files below a set of directories.
type Lister interface {
	ListAll(dirs []string) []string
}

// Progress observes a scan. Start is called once with the number of files
// that will be probed, Done once per probed file.
type Progress interface {
	Start(total int)
	Done(path string, err error)
}

// Options tune a scan.
type Options struct {
	Workers  int
	Force    bool // re-probe files already in the index
	Progress Progress
}

// Result summarizes a scan.
type Result struct {
	Found   int
	Probed  int
	Skipped int
	Failed  int
	Elapsed time.Duration
}

type job struct {
	path string
}

type outcome struct {
	path    string
	seconds int
	err     error
}

// Scanner probes every media file of a channel into a duration index.
type Scanner struct {
	lister Lister
	prober Prober
	index  *catalog.Index
	errs   *catalog.ErrorLog
	logger zerolog.Logger
}

// NewScanner wires a scanner.
func NewScanner(lister Lister, prober Prober, index *catalog.Index, errs *catalog.ErrorLog, logger zerolog.Logger) *Scanner {
	return &Scanner{
		lister: lister,
		prober: prober,
		index:  index,
		errs:   errs,
		logger: logger.With().Str("component", "probe").Logger(),
	}
}

// Scan lists dirs, probes each file on a worker pool, and records durations
// rounded up to whole seconds. Failures go to the error log; a later success
// clears them.
func (s *Scanner) Scan(ctx context.Context, dirs []string, opts Options) (Result, error) {
	start := time.Now()
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	files := s.lister.ListAll(dirs)
	res := Result{Found: len(files)}

	var todo []string
	for _, p := range files {
		if !opts.Force {
			if _, known := s.index.Seconds(p); known {
				res.Skipped++
				continue
			}
		}
		todo = append(todo, p)
	}
	if opts.Progress != nil {
		opts.Progress.Start(len(todo))
	}

	jobs := make(chan job, workers*2)
	results := make(chan outcome, workers*2)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results <- s.probeOne(ctx, j.path)
			}
		}()
	}

	var collect sync.WaitGroup
	collect.Add(1)
	go func() {
		defer collect.Done()
		for r := range results {
			if r.err != nil {
				res.Failed++
				s.errs.Record(r.path, r.err.Error())
				s.logger.Warn().Err(r.err).Str("path", r.path).Msg("duration probe failed")
			} else {
				res.Probed++
				s.index.Add(r.path, r.seconds)
				s.errs.Clear(r.path)
				s.logger.Debug().Str("path", r.path).Int("seconds", r.seconds).Msg("duration probed")
			}
			if opts.Progress != nil {
				opts.Progress.Done(r.path, r.err)
			}
		}
	}()

enqueue:
	for _, p := range todo {
		select {
		case <-ctx.Done():
			break enqueue
		case jobs <- job{path: p}:
		}
	}
	close(jobs)
	wg.Wait()
	close(results)
	collect.Wait()

	res.Elapsed = time.Since(start)
	s.logger.Info().
		Int("found", res.Found).
		Int("probed", res.Probed).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Dur("elapsed", res.Elapsed).
		Msg("duration scan complete")

	return res, ctx.Err()
}

func (s *Scanner) probeOne(ctx context.Context, path string) outcome {
	secs, err := s.prober.Probe(ctx, path)
	if err != nil {
		return outcome{path: path, err: err}
	}
	return outcome{path: path, seconds: int(math.Ceil(secs))}
}
