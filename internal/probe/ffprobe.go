/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package probe measures media durations and feeds the duration index.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// ErrNoDuration is returned when a file reports no usable duration.
var ErrNoDuration = errors.New("no duration reported")

// Prober measures the playing time of a single file in seconds.
type Prober interface {
	Probe(ctx context.Context, path string) (float64, error)
}

// FFprobe runs the ffprobe binary against each file.
type FFprobe struct {
	Bin     string
	Timeout time.Duration
}

// Probe implements Prober.
func (f FFprobe) Probe(ctx context.Context, path string) (float64, error) {
	bin := f.Bin
	if bin == "" {
		bin = "ffprobe"
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	return parseFormatDuration(output)
}

func parseFormatDuration(output []byte) (float64, error) {
	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(output, &probe); err != nil {
		return 0, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if probe.Format.Duration == "" {
		return 0, ErrNoDuration
	}
	secs, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", probe.Format.Duration, err)
	}
	if secs <= 0 {
		return 0, ErrNoDuration
	}
	return secs, nil
}
