/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package probe

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/friendsincode/grimnir_channel/internal/catalog"
	"github.com/friendsincode/grimnir_channel/internal/media"
)

type fakeProber struct {
	mu        sync.Mutex
	durations map[string]float64
	calls     []string
}

func (f *fakeProber) Probe(_ context.Context, path string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, path)
	d, ok := f.durations[path]
	if !ok {
		return 0, errors.New("unreadable container")
	}
	return d, nil
}

type countingProgress struct {
	total, done int
}

func (c *countingProgress) Start(total int)    { c.total = total }
func (c *countingProgress) Done(string, error) { c.done++ }

func fixture(t *testing.T) (*media.Source, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, p := range []string{"/media/shows/a.mkv", "/media/shows/b.mp4", "/media/ads/x.avi", "/media/ads/notes.txt"} {
		if err := afero.WriteFile(fs, p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return media.NewSource(fs, nil, zerolog.Nop()), fs
}

func TestScanRoundsUpAndRecordsFailures(t *testing.T) {
	src, _ := fixture(t)
	prober := &fakeProber{durations: map[string]float64{
		"/media/shows/a.mkv": 1799.2,
		"/media/ads/x.avi":   30,
	}}
	idx := catalog.NewIndex()
	errs := catalog.LoadErrors(afero.NewMemMapFs(), "/none.json")
	progress := &countingProgress{}

	s := NewScanner(src, prober, idx, errs, zerolog.Nop())
	res, err := s.Scan(context.Background(), []string{"/media/shows", "/media/ads", "/media/shows"}, Options{Workers: 3, Progress: progress})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	if res.Found != 3 || res.Probed != 2 || res.Failed != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got, _ := idx.Seconds("/media/shows/a.mkv"); got != 1800 {
		t.Fatalf("expected ceil to 1800, got %d", got)
	}
	if _, ok := errs.Reason("/media/shows/b.mp4"); !ok {
		t.Fatal("expected failure recorded for b.mp4")
	}
	if progress.total != 3 || progress.done != 3 {
		t.Fatalf("unexpected progress %+v", progress)
	}
}

func TestScanSkipsKnownUnlessForced(t *testing.T) {
	src, _ := fixture(t)
	prober := &fakeProber{durations: map[string]float64{
		"/media/shows/a.mkv": 60,
		"/media/shows/b.mp4": 61,
		"/media/ads/x.avi":   15,
	}}
	idx := catalog.NewIndex()
	idx.Add("/media/shows/a.mkv", 60)
	errs := catalog.LoadErrors(afero.NewMemMapFs(), "/none.json")
	errs.Record("/media/shows/b.mp4", "stale failure")

	s := NewScanner(src, prober, idx, errs, zerolog.Nop())
	res, err := s.Scan(context.Background(), []string{"/media"}, Options{})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if res.Skipped != 1 || res.Probed != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if _, ok := errs.Reason("/media/shows/b.mp4"); ok {
		t.Fatal("expected success to clear the earlier failure")
	}

	prober.calls = nil
	res, err = s.Scan(context.Background(), []string{"/media"}, Options{Force: true})
	if err != nil {
		t.Fatalf("forced scan: %v", err)
	}
	if res.Skipped != 0 || len(prober.calls) != 3 {
		t.Fatalf("expected every file re-probed, got %+v (%d calls)", res, len(prober.calls))
	}
}

func TestParseFormatDuration(t *testing.T) {
	cases := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{`{"format":{"duration":"42.500000"}}`, 42.5, false},
		{`{"format":{}}`, 0, true},
		{`{"format":{"duration":"0.000"}}`, 0, true},
		{`{"format":{"duration":"N/A"}}`, 0, true},
		{`garbage`, 0, true},
	}
	for _, tc := range cases {
		got, err := parseFormatDuration([]byte(tc.in))
		if (err != nil) != tc.wantErr {
			t.Errorf("%s: err=%v wantErr=%v", tc.in, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: got %v want %v", tc.in, got, tc.want)
		}
	}
}
