/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_channel/internal/events"
	"github.com/friendsincode/grimnir_channel/internal/models"
)

type recorder struct {
	mu       sync.Mutex
	started  []string
	finished map[string]error
}

func newRecorder() *recorder {
	return &recorder{finished: make(map[string]error)}
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		Started: func(e models.PlaylistEntry) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.started = append(r.started, e.Path)
		},
		Finished: func(e models.PlaylistEntry, err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.finished[e.Path] = err
		},
	}
}

func entries(paths ...string) []models.PlaylistEntry {
	out := make([]models.PlaylistEntry, 0, len(paths))
	for _, p := range paths {
		out = append(out, models.PlaylistEntry{Path: p, Category: models.CategoryShows, Schedule: "main", Duration: time.Second})
	}
	return out
}

func TestDryPlayerCompletesInOrder(t *testing.T) {
	rec := newRecorder()
	p := NewDryPlayer(0, zerolog.Nop())
	if err := p.Play(context.Background(), entries("/a.mp4", "/b.mp4"), rec.callbacks()); err != nil {
		t.Fatalf("play: %v", err)
	}
	if len(rec.started) != 2 || rec.started[0] != "/a.mp4" {
		t.Fatalf("unexpected start order: %v", rec.started)
	}
	for path, err := range rec.finished {
		if err != nil {
			t.Fatalf("%s finished with %v", path, err)
		}
	}
}

func TestDryPlayerCancelledMidItem(t *testing.T) {
	rec := newRecorder()
	p := NewDryPlayer(10, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Play(ctx, entries("/a.mp4", "/b.mp4"), rec.callbacks())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if !errors.Is(rec.finished["/a.mp4"], context.DeadlineExceeded) {
		t.Fatalf("expected interrupted item reported, got %v", rec.finished)
	}
	if _, ok := rec.finished["/b.mp4"]; ok {
		t.Fatal("second item must not be attempted")
	}
}

func TestProcessPlayerReportsExitStatus(t *testing.T) {
	ok, err := NewProcessPlayer("true", zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	rec := newRecorder()
	if err := ok.Play(context.Background(), entries("/a.mp4"), rec.callbacks()); err != nil {
		t.Fatalf("play: %v", err)
	}
	if rec.finished["/a.mp4"] != nil {
		t.Fatalf("expected success, got %v", rec.finished["/a.mp4"])
	}

	failing, _ := NewProcessPlayer("false", zerolog.Nop())
	rec = newRecorder()
	if err := failing.Play(context.Background(), entries("/a.mp4", "/b.mp4"), rec.callbacks()); err != nil {
		t.Fatalf("play: %v", err)
	}
	if rec.finished["/a.mp4"] == nil || rec.finished["/b.mp4"] == nil {
		t.Fatalf("expected both items to fail, got %v", rec.finished)
	}
}

func TestProcessPlayerInterrupt(t *testing.T) {
	// The entry path becomes sleep's argument.
	p, err := NewProcessPlayer("sleep", zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	rec := newRecorder()
	start := time.Now()
	_ = p.Play(ctx, []models.PlaylistEntry{{Path: "30"}}, rec.callbacks())
	if time.Since(start) > 4*time.Second {
		t.Fatal("interrupt did not stop the player")
	}
	if !errors.Is(rec.finished["30"], context.DeadlineExceeded) {
		t.Fatalf("expected interrupted item, got %v", rec.finished)
	}
}

func TestNewProcessPlayerRejectsEmpty(t *testing.T) {
	if _, err := NewProcessPlayer("   ", zerolog.Nop()); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestRemotePlayerWaitsForCompletion(t *testing.T) {
	bus := events.NewBus()
	requests := bus.Subscribe(events.EventItemRequested)

	// Stand-in for the remote engine.
	go func() {
		for p := range requests {
			path := p["path"].(string)
			reply := events.Payload{"path": path}
			if path == "/broken.mp4" {
				reply["error"] = "decoder failed"
			}
			bus.Publish(events.EventItemCompleted, events.Payload{"path": "/unrelated.mp4"})
			bus.Publish(events.EventItemCompleted, reply)
		}
	}()
	defer bus.Unsubscribe(events.EventItemRequested, requests)

	rec := newRecorder()
	p := NewRemotePlayer(bus, time.Second, zerolog.Nop())
	if err := p.Play(context.Background(), entries("/a.mp4", "/broken.mp4"), rec.callbacks()); err != nil {
		t.Fatalf("play: %v", err)
	}
	if rec.finished["/a.mp4"] != nil {
		t.Fatalf("expected /a.mp4 to complete, got %v", rec.finished["/a.mp4"])
	}
	if err := rec.finished["/broken.mp4"]; err == nil || err.Error() != "decoder failed" {
		t.Fatalf("expected remote error, got %v", err)
	}
}

func TestRemotePlayerTimesOut(t *testing.T) {
	bus := events.NewBus()
	p := NewRemotePlayer(bus, 10*time.Millisecond, zerolog.Nop())
	rec := newRecorder()
	e := models.PlaylistEntry{Path: "/silent.mp4", Duration: 10 * time.Millisecond}
	if err := p.Play(context.Background(), []models.PlaylistEntry{e}, rec.callbacks()); err != nil {
		t.Fatalf("play: %v", err)
	}
	if !errors.Is(rec.finished["/silent.mp4"], ErrCompletionTimeout) {
		t.Fatalf("expected timeout, got %v", rec.finished)
	}
}
