/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playstate

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/grimnir_channel/internal/models"
)

func openMemTracker(t *testing.T) (*Tracker, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	tr, err := Open(context.Background(), NewFileStore(fs, "/state/played.json"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open tracker: %v", err)
	}
	return tr, fs
}

func TestMarkIsIdempotent(t *testing.T) {
	ctx := context.Background()
	tr, fs := openMemTracker(t)

	changed, err := tr.Mark(ctx, "main", "/shows/a.mp4", models.CategoryShows)
	if err != nil || !changed {
		t.Fatalf("first mark: changed=%v err=%v", changed, err)
	}
	changed, err = tr.Mark(ctx, "main", "/shows/a.mp4", models.CategoryShows)
	if err != nil || changed {
		t.Fatalf("second mark: changed=%v err=%v", changed, err)
	}

	reopened, err := Open(ctx, NewFileStore(fs, "/state/played.json"), zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := reopened.Played("main", models.CategoryShows); len(got) != 1 {
		t.Fatalf("expected one persisted entry, got %v", got)
	}
}

// failingStore keeps the last saved state and fails saves while fail is set.
type failingStore struct {
	saved State
	fail  bool
}

func (s *failingStore) Load(context.Context) (State, error) { return State{}, nil }

func (s *failingStore) Save(_ context.Context, state State) error {
	if s.fail {
		return errors.New("disk full")
	}
	s.saved = state
	return nil
}

func (s *failingStore) Close() error { return nil }

func TestFailedSaveRollsBack(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{}
	tr, err := Open(ctx, store, zerolog.Nop())
	if err != nil {
		t.Fatalf("open tracker: %v", err)
	}
	if _, err := tr.Mark(ctx, "main", "/shows/a.mp4", models.CategoryShows); err != nil {
		t.Fatalf("mark a: %v", err)
	}

	store.fail = true
	changed, err := tr.Mark(ctx, "main", "/shows/b.mp4", models.CategoryShows)
	if err == nil || changed {
		t.Fatalf("failed mark: changed=%v err=%v", changed, err)
	}
	if tr.IsPlayed("main", models.CategoryShows, "/shows/b.mp4") {
		t.Fatal("failed mark must not stay in memory")
	}
	if _, err := tr.Mark(ctx, "side", "/ads/x.mp4", models.CategoryAds); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := tr.Snapshot()["side"]; ok {
		t.Fatal("failed mark left an empty schedule behind")
	}
	if err := tr.Reset(ctx, "main", models.CategoryShows); err == nil {
		t.Fatal("expected reset error")
	}
	if err := tr.ResetAll(ctx); err == nil {
		t.Fatal("expected reset all error")
	}
	if !tr.IsPlayed("main", models.CategoryShows, "/shows/a.mp4") {
		t.Fatal("failed resets must keep the played set")
	}

	store.fail = false
	changed, err = tr.Mark(ctx, "main", "/shows/b.mp4", models.CategoryShows)
	if err != nil || !changed {
		t.Fatalf("retried mark: changed=%v err=%v", changed, err)
	}
	if got := store.saved["main"][models.CategoryShows]; len(got) != 2 {
		t.Fatalf("expected both marks persisted, got %v", got)
	}
}

func TestBumpersAreNotTracked(t *testing.T) {
	tr, fs := openMemTracker(t)
	changed, err := tr.Mark(context.Background(), "main", "/bumpers/b.mp4", models.CategoryBumpers)
	if err != nil || changed {
		t.Fatalf("bumper mark: changed=%v err=%v", changed, err)
	}
	if ok, _ := afero.Exists(fs, "/state/played.json"); ok {
		t.Fatal("bumper mark must not write state")
	}
}

func TestResetClearsOnlyCategory(t *testing.T) {
	ctx := context.Background()
	tr, _ := openMemTracker(t)
	_, _ = tr.Mark(ctx, "main", "/shows/a.mp4", models.CategoryShows)
	_, _ = tr.Mark(ctx, "main", "/ads/x.mp4", models.CategoryAds)
	_, _ = tr.Mark(ctx, "late", "/shows/a.mp4", models.CategoryShows)

	if err := tr.Reset(ctx, "main", models.CategoryShows); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if tr.IsPlayed("main", models.CategoryShows, "/shows/a.mp4") {
		t.Fatal("expected main shows cleared")
	}
	if !tr.IsPlayed("main", models.CategoryAds, "/ads/x.mp4") {
		t.Fatal("expected main ads untouched")
	}
	if !tr.IsPlayed("late", models.CategoryShows, "/shows/a.mp4") {
		t.Fatal("expected other schedule untouched")
	}
}

func TestIsExhausted(t *testing.T) {
	ctx := context.Background()
	tr, _ := openMemTracker(t)
	pool := []string{"/shows/a.mp4", "/shows/b.mp4"}

	if tr.IsExhausted("main", models.CategoryShows, nil) {
		t.Fatal("empty pool is never exhausted")
	}
	_, _ = tr.Mark(ctx, "main", pool[0], models.CategoryShows)
	if tr.IsExhausted("main", models.CategoryShows, pool) {
		t.Fatal("half-played pool is not exhausted")
	}
	_, _ = tr.Mark(ctx, "main", pool[1], models.CategoryShows)
	if !tr.IsExhausted("main", models.CategoryShows, pool) {
		t.Fatal("fully played pool should be exhausted")
	}
}

func TestConcurrentMarksAreSerialized(t *testing.T) {
	ctx := context.Background()
	tr, fs := openMemTracker(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := filepath.Join("/shows", string(rune('a'+i%26))+".mp4")
			if _, err := tr.Mark(ctx, "main", path, models.CategoryShows); err != nil {
				t.Errorf("mark: %v", err)
			}
		}(i)
	}
	wg.Wait()

	reopened, err := Open(ctx, NewFileStore(fs, "/state/played.json"), zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := reopened.Played("main", models.CategoryShows); len(got) != 26 {
		t.Fatalf("expected 26 distinct entries, got %d", len(got))
	}
}

func TestBoltStorePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "played.db")

	store, err := OpenBoltStore(path)
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	tr, err := Open(ctx, store, zerolog.Nop())
	if err != nil {
		t.Fatalf("open tracker: %v", err)
	}
	_, _ = tr.Mark(ctx, "main", "/shows/a.mp4", models.CategoryShows)
	_, _ = tr.Mark(ctx, "main", "/ads/x.mp4", models.CategoryAds)
	if err := tr.Reset(ctx, "main", models.CategoryAds); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	store, err = OpenBoltStore(path)
	if err != nil {
		t.Fatalf("reopen bolt: %v", err)
	}
	defer store.Close()
	state, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := state["main"][models.CategoryShows]; len(got) != 1 || got[0] != "/shows/a.mp4" {
		t.Fatalf("unexpected shows state: %v", got)
	}
	if got := state["main"][models.CategoryAds]; len(got) != 0 {
		t.Fatalf("expected ads cleared, got %v", got)
	}
}

func TestSQLStorePersists(t *testing.T) {
	ctx := context.Background()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	store, err := NewSQLStore(db, nil)
	if err != nil {
		t.Fatalf("sql store: %v", err)
	}
	tr, err := Open(ctx, store, zerolog.Nop())
	if err != nil {
		t.Fatalf("open tracker: %v", err)
	}
	_, _ = tr.Mark(ctx, "main", "/shows/a.mp4", models.CategoryShows)
	_, _ = tr.Mark(ctx, "main", "/shows/b.mp4", models.CategoryShows)
	_, _ = tr.Mark(ctx, "main", "/shows/b.mp4", models.CategoryShows)

	var count int64
	if err := db.Model(&models.PlayedItem{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 rows, got %d", count)
	}

	if err := tr.ResetAll(ctx); err != nil {
		t.Fatalf("reset all: %v", err)
	}
	if err := db.Model(&models.PlayedItem{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected rows cleared, got %d", count)
	}
}
