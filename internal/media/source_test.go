/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package media

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

func seed(t *testing.T, fs afero.Fs, paths ...string) {
	t.Helper()
	for _, p := range paths {
		if err := afero.WriteFile(fs, p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
}

func TestListRecursiveFiltersExtensions(t *testing.T) {
	fs := afero.NewMemMapFs()
	seed(t, fs,
		"/media/shows/b.mp4",
		"/media/shows/a.MKV",
		"/media/shows/season1/ep1.avi",
		"/media/shows/notes.txt",
		"/media/shows/cover.jpg",
	)
	src := NewSource(fs, nil, zerolog.Nop())

	got := src.List("/media/shows")
	want := []string{"/media/shows/a.MKV", "/media/shows/b.mp4", "/media/shows/season1/ep1.avi"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestListMissingDirIsEmpty(t *testing.T) {
	src := NewSource(afero.NewMemMapFs(), nil, zerolog.Nop())
	if got := src.List("/does/not/exist"); len(got) != 0 {
		t.Fatalf("expected empty listing, got %v", got)
	}
	// second call must not panic or change behaviour
	if got := src.List("/does/not/exist"); len(got) != 0 {
		t.Fatalf("expected empty listing, got %v", got)
	}
}

func TestCustomExtensions(t *testing.T) {
	fs := afero.NewMemMapFs()
	seed(t, fs, "/m/a.webm", "/m/b.mp4")
	src := NewSource(fs, []string{"webm"}, zerolog.Nop())

	got := src.List("/m")
	if len(got) != 1 || got[0] != "/m/a.webm" {
		t.Fatalf("expected only webm, got %v", got)
	}
}

func TestListAllDeduplicates(t *testing.T) {
	fs := afero.NewMemMapFs()
	seed(t, fs, "/m/shows/a.mp4", "/m/shows/extra/b.mp4")
	src := NewSource(fs, nil, zerolog.Nop())

	got := src.ListAll([]string{"/m/shows", "/m/shows/extra", "/missing"})
	if len(got) != 2 {
		t.Fatalf("expected 2 unique files, got %v", got)
	}
}
