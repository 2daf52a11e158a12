/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package media

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// DefaultExtensions are the video containers picked up by a directory scan.
var DefaultExtensions = []string{".mkv", ".mp4", ".avi"}

// Source lists media files under a directory tree.
type Source struct {
	fs     afero.Fs
	exts   map[string]struct{}
	logger zerolog.Logger

	mu     sync.Mutex
	warned map[string]struct{}
}

// NewSource creates a directory source. Empty exts selects DefaultExtensions.
func NewSource(fs afero.Fs, exts []string, logger zerolog.Logger) *Source {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = struct{}{}
	}
	return &Source{
		fs:     fs,
		exts:   set,
		logger: logger.With().Str("component", "media_source").Logger(),
		warned: make(map[string]struct{}),
	}
}

// Fs returns the filesystem backing the source.
func (s *Source) Fs() afero.Fs {
	return s.fs
}

// IsMediaFile reports whether name has an accepted extension.
func (s *Source) IsMediaFile(name string) bool {
	_, ok := s.exts[strings.ToLower(filepath.Ext(name))]
	return ok
}

// List returns every media file below dir, sorted. A missing directory
// yields an empty list and a single warning.
func (s *Source) List(dir string) []string {
	var files []string
	err := afero.Walk(s.fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			s.logger.Debug().Err(err).Str("path", path).Msg("skipping unreadable entry")
			return nil
		}
		if info.IsDir() || !s.IsMediaFile(info.Name()) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		s.warnOnce(dir, err)
		return nil
	}
	sort.Strings(files)
	return files
}

// ListAll concatenates List over dirs, skipping duplicates.
func (s *Source) ListAll(dirs []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, dir := range dirs {
		for _, f := range s.List(dir) {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			out = append(out, f)
		}
	}
	return out
}

func (s *Source) warnOnce(dir string, err error) {
	s.mu.Lock()
	_, done := s.warned[dir]
	s.warned[dir] = struct{}{}
	s.mu.Unlock()
	if done {
		return
	}
	ev := s.logger.Warn().Str("dir", dir)
	if errors.Is(err, os.ErrNotExist) {
		ev.Msg("media directory missing")
		return
	}
	ev.Err(err).Msg("media directory unreadable")
}
