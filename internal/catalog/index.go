/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package catalog holds the per-file duration index consumed by the planner.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/spf13/afero"
)

// DefaultIndexFile is the on-disk name of the duration index.
const DefaultIndexFile = "durations.json"

// Index maps absolute file paths to whole-second durations.
type Index struct {
	mu         sync.RWMutex
	byPath     map[string]int
	byDuration map[string][]string
}

type indexDocument struct {
	ByPath     map[string]int      `json:"by_path"`
	ByDuration map[string][]string `json:"by_duration"`
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		byPath:     make(map[string]int),
		byDuration: make(map[string][]string),
	}
}

// Load reads an index document. A missing file yields an empty index.
func Load(fs afero.Fs, path string) (*Index, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewIndex(), nil
		}
		return nil, fmt.Errorf("read duration index: %w", err)
	}

	var doc indexDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode duration index %s: %w", path, err)
	}

	idx := NewIndex()
	for p, secs := range doc.ByPath {
		idx.add(p, secs)
	}
	return idx, nil
}

// Save writes the index document, replacing any previous content.
func (i *Index) Save(fs afero.Fs, path string) error {
	i.mu.RLock()
	doc := indexDocument{ByPath: i.byPath, ByDuration: i.byDuration}
	data, err := json.MarshalIndent(doc, "", "  ")
	i.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode duration index: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create index dir: %w", err)
		}
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("write duration index: %w", err)
	}
	return nil
}

// Add records or updates the duration of path.
func (i *Index) Add(path string, seconds int) {
	i.add(normalize(path), seconds)
}

func (i *Index) add(path string, seconds int) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if old, ok := i.byPath[path]; ok {
		key := strconv.Itoa(old)
		paths := i.byDuration[key]
		for n, p := range paths {
			if p == path {
				paths = append(paths[:n], paths[n+1:]...)
				break
			}
		}
		if len(paths) == 0 {
			delete(i.byDuration, key)
		} else {
			i.byDuration[key] = paths
		}
	}

	i.byPath[path] = seconds
	key := strconv.Itoa(seconds)
	i.byDuration[key] = append(i.byDuration[key], path)
}

// Seconds returns the known duration of path.
func (i *Index) Seconds(path string) (int, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	secs, ok := i.byPath[normalize(path)]
	return secs, ok
}

// WithDuration returns every path with exactly seconds duration.
func (i *Index) WithDuration(seconds int) []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return append([]string(nil), i.byDuration[strconv.Itoa(seconds)]...)
}

// Under returns paths whose duration is at most seconds, sorted.
func (i *Index) Under(seconds int) []string {
	return i.Between(0, seconds)
}

// Between returns paths with min <= duration <= max, sorted.
func (i *Index) Between(min, max int) []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	var out []string
	for p, d := range i.byPath {
		if d >= min && d <= max {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the number of indexed paths.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.byPath)
}

func normalize(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
