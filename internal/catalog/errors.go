/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/spf13/afero"
)

// DefaultErrorFile is the on-disk name of the probe failure log.
const DefaultErrorFile = "duration_errors.json"

// ErrorLog tracks files whose duration could not be probed.
type ErrorLog struct {
	mu      sync.Mutex
	reasons map[string]string
}

// LoadErrors reads the failure log. A missing or corrupt file starts empty.
func LoadErrors(fs afero.Fs, path string) *ErrorLog {
	log := &ErrorLog{reasons: make(map[string]string)}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return log
	}
	_ = json.Unmarshal(data, &log.reasons)
	if log.reasons == nil {
		log.reasons = make(map[string]string)
	}
	return log
}

// Record stores the failure reason for path.
func (l *ErrorLog) Record(path, reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reasons[normalize(path)] = reason
}

// Clear forgets a previous failure for path.
func (l *ErrorLog) Clear(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.reasons, normalize(path))
}

// Reason returns the recorded failure for path.
func (l *ErrorLog) Reason(path string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.reasons[normalize(path)]
	return r, ok
}

// Paths lists failed paths, sorted.
func (l *ErrorLog) Paths() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.reasons))
	for p := range l.reasons {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Save rewrites the failure log. An empty log removes the file.
func (l *ErrorLog) Save(fs afero.Fs, path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.reasons) == 0 {
		if err := fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove error log: %w", err)
		}
		return nil
	}
	data, err := json.MarshalIndent(l.reasons, "", "  ")
	if err != nil {
		return fmt.Errorf("encode error log: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("write error log: %w", err)
	}
	return nil
}
