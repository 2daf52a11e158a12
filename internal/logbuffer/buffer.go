/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package logbuffer keeps the most recent log records in memory for the admin API.
package logbuffer

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// Entry is one captured log record.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Component string         `json:"component,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Buffer is a fixed-size ring of entries.
type Buffer struct {
	mu      sync.RWMutex
	entries []Entry
	next    int
	full    bool
}

// New creates a buffer holding up to capacity entries.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 2000
	}
	return &Buffer{entries: make([]Entry, capacity)}
}

// Add appends an entry, overwriting the oldest once full.
func (b *Buffer) Add(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[b.next] = e
	b.next = (b.next + 1) % len(b.entries)
	if b.next == 0 {
		b.full = true
	}
}

// Len reports the number of stored entries.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.full {
		return len(b.entries)
	}
	return b.next
}

// Query filters captured entries.
type Query struct {
	Level     string
	Component string
	Search    string
	Since     time.Time
	Limit     int // newest Limit entries; 0 returns all
}

// Recent returns matching entries oldest first.
func (b *Buffer) Recent(q Query) []Entry {
	b.mu.RLock()
	ordered := make([]Entry, 0, len(b.entries))
	if b.full {
		ordered = append(ordered, b.entries[b.next:]...)
	}
	ordered = append(ordered, b.entries[:b.next]...)
	b.mu.RUnlock()

	search := strings.ToLower(q.Search)
	out := ordered[:0]
	for _, e := range ordered {
		if q.Level != "" && e.Level != q.Level {
			continue
		}
		if q.Component != "" && e.Component != q.Component {
			continue
		}
		if !q.Since.IsZero() && e.Timestamp.Before(q.Since) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(e.Message), search) {
			continue
		}
		out = append(out, e)
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[len(out)-q.Limit:]
	}
	return out
}

// Write implements io.Writer over zerolog JSON records. Lines that are not
// JSON are dropped.
func (b *Buffer) Write(p []byte) (int, error) {
	var raw map[string]any
	if err := json.Unmarshal(p, &raw); err != nil {
		return len(p), nil
	}
	e := Entry{Timestamp: time.Now()}
	if v, ok := raw["level"].(string); ok {
		e.Level = v
	}
	if v, ok := raw["message"].(string); ok {
		e.Message = v
	}
	if v, ok := raw["component"].(string); ok {
		e.Component = v
	}
	if v, ok := raw["time"].(float64); ok {
		e.Timestamp = time.Unix(int64(v), 0)
	}
	for _, k := range []string{"level", "message", "component", "time"} {
		delete(raw, k)
	}
	if len(raw) > 0 {
		e.Fields = raw
	}
	b.Add(e)
	return len(p), nil
}
