/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/afero"

	"github.com/friendsincode/grimnir_channel/internal/models"
)

// DefaultQueueFile is the per-run record of entries handed to the player.
const DefaultQueueFile = "queued.json"

// QueueRecord persists the entries of the current run for the admin views.
type QueueRecord struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
}

// NewQueueRecord creates a record at path.
func NewQueueRecord(fs afero.Fs, path string) *QueueRecord {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &QueueRecord{fs: fs, path: path}
}

// QueuedItems converts plan entries into queue records.
func QueuedItems(plan *models.Plan) []models.QueuedItem {
	if plan == nil {
		return nil
	}
	items := make([]models.QueuedItem, 0, len(plan.Entries))
	for _, e := range plan.Entries {
		items = append(items, models.QueuedItem{
			Time:     e.StartsAt.Format("15:04"),
			Title:    e.Title(),
			Category: e.Category,
			Schedule: e.Schedule,
			Path:     e.Path,
			StartsAt: e.StartsAt,
		})
	}
	return items
}

// Write replaces the record with the entries of plan.
func (q *QueueRecord) Write(plan *models.Plan) error {
	data, err := json.MarshalIndent(QueuedItems(plan), "", "  ")
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := afero.WriteFile(q.fs, q.path, data, 0o644); err != nil {
		return fmt.Errorf("write queue: %w", err)
	}
	return nil
}

// Read returns the recorded entries. A missing record is empty.
func (q *QueueRecord) Read() ([]models.QueuedItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	data, err := afero.ReadFile(q.fs, q.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read queue: %w", err)
	}
	var items []models.QueuedItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode queue: %w", err)
	}
	return items, nil
}
