/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playstate

import (
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/friendsincode/grimnir_channel/internal/models"
)

func TestQueueRecordWriteRead(t *testing.T) {
	fs := afero.NewMemMapFs()
	q := NewQueueRecord(fs, "/queued.json")

	items, err := q.Read()
	if err != nil || len(items) != 0 {
		t.Fatalf("expected empty record, got %v (err=%v)", items, err)
	}

	start := time.Date(2026, time.March, 4, 21, 5, 0, 0, time.UTC)
	plan := &models.Plan{Entries: []models.PlaylistEntry{
		{Path: "/shows/Pilot Episode.mkv", Category: models.CategoryShows, Schedule: "prime", StartsAt: start, Duration: 30 * time.Minute},
		{Path: "/ads/soda.mp4", Category: models.CategoryAds, Schedule: "prime", StartsAt: start.Add(30 * time.Minute), Duration: 30 * time.Second},
	}}
	if err := q.Write(plan); err != nil {
		t.Fatalf("write: %v", err)
	}

	items, err = q.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Time != "21:05" || items[0].Title != "Pilot Episode" {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
	if items[1].Time != "21:35" || items[1].Category != models.CategoryAds {
		t.Fatalf("unexpected second item: %+v", items[1])
	}
}
