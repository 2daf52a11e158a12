/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"path/filepath"
	"strings"
	"time"
)

// PlaylistEntry is one scheduled item in a plan.
type PlaylistEntry struct {
	Path     string        `json:"path" yaml:"path"`
	Category Category      `json:"category" yaml:"category"`
	Schedule string        `json:"schedule" yaml:"schedule"`
	StartsAt time.Time     `json:"starts_at" yaml:"starts_at"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// EndsAt returns the instant the entry finishes.
func (e PlaylistEntry) EndsAt() time.Time {
	return e.StartsAt.Add(e.Duration)
}

// Title is the file name without directory or extension.
func (e PlaylistEntry) Title() string {
	return Stem(e.Path)
}

// Stem strips directory and extension from a path.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// StopReason explains why a planning run ended.
type StopReason string

const (
	StopCutover          StopReason = "cutover"
	StopNoActiveSchedule StopReason = "no_active_schedule"
	StopExhausted        StopReason = "exhausted_candidates"
	StopCancelled        StopReason = "cancelled"
)

// Plan is the output of one planning run.
type Plan struct {
	RunID      string          `json:"run_id" yaml:"run_id"`
	Start      time.Time       `json:"start" yaml:"start"`
	Cutover    time.Time       `json:"cutover" yaml:"cutover"`
	Entries    []PlaylistEntry `json:"entries" yaml:"entries"`
	StopReason StopReason      `json:"stop_reason" yaml:"stop_reason"`
	StoppedAt  time.Time       `json:"stopped_at" yaml:"stopped_at"`
}

// Complete reports whether the plan filled the window up to the cutover.
func (p *Plan) Complete() bool {
	return p != nil && p.StopReason == StopCutover
}

// Total returns the summed duration of all entries.
func (p *Plan) Total() time.Duration {
	if p == nil {
		return 0
	}
	var total time.Duration
	for _, e := range p.Entries {
		total += e.Duration
	}
	return total
}

// PlayedItem is the SQL row for one played path.
type PlayedItem struct {
	ID        uint     `gorm:"primaryKey"`
	Schedule  string   `gorm:"type:varchar(128);uniqueIndex:idx_played_item"`
	Category  Category `gorm:"type:varchar(16);uniqueIndex:idx_played_item"`
	Path      string   `gorm:"type:varchar(1024);uniqueIndex:idx_played_item"`
	CreatedAt time.Time
}

// TableName pins the table name.
func (PlayedItem) TableName() string { return "played_items" }

// QueuedItem records an entry handed to the player, keyed by its start clock time.
type QueuedItem struct {
	Time     string    `json:"time"`
	Title    string    `json:"title"`
	Category Category  `json:"category"`
	Schedule string    `json:"schedule"`
	Path     string    `json:"path"`
	StartsAt time.Time `json:"starts_at"`
}
