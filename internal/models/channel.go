/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"fmt"
	"strings"
)

// Category classifies a media item within a schedule.
type Category string

const (
	CategoryShows   Category = "shows"
	CategoryAds     Category = "ads"
	CategoryBumpers Category = "bumpers"
)

// Categories lists every category in planning order.
var Categories = []Category{CategoryShows, CategoryAds, CategoryBumpers}

// ParseCategory accepts a category name in any case.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case CategoryShows, CategoryAds, CategoryBumpers:
		return c, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Tracked reports whether play-state is recorded for the category.
// Bumpers repeat freely and are never tracked.
func (c Category) Tracked() bool {
	return c == CategoryShows || c == CategoryAds
}

// TimeOfDay is a wall-clock hour and minute.
type TimeOfDay struct {
	Hour   int `json:"hour" yaml:"hour"`
	Minute int `json:"minute" yaml:"minute"`
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// MediaGroups holds the source directories per category.
type MediaGroups struct {
	Shows   []string `json:"shows" yaml:"shows"`
	Ads     []string `json:"ads" yaml:"ads"`
	Bumpers []string `json:"bumpers" yaml:"bumpers"`
}

// Dirs returns the directories configured for a category.
func (m MediaGroups) Dirs(c Category) []string {
	switch c {
	case CategoryShows:
		return m.Shows
	case CategoryAds:
		return m.Ads
	case CategoryBumpers:
		return m.Bumpers
	}
	return nil
}

// Merge appends the directories of other, skipping duplicates.
func (m MediaGroups) Merge(other MediaGroups) MediaGroups {
	return MediaGroups{
		Shows:   appendUnique(m.Shows, other.Shows),
		Ads:     appendUnique(m.Ads, other.Ads),
		Bumpers: appendUnique(m.Bumpers, other.Bumpers),
	}
}

// AllDirs returns every directory across all categories, deduplicated.
func (m MediaGroups) AllDirs() []string {
	var out []string
	for _, c := range Categories {
		out = appendUnique(out, m.Dirs(c))
	}
	return out
}

func appendUnique(dst, src []string) []string {
	seen := make(map[string]struct{}, len(dst))
	out := append([]string(nil), dst...)
	for _, d := range out {
		seen[d] = struct{}{}
	}
	for _, d := range src {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}

// DefaultBumperChance applies when a schedule omits bumper_chance.
const DefaultBumperChance = 0.5

// Schedule is a time-windowed set of media sources. Immutable after load.
type Schedule struct {
	Name         string      `json:"name" yaml:"name"`
	Priority     int         `json:"priority" yaml:"priority"`
	DaysOfWeek   []int       `json:"days_of_week" yaml:"days_of_week"`
	Dates        []int       `json:"dates" yaml:"dates"`
	Months       []int       `json:"months" yaml:"months"`
	Start        TimeOfDay   `json:"start_time" yaml:"start_time"`
	End          TimeOfDay   `json:"end_time" yaml:"end_time"`
	Media        MediaGroups `json:"media" yaml:"media"`
	BumperChance float64     `json:"bumper_chance" yaml:"bumper_chance"`
}

// CutoverAction is what happens at the daily cutover.
type CutoverAction string

const (
	CutoverRestart  CutoverAction = "restart"
	CutoverShutdown CutoverAction = "shutdown"
)

// System holds the daily cutover settings.
type System struct {
	Action CutoverAction `json:"action" yaml:"action"`
	Hour   int           `json:"hour" yaml:"hour"`
	Minute int           `json:"minute" yaml:"minute"`
}

// DefaultSystem restarts at 02:00.
func DefaultSystem() System {
	return System{Action: CutoverRestart, Hour: 2, Minute: 0}
}

// Channel is the full loaded channel definition.
type Channel struct {
	Schedules []Schedule `json:"schedules" yaml:"schedules"`
	System    System     `json:"system" yaml:"system"`
}

// Schedule returns the schedule with the given name.
func (c *Channel) Schedule(name string) (*Schedule, bool) {
	if c == nil {
		return nil, false
	}
	for i := range c.Schedules {
		if c.Schedules[i].Name == name {
			return &c.Schedules[i], true
		}
	}
	return nil, false
}
