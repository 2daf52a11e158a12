/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"testing"
	"time"

	"github.com/friendsincode/grimnir_channel/internal/models"
)

func anyDay(name string, priority, startHour, endHour int) models.Schedule {
	return models.Schedule{
		Name:       name,
		Priority:   priority,
		DaysOfWeek: []int{0},
		Dates:      []int{0},
		Months:     []int{0},
		Start:      models.TimeOfDay{Hour: startHour},
		End:        models.TimeOfDay{Hour: endHour},
	}
}

func at(hour, minute int) time.Time {
	// 2026-03-04 is a Wednesday.
	return time.Date(2026, time.March, 4, hour, minute, 0, 0, time.UTC)
}

func TestWindowApplies(t *testing.T) {
	tests := []struct {
		name       string
		start, end int
		hour       int
		want       bool
	}{
		{"full day", 0, 0, 13, true},
		{"equal non-zero bounds", 6, 6, 5, true},
		{"same day inside", 9, 17, 9, true},
		{"same day end exclusive", 9, 17, 17, false},
		{"same day before", 9, 17, 8, false},
		{"wrap late", 22, 6, 23, true},
		{"wrap early", 22, 6, 2, true},
		{"wrap midday", 22, 6, 12, false},
		{"wrap end exclusive", 22, 6, 6, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := windowApplies(tt.start, tt.end, tt.hour); got != tt.want {
				t.Fatalf("windowApplies(%d, %d, %d) = %v, want %v", tt.start, tt.end, tt.hour, got, tt.want)
			}
		})
	}
}

func TestIsActiveMidnightWrap(t *testing.T) {
	night := anyDay("night", 1, 22, 6)

	if !IsActive(&night, at(23, 30)) {
		t.Fatal("expected night schedule active at 23:30")
	}
	if !IsActive(&night, at(2, 0)) {
		t.Fatal("expected night schedule active at 02:00")
	}
	if IsActive(&night, at(12, 0)) {
		t.Fatal("expected night schedule inactive at 12:00")
	}
}

func TestIsActiveIgnoresMinutes(t *testing.T) {
	s := anyDay("morning", 1, 9, 10)
	s.Start.Minute = 45
	s.End.Minute = 15

	if !IsActive(&s, at(9, 0)) {
		t.Fatal("window test should be hour granular")
	}
	if IsActive(&s, at(10, 5)) {
		t.Fatal("expected inactive at 10:05")
	}
}

func TestIsActiveCalendarPredicates(t *testing.T) {
	base := anyDay("cal", 1, 0, 0)
	wed := at(12, 0)

	tests := []struct {
		name   string
		mutate func(s *models.Schedule)
		want   bool
	}{
		{"wildcards", func(s *models.Schedule) {}, true},
		{"weekday match", func(s *models.Schedule) { s.DaysOfWeek = []int{3} }, true},
		{"weekday miss", func(s *models.Schedule) { s.DaysOfWeek = []int{1, 7} }, false},
		{"month match", func(s *models.Schedule) { s.Months = []int{3} }, true},
		{"month miss", func(s *models.Schedule) { s.Months = []int{12} }, false},
		{"date match", func(s *models.Schedule) { s.Dates = []int{1, 4} }, true},
		{"date miss", func(s *models.Schedule) { s.Dates = []int{5} }, false},
		{"empty weekday set", func(s *models.Schedule) { s.DaysOfWeek = nil }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base
			tt.mutate(&s)
			if got := IsActive(&s, wed); got != tt.want {
				t.Fatalf("IsActive = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsoWeekdaySunday(t *testing.T) {
	sunday := time.Date(2026, time.March, 8, 12, 0, 0, 0, time.UTC)
	if got := isoWeekday(sunday); got != 7 {
		t.Fatalf("expected Sunday to map to 7, got %d", got)
	}
	s := anyDay("sunday", 1, 0, 0)
	s.DaysOfWeek = []int{7}
	if !IsActive(&s, sunday) {
		t.Fatal("expected Sunday-only schedule active on Sunday")
	}
}

func TestActiveAtPriority(t *testing.T) {
	schedules := []models.Schedule{
		anyDay("all-day", 5, 0, 0),
		anyDay("prime", 1, 19, 23),
		anyDay("late", 2, 22, 6),
	}

	tests := []struct {
		at   time.Time
		want string
	}{
		{at(10, 0), "all-day"},
		{at(20, 0), "prime"},
		{at(22, 30), "prime"},
		{at(23, 30), "late"},
		{at(3, 0), "late"},
	}
	for _, tt := range tests {
		got, ok := ActiveAt(schedules, tt.at)
		if !ok {
			t.Fatalf("expected an active schedule at %s", tt.at.Format("15:04"))
		}
		if got.Name != tt.want {
			t.Fatalf("at %s: expected %q, got %q", tt.at.Format("15:04"), tt.want, got.Name)
		}
	}
}

func TestActiveAtTieBreaksByName(t *testing.T) {
	schedules := []models.Schedule{
		anyDay("zulu", 1, 0, 0),
		anyDay("alpha", 1, 0, 0),
	}
	for i := 0; i < 10; i++ {
		got, ok := ActiveAt(schedules, at(12, 0))
		if !ok || got.Name != "alpha" {
			t.Fatalf("expected alpha to win the tie, got %+v", got)
		}
	}
}

func TestActiveAtNone(t *testing.T) {
	schedules := []models.Schedule{anyDay("morning", 1, 6, 9)}
	if got, ok := ActiveAt(schedules, at(12, 0)); ok {
		t.Fatalf("expected no active schedule, got %q", got.Name)
	}
	if _, ok := ActiveAt(nil, at(12, 0)); ok {
		t.Fatal("expected no active schedule for empty channel")
	}
}

func TestPreviewMergesTopPriority(t *testing.T) {
	a := anyDay("a", 1, 0, 0)
	a.Media = models.MediaGroups{Shows: []string{"/m/a"}, Ads: []string{"/m/ads"}}
	b := anyDay("b", 1, 0, 0)
	b.Media = models.MediaGroups{Shows: []string{"/m/b"}, Ads: []string{"/m/ads"}}
	c := anyDay("c", 2, 0, 0)
	c.Media = models.MediaGroups{Shows: []string{"/m/c"}}

	p, ok := PreviewAt([]models.Schedule{c, b, a}, at(12, 0))
	if !ok {
		t.Fatal("expected preview")
	}
	if len(p.Names) != 2 || p.Names[0] != "a" || p.Names[1] != "b" {
		t.Fatalf("unexpected merged schedules: %v", p.Names)
	}
	if len(p.Media.Shows) != 2 {
		t.Fatalf("expected two show dirs, got %v", p.Media.Shows)
	}
	if len(p.Media.Ads) != 1 {
		t.Fatalf("expected ad dirs deduplicated, got %v", p.Media.Ads)
	}
}
