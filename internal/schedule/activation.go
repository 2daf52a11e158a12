/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"sort"
	"time"

	"github.com/friendsincode/grimnir_channel/internal/models"
)

// ActiveAt returns the highest-priority schedule active at instant.
// Lower priority numbers win; ties go to the lexicographically smaller name.
func ActiveAt(schedules []models.Schedule, instant time.Time) (*models.Schedule, bool) {
	var best *models.Schedule
	for i := range schedules {
		s := &schedules[i]
		if !IsActive(s, instant) {
			continue
		}
		if best == nil || outranks(s, best) {
			best = s
		}
	}
	return best, best != nil
}

// ActiveSet returns every schedule active at instant in arbitration order.
func ActiveSet(schedules []models.Schedule, instant time.Time) []models.Schedule {
	var out []models.Schedule
	for i := range schedules {
		if IsActive(&schedules[i], instant) {
			out = append(out, schedules[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return outranks(&out[i], &out[j]) })
	return out
}

// Preview merges the media groups of every schedule tied at the top
// priority. Names lists the merged schedules in arbitration order.
type Preview struct {
	At       time.Time          `json:"at"`
	Priority int                `json:"priority"`
	Names    []string           `json:"schedules"`
	Media    models.MediaGroups `json:"media"`
}

// PreviewAt builds the merged preview for instant. ok is false when no
// schedule is active.
func PreviewAt(schedules []models.Schedule, instant time.Time) (Preview, bool) {
	active := ActiveSet(schedules, instant)
	if len(active) == 0 {
		return Preview{At: instant}, false
	}
	p := Preview{At: instant, Priority: active[0].Priority}
	for _, s := range active {
		if s.Priority != p.Priority {
			break
		}
		p.Names = append(p.Names, s.Name)
		p.Media = p.Media.Merge(s.Media)
	}
	return p, true
}

// IsActive reports whether all activation predicates hold at instant.
func IsActive(s *models.Schedule, instant time.Time) bool {
	if s == nil {
		return false
	}
	return windowApplies(s.Start.Hour, s.End.Hour, instant.Hour()) &&
		matchesAny(s.DaysOfWeek, isoWeekday(instant)) &&
		matchesAny(s.Months, int(instant.Month())) &&
		matchesAny(s.Dates, instant.Day())
}

// windowApplies tests the hour window. Equal bounds cover the whole day and
// a start after the end wraps past midnight.
func windowApplies(startHour, endHour, hour int) bool {
	if startHour == endHour {
		return true
	}
	if startHour < endHour {
		return hour >= startHour && hour < endHour
	}
	return hour >= startHour || hour < endHour
}

// matchesAny treats 0 as a wildcard member.
func matchesAny(set []int, value int) bool {
	for _, v := range set {
		if v == 0 || v == value {
			return true
		}
	}
	return false
}

// isoWeekday maps Monday to 1 and Sunday to 7.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func outranks(a, b *models.Schedule) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.Name < b.Name
}
