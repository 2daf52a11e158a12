/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/friendsincode/grimnir_channel/internal/models"
)

// ErrInvalidChannel wraps every validation failure of a channel file.
var ErrInvalidChannel = errors.New("invalid channel definition")

// rawSchedule mirrors one entry under "schedules" in the channel file.
type rawSchedule struct {
	Priority     int      `json:"priority" yaml:"priority"`
	DaysOfWeek   []int    `json:"daysofweek" yaml:"daysofweek"`
	Dates        []int    `json:"dates" yaml:"dates"`
	Months       []int    `json:"months" yaml:"months"`
	StartHour    int      `json:"starthour" yaml:"starthour"`
	StartMinute  int      `json:"startminute" yaml:"startminute"`
	EndHour      int      `json:"endhour" yaml:"endhour"`
	EndMinute    int      `json:"endminute" yaml:"endminute"`
	Shows        []string `json:"shows" yaml:"shows"`
	Ads          []string `json:"ads" yaml:"ads"`
	Bumpers      []string `json:"bumpers" yaml:"bumpers"`
	BumperChance *float64 `json:"bumper_chance" yaml:"bumper_chance"`
}

type rawChannel struct {
	Schedules map[string]rawSchedule `json:"schedules" yaml:"schedules"`
}

// LoadChannel reads and validates a channel file. Files ending in .json are
// decoded as JSON, anything else as YAML. The system block may be
// overridden with GRIMNIR_SYSTEM_ACTION, GRIMNIR_SYSTEM_HOUR and
// GRIMNIR_SYSTEM_MINUTE.
func LoadChannel(fs afero.Fs, path string) (*models.Channel, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read channel file: %w", err)
	}
	return ParseChannel(data, configType(path))
}

// ParseChannel decodes a channel definition of the given type ("json" or "yaml").
func ParseChannel(data []byte, kind string) (*models.Channel, error) {
	var raw rawChannel
	switch kind {
	case "json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode channel: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode channel: %w", err)
		}
	}

	system, err := loadSystem(data, kind)
	if err != nil {
		return nil, err
	}

	ch := &models.Channel{System: system}
	for name, rs := range raw.Schedules {
		ch.Schedules = append(ch.Schedules, rs.schedule(name))
	}
	sort.Slice(ch.Schedules, func(i, j int) bool { return ch.Schedules[i].Name < ch.Schedules[j].Name })

	if err := ValidateChannel(ch); err != nil {
		return nil, err
	}
	return ch, nil
}

// loadSystem reads the system block through viper so environment overrides
// apply. Schedule names stay out of viper because it folds key case.
func loadSystem(data []byte, kind string) (models.System, error) {
	def := models.DefaultSystem()

	v := viper.New()
	v.SetConfigType(kind)
	v.SetEnvPrefix("GRIMNIR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("system.action", string(def.Action))
	v.SetDefault("system.hour", def.Hour)
	v.SetDefault("system.minute", def.Minute)

	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return models.System{}, fmt.Errorf("decode system block: %w", err)
	}

	return models.System{
		Action: models.CutoverAction(strings.ToLower(strings.TrimSpace(v.GetString("system.action")))),
		Hour:   v.GetInt("system.hour"),
		Minute: v.GetInt("system.minute"),
	}, nil
}

func (rs rawSchedule) schedule(name string) models.Schedule {
	chance := models.DefaultBumperChance
	if rs.BumperChance != nil {
		chance = *rs.BumperChance
	}
	return models.Schedule{
		Name:       name,
		Priority:   rs.Priority,
		DaysOfWeek: rs.DaysOfWeek,
		Dates:      rs.Dates,
		Months:     rs.Months,
		Start:      models.TimeOfDay{Hour: rs.StartHour, Minute: rs.StartMinute},
		End:        models.TimeOfDay{Hour: rs.EndHour, Minute: rs.EndMinute},
		Media: models.MediaGroups{
			Shows:   rs.Shows,
			Ads:     rs.Ads,
			Bumpers: rs.Bumpers,
		},
		BumperChance: chance,
	}
}

// ValidateChannel checks ranges of every schedule and the system block.
func ValidateChannel(ch *models.Channel) error {
	if ch == nil {
		return fmt.Errorf("%w: empty channel", ErrInvalidChannel)
	}
	var problems []string
	for _, s := range ch.Schedules {
		problems = append(problems, scheduleProblems(s)...)
	}

	switch ch.System.Action {
	case models.CutoverRestart, models.CutoverShutdown:
	default:
		problems = append(problems, fmt.Sprintf("system: unknown action %q", ch.System.Action))
	}
	if ch.System.Hour < 0 || ch.System.Hour > 23 {
		problems = append(problems, fmt.Sprintf("system: hour %d out of range", ch.System.Hour))
	}
	if ch.System.Minute < 0 || ch.System.Minute > 59 {
		problems = append(problems, fmt.Sprintf("system: minute %d out of range", ch.System.Minute))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidChannel, strings.Join(problems, "; "))
	}
	return nil
}

func scheduleProblems(s models.Schedule) []string {
	var out []string
	add := func(format string, args ...any) {
		out = append(out, fmt.Sprintf("schedule %q: ", s.Name)+fmt.Sprintf(format, args...))
	}
	if strings.TrimSpace(s.Name) == "" {
		add("empty name")
	}
	if s.Priority < 1 {
		add("priority %d must be at least 1", s.Priority)
	}
	for _, t := range []models.TimeOfDay{s.Start, s.End} {
		if t.Hour < 0 || t.Hour > 23 {
			add("hour %d out of range", t.Hour)
		}
		if t.Minute < 0 || t.Minute > 59 {
			add("minute %d out of range", t.Minute)
		}
	}
	// An empty set never matches, so the schedule could never become active.
	checkSet := func(label string, values []int, max int) {
		if len(values) == 0 {
			add("%s must not be empty", label)
		}
		for _, v := range values {
			if v < 0 || v > max {
				add("%s value %d out of range", label, v)
			}
		}
	}
	checkSet("daysofweek", s.DaysOfWeek, 7)
	checkSet("dates", s.Dates, 31)
	checkSet("months", s.Months, 12)
	if s.BumperChance < 0 || s.BumperChance > 1 {
		add("bumper_chance %v out of range", s.BumperChance)
	}
	return out
}

func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	default:
		return "yaml"
	}
}
