/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/friendsincode/grimnir_channel/internal/models"
)

// ErrUnknownFormat is returned for an unsupported export format.
var ErrUnknownFormat = errors.New("unknown export format")

// Export formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatICal = "ics"
)

// ExportResult contains encoded plan data.
type ExportResult struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Export encodes plan in the given format.
func Export(plan *models.Plan, format string) (*ExportResult, error) {
	if plan == nil {
		plan = &models.Plan{}
	}
	stamp := plan.Start.Format("2006-01-02")
	switch strings.ToLower(format) {
	case "", FormatJSON:
		data, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode plan: %w", err)
		}
		return &ExportResult{Data: append(data, '\n'), Filename: "playlist-" + stamp + ".json", ContentType: "application/json"}, nil
	case FormatYAML, "yml":
		data, err := yaml.Marshal(plan)
		if err != nil {
			return nil, fmt.Errorf("encode plan: %w", err)
		}
		return &ExportResult{Data: data, Filename: "playlist-" + stamp + ".yaml", ContentType: "application/yaml"}, nil
	case FormatICal:
		return &ExportResult{Data: ical(plan, time.Now()), Filename: "playlist-" + stamp + ".ics", ContentType: "text/calendar; charset=utf-8"}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// Write encodes plan to w.
func Write(w io.Writer, plan *models.Plan, format string) error {
	res, err := Export(plan, format)
	if err != nil {
		return err
	}
	_, err = w.Write(res.Data)
	return err
}

// ical renders one VEVENT per entry.
func ical(plan *models.Plan, stamp time.Time) []byte {
	var buf bytes.Buffer
	buf.WriteString("BEGIN:VCALENDAR\r\n")
	buf.WriteString("VERSION:2.0\r\n")
	buf.WriteString("PRODID:-//Grimnir Channel//Playlist Export//EN\r\n")
	buf.WriteString("X-WR-CALNAME:Channel Playlist\r\n")
	buf.WriteString("CALSCALE:GREGORIAN\r\n")
	buf.WriteString("METHOD:PUBLISH\r\n")

	for i, e := range plan.Entries {
		buf.WriteString("BEGIN:VEVENT\r\n")
		buf.WriteString(fmt.Sprintf("UID:%s-%d@grimnir\r\n", plan.RunID, i))
		buf.WriteString(fmt.Sprintf("DTSTAMP:%s\r\n", formatICalTime(stamp)))
		buf.WriteString(fmt.Sprintf("DTSTART:%s\r\n", formatICalTime(e.StartsAt)))
		buf.WriteString(fmt.Sprintf("DTEND:%s\r\n", formatICalTime(e.EndsAt())))
		buf.WriteString(fmt.Sprintf("SUMMARY:%s\r\n", escapeICalText(e.Title())))
		buf.WriteString(fmt.Sprintf("CATEGORIES:%s\r\n", escapeICalText(string(e.Category))))
		buf.WriteString(fmt.Sprintf("DESCRIPTION:%s\r\n", escapeICalText(e.Schedule+": "+e.Path)))
		buf.WriteString("END:VEVENT\r\n")
	}

	buf.WriteString("END:VCALENDAR\r\n")
	return buf.Bytes()
}

func formatICalTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

func escapeICalText(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
