/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		env, level string
		want       zerolog.Level
	}{
		{"development", "", zerolog.DebugLevel},
		{"production", "", zerolog.InfoLevel},
		{"production", "WARN", zerolog.WarnLevel},
		{"development", "bogus", zerolog.DebugLevel},
	}
	for _, tc := range cases {
		if got := ParseLevel(tc.env, tc.level); got != tc.want {
			t.Errorf("ParseLevel(%q, %q) = %v, want %v", tc.env, tc.level, got, tc.want)
		}
	}
}

func TestSetupTeesIntoCapture(t *testing.T) {
	var out, capture bytes.Buffer
	logger := SetupWithWriter("production", "info", &out, &capture)
	logger.Info().Str("component", "planner").Msg("playlist built")
	logger.Debug().Msg("hidden")

	if !strings.Contains(out.String(), `"message":"playlist built"`) {
		t.Fatalf("expected JSON record on out, got %q", out.String())
	}
	if !strings.Contains(capture.String(), `"component":"planner"`) {
		t.Fatalf("expected record in capture, got %q", capture.String())
	}
	if strings.Contains(out.String(), "hidden") {
		t.Fatal("debug record should be filtered at info level")
	}
}
