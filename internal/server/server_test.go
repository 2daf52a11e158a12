/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/friendsincode/grimnir_channel/internal/config"
	"github.com/friendsincode/grimnir_channel/internal/events"
	"github.com/friendsincode/grimnir_channel/internal/models"
	"github.com/friendsincode/grimnir_channel/internal/playout"
)

const channelYAML = `
schedules:
  main:
    priority: 1
    daysofweek: [0]
    dates: [0]
    months: [0]
    starthour: 0
    endhour: 0
    shows: [/media/shows]
system:
  action: restart
  hour: 3
  minute: 30
`

func testConfig() *config.Config {
	return &config.Config{
		Environment:     "test",
		HTTPBind:        "127.0.0.1",
		HTTPPort:        0,
		Timezone:        "UTC",
		ChannelFile:     "/channel.yaml",
		DurationsFile:   "/durations.json",
		QueueFile:       "/queued.json",
		MediaExtensions: []string{".mkv"},
		StateBackend:    config.StateFile,
		StateFile:       "/played.json",
		PlayerBackend:   config.PlayerDry,
		EventBus:        config.EventBusMemory,
		RetryInterval:   time.Second,
		PlannerSeed:     42,
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/channel.yaml", []byte(channelYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	srv, err := New(testConfig(), fs, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func TestNewWiresChannelAndRoutes(t *testing.T) {
	srv := newTestServer(t)

	if srv.Channel().System.Hour != 3 || srv.Channel().System.Minute != 30 {
		t.Fatalf("unexpected system block %+v", srv.Channel().System)
	}

	for _, path := range []string{"/healthz", "/api/v1/health", "/metrics"} {
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d", path, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/schedules", nil))
	var ch models.Channel
	if err := json.Unmarshal(rec.Body.Bytes(), &ch); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(ch.Schedules) != 1 || ch.Schedules[0].Name != "main" {
		t.Fatalf("unexpected schedules %+v", ch.Schedules)
	}
}

func TestNewFailsWithoutChannelFile(t *testing.T) {
	if _, err := New(testConfig(), afero.NewMemMapFs(), nil, zerolog.Nop()); err == nil {
		t.Fatal("expected error for missing channel file")
	}
}

func TestStartAndClose(t *testing.T) {
	srv := newTestServer(t)
	srv.Start()

	deadline := time.After(2 * time.Second)
	for !srv.Scheduler().Running() {
		select {
		case <-deadline:
			t.Fatal("scheduler did not start")
		case <-time.After(5 * time.Millisecond):
		}
	}

	done := make(chan error, 1)
	go func() { done <- srv.Close() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("close: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("close did not return")
	}
}

func TestSecurityHeaders(t *testing.T) {
	h := securityHeadersMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/playlist", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options=%q, want nosniff", got)
	}
	if got := rr.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("X-Frame-Options=%q, want DENY", got)
	}
	if got := rr.Header().Get("Strict-Transport-Security"); got != "" {
		t.Fatalf("expected no HSTS on plain HTTP, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/playlist", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Fatalf("Strict-Transport-Security=%q", got)
	}
}

func TestOpenStoreBackends(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name   string
		mutate func(*config.Config)
		sql    bool
	}{
		{"file", func(c *config.Config) { c.StateFile = filepath.Join(dir, "played.json") }, false},
		{"bolt", func(c *config.Config) {
			c.StateBackend = config.StateBolt
			c.BoltPath = filepath.Join(dir, "played.db")
		}, false},
		{"sql", func(c *config.Config) {
			c.StateBackend = config.StateSQL
			c.DBBackend = config.DatabaseSQLite
			c.DBDSN = ":memory:"
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			tracker, database, err := OpenTracker(context.Background(), cfg, afero.NewOsFs(), zerolog.Nop())
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			defer tracker.Close()
			if (database != nil) != tt.sql {
				t.Fatalf("database returned = %v, want %v", database != nil, tt.sql)
			}
			if _, err := tracker.Mark(context.Background(), "main", "/media/shows/a.mkv", models.CategoryShows); err != nil {
				t.Fatalf("mark: %v", err)
			}
			if got := tracker.Played("main", models.CategoryShows); len(got) != 1 {
				t.Fatalf("played = %v", got)
			}
		})
	}
}

func TestOpenStoreRejectsUnknownBackend(t *testing.T) {
	cfg := testConfig()
	cfg.StateBackend = "etcd"
	if _, _, err := OpenStore(cfg, afero.NewMemMapFs()); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewBrokerAndPlayer(t *testing.T) {
	cfg := testConfig()
	broker, closeBroker := NewBroker(cfg, zerolog.Nop())
	defer closeBroker()
	if _, ok := broker.(*events.Bus); !ok {
		t.Fatalf("memory backend returned %T", broker)
	}

	tests := []struct {
		backend config.PlayerBackend
		command string
		wantErr bool
	}{
		{config.PlayerDry, "", false},
		{config.PlayerRemote, "", false},
		{config.PlayerProcess, "mpv --fs", false},
		{config.PlayerProcess, "", true},
	}
	for _, tt := range tests {
		cfg.PlayerBackend = tt.backend
		cfg.PlayerCommand = tt.command
		p, err := NewPlayer(cfg, broker, zerolog.Nop())
		if (err != nil) != tt.wantErr {
			t.Fatalf("%s: err = %v", tt.backend, err)
		}
		if tt.wantErr {
			continue
		}
		switch p.(type) {
		case *playout.DryPlayer, *playout.RemotePlayer, *playout.ProcessPlayer:
		default:
			t.Fatalf("%s: unexpected player %T", tt.backend, p)
		}
	}
}

func TestNewRandSeeded(t *testing.T) {
	cfg := testConfig()
	a, b := NewRand(cfg), NewRand(cfg)
	if a.Int63() != b.Int63() {
		t.Fatal("same seed should produce the same sequence")
	}
}
