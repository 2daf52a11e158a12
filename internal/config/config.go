/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// StateBackend selects where play state is persisted.
type StateBackend string

const (
	StateFile StateBackend = "file"
	StateBolt StateBackend = "bolt"
	StateSQL  StateBackend = "sql"
)

// EventBusBackend selects the transport for cross-process events.
type EventBusBackend string

const (
	EventBusMemory EventBusBackend = "memory"
	EventBusRedis  EventBusBackend = "redis"
	EventBusNATS   EventBusBackend = "nats"
)

// PlayerBackend selects the playback collaborator.
type PlayerBackend string

const (
	PlayerProcess PlayerBackend = "process"
	PlayerDry     PlayerBackend = "dry"
	PlayerRemote  PlayerBackend = "remote"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	LogLevel    string
	HTTPBind    string
	HTTPPort    int
	Timezone    string

	// Channel definition and on-disk artifacts
	ChannelFile        string
	StateDir           string
	DurationsFile      string
	DurationErrorsFile string
	QueueFile          string
	MediaExtensions    []string

	// Play-state persistence
	StateBackend StateBackend
	StateFile    string // file backend
	BoltPath     string // bolt backend
	DBBackend    DatabaseBackend
	DBDSN        string

	// Planning
	PlannerSeed   int64 // 0 seeds from the clock
	RetryInterval time.Duration

	// Playback and cutover
	PlayerBackend   PlayerBackend
	PlayerCommand   string
	ShutdownCommand string

	// Probe
	FFprobeBin   string
	ProbeWorkers int

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Event transport
	EventBus      EventBusBackend
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	NATSURL       string
	InstanceID    string

	LegacyEnvWarnings []string
}

// LoadDotEnv reads .env style files into the process environment. Missing
// files are ignored; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	stateDir := getEnvAny([]string{"GRIMNIR_STATE_DIR", "CHANNEL_STATE_DIR"}, ".")

	cfg := &Config{
		Environment: getEnvAny([]string{"GRIMNIR_ENV", "CHANNEL_ENV"}, "development"),
		LogLevel:    getEnvAny([]string{"GRIMNIR_LOG_LEVEL", "CHANNEL_LOG_LEVEL"}, ""),
		HTTPBind:    getEnvAny([]string{"GRIMNIR_HTTP_BIND", "CHANNEL_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:    getEnvIntAny([]string{"GRIMNIR_HTTP_PORT", "CHANNEL_HTTP_PORT"}, 8080),
		Timezone:    getEnvAny([]string{"GRIMNIR_TZ", "TZ"}, "Local"),

		ChannelFile:        getEnvAny([]string{"GRIMNIR_CHANNEL_FILE", "CHANNEL_CONFIG"}, "channel.yaml"),
		StateDir:           stateDir,
		DurationsFile:      getEnvAny([]string{"GRIMNIR_DURATIONS_FILE"}, filepath.Join(stateDir, "durations.json")),
		DurationErrorsFile: getEnvAny([]string{"GRIMNIR_DURATION_ERRORS_FILE"}, filepath.Join(stateDir, "duration_errors.json")),
		QueueFile:          getEnvAny([]string{"GRIMNIR_QUEUE_FILE"}, filepath.Join(stateDir, "queued.json")),
		MediaExtensions:    getEnvListAny([]string{"GRIMNIR_MEDIA_EXTENSIONS"}, []string{".mkv", ".mp4", ".avi"}),

		StateBackend: StateBackend(getEnvAny([]string{"GRIMNIR_STATE_BACKEND"}, string(StateFile))),
		StateFile:    getEnvAny([]string{"GRIMNIR_STATE_FILE"}, filepath.Join(stateDir, "played.json")),
		BoltPath:     getEnvAny([]string{"GRIMNIR_BOLT_PATH"}, filepath.Join(stateDir, "played.db")),
		DBBackend:    DatabaseBackend(getEnvAny([]string{"GRIMNIR_DB_BACKEND"}, string(DatabaseSQLite))),
		DBDSN:        getEnvAny([]string{"GRIMNIR_DB_DSN"}, ""),

		PlannerSeed:   int64(getEnvIntAny([]string{"GRIMNIR_PLANNER_SEED"}, 0)),
		RetryInterval: time.Duration(getEnvIntAny([]string{"GRIMNIR_RETRY_SECONDS"}, 30)) * time.Second,

		PlayerBackend:   PlayerBackend(getEnvAny([]string{"GRIMNIR_PLAYER"}, string(PlayerProcess))),
		PlayerCommand:   getEnvAny([]string{"GRIMNIR_PLAYER_COMMAND"}, "mpv --fs --really-quiet --no-terminal"),
		ShutdownCommand: getEnvAny([]string{"GRIMNIR_SHUTDOWN_COMMAND"}, "shutdown -h now"),

		FFprobeBin:   getEnvAny([]string{"GRIMNIR_FFPROBE_BIN"}, "ffprobe"),
		ProbeWorkers: getEnvIntAny([]string{"GRIMNIR_PROBE_WORKERS"}, 4),

		TracingEnabled:    getEnvBoolAny([]string{"GRIMNIR_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"GRIMNIR_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"GRIMNIR_TRACING_SAMPLE_RATE"}, 1.0),

		EventBus:      EventBusBackend(getEnvAny([]string{"GRIMNIR_EVENTBUS"}, string(EventBusMemory))),
		RedisAddr:     getEnvAny([]string{"GRIMNIR_REDIS_ADDR"}, "localhost:6379"),
		RedisPassword: getEnvAny([]string{"GRIMNIR_REDIS_PASSWORD"}, ""),
		RedisDB:       getEnvIntAny([]string{"GRIMNIR_REDIS_DB"}, 0),
		NATSURL:       getEnvAny([]string{"GRIMNIR_NATS_URL"}, "nats://localhost:4222"),
		InstanceID:    getEnvAny([]string{"GRIMNIR_INSTANCE_ID"}, ""),
	}

	switch cfg.StateBackend {
	case StateFile, StateBolt:
	case StateSQL:
		if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
			return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
		}
		if cfg.DBDSN == "" {
			if cfg.DBBackend != DatabaseSQLite {
				return nil, fmt.Errorf("GRIMNIR_DB_DSN must be provided for the %s backend", cfg.DBBackend)
			}
			cfg.DBDSN = filepath.Join(stateDir, "grimnir_channel.db")
		}
	default:
		return nil, fmt.Errorf("unsupported state backend %q", cfg.StateBackend)
	}

	switch cfg.EventBus {
	case EventBusMemory, EventBusRedis, EventBusNATS:
	default:
		return nil, fmt.Errorf("unsupported event bus %q", cfg.EventBus)
	}

	switch cfg.PlayerBackend {
	case PlayerProcess, PlayerDry, PlayerRemote:
	default:
		return nil, fmt.Errorf("unsupported player %q", cfg.PlayerBackend)
	}
	if cfg.PlayerBackend == PlayerRemote && cfg.EventBus == EventBusMemory {
		return nil, fmt.Errorf("the remote player needs GRIMNIR_EVENTBUS set to redis or nats")
	}

	if cfg.RetryInterval <= 0 {
		return nil, fmt.Errorf("GRIMNIR_RETRY_SECONDS must be positive")
	}
	if cfg.ProbeWorkers < 1 {
		cfg.ProbeWorkers = 1
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()
	return cfg, nil
}

// Location resolves the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	if c == nil || c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// HTTPAddr joins bind address and port.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"ENVIRONMENT":     "use GRIMNIR_ENV",
		"PLAYED_FILE":     "use GRIMNIR_STATE_FILE",
		"TRACING_ENABLED": "use GRIMNIR_TRACING_ENABLED",
		"OTLP_ENDPOINT":   "use GRIMNIR_OTLP_ENDPOINT",
		"REDIS_ADDR":      "use GRIMNIR_REDIS_ADDR",
		"NATS_URL":        "use GRIMNIR_NATS_URL",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true", "1", "yes":
				return true
			case "false", "0", "no":
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvListAny splits the first set variable on commas.
func getEnvListAny(keys []string, def []string) []string {
	raw := getEnvAny(keys, "")
	if raw == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
