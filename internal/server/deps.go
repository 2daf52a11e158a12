/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gorm.io/gorm"

	"github.com/friendsincode/grimnir_channel/internal/config"
	"github.com/friendsincode/grimnir_channel/internal/db"
	"github.com/friendsincode/grimnir_channel/internal/eventbus"
	"github.com/friendsincode/grimnir_channel/internal/events"
	"github.com/friendsincode/grimnir_channel/internal/playout"
	"github.com/friendsincode/grimnir_channel/internal/playstate"
)

// OpenStore opens the configured play-state store. The returned *gorm.DB is
// non-nil only for the sql backend.
func OpenStore(cfg *config.Config, fs afero.Fs) (playstate.Store, *gorm.DB, error) {
	switch cfg.StateBackend {
	case config.StateFile:
		return playstate.NewFileStore(fs, cfg.StateFile), nil, nil
	case config.StateBolt:
		store, err := playstate.OpenBoltStore(cfg.BoltPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open bolt store %s: %w", cfg.BoltPath, err)
		}
		return store, nil, nil
	case config.StateSQL:
		database, err := db.Connect(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		if err := db.RegisterCallbacks(database); err != nil {
			_ = db.Close(database)
			return nil, nil, fmt.Errorf("register database callbacks: %w", err)
		}
		store, err := playstate.NewSQLStore(database, func() error { return db.Close(database) })
		if err != nil {
			_ = db.Close(database)
			return nil, nil, err
		}
		return store, database, nil
	}
	return nil, nil, fmt.Errorf("unsupported state backend %q", cfg.StateBackend)
}

// OpenTracker opens the store and loads the tracker from it.
func OpenTracker(ctx context.Context, cfg *config.Config, fs afero.Fs, logger zerolog.Logger) (*playstate.Tracker, *gorm.DB, error) {
	store, database, err := OpenStore(cfg, fs)
	if err != nil {
		return nil, nil, err
	}
	tracker, err := playstate.Open(ctx, store, logger)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return tracker, database, nil
}

// NewBroker builds the configured event transport. close is never nil.
func NewBroker(cfg *config.Config, logger zerolog.Logger) (events.Broker, func() error) {
	nodeID := eventbus.NodeID(cfg.InstanceID)
	switch cfg.EventBus {
	case config.EventBusRedis:
		rc := eventbus.DefaultRedisConfig()
		rc.Addr = cfg.RedisAddr
		rc.Password = cfg.RedisPassword
		rc.DB = cfg.RedisDB
		rb := eventbus.NewRedisBus(rc, nodeID, logger)
		return rb, rb.Close
	case config.EventBusNATS:
		nc := eventbus.DefaultNATSConfig()
		nc.URL = cfg.NATSURL
		nb := eventbus.NewNATSBus(nc, nodeID, logger)
		return nb, nb.Close
	}
	return events.NewBus(), func() error { return nil }
}

// NewPlayer builds the configured playback collaborator.
func NewPlayer(cfg *config.Config, broker events.Broker, logger zerolog.Logger) (playout.Player, error) {
	switch cfg.PlayerBackend {
	case config.PlayerDry:
		return playout.NewDryPlayer(1, logger), nil
	case config.PlayerRemote:
		return playout.NewRemotePlayer(broker, playout.DefaultCompletionGrace, logger), nil
	case config.PlayerProcess:
		return playout.NewProcessPlayer(cfg.PlayerCommand, logger)
	}
	return nil, fmt.Errorf("unsupported player %q", cfg.PlayerBackend)
}

// NewRand seeds the planner RNG from cfg, or from the clock when unset.
func NewRand(cfg *config.Config) *rand.Rand {
	seed := cfg.PlannerSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}
