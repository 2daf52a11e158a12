/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gorm.io/gorm"

	"github.com/friendsincode/grimnir_channel/internal/api"
	"github.com/friendsincode/grimnir_channel/internal/catalog"
	"github.com/friendsincode/grimnir_channel/internal/config"
	"github.com/friendsincode/grimnir_channel/internal/cutover"
	"github.com/friendsincode/grimnir_channel/internal/db"
	"github.com/friendsincode/grimnir_channel/internal/events"
	"github.com/friendsincode/grimnir_channel/internal/logbuffer"
	"github.com/friendsincode/grimnir_channel/internal/media"
	"github.com/friendsincode/grimnir_channel/internal/models"
	"github.com/friendsincode/grimnir_channel/internal/planner"
	"github.com/friendsincode/grimnir_channel/internal/playstate"
	"github.com/friendsincode/grimnir_channel/internal/scheduler"
	"github.com/friendsincode/grimnir_channel/internal/telemetry"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	fs         afero.Fs
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	channel   *models.Channel
	db        *gorm.DB
	logBuffer *logbuffer.Buffer
	bus       events.Broker
	tracker   *playstate.Tracker
	scheduler *scheduler.Service
	api       *api.API

	cutoverReached chan struct{}

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies. fs may be nil.
func New(cfg *config.Config, fs afero.Fs, logBuf *logbuffer.Buffer, logger zerolog.Logger) (*Server, error) {
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("grimnir-channel-api"))
	router.Use(telemetry.MetricsMiddleware)
	// The event stream is long-lived; everything else gets a deadline.
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(60 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:            cfg,
		fs:             fs,
		logger:         logger,
		router:         router,
		logBuffer:      logBuf,
		cutoverReached: make(chan struct{}, 1),
	}

	if err := srv.initDependencies(); err != nil {
		_ = srv.closeResources()
		return nil, err
	}

	srv.configureRoutes()

	srv.httpServer = &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		// WriteTimeout stays 0 for the websocket; the middleware timeout covers the rest.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	ctx := context.Background()

	loc, err := s.cfg.Location()
	if err != nil {
		return err
	}

	channel, err := config.LoadChannel(s.fs, s.cfg.ChannelFile)
	if err != nil {
		return err
	}
	s.channel = channel
	s.logger.Info().
		Str("file", s.cfg.ChannelFile).
		Int("schedules", len(channel.Schedules)).
		Str("cutover_action", string(channel.System.Action)).
		Str("cutover_at", fmt.Sprintf("%02d:%02d", channel.System.Hour, channel.System.Minute)).
		Msg("channel loaded")

	index, err := catalog.Load(s.fs, s.cfg.DurationsFile)
	if err != nil {
		return err
	}
	if index.Len() == 0 {
		s.logger.Warn().Str("file", s.cfg.DurationsFile).Msg("duration index is empty; run the probe command")
	}

	tracker, database, err := OpenTracker(ctx, s.cfg, s.fs, s.logger)
	if err != nil {
		return fmt.Errorf("open play state: %w", err)
	}
	s.tracker = tracker
	s.db = database
	s.DeferClose(tracker.Close)

	bus, closeBus := NewBroker(s.cfg, s.logger)
	s.bus = bus
	s.DeferClose(closeBus)

	player, err := NewPlayer(s.cfg, bus, s.logger)
	if err != nil {
		return err
	}

	timer, err := cutover.NewTimer(channel.System, loc, s.logger)
	if err != nil {
		return err
	}

	source := media.NewSource(s.fs, s.cfg.MediaExtensions, s.logger)
	engine := planner.New(source, tracker, NewRand(s.cfg), s.logger)

	s.scheduler = scheduler.New(scheduler.Deps{
		Channel:       channel,
		Durations:     index,
		Engine:        engine,
		Tracker:       tracker,
		Queue:         playstate.NewQueueRecord(s.fs, s.cfg.QueueFile),
		Player:        player,
		Cutover:       timer,
		Broker:        bus,
		RetryInterval: s.cfg.RetryInterval,
		Now:           func() time.Time { return time.Now().In(loc) },
	}, s.logger)

	s.api = api.New(s.scheduler, bus, s.logBuffer, loc, s.logger)
	return nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	s.router.Handle("/metrics", telemetry.Handler())
	s.api.Routes(s.router)
}

// Start launches the scheduler and the background samplers.
func (s *Server) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		err := s.scheduler.Run(ctx)
		switch {
		case err == nil:
			s.cutoverReached <- struct{}{}
		case !errors.Is(err, context.Canceled):
			s.logger.Error().Err(err).Msg("scheduler loop exited")
		}
	}()

	if s.db != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				db.UpdateConnectionMetrics(s.db)
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}()
	}
}

// CutoverReached fires once the scheduler stopped at the daily cutover.
func (s *Server) CutoverReached() <-chan struct{} {
	return s.cutoverReached
}

// Channel returns the loaded channel definition.
func (s *Server) Channel() *models.Channel {
	return s.channel
}

// Router exposes the HTTP handler.
func (s *Server) Router() http.Handler {
	return s.router
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Scheduler exposes the scheduler service.
func (s *Server) Scheduler() *scheduler.Service {
	return s.scheduler
}

// Close stops background work and releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	return s.closeResources()
}

func (s *Server) closeResources() error {
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}
