/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_channel/internal/events"
	"github.com/friendsincode/grimnir_channel/internal/logbuffer"
	"github.com/friendsincode/grimnir_channel/internal/models"
	"github.com/friendsincode/grimnir_channel/internal/schedule"
	"github.com/friendsincode/grimnir_channel/internal/scheduler"
)

// API exposes the channel over HTTP.
type API struct {
	scheduler *scheduler.Service
	bus       events.Broker
	logBuffer *logbuffer.Buffer
	loc       *time.Location
	now       func() time.Time
	logger    zerolog.Logger
}

// New creates the API router wrapper. logBuf may be nil.
func New(svc *scheduler.Service, bus events.Broker, logBuf *logbuffer.Buffer, loc *time.Location, logger zerolog.Logger) *API {
	if loc == nil {
		loc = time.Local
	}
	return &API{
		scheduler: svc,
		bus:       bus,
		logBuffer: logBuf,
		loc:       loc,
		now:       time.Now,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Routes mounts the API under /api/v1.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)
		r.Get("/playlist", a.handlePlaylist)
		r.Get("/schedules", a.handleSchedules)
		r.Get("/schedules/active", a.handleActiveSchedule)
		r.Get("/preview", a.handlePreview)

		r.Route("/played", func(r chi.Router) {
			r.Post("/", a.handleMarkPlayed)
			r.Delete("/", a.handleResetAll)
			r.Get("/{schedule}/{category}", a.handlePlayed)
			r.Delete("/{schedule}/{category}", a.handleResetPlayed)
		})

		r.Post("/replan", a.handleReplan)
		r.Get("/logs", a.handleLogs)
		r.Get("/events", a.handleEvents)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"running": a.scheduler.Running(),
	})
}

type playlistResponse struct {
	Plan       *models.Plan          `json:"plan"`
	NowPlaying *models.PlaylistEntry `json:"now_playing,omitempty"`
}

func (a *API) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	plan := a.scheduler.Plan()

	if format := r.URL.Query().Get("format"); format != "" {
		if plan == nil {
			writeError(w, http.StatusNotFound, "no_plan")
			return
		}
		result, err := schedule.Export(plan, format)
		if err != nil {
			if errors.Is(err, schedule.ErrUnknownFormat) {
				writeError(w, http.StatusBadRequest, "unknown_format")
				return
			}
			a.logger.Error().Err(err).Msg("export playlist failed")
			writeError(w, http.StatusInternalServerError, "export_failed")
			return
		}
		w.Header().Set("Content-Type", result.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Data)
		return
	}

	resp := playlistResponse{Plan: plan}
	if entry, ok := a.scheduler.NowPlaying(); ok {
		resp.NowPlaying = &entry
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSchedules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.scheduler.Channel())
}

func (a *API) handleActiveSchedule(w http.ResponseWriter, r *http.Request) {
	at, ok := a.parseAt(w, r)
	if !ok {
		return
	}
	active, found := schedule.ActiveAt(a.scheduler.Channel().Schedules, at)
	if !found {
		writeJSON(w, http.StatusOK, map[string]any{"at": at, "active": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"at": at, "active": active})
}

func (a *API) handlePreview(w http.ResponseWriter, r *http.Request) {
	at, ok := a.parseAt(w, r)
	if !ok {
		return
	}
	preview, _ := schedule.PreviewAt(a.scheduler.Channel().Schedules, at)
	writeJSON(w, http.StatusOK, preview)
}

type markPlayedRequest struct {
	Schedule string `json:"schedule"`
	Path     string `json:"path"`
	Category string `json:"category"`
}

func (a *API) handleMarkPlayed(w http.ResponseWriter, r *http.Request) {
	var req markPlayedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeError(w, http.StatusBadRequest, "path_required")
		return
	}
	category, err := models.ParseCategory(req.Category)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_category")
		return
	}

	recorded, err := a.scheduler.MarkPlayed(r.Context(), req.Schedule, req.Path, category)
	if err != nil {
		a.logger.Error().Err(err).Str("path", req.Path).Msg("mark played failed")
		writeError(w, http.StatusInternalServerError, "mark_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recorded": recorded})
}

func (a *API) handlePlayed(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "schedule")
	category, err := models.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_category")
		return
	}
	played := a.scheduler.Played(name, category)
	if played == nil {
		played = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"schedule": name,
		"category": category,
		"played":   played,
	})
}

func (a *API) handleResetPlayed(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "schedule")
	category, err := models.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_category")
		return
	}
	if err := a.scheduler.Reset(r.Context(), name, category); err != nil {
		a.logger.Error().Err(err).Str("schedule", name).Msg("reset played failed")
		writeError(w, http.StatusInternalServerError, "reset_failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleResetAll(w http.ResponseWriter, r *http.Request) {
	if err := a.scheduler.ResetAll(r.Context()); err != nil {
		a.logger.Error().Err(err).Msg("reset all played failed")
		writeError(w, http.StatusInternalServerError, "reset_failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleReplan(w http.ResponseWriter, r *http.Request) {
	if err := a.scheduler.Replan(); err != nil {
		if errors.Is(err, scheduler.ErrNotRunning) {
			writeError(w, http.StatusConflict, "not_running")
			return
		}
		writeError(w, http.StatusInternalServerError, "replan_failed")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "replanning"})
}

func (a *API) handleLogs(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeJSON(w, http.StatusOK, []logbuffer.Entry{})
		return
	}
	q := r.URL.Query()
	query := logbuffer.Query{
		Level:     q.Get("level"),
		Component: q.Get("component"),
		Search:    q.Get("search"),
		Limit:     200,
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		query.Limit = limit
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_since")
			return
		}
		query.Since = since
	}
	entries := a.logBuffer.Recent(query)
	if entries == nil {
		entries = []logbuffer.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// parseAt reads the optional "at" query parameter in the channel time zone.
func (a *API) parseAt(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("at")
	if raw == "" {
		return a.now().In(a.loc), true
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_at")
		return time.Time{}, false
	}
	return at.In(a.loc), true
}

func parseEventTypes(raw string) []events.EventType {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]events.EventType, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part == "" {
			continue
		}
		out = append(out, events.EventType(part))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
