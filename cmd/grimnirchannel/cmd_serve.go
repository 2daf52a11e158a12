/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/grimnir_channel/internal/cutover"
	"github.com/friendsincode/grimnir_channel/internal/logbuffer"
	"github.com/friendsincode/grimnir_channel/internal/logging"
	"github.com/friendsincode/grimnir_channel/internal/server"
	"github.com/friendsincode/grimnir_channel/internal/telemetry"
	"github.com/friendsincode/grimnir_channel/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the channel",
	Long:  "Plan and play the channel until the daily cutover, serving the admin API and metrics.",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logBuf := logbuffer.New(2000)
	logger = logging.SetupWithWriter(cfg.Environment, cfg.LogLevel, os.Stdout, logBuf)
	logger.Info().Str("version", version.Version).Msg("Grimnir Channel starting")

	tracerProvider, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
		ServiceName:    "grimnir-channel",
		ServiceVersion: version.Version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}

	srv, err := server.New(cfg, nil, logBuf, logger)
	if err != nil {
		_ = tracerProvider.Shutdown(context.Background())
		return fmt.Errorf("initialize server: %w", err)
	}

	httpServer := srv.HTTPServer()
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	srv.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	reachedCutover := false
	select {
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully...")
	case <-srv.CutoverReached():
		reachedCutover = true
		logger.Info().Msg("cutover reached, stopping services")
	}

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := srv.Close(); err != nil {
		logger.Error().Err(err).Msg("shutdown cleanup failed")
	}
	if err := tracerProvider.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown tracer provider")
	}

	if reachedCutover {
		action := srv.Channel().System.Action
		if err := cutover.NewExecutor(cfg.ShutdownCommand).Perform(context.Background(), action, logger); err != nil {
			return fmt.Errorf("cutover %s: %w", action, err)
		}
	}

	logger.Info().Msg("Grimnir Channel stopped")
	return nil
}
