/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/grimnir_channel/internal/config"
	"github.com/friendsincode/grimnir_channel/internal/logging"
)

var (
	logger zerolog.Logger
	cfg    *config.Config

	envFile     string
	channelFile string
)

var rootCmd = &cobra.Command{
	Use:   "grimnirchannel",
	Short: "Grimnir Channel - unattended playout for a single video channel",
	Long: `Grimnir Channel plans a day of shows, ads and bumpers from a channel file,
plays it through a media player, and restarts or shuts down at the daily cutover.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional .env file loaded before the environment")
	rootCmd.PersistentFlags().StringVarP(&channelFile, "channel", "c", "", "Channel file (overrides GRIMNIR_CHANNEL_FILE)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it)
func loadConfig() error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if channelFile != "" {
		cfg.ChannelFile = channelFile
	}

	logger = logging.SetupWithWriter(cfg.Environment, cfg.LogLevel, os.Stderr, nil)
	return nil
}
