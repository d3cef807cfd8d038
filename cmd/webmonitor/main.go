// Package main provides the entry point for the webmonitor backend.
//
// webmonitor checks the uptime of a list of websites on a schedule,
// keeps their response history and serves it to the dashboard over a
// REST API with a live notification stream.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"webmonitor/internal/api"
	"webmonitor/internal/config"
	"webmonitor/internal/logger"
	"webmonitor/internal/server"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Version information set during build time
var (
	Version   = "1.0.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// main is the entry point of the webmonitor backend.
//
// The startup sequence is as follows:
//  1. Load .env and configuration
//  2. Initialize logger
//  3. Setup graceful shutdown handling
//  4. Start the main server
func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("webmonitor %s (%s, built %s)\n", Version, GitCommit, BuildTime)
		return
	}

	// A missing .env file is not an error
	_ = godotenv.Load()

	cfg := loadConfig(*configPath)

	if err := logger.Init(cfg.Log, os.Stderr); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	api.Version = Version

	log.Info().
		Str("version", Version).
		Str("commit", GitCommit).
		Str("addr", cfg.Server.Addr).
		Str("storage", cfg.Storage.Driver).
		Msg("Starting webmonitor")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.New(cfg).Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

// loadConfig loads application configuration and terminates the program
// immediately if configuration cannot be loaded.
func loadConfig(path string) *config.Config {
	cfg, err := config.LoadFile(path)
	if err != nil {
		log.Fatal().
			Err(err).
			Msg("Failed to load configuration")
	}
	return cfg
}
