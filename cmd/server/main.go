// Homers - Media Stack Prometheus Exporter
// Copyright 2026 tcheronneau
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tcheronneau/homers

// Command server runs the Homers exporter.
//
// Startup sequence: parse flags, load and validate configuration,
// configure logging, build the geo resolver and the immutable task
// registry, then serve HTTP under a suture supervisor until SIGINT or
// SIGTERM.
//
//	server -c /etc/homers/config.toml
//	server --config config.toml -v
//
// Exit codes: 0 on graceful shutdown, 1 on configuration or startup
// failure.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/tcheronneau/homers/internal/api"
	"github.com/tcheronneau/homers/internal/config"
	"github.com/tcheronneau/homers/internal/geoip"
	"github.com/tcheronneau/homers/internal/logging"
	"github.com/tcheronneau/homers/internal/tasks"
)

// countFlag counts flag repetitions, so -v -v stacks.
type countFlag int

func (c *countFlag) String() string { return strconv.Itoa(int(*c)) }

func (c *countFlag) Set(string) error {
	*c++
	return nil
}

func (c *countFlag) IsBoolFlag() bool { return true }

func main() {
	var (
		configPath string
		verbose    countFlag
		quiet      countFlag
	)
	flag.StringVar(&configPath, "c", "", "path to the TOML configuration file (required)")
	flag.StringVar(&configPath, "config", "", "path to the TOML configuration file (required)")
	flag.Var(&verbose, "v", "increase log verbosity (repeatable)")
	flag.Var(&quiet, "q", "decrease log verbosity (repeatable)")
	flag.Parse()

	if configPath == "" {
		fmt.Fprintln(os.Stderr, "missing required flag: -c/--config")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logging.Fatal().Err(err).Str("path", configPath).Msg("Failed to load configuration")
	}

	level := adjustLevel(logging.ParseLevel(cfg.HTTP.LogLevel), int(verbose), int(quiet))
	logging.Init(logging.Config{Level: level.String(), Format: "console"})

	geoResolver, err := geoip.NewResolver(geoip.NewIPAPIProvider())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize geo resolver")
	}
	defer func() { _ = geoResolver.Close() }()

	registry := tasks.FromConfig(cfg, geoResolver)
	logging.Info().Int("tasks", len(registry)).Msg("Task registry built")

	handler := api.NewHandler(registry, cfg.HTTP.ScrapeTimeout)
	addr := net.JoinHostPort(cfg.HTTP.Address, strconv.Itoa(cfg.HTTP.Port))
	server := api.NewServer(addr, api.NewRouter(handler))

	supervisor := newSupervisor(level)
	supervisor.Add(server)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := supervisor.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor exited with error")
		os.Exit(1)
	}
	logging.Info().Msg("Shutdown complete")
}

// newSupervisor builds the root supervisor with sutureslog event logging.
func newSupervisor(level zerolog.Level) *suture.Supervisor {
	slogLevel := slog.LevelInfo
	if level <= zerolog.DebugLevel {
		slogLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel}))
	hook := (&sutureslog.Handler{Logger: logger}).MustHook()
	return suture.New("homers", suture.Spec{EventHook: hook})
}

// adjustLevel applies -v/-q verbosity offsets to the configured base
// level. More verbose lowers the level toward trace, quieter raises it
// toward fatal.
func adjustLevel(base zerolog.Level, verbose, quiet int) zerolog.Level {
	level := base + zerolog.Level(quiet) - zerolog.Level(verbose)
	if level < zerolog.TraceLevel {
		level = zerolog.TraceLevel
	}
	if level > zerolog.FatalLevel {
		level = zerolog.FatalLevel
	}
	return level
}
