// Homers - Media Stack Prometheus Exporter
// Copyright 2026 tcheronneau
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tcheronneau/homers

// Package config loads and validates the Homers configuration.
//
// Configuration is layered with Koanf v2: built-in defaults, then the TOML
// config file, then environment variables with the HOMERS_ prefix
// (HOMERS_HTTP_PORT overrides http.port).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "HOMERS_"

// HTTPConfig configures the exporter's HTTP listener.
type HTTPConfig struct {
	Address string `koanf:"address"`
	Port    int    `koanf:"port" validate:"min=1,max=65535"`

	// LogLevel is one of trace, debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"omitempty,oneof=trace debug info warn warning error"`

	// ScrapeTimeout bounds a single scrape end to end.
	ScrapeTimeout time.Duration `koanf:"scrape_timeout" validate:"min=0"`
}

// ArrConfig is shared by the Sonarr, Radarr, Lidarr and Readarr families.
type ArrConfig struct {
	Address string `koanf:"address" validate:"required,url"`
	APIKey  string `koanf:"apikey" validate:"required"`
}

// TautulliConfig configures the single Tautulli instance.
type TautulliConfig struct {
	Address string `koanf:"address" validate:"required,url"`
	APIKey  string `koanf:"apikey" validate:"required"`
}

// OverseerrConfig is shared by Overseerr and Jellyseerr.
type OverseerrConfig struct {
	Address string `koanf:"address" validate:"required,url"`
	APIKey  string `koanf:"apikey" validate:"required"`

	// Requests is how many recent requests to fetch per scrape.
	Requests int `koanf:"requests" validate:"min=1"`
}

// PlexConfig configures one named Plex instance.
type PlexConfig struct {
	Address string `koanf:"address" validate:"required,url"`
	Token   string `koanf:"token" validate:"required"`
}

// JellyfinConfig configures one named Jellyfin instance.
type JellyfinConfig struct {
	Address string `koanf:"address" validate:"required,url"`
	APIKey  string `koanf:"apikey" validate:"required"`
}

// Config is the full Homers configuration. Every backend section is
// optional; an absent section simply contributes no tasks.
type Config struct {
	HTTP HTTPConfig `koanf:"http"`

	Tautulli   *TautulliConfig  `koanf:"tautulli"`
	Overseerr  *OverseerrConfig `koanf:"overseerr"`
	Jellyseerr *OverseerrConfig `koanf:"jellyseerr"`

	Sonarr  map[string]ArrConfig `koanf:"sonarr" validate:"dive"`
	Radarr  map[string]ArrConfig `koanf:"radarr" validate:"dive"`
	Lidarr  map[string]ArrConfig `koanf:"lidarr" validate:"dive"`
	Readarr map[string]ArrConfig `koanf:"readarr" validate:"dive"`

	Plex     map[string]PlexConfig     `koanf:"plex" validate:"dive"`
	Jellyfin map[string]JellyfinConfig `koanf:"jellyfin" validate:"dive"`
}

// defaultConfig returns the built-in defaults applied before the config
// file and environment layers.
func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:       "localhost",
			Port:          8000,
			LogLevel:      "info",
			ScrapeTimeout: 30 * time.Second,
		},
	}
}

// Load reads the configuration from the given TOML file, applies
// environment overrides, normalises addresses and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}

	// HOMERS_HTTP_PORT -> http.port
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NormalizeAddress strips exactly one trailing slash from an address.
func NormalizeAddress(addr string) string {
	return strings.TrimSuffix(addr, "/")
}

// normalize applies address normalisation and per-section defaults.
func (c *Config) normalize() {
	if c.Tautulli != nil {
		c.Tautulli.Address = NormalizeAddress(c.Tautulli.Address)
	}
	for _, oc := range []*OverseerrConfig{c.Overseerr, c.Jellyseerr} {
		if oc == nil {
			continue
		}
		oc.Address = NormalizeAddress(oc.Address)
		if oc.Requests == 0 {
			oc.Requests = 20
		}
	}
	for _, m := range []map[string]ArrConfig{c.Sonarr, c.Radarr, c.Lidarr, c.Readarr} {
		for name, ac := range m {
			ac.Address = NormalizeAddress(ac.Address)
			m[name] = ac
		}
	}
	for name, pc := range c.Plex {
		pc.Address = NormalizeAddress(pc.Address)
		c.Plex[name] = pc
	}
	for name, jc := range c.Jellyfin {
		jc.Address = NormalizeAddress(jc.Address)
		c.Jellyfin[name] = jc
	}
}

// Validate checks the configuration for structural errors.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
