// Homers - Media Stack Prometheus Exporter
// Copyright 2026 tcheronneau
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tcheronneau/homers

package tasks

import (
	"maps"
	"slices"

	"github.com/tcheronneau/homers/internal/config"
	"github.com/tcheronneau/homers/internal/geoip"
	"github.com/tcheronneau/homers/internal/providers"
)

// FromConfig builds the immutable task registry. Adapter handles are
// created here, once, and live for the process. Instance maps are walked
// in sorted name order so the registry is deterministic.
func FromConfig(cfg *config.Config, geo *geoip.Resolver) []Task {
	var registry []Task

	for _, name := range sortedKeys(cfg.Sonarr) {
		client := providers.NewSonarr(name, cfg.Sonarr[name])
		registry = append(registry, sonarrTodayTask{client}, sonarrMissingTask{client})
	}
	for _, name := range sortedKeys(cfg.Radarr) {
		registry = append(registry, radarrTask{providers.NewRadarr(name, cfg.Radarr[name])})
	}
	for _, name := range sortedKeys(cfg.Lidarr) {
		registry = append(registry, lidarrTask{providers.NewLidarr(name, cfg.Lidarr[name])})
	}
	for _, name := range sortedKeys(cfg.Readarr) {
		registry = append(registry, readarrTask{providers.NewReadarr(name, cfg.Readarr[name])})
	}

	if cfg.Overseerr != nil {
		registry = append(registry, requestsTask{providers.NewOverseerr("overseerr", *cfg.Overseerr)})
	}
	if cfg.Jellyseerr != nil {
		registry = append(registry, requestsTask{providers.NewOverseerr("jellyseerr", *cfg.Jellyseerr)})
	}

	if cfg.Tautulli != nil {
		client := providers.NewTautulli(*cfg.Tautulli, geo)
		registry = append(registry,
			tautulliSessionsTask{client},
			tautulliLibrariesTask{client},
			tautulliHistoryTask{client},
		)
	}

	for _, name := range sortedKeys(cfg.Plex) {
		client := providers.NewPlex(name, cfg.Plex[name], geo)
		registry = append(registry, plexSessionsTask{client}, plexLibrariesTask{client})
	}
	for _, name := range sortedKeys(cfg.Jellyfin) {
		client := providers.NewJellyfin(name, cfg.Jellyfin[name], geo)
		registry = append(registry, jellyfinSessionsTask{client}, jellyfinLibrariesTask{client})
	}

	return registry
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
