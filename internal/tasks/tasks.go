// Homers - Media Stack Prometheus Exporter
// Copyright 2026 tcheronneau
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tcheronneau/homers

// Package tasks defines the closed set of scrape work units and their
// results. The task registry is derived once from configuration at startup;
// the executor fans every task out on each scrape.
//
// Task and Result form a closed pair: every task variant produces exactly
// one result variant, and the metric encoder dispatches over the concrete
// result types. The result interface is sealed so the set stays closed.
package tasks

import (
	"context"

	"github.com/tcheronneau/homers/internal/models"
	"github.com/tcheronneau/homers/internal/providers"
)

// Task is one unit of upstream work: one adapter operation against one
// configured instance. Run never fails; adapter errors surface as empty
// results.
type Task interface {
	// Describe identifies the task in logs.
	Describe() string

	// Run executes the task under the scrape context.
	Run(ctx context.Context) Result
}

// Result is the normalised output of one task.
type Result interface {
	// sealed marks the closed variant set.
	sealed()
}

// SonarrTodayResult carries the episodes airing today on one instance.
type SonarrTodayResult struct {
	Name     string
	Episodes []models.SonarrEpisode
}

// SonarrMissingResult carries last week's missing episodes on one instance.
type SonarrMissingResult struct {
	Name     string
	Episodes []models.SonarrEpisode
}

// RadarrResult carries the movie inventory of one instance.
type RadarrResult struct {
	Name   string
	Movies []models.RadarrMovie
}

// LidarrResult carries the artist inventory of one instance.
type LidarrResult struct {
	Name    string
	Artists []models.LidarrArtist
}

// ReadarrResult carries the author inventory of one instance.
type ReadarrResult struct {
	Name    string
	Authors []models.ReadarrAuthor
}

// RequestsResult carries recent media requests. Kind is "overseerr" or
// "jellyseerr" and prefixes the emitted metric families.
type RequestsResult struct {
	Kind     string
	Requests []models.OverseerrRequest
}

// SessionsResult carries the live sessions and known users of one media
// server. Kind is "plex" or "jellyfin".
type SessionsResult struct {
	Kind     string
	Name     string
	Users    []models.User
	Sessions []models.Session
}

// LibrariesResult carries per-library counts of one media server.
// Kind is "plex" or "jellyfin".
type LibrariesResult struct {
	Kind      string
	Name      string
	Libraries []models.LibraryCount
}

// TautulliSessionsResult carries Tautulli's current activity.
type TautulliSessionsResult struct {
	Sessions []models.TautulliSession
}

// TautulliLibrariesResult carries Tautulli's library sections.
type TautulliLibrariesResult struct {
	Libraries []models.TautulliLibrary
}

// TautulliHistoryResult carries the all-time play count and recent
// history entries.
type TautulliHistoryResult struct {
	TotalPlays int64
	Entries    []models.TautulliHistoryEntry
}

func (SonarrTodayResult) sealed()       {}
func (SonarrMissingResult) sealed()     {}
func (RadarrResult) sealed()            {}
func (LidarrResult) sealed()            {}
func (ReadarrResult) sealed()           {}
func (RequestsResult) sealed()          {}
func (SessionsResult) sealed()          {}
func (LibrariesResult) sealed()         {}
func (TautulliSessionsResult) sealed()  {}
func (TautulliLibrariesResult) sealed() {}
func (TautulliHistoryResult) sealed()   {}

type sonarrTodayTask struct{ client *providers.Sonarr }

func (t sonarrTodayTask) Describe() string { return "sonarr-today/" + t.client.Name() }

func (t sonarrTodayTask) Run(ctx context.Context) Result {
	return SonarrTodayResult{Name: t.client.Name(), Episodes: t.client.Today(ctx)}
}

type sonarrMissingTask struct{ client *providers.Sonarr }

func (t sonarrMissingTask) Describe() string { return "sonarr-missing/" + t.client.Name() }

func (t sonarrMissingTask) Run(ctx context.Context) Result {
	return SonarrMissingResult{Name: t.client.Name(), Episodes: t.client.MissingLastWeek(ctx)}
}

type radarrTask struct{ client *providers.Radarr }

func (t radarrTask) Describe() string { return "radarr/" + t.client.Name() }

func (t radarrTask) Run(ctx context.Context) Result {
	return RadarrResult{Name: t.client.Name(), Movies: t.client.Movies(ctx)}
}

type lidarrTask struct{ client *providers.Lidarr }

func (t lidarrTask) Describe() string { return "lidarr/" + t.client.Name() }

func (t lidarrTask) Run(ctx context.Context) Result {
	return LidarrResult{Name: t.client.Name(), Artists: t.client.Artists(ctx)}
}

type readarrTask struct{ client *providers.Readarr }

func (t readarrTask) Describe() string { return "readarr/" + t.client.Name() }

func (t readarrTask) Run(ctx context.Context) Result {
	return ReadarrResult{Name: t.client.Name(), Authors: t.client.Authors(ctx)}
}

type requestsTask struct{ client *providers.Overseerr }

func (t requestsTask) Describe() string { return "requests/" + t.client.Kind() }

func (t requestsTask) Run(ctx context.Context) Result {
	return RequestsResult{Kind: t.client.Kind(), Requests: t.client.Requests(ctx)}
}

type tautulliSessionsTask struct{ client *providers.Tautulli }

func (t tautulliSessionsTask) Describe() string { return "tautulli-sessions" }

func (t tautulliSessionsTask) Run(ctx context.Context) Result {
	return TautulliSessionsResult{Sessions: t.client.Sessions(ctx)}
}

type tautulliLibrariesTask struct{ client *providers.Tautulli }

func (t tautulliLibrariesTask) Describe() string { return "tautulli-libraries" }

func (t tautulliLibrariesTask) Run(ctx context.Context) Result {
	return TautulliLibrariesResult{Libraries: t.client.Libraries(ctx)}
}

type tautulliHistoryTask struct{ client *providers.Tautulli }

func (t tautulliHistoryTask) Describe() string { return "tautulli-history" }

func (t tautulliHistoryTask) Run(ctx context.Context) Result {
	total, entries := t.client.History(ctx)
	return TautulliHistoryResult{TotalPlays: total, Entries: entries}
}

type plexSessionsTask struct{ client *providers.Plex }

func (t plexSessionsTask) Describe() string { return "plex-sessions/" + t.client.Name() }

func (t plexSessionsTask) Run(ctx context.Context) Result {
	return SessionsResult{
		Kind:     "plex",
		Name:     t.client.Name(),
		Users:    t.client.Users(ctx),
		Sessions: t.client.Sessions(ctx),
	}
}

type plexLibrariesTask struct{ client *providers.Plex }

func (t plexLibrariesTask) Describe() string { return "plex-libraries/" + t.client.Name() }

func (t plexLibrariesTask) Run(ctx context.Context) Result {
	return LibrariesResult{Kind: "plex", Name: t.client.Name(), Libraries: t.client.Libraries(ctx)}
}

type jellyfinSessionsTask struct{ client *providers.Jellyfin }

func (t jellyfinSessionsTask) Describe() string { return "jellyfin-sessions/" + t.client.Name() }

func (t jellyfinSessionsTask) Run(ctx context.Context) Result {
	return SessionsResult{
		Kind:     "jellyfin",
		Name:     t.client.Name(),
		Users:    t.client.Users(ctx),
		Sessions: t.client.Sessions(ctx),
	}
}

type jellyfinLibrariesTask struct{ client *providers.Jellyfin }

func (t jellyfinLibrariesTask) Describe() string { return "jellyfin-libraries/" + t.client.Name() }

func (t jellyfinLibrariesTask) Run(ctx context.Context) Result {
	return LibrariesResult{Kind: "jellyfin", Name: t.client.Name(), Libraries: t.client.LibraryCounts(ctx)}
}
