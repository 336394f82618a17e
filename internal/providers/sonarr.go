// Homers - Media Stack Prometheus Exporter
// Copyright 2026 tcheronneau
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tcheronneau/homers

package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tcheronneau/homers/internal/config"
	"github.com/tcheronneau/homers/internal/logging"
	"github.com/tcheronneau/homers/internal/models"
)

// missingWindowDays is how far back the missing-episode window reaches.
const missingWindowDays = 7

// Sonarr fetches calendar entries from one Sonarr instance.
type Sonarr struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client

	// now is overridable for tests.
	now func() time.Time
}

// NewSonarr creates an adapter for a named Sonarr instance.
func NewSonarr(name string, cfg config.ArrConfig) *Sonarr {
	return &Sonarr{
		name:    name,
		baseURL: cfg.Address,
		apiKey:  cfg.APIKey,
		client:  newHTTPClient(),
		now:     time.Now,
	}
}

// Name returns the configured instance name.
func (s *Sonarr) Name() string { return s.name }

// Today returns the episodes airing today. The window is the current local
// day, inclusive start and exclusive end.
func (s *Sonarr) Today(ctx context.Context) []models.SonarrEpisode {
	start := startOfDay(s.now())
	episodes, err := s.calendar(ctx, start, start.AddDate(0, 0, 1))
	if err != nil {
		logging.Error().Err(err).Str("instance", s.name).Msg("Sonarr calendar fetch failed")
		return nil
	}
	return episodes
}

// MissingLastWeek returns the episodes that aired in the last seven local
// days and still have no file.
func (s *Sonarr) MissingLastWeek(ctx context.Context) []models.SonarrEpisode {
	end := startOfDay(s.now())
	episodes, err := s.calendar(ctx, end.AddDate(0, 0, -missingWindowDays), end)
	if err != nil {
		logging.Error().Err(err).Str("instance", s.name).Msg("Sonarr calendar fetch failed")
		return nil
	}
	missing := episodes[:0]
	for _, ep := range episodes {
		if !ep.HasFile {
			missing = append(missing, ep)
		}
	}
	return missing
}

type sonarrCalendarEntry struct {
	SeasonNumber  int64  `json:"seasonNumber"`
	EpisodeNumber int64  `json:"episodeNumber"`
	Title         string `json:"title"`
	AirDate       string `json:"airDate"`
	HasFile       bool   `json:"hasFile"`
	Series        struct {
		Title string `json:"title"`
	} `json:"series"`
}

func (s *Sonarr) calendar(ctx context.Context, start, end time.Time) ([]models.SonarrEpisode, error) {
	url := fmt.Sprintf("%s/api/v3/calendar?start=%s&end=%s&includeSeries=true",
		s.baseURL, start.Format("2006-01-02"), end.Format("2006-01-02"))

	entries, err := getJSON[[]sonarrCalendarEntry](ctx, s.client, url, map[string]string{
		"X-Api-Key": s.apiKey,
	})
	if err != nil {
		return nil, err
	}

	episodes := make([]models.SonarrEpisode, 0, len(entries))
	for _, e := range entries {
		episodes = append(episodes, models.SonarrEpisode{
			SeasonNumber:  e.SeasonNumber,
			EpisodeNumber: e.EpisodeNumber,
			Title:         e.Title,
			Serie:         e.Series.Title,
			AirDate:       e.AirDate,
			HasFile:       e.HasFile,
		})
	}
	return episodes, nil
}

// startOfDay truncates t to midnight in the host's local timezone.
func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
