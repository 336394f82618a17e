// Homers - Media Stack Prometheus Exporter
// Copyright 2026 tcheronneau
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tcheronneau/homers

package providers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tcheronneau/homers/internal/config"
	"github.com/tcheronneau/homers/internal/logging"
	"github.com/tcheronneau/homers/internal/models"
)

// Radarr fetches the movie inventory from one Radarr instance.
type Radarr struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewRadarr creates an adapter for a named Radarr instance.
func NewRadarr(name string, cfg config.ArrConfig) *Radarr {
	return &Radarr{
		name:    name,
		baseURL: cfg.Address,
		apiKey:  cfg.APIKey,
		client:  newHTTPClient(),
	}
}

// Name returns the configured instance name.
func (r *Radarr) Name() string { return r.name }

type radarrMovie struct {
	Title       string `json:"title"`
	HasFile     bool   `json:"hasFile"`
	Monitored   bool   `json:"monitored"`
	IsAvailable bool   `json:"isAvailable"`
}

// Movies returns every movie known to the instance.
func (r *Radarr) Movies(ctx context.Context) []models.RadarrMovie {
	url := fmt.Sprintf("%s/api/v3/movie", r.baseURL)
	wire, err := getJSON[[]radarrMovie](ctx, r.client, url, map[string]string{
		"X-Api-Key": r.apiKey,
	})
	if err != nil {
		logging.Error().Err(err).Str("instance", r.name).Msg("Radarr movie fetch failed")
		return nil
	}

	movies := make([]models.RadarrMovie, 0, len(wire))
	for _, m := range wire {
		movies = append(movies, models.NewRadarrMovie(m.Title, m.HasFile, m.Monitored, m.IsAvailable))
	}
	return movies
}
