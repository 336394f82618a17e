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

// Lidarr fetches the artist inventory from one Lidarr instance.
type Lidarr struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewLidarr creates an adapter for a named Lidarr instance.
func NewLidarr(name string, cfg config.ArrConfig) *Lidarr {
	return &Lidarr{
		name:    name,
		baseURL: cfg.Address,
		apiKey:  cfg.APIKey,
		client:  newHTTPClient(),
	}
}

// Name returns the configured instance name.
func (l *Lidarr) Name() string { return l.name }

type lidarrArtist struct {
	ArtistName string `json:"artistName"`
	Monitored  bool   `json:"monitored"`
	Statistics struct {
		TrackCount     int64 `json:"trackCount"`
		TrackFileCount int64 `json:"trackFileCount"`
	} `json:"statistics"`
}

// Artists returns every artist known to the instance.
func (l *Lidarr) Artists(ctx context.Context) []models.LidarrArtist {
	url := fmt.Sprintf("%s/api/v1/artist", l.baseURL)
	wire, err := getJSON[[]lidarrArtist](ctx, l.client, url, map[string]string{
		"X-Api-Key": l.apiKey,
	})
	if err != nil {
		logging.Error().Err(err).Str("instance", l.name).Msg("Lidarr artist fetch failed")
		return nil
	}

	artists := make([]models.LidarrArtist, 0, len(wire))
	for _, a := range wire {
		artists = append(artists, models.LidarrArtist{
			Name:           a.ArtistName,
			Monitored:      a.Monitored,
			TrackCount:     a.Statistics.TrackCount,
			TrackFileCount: a.Statistics.TrackFileCount,
		})
	}
	return artists
}
