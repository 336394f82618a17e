// Homers - Media Stack Prometheus Exporter
// Copyright 2026 tcheronneau
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tcheronneau/homers

package providers

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/tcheronneau/homers/internal/config"
	"github.com/tcheronneau/homers/internal/logging"
	"github.com/tcheronneau/homers/internal/models"
)

// unknownTitle substitutes for titles and usernames that cannot be
// resolved.
const unknownTitle = "Unknown"

// Overseerr fetches media requests from an Overseerr or Jellyseerr
// instance. The two products share the same API; Kind distinguishes them
// in metric names.
type Overseerr struct {
	kind    string
	baseURL string
	apiKey  string
	take    int
	client  *http.Client
}

// NewOverseerr creates an adapter. kind is "overseerr" or "jellyseerr".
func NewOverseerr(kind string, cfg config.OverseerrConfig) *Overseerr {
	take := cfg.Requests
	if take <= 0 {
		take = 20
	}
	return &Overseerr{
		kind:    kind,
		baseURL: cfg.Address,
		apiKey:  cfg.APIKey,
		take:    take,
		client:  newHTTPClient(),
	}
}

// Kind returns "overseerr" or "jellyseerr".
func (o *Overseerr) Kind() string { return o.kind }

type overseerrRequestsPage struct {
	Results []overseerrRequest `json:"results"`
}

type overseerrRequest struct {
	Status    int64  `json:"status"`
	CreatedAt string `json:"createdAt"`
	Media     struct {
		TmdbID    int64  `json:"tmdbId"`
		MediaType string `json:"mediaType"`
		Status    int64  `json:"status"`
	} `json:"media"`
	RequestedBy struct {
		Username     string `json:"username"`
		PlexUsername string `json:"plexUsername"`
	} `json:"requestedBy"`
}

type overseerrMovie struct {
	OriginalTitle string `json:"originalTitle"`
}

type overseerrTV struct {
	Name string `json:"name"`
}

// Requests returns the most recent requests, hydrated with their media
// titles. Title fetches run in parallel across requests; a failed title
// fetch substitutes "Unknown".
func (o *Overseerr) Requests(ctx context.Context) []models.OverseerrRequest {
	url := fmt.Sprintf("%s/api/v1/request?sort=added&take=%d", o.baseURL, o.take)
	page, err := getJSON[overseerrRequestsPage](ctx, o.client, url, o.headers())
	if err != nil {
		logging.Error().Err(err).Str("kind", o.kind).Msg("Request fetch failed")
		return nil
	}

	requests := make([]models.OverseerrRequest, len(page.Results))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range page.Results {
		g.Go(func() error {
			requests[i] = models.OverseerrRequest{
				MediaType:     r.Media.MediaType,
				MediaID:       r.Media.TmdbID,
				RequestStatus: r.Status,
				MediaStatus:   r.Media.Status,
				RequestedBy:   requesterName(r),
				MediaTitle:    o.mediaTitle(gctx, r.Media.MediaType, r.Media.TmdbID),
				RequestedAt:   r.CreatedAt,
			}
			return nil
		})
	}
	_ = g.Wait()
	return requests
}

// mediaTitle resolves the display title for a request's media item.
func (o *Overseerr) mediaTitle(ctx context.Context, mediaType string, tmdbID int64) string {
	switch mediaType {
	case "movie":
		url := fmt.Sprintf("%s/api/v1/movie/%d", o.baseURL, tmdbID)
		movie, err := getJSON[overseerrMovie](ctx, o.client, url, o.headers())
		if err != nil || movie.OriginalTitle == "" {
			o.logTitleMiss(err, mediaType, tmdbID)
			return unknownTitle
		}
		return movie.OriginalTitle
	case "tv":
		url := fmt.Sprintf("%s/api/v1/tv/%d", o.baseURL, tmdbID)
		tv, err := getJSON[overseerrTV](ctx, o.client, url, o.headers())
		if err != nil || tv.Name == "" {
			o.logTitleMiss(err, mediaType, tmdbID)
			return unknownTitle
		}
		return tv.Name
	default:
		return unknownTitle
	}
}

func (o *Overseerr) logTitleMiss(err error, mediaType string, tmdbID int64) {
	logging.Debug().
		Err(err).
		Str("kind", o.kind).
		Str("media_type", mediaType).
		Int64("tmdb_id", tmdbID).
		Msg("Media title lookup failed")
}

func (o *Overseerr) headers() map[string]string {
	return map[string]string{"X-Api-Key": o.apiKey}
}

// requesterName falls back across username, Plex username, "Unknown".
func requesterName(r overseerrRequest) string {
	if r.RequestedBy.Username != "" {
		return r.RequestedBy.Username
	}
	if r.RequestedBy.PlexUsername != "" {
		return r.RequestedBy.PlexUsername
	}
	return unknownTitle
}
