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

// Readarr fetches the author inventory from one Readarr instance.
type Readarr struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewReadarr creates an adapter for a named Readarr instance.
func NewReadarr(name string, cfg config.ArrConfig) *Readarr {
	return &Readarr{
		name:    name,
		baseURL: cfg.Address,
		apiKey:  cfg.APIKey,
		client:  newHTTPClient(),
	}
}

// Name returns the configured instance name.
func (r *Readarr) Name() string { return r.name }

type readarrAuthor struct {
	AuthorName string `json:"authorName"`
	Monitored  bool   `json:"monitored"`
	Statistics struct {
		BookCount     int64 `json:"bookCount"`
		BookFileCount int64 `json:"bookFileCount"`
	} `json:"statistics"`
}

// Authors returns every author known to the instance.
func (r *Readarr) Authors(ctx context.Context) []models.ReadarrAuthor {
	url := fmt.Sprintf("%s/api/v1/author", r.baseURL)
	wire, err := getJSON[[]readarrAuthor](ctx, r.client, url, map[string]string{
		"X-Api-Key": r.apiKey,
	})
	if err != nil {
		logging.Error().Err(err).Str("instance", r.name).Msg("Readarr author fetch failed")
		return nil
	}

	authors := make([]models.ReadarrAuthor, 0, len(wire))
	for _, a := range wire {
		authors = append(authors, models.ReadarrAuthor{
			Name:          a.AuthorName,
			Monitored:     a.Monitored,
			BookCount:     a.Statistics.BookCount,
			BookFileCount: a.Statistics.BookFileCount,
		})
	}
	return authors
}
