// Homers - Media Stack Prometheus Exporter
// Copyright 2026 tcheronneau
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tcheronneau/homers

package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/tcheronneau/homers/internal/config"
	"github.com/tcheronneau/homers/internal/geoip"
	"github.com/tcheronneau/homers/internal/logging"
	"github.com/tcheronneau/homers/internal/models"
)

// historyLength is how many history rows are fetched per scrape. Large
// enough to cover a day of plays on a busy server.
const historyLength = 1000

// Tautulli fetches activity, library and history data from a Tautulli
// instance through its single /api/v2 endpoint.
type Tautulli struct {
	baseURL string
	apiKey  string
	client  *http.Client
	geo     *geoip.Resolver
}

// NewTautulli creates the Tautulli adapter.
func NewTautulli(cfg config.TautulliConfig, geo *geoip.Resolver) *Tautulli {
	return &Tautulli{
		baseURL: cfg.Address,
		apiKey:  cfg.APIKey,
		client:  newHTTPClient(),
		geo:     geo,
	}
}

// tautulliEnvelope is the common response wrapper of /api/v2.
type tautulliEnvelope[T any] struct {
	Response struct {
		Result  string `json:"result"`
		Message string `json:"message"`
		Data    T      `json:"data"`
	} `json:"response"`
}

// tautulliCommand calls one API command and unwraps the envelope.
// The apikey query parameter is a secret; it never appears in logs.
func tautulliCommand[T any](ctx context.Context, t *Tautulli, cmd string, params url.Values) (T, error) {
	var zero T

	q := url.Values{}
	q.Set("apikey", t.apiKey)
	q.Set("cmd", cmd)
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}

	reqURL := fmt.Sprintf("%s/api/v2?%s", t.baseURL, q.Encode())
	envelope, err := getJSON[tautulliEnvelope[T]](ctx, t.client, reqURL, nil)
	if err != nil {
		return zero, fmt.Errorf("tautulli %s failed: %w", cmd, err)
	}
	if envelope.Response.Result != "success" {
		return zero, fmt.Errorf("tautulli %s returned %q: %s", cmd, envelope.Response.Result, envelope.Response.Message)
	}
	return envelope.Response.Data, nil
}

type tautulliActivity struct {
	Sessions []tautulliSession `json:"sessions"`
}

// tautulliSession mirrors a get_activity session. Tautulli serialises most
// numeric fields as strings.
type tautulliSession struct {
	User             string `json:"user"`
	FriendlyName     string `json:"friendly_name"`
	Title            string `json:"title"`
	GrandparentTitle string `json:"grandparent_title"`
	ParentMediaIndex string `json:"parent_media_index"`
	MediaIndex       string `json:"media_index"`
	MediaType        string `json:"media_type"`
	State            string `json:"state"`
	ProgressPercent  string `json:"progress_percent"`
	VideoResolution  string `json:"video_full_resolution"`
	QualityProfile   string `json:"quality_profile"`
	VideoDecision    string `json:"video_decision"`
	IPAddress        string `json:"ip_address"`
	Local            int64  `json:"local"`
	Secure           int64  `json:"secure"`
	Relayed          int64  `json:"relayed"`
}

// Sessions returns the current activity, geo-resolved per session.
func (t *Tautulli) Sessions(ctx context.Context) []models.TautulliSession {
	activity, err := tautulliCommand[tautulliActivity](ctx, t, "get_activity", nil)
	if err != nil {
		logging.Error().Err(err).Msg("Tautulli activity fetch failed")
		return nil
	}

	sessions := make([]models.TautulliSession, len(activity.Sessions))
	g := new(errgroup.Group)
	for i, s := range activity.Sessions {
		g.Go(func() error {
			sessions[i] = t.normalizeSession(ctx, s)
			return nil
		})
	}
	_ = g.Wait()
	return sessions
}

func (t *Tautulli) normalizeSession(ctx context.Context, s tautulliSession) models.TautulliSession {
	out := models.TautulliSession{
		User:           s.FriendlyName,
		Title:          s.Title,
		State:          s.State,
		MediaType:      s.MediaType,
		Progress:       parseFloat(s.ProgressPercent),
		Quality:        s.VideoResolution,
		QualityProfile: s.QualityProfile,
		VideoStream:    s.VideoDecision,
		Address:        s.IPAddress,
		Local:          s.Local != 0,
		Secure:         s.Secure != 0,
		Relayed:        s.Relayed != 0,
		Location:       t.geo.Resolve(ctx, s.IPAddress),
	}
	if out.User == "" {
		out.User = s.User
	}
	if s.MediaType == "episode" {
		out.Title = s.GrandparentTitle
		out.SeasonNumber = s.ParentMediaIndex
		out.EpisodeNumber = s.MediaIndex
	}
	return out
}

type tautulliLibrary struct {
	SectionName string `json:"section_name"`
	SectionType string `json:"section_type"`
	Count       string `json:"count"`
	ParentCount string `json:"parent_count"`
	ChildCount  string `json:"child_count"`
	IsActive    int64  `json:"is_active"`
}

// Libraries returns all library sections.
func (t *Tautulli) Libraries(ctx context.Context) []models.TautulliLibrary {
	wire, err := tautulliCommand[[]tautulliLibrary](ctx, t, "get_libraries", nil)
	if err != nil {
		logging.Error().Err(err).Msg("Tautulli library fetch failed")
		return nil
	}

	libraries := make([]models.TautulliLibrary, 0, len(wire))
	for _, l := range wire {
		libraries = append(libraries, models.TautulliLibrary{
			SectionName: l.SectionName,
			SectionType: l.SectionType,
			Count:       parseInt(l.Count),
			ParentCount: parseInt(l.ParentCount),
			ChildCount:  parseInt(l.ChildCount),
			Active:      l.IsActive != 0,
		})
	}
	return libraries
}

type tautulliHistoryPage struct {
	RecordsTotal int64 `json:"recordsTotal"`
	Data         []struct {
		Date          int64   `json:"date"`
		User          string  `json:"user"`
		FriendlyName  string  `json:"friendly_name"`
		MediaType     string  `json:"media_type"`
		WatchedStatus float64 `json:"watched_status"`
	} `json:"data"`
}

// History returns the all-time play count and the most recent history
// entries.
func (t *Tautulli) History(ctx context.Context) (int64, []models.TautulliHistoryEntry) {
	params := url.Values{}
	params.Set("length", strconv.Itoa(historyLength))

	page, err := tautulliCommand[tautulliHistoryPage](ctx, t, "get_history", params)
	if err != nil {
		logging.Error().Err(err).Msg("Tautulli history fetch failed")
		return 0, nil
	}

	entries := make([]models.TautulliHistoryEntry, 0, len(page.Data))
	for _, e := range page.Data {
		entries = append(entries, models.TautulliHistoryEntry{
			Date:          e.Date,
			User:          e.User,
			FriendlyName:  e.FriendlyName,
			MediaType:     e.MediaType,
			WatchedStatus: e.WatchedStatus,
		})
	}
	return page.RecordsTotal, entries
}

// parseInt reads a Tautulli string-encoded integer, returning 0 for empty
// or malformed values.
func parseInt(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseFloat reads a Tautulli string-encoded float, returning 0 for empty
// or malformed values.
func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
