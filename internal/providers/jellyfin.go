// Homers - Media Stack Prometheus Exporter
// Copyright 2026 tcheronneau
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tcheronneau/homers

package providers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/tcheronneau/homers/internal/config"
	"github.com/tcheronneau/homers/internal/geoip"
	"github.com/tcheronneau/homers/internal/logging"
	"github.com/tcheronneau/homers/internal/models"
)

// Jellyfin fetches sessions, users and item counts from one Jellyfin
// instance.
type Jellyfin struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
	geo     *geoip.Resolver
}

// NewJellyfin creates an adapter for a named Jellyfin instance.
func NewJellyfin(name string, cfg config.JellyfinConfig, geo *geoip.Resolver) *Jellyfin {
	return &Jellyfin{
		name:    name,
		baseURL: cfg.Address,
		apiKey:  cfg.APIKey,
		client:  newHTTPClient(),
		geo:     geo,
	}
}

// Name returns the configured instance name.
func (j *Jellyfin) Name() string { return j.name }

func (j *Jellyfin) headers() map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("MediaBrowser Token=%q", j.apiKey),
	}
}

type jellyfinSession struct {
	UserName       string `json:"UserName"`
	Client         string `json:"Client"`
	RemoteEndPoint string `json:"RemoteEndPoint"`
	PlayState      struct {
		PositionTicks int64  `json:"PositionTicks"`
		IsPaused      bool   `json:"IsPaused"`
		PlayMethod    string `json:"PlayMethod"`
	} `json:"PlayState"`
	TranscodingInfo *jellyfinTranscodingInfo `json:"TranscodingInfo"`
	NowPlayingItem  *jellyfinItem            `json:"NowPlayingItem"`
}

type jellyfinTranscodingInfo struct {
	IsVideoDirect bool  `json:"IsVideoDirect"`
	Bitrate       int64 `json:"Bitrate"`
}

type jellyfinItem struct {
	Name              string `json:"Name"`
	SeriesName        string `json:"SeriesName"`
	Type              string `json:"Type"`
	RunTimeTicks      int64  `json:"RunTimeTicks"`
	ParentIndexNumber int64  `json:"ParentIndexNumber"`
	IndexNumber       int64  `json:"IndexNumber"`
	MediaStreams      []struct {
		Type         string `json:"Type"`
		DisplayTitle string `json:"DisplayTitle"`
	} `json:"MediaStreams"`
}

// Sessions returns the sessions currently playing media, geo-resolved.
// Idle sessions (no playing item) are skipped.
func (j *Jellyfin) Sessions(ctx context.Context) []models.Session {
	url := fmt.Sprintf("%s/Sessions", j.baseURL)
	wire, err := getJSON[[]jellyfinSession](ctx, j.client, url, j.headers())
	if err != nil {
		logging.Error().Err(err).Str("instance", j.name).Msg("Jellyfin session fetch failed")
		return nil
	}

	playing := wire[:0]
	for _, s := range wire {
		if s.NowPlayingItem != nil {
			playing = append(playing, s)
		}
	}

	sessions := make([]models.Session, len(playing))
	g := new(errgroup.Group)
	for i, s := range playing {
		g.Go(func() error {
			sessions[i] = j.normalizeSession(ctx, s)
			return nil
		})
	}
	_ = g.Wait()
	return sessions
}

func (j *Jellyfin) normalizeSession(ctx context.Context, s jellyfinSession) models.Session {
	item := s.NowPlayingItem

	out := models.Session{
		Title:     item.Name,
		User:      s.UserName,
		State:     "playing",
		MediaType: strings.ToLower(item.Type),
		Quality:   jellyfinQuality(s),
		Decision:  jellyfinDecision(s),
		Platform:  s.Client,
		Address:   s.RemoteEndPoint,
		Location:  j.geo.Resolve(ctx, s.RemoteEndPoint),
	}
	if s.PlayState.IsPaused {
		out.State = "paused"
	}
	if item.RunTimeTicks > 0 {
		out.Progress = float64(s.PlayState.PositionTicks) / float64(item.RunTimeTicks) * 100
	}
	if item.Type == "Episode" {
		if item.SeriesName != "" {
			out.Title = item.SeriesName
		}
		out.SeasonNumber = strconv.FormatInt(item.ParentIndexNumber, 10)
		out.EpisodeNumber = strconv.FormatInt(item.IndexNumber, 10)
	}
	if s.TranscodingInfo != nil {
		out.Bandwidth = models.Bandwidth{
			Kbps:     s.TranscodingInfo.Bitrate / 1000,
			Location: models.BandwidthUnknown,
		}
	}
	return out
}

// jellyfinQuality picks the video stream's display title.
func jellyfinQuality(s jellyfinSession) string {
	for _, stream := range s.NowPlayingItem.MediaStreams {
		if stream.Type == "Video" && stream.DisplayTitle != "" {
			return stream.DisplayTitle
		}
	}
	return ""
}

// jellyfinDecision maps the play method, refining Transcode to
// direct_stream when the video is passed through untouched.
func jellyfinDecision(s jellyfinSession) models.StreamDecision {
	switch s.PlayState.PlayMethod {
	case "DirectPlay":
		return models.DecisionDirectPlay
	case "DirectStream":
		return models.DecisionDirectStream
	case "Transcode":
		if s.TranscodingInfo != nil && s.TranscodingInfo.IsVideoDirect {
			return models.DecisionDirectStream
		}
		return models.DecisionTranscode
	default:
		return models.DecisionNone
	}
}

type jellyfinUser struct {
	Name string `json:"Name"`
}

// Users returns the accounts known to the server.
func (j *Jellyfin) Users(ctx context.Context) []models.User {
	url := fmt.Sprintf("%s/Users", j.baseURL)
	wire, err := getJSON[[]jellyfinUser](ctx, j.client, url, j.headers())
	if err != nil {
		logging.Error().Err(err).Str("instance", j.name).Msg("Jellyfin user fetch failed")
		return nil
	}

	users := make([]models.User, 0, len(wire))
	for _, u := range wire {
		if u.Name == "" {
			continue
		}
		users = append(users, models.User{Name: u.Name})
	}
	return users
}

type jellyfinItemCounts struct {
	MovieCount   int64 `json:"MovieCount"`
	SeriesCount  int64 `json:"SeriesCount"`
	EpisodeCount int64 `json:"EpisodeCount"`
	ArtistCount  int64 `json:"ArtistCount"`
	SongCount    int64 `json:"SongCount"`
	BookCount    int64 `json:"BookCount"`
}

// LibraryCounts expands the single Items/Counts response into one entry
// per media kind.
func (j *Jellyfin) LibraryCounts(ctx context.Context) []models.LibraryCount {
	url := fmt.Sprintf("%s/Items/Counts", j.baseURL)
	counts, err := getJSON[jellyfinItemCounts](ctx, j.client, url, j.headers())
	if err != nil {
		logging.Error().Err(err).Str("instance", j.name).Msg("Jellyfin item count fetch failed")
		return nil
	}

	return []models.LibraryCount{
		{Name: "Movies", MediaType: "movie", Count: counts.MovieCount},
		{Name: "Shows", MediaType: "show", Count: counts.SeriesCount, GrandChildCount: counts.EpisodeCount},
		{Name: "Music", MediaType: "music", Count: counts.ArtistCount, ChildCount: counts.SongCount},
		{Name: "Books", MediaType: "book", Count: counts.BookCount},
	}
}
