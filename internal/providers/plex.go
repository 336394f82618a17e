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

	"golang.org/x/sync/errgroup"

	"github.com/tcheronneau/homers/internal/config"
	"github.com/tcheronneau/homers/internal/geoip"
	"github.com/tcheronneau/homers/internal/logging"
	"github.com/tcheronneau/homers/internal/models"
)

// plexVideoStreamType is the Plex stream type id for video streams.
const plexVideoStreamType = 1

// Plex fetches sessions, libraries and account data from one Plex Media
// Server instance.
type Plex struct {
	name    string
	baseURL string
	token   string
	client  *http.Client
	geo     *geoip.Resolver
}

// NewPlex creates an adapter for a named Plex instance.
func NewPlex(name string, cfg config.PlexConfig, geo *geoip.Resolver) *Plex {
	return &Plex{
		name:    name,
		baseURL: cfg.Address,
		token:   cfg.Token,
		client:  newHTTPClient(),
		geo:     geo,
	}
}

// Name returns the configured instance name.
func (p *Plex) Name() string { return p.name }

func (p *Plex) headers() map[string]string {
	return map[string]string{
		"X-Plex-Token":          p.token,
		"X-Plex-Container-Size": "1000",
	}
}

type plexSessionsResponse struct {
	MediaContainer struct {
		Metadata []plexSessionMetadata `json:"Metadata"`
	} `json:"MediaContainer"`
}

type plexSessionMetadata struct {
	Title            string `json:"title"`
	GrandparentTitle string `json:"grandparentTitle"`
	Type             string `json:"type"`
	ParentIndex      int64  `json:"parentIndex"`
	Index            int64  `json:"index"`
	ViewOffset       int64  `json:"viewOffset"`
	Duration         int64  `json:"duration"`
	User             struct {
		Title string `json:"title"`
	} `json:"User"`
	Player struct {
		State               string `json:"state"`
		Platform            string `json:"platform"`
		Address             string `json:"address"`
		RemotePublicAddress string `json:"remotePublicAddress"`
		Local               bool   `json:"local"`
		Relayed             bool   `json:"relayed"`
		Secure              bool   `json:"secure"`
	} `json:"Player"`
	Session struct {
		Bandwidth int64  `json:"bandwidth"`
		Location  string `json:"location"`
	} `json:"Session"`
	Media []plexMedia `json:"Media"`
}

type plexMedia struct {
	VideoResolution string     `json:"videoResolution"`
	Part            []plexPart `json:"Part"`
}

type plexPart struct {
	Decision string       `json:"decision"`
	Stream   []plexStream `json:"Stream"`
}

type plexStream struct {
	StreamType   int64  `json:"streamType"`
	Decision     string `json:"decision"`
	DisplayTitle string `json:"displayTitle"`
}

// Sessions returns the current playback sessions, geo-resolved.
func (p *Plex) Sessions(ctx context.Context) []models.Session {
	url := fmt.Sprintf("%s/status/sessions", p.baseURL)
	wire, err := getJSON[plexSessionsResponse](ctx, p.client, url, p.headers())
	if err != nil {
		logging.Error().Err(err).Str("instance", p.name).Msg("Plex session fetch failed")
		return nil
	}

	sessions := make([]models.Session, len(wire.MediaContainer.Metadata))
	g := new(errgroup.Group)
	for i, m := range wire.MediaContainer.Metadata {
		g.Go(func() error {
			sessions[i] = p.normalizeSession(ctx, m)
			return nil
		})
	}
	_ = g.Wait()
	return sessions
}

func (p *Plex) normalizeSession(ctx context.Context, m plexSessionMetadata) models.Session {
	s := models.Session{
		Title:         m.Title,
		User:          m.User.Title,
		State:         m.Player.State,
		MediaType:     m.Type,
		Quality:       plexQuality(m.Media),
		Decision:      plexDecision(m.Media),
		Platform:      m.Player.Platform,
		Address:       m.Player.Address,
		PublicAddress: m.Player.RemotePublicAddress,
		Local:         m.Player.Local,
		Secure:        m.Player.Secure,
		Relayed:       m.Player.Relayed,
		Bandwidth: models.Bandwidth{
			Kbps:     m.Session.Bandwidth,
			Location: plexBandwidthLocation(m.Session.Location),
		},
	}
	if m.GrandparentTitle != "" {
		s.Title = m.GrandparentTitle
	}
	if m.Duration > 0 {
		s.Progress = float64(m.ViewOffset) / float64(m.Duration) * 100
	}
	if m.Type == "episode" {
		s.SeasonNumber = strconv.FormatInt(m.ParentIndex, 10)
		s.EpisodeNumber = strconv.FormatInt(m.Index, 10)
	}

	geoIP := m.Player.RemotePublicAddress
	if geoIP == "" {
		geoIP = m.Player.Address
	}
	s.Location = p.geo.Resolve(ctx, geoIP)
	return s
}

// plexQuality picks the video stream's display title, falling back to the
// media's raw resolution.
func plexQuality(media []plexMedia) string {
	for _, m := range media {
		for _, part := range m.Part {
			for _, stream := range part.Stream {
				if stream.StreamType == plexVideoStreamType && stream.DisplayTitle != "" {
					return stream.DisplayTitle
				}
			}
		}
	}
	if len(media) > 0 {
		return media[0].VideoResolution
	}
	return ""
}

// plexDecision derives the stream decision from the part-level decision
// and the video stream decision.
func plexDecision(media []plexMedia) models.StreamDecision {
	for _, m := range media {
		for _, part := range m.Part {
			switch part.Decision {
			case "directplay":
				return models.DecisionDirectPlay
			case "transcode":
				for _, stream := range part.Stream {
					if stream.StreamType == plexVideoStreamType && stream.Decision == "copy" {
						return models.DecisionDirectStream
					}
				}
				return models.DecisionTranscode
			}
		}
	}
	return models.DecisionNone
}

func plexBandwidthLocation(location string) models.BandwidthLocation {
	switch location {
	case "lan":
		return models.BandwidthLAN
	case "wan":
		return models.BandwidthWAN
	default:
		return models.BandwidthUnknown
	}
}

type plexBandwidthResponse struct {
	MediaContainer struct {
		Account []struct {
			Name string `json:"name"`
		} `json:"Account"`
	} `json:"MediaContainer"`
}

// Users returns the accounts known to the server, taken from the
// bandwidth statistics endpoint. A default (empty) container yields no
// users.
func (p *Plex) Users(ctx context.Context) []models.User {
	url := fmt.Sprintf("%s/statistics/bandwidth?timespan=0", p.baseURL)
	wire, err := getJSON[plexBandwidthResponse](ctx, p.client, url, p.headers())
	if err != nil {
		logging.Error().Err(err).Str("instance", p.name).Msg("Plex account fetch failed")
		return nil
	}

	users := make([]models.User, 0, len(wire.MediaContainer.Account))
	for _, a := range wire.MediaContainer.Account {
		if a.Name == "" {
			continue
		}
		users = append(users, models.User{Name: a.Name})
	}
	return users
}

type plexSectionsResponse struct {
	MediaContainer struct {
		Directory []struct {
			Key   string `json:"key"`
			Title string `json:"title"`
			Type  string `json:"type"`
		} `json:"Directory"`
	} `json:"MediaContainer"`
}

type plexSectionItemsResponse struct {
	MediaContainer struct {
		Size     int64 `json:"size"`
		Metadata []struct {
			ChildCount int64 `json:"childCount"`
			LeafCount  int64 `json:"leafCount"`
		} `json:"Metadata"`
	} `json:"MediaContainer"`
}

// Libraries returns per-library item counts. Show libraries aggregate
// season and episode counts across their entries.
func (p *Plex) Libraries(ctx context.Context) []models.LibraryCount {
	url := fmt.Sprintf("%s/library/sections", p.baseURL)
	wire, err := getJSON[plexSectionsResponse](ctx, p.client, url, p.headers())
	if err != nil {
		logging.Error().Err(err).Str("instance", p.name).Msg("Plex library fetch failed")
		return nil
	}

	directories := wire.MediaContainer.Directory
	libraries := make([]models.LibraryCount, len(directories))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range directories {
		g.Go(func() error {
			lc, err := p.libraryCount(gctx, d.Key, d.Title, d.Type)
			if err != nil {
				logging.Error().
					Err(err).
					Str("instance", p.name).
					Str("library", d.Title).
					Msg("Plex library item fetch failed")
				lc = models.LibraryCount{Name: d.Title, MediaType: plexLibraryType(d.Type)}
			}
			libraries[i] = lc
			return nil
		})
	}
	_ = g.Wait()
	return libraries
}

func (p *Plex) libraryCount(ctx context.Context, key, title, sectionType string) (models.LibraryCount, error) {
	url := fmt.Sprintf("%s/library/sections/%s/all", p.baseURL, key)
	items, err := getJSON[plexSectionItemsResponse](ctx, p.client, url, p.headers())
	if err != nil {
		return models.LibraryCount{}, err
	}

	lc := models.LibraryCount{
		Name:      title,
		MediaType: plexLibraryType(sectionType),
		Count:     items.MediaContainer.Size,
	}
	if lc.MediaType == "show" {
		for _, m := range items.MediaContainer.Metadata {
			lc.ChildCount += m.ChildCount
			lc.GrandChildCount += m.LeafCount
		}
	}
	return lc, nil
}

func plexLibraryType(sectionType string) string {
	switch sectionType {
	case "movie":
		return "movie"
	case "show":
		return "show"
	case "artist":
		return "music"
	default:
		return "unknown"
	}
}
