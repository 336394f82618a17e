// Homers - Media Stack Prometheus Exporter
// Copyright 2026 tcheronneau
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tcheronneau/homers

// Package metrics lifts task results into Prometheus gauge families and
// serialises them in the negotiated text format.
//
// Every scrape gets a fresh registry under the "homers" namespace, so
// series for entities that disappeared between scrapes vanish instead of
// going stale. Families are created lazily and shared across results of
// the same kind: two Sonarr instances produce one family with
// label-disambiguated series.
package metrics

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/tcheronneau/homers/internal/models"
	"github.com/tcheronneau/homers/internal/tasks"
)

// Namespace prefixes every metric family.
const Namespace = "homers"

// Format selects the text serialisation dialect.
type Format int

const (
	// FormatPrometheus is the line-oriented text dialect.
	FormatPrometheus Format = iota

	// FormatOpenMetrics is the OpenMetrics 1.0.0 dialect with an # EOF
	// trailer.
	FormatOpenMetrics
)

// Exact content types advertised to scrapers.
const (
	ContentTypePrometheus  = "text/plain; version=0.0.4; charset=utf-8"
	ContentTypeOpenMetrics = "application/openmetrics-text; version=1.0.0; charset=utf-8"
)

// ContentType returns the HTTP content type for the format.
func (f Format) ContentType() string {
	if f == FormatOpenMetrics {
		return ContentTypeOpenMetrics
	}
	return ContentTypePrometheus
}

// Negotiate picks the format from an Accept header. Any media type whose
// sub-type is openmetrics-text selects OpenMetrics; everything else,
// including an absent header, selects the Prometheus dialect.
func Negotiate(accept string) Format {
	for _, part := range strings.Split(accept, ",") {
		mediaType := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if _, subtype, ok := strings.Cut(mediaType, "/"); ok && subtype == "openmetrics-text" {
			return FormatOpenMetrics
		}
	}
	return FormatPrometheus
}

// Encode builds a fresh registry from the results and serialises it.
// It returns the content type alongside the body.
func Encode(results []tasks.Result, format Format) (string, []byte, error) {
	return newEncoder().encode(results, format)
}

// encoder accumulates gauge families for one scrape.
type encoder struct {
	registry *prometheus.Registry
	gauges   map[string]*prometheus.GaugeVec

	// now is overridable for history-window tests.
	now func() time.Time
}

func newEncoder() *encoder {
	return &encoder{
		registry: prometheus.NewRegistry(),
		gauges:   make(map[string]*prometheus.GaugeVec),
		now:      time.Now,
	}
}

func (e *encoder) encode(results []tasks.Result, format Format) (string, []byte, error) {
	for _, result := range results {
		e.collect(result)
	}

	families, err := e.gather()
	if err != nil {
		return "", nil, fmt.Errorf("failed to gather metrics: %w", err)
	}

	expFormat := expfmt.NewFormat(expfmt.TypeTextPlain)
	if format == FormatOpenMetrics {
		expFormat = expfmt.NewFormat(expfmt.TypeOpenMetrics)
	}

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expFormat)
	for _, family := range families {
		if err := enc.Encode(family); err != nil {
			return "", nil, fmt.Errorf("failed to encode metrics: %w", err)
		}
	}
	if closer, ok := enc.(expfmt.Closer); ok {
		if err := closer.Close(); err != nil {
			return "", nil, fmt.Errorf("failed to finalize metrics: %w", err)
		}
	}
	return format.ContentType(), buf.Bytes(), nil
}

func (e *encoder) gather() ([]*dto.MetricFamily, error) {
	return e.registry.Gather()
}

// gauge returns the family for name, creating and registering it on first
// use. Registration is idempotent within the scrape.
func (e *encoder) gauge(name, help string, labels ...string) *prometheus.GaugeVec {
	if gv, ok := e.gauges[name]; ok {
		return gv
	}
	gv := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      name,
		Help:      help,
	}, labels)
	e.registry.MustRegister(gv)
	e.gauges[name] = gv
	return gv
}

func (e *encoder) collect(result tasks.Result) {
	switch r := result.(type) {
	case tasks.SonarrTodayResult:
		e.collectSonarr("today", r.Name, r.Episodes)
	case tasks.SonarrMissingResult:
		e.collectSonarr("missing", r.Name, r.Episodes)
	case tasks.RadarrResult:
		e.collectRadarr(r)
	case tasks.LidarrResult:
		e.collectLidarr(r)
	case tasks.ReadarrResult:
		e.collectReadarr(r)
	case tasks.RequestsResult:
		e.collectRequests(r)
	case tasks.TautulliSessionsResult:
		e.collectTautulliSessions(r)
	case tasks.TautulliLibrariesResult:
		e.collectTautulliLibraries(r)
	case tasks.TautulliHistoryResult:
		e.collectTautulliHistory(r)
	case tasks.SessionsResult:
		e.collectSessions(r)
	case tasks.LibrariesResult:
		e.collectLibraries(r)
	}
}

func (e *encoder) collectSonarr(window, name string, episodes []models.SonarrEpisode) {
	episodeGauge := e.gauge(
		fmt.Sprintf("sonarr_%s_episode", window),
		fmt.Sprintf("Sonarr %s episode status (1 = has file)", window),
		"name", "season_number", "episode_number", "title", "serie", "sxe",
	)
	totalGauge := e.gauge(
		fmt.Sprintf("sonarr_%s_episodes_total", window),
		fmt.Sprintf("Number of Sonarr %s episodes", window),
		"name",
	)

	for _, ep := range episodes {
		episodeGauge.WithLabelValues(
			name,
			strconv.FormatInt(ep.SeasonNumber, 10),
			strconv.FormatInt(ep.EpisodeNumber, 10),
			ep.Title,
			ep.Serie,
			ep.SXE(),
		).Set(boolValue(ep.HasFile))
	}
	totalGauge.WithLabelValues(name).Set(float64(len(episodes)))
}

func (e *encoder) collectRadarr(r tasks.RadarrResult) {
	hasFile := e.gauge("radarr_movie_has_file", "Radarr movie has a file on disk", "name", "title")
	monitored := e.gauge("radarr_movie_monitored", "Radarr movie is monitored", "name", "title")
	available := e.gauge("radarr_movie_available", "Radarr movie is available", "name", "title")

	var monitoredTotal, missingTotal float64
	for _, m := range r.Movies {
		hasFile.WithLabelValues(r.Name, m.Title).Set(boolValue(m.HasFile))
		monitored.WithLabelValues(r.Name, m.Title).Set(boolValue(m.Monitored))
		available.WithLabelValues(r.Name, m.Title).Set(boolValue(m.IsAvailable))
		if m.Monitored {
			monitoredTotal++
		}
		if m.MissingAvailable {
			missingTotal++
		}
	}

	e.gauge("radarr_movies_total", "Number of Radarr movies", "name").
		WithLabelValues(r.Name).Set(float64(len(r.Movies)))
	e.gauge("radarr_monitored_total", "Number of monitored Radarr movies", "name").
		WithLabelValues(r.Name).Set(monitoredTotal)
	e.gauge("radarr_missing_total", "Number of available Radarr movies without a file", "name").
		WithLabelValues(r.Name).Set(missingTotal)
}

func (e *encoder) collectLidarr(r tasks.LidarrResult) {
	monitored := e.gauge("lidarr_artist_monitored", "Lidarr artist is monitored", "name", "artist")

	var monitoredTotal, tracksTotal float64
	for _, a := range r.Artists {
		monitored.WithLabelValues(r.Name, a.Name).Set(boolValue(a.Monitored))
		if a.Monitored {
			monitoredTotal++
		}
		tracksTotal += float64(a.TrackFileCount)
	}

	e.gauge("lidarr_artists_total", "Number of Lidarr artists", "name").
		WithLabelValues(r.Name).Set(float64(len(r.Artists)))
	e.gauge("lidarr_monitored_artists_total", "Number of monitored Lidarr artists", "name").
		WithLabelValues(r.Name).Set(monitoredTotal)
	e.gauge("lidarr_tracks_total", "Number of Lidarr track files", "name").
		WithLabelValues(r.Name).Set(tracksTotal)
}

func (e *encoder) collectReadarr(r tasks.ReadarrResult) {
	monitored := e.gauge("readarr_author_monitored", "Readarr author is monitored", "name", "author")

	var monitoredTotal, booksTotal float64
	for _, a := range r.Authors {
		monitored.WithLabelValues(r.Name, a.Name).Set(boolValue(a.Monitored))
		if a.Monitored {
			monitoredTotal++
		}
		booksTotal += float64(a.BookFileCount)
	}

	e.gauge("readarr_authors_total", "Number of Readarr authors", "name").
		WithLabelValues(r.Name).Set(float64(len(r.Authors)))
	e.gauge("readarr_monitored_authors_total", "Number of monitored Readarr authors", "name").
		WithLabelValues(r.Name).Set(monitoredTotal)
	e.gauge("readarr_books_total", "Number of Readarr book files", "name").
		WithLabelValues(r.Name).Set(booksTotal)
}

func (e *encoder) collectRequests(r tasks.RequestsResult) {
	requestStatus := e.gauge(
		r.Kind+"_request_status",
		"Media request status code (1 pending, 2 approved, 3 declined)",
		"media_type", "requested_by", "media_title",
	)
	mediaStatus := e.gauge(
		r.Kind+"_media_status",
		"Requested media availability code (1 unknown through 5 available)",
		"media_type", "requested_by", "media_title",
	)

	var pending, approved, declined float64
	for _, req := range r.Requests {
		requestStatus.WithLabelValues(req.MediaType, req.RequestedBy, req.MediaTitle).
			Set(float64(req.RequestStatus))
		mediaStatus.WithLabelValues(req.MediaType, req.RequestedBy, req.MediaTitle).
			Set(float64(req.MediaStatus))
		switch req.RequestStatus {
		case models.RequestStatusPending:
			pending++
		case models.RequestStatusApproved:
			approved++
		case models.RequestStatusDeclined:
			declined++
		}
	}

	e.gauge(r.Kind+"_requests_total", "Number of media requests", "name").
		WithLabelValues(r.Kind).Set(float64(len(r.Requests)))
	e.gauge(r.Kind+"_requests_pending_total", "Number of pending media requests", "name").
		WithLabelValues(r.Kind).Set(pending)
	e.gauge(r.Kind+"_requests_approved_total", "Number of approved media requests", "name").
		WithLabelValues(r.Kind).Set(approved)
	e.gauge(r.Kind+"_requests_declined_total", "Number of declined media requests", "name").
		WithLabelValues(r.Kind).Set(declined)
}

func (e *encoder) collectTautulliSessions(r tasks.TautulliSessionsResult) {
	e.gauge("tautulli_session_count", "Number of active Tautulli sessions").
		WithLabelValues().Set(float64(len(r.Sessions)))

	info := e.gauge(
		"tautulli_session_info",
		"Active Tautulli session",
		"user", "title", "state", "media_type", "quality", "quality_profile", "video_stream",
	)
	progress := e.gauge("tautulli_session_progress", "Tautulli session progress percent", "user", "title")
	location := e.gauge(
		"tautulli_session_location",
		"Tautulli session location",
		"user", "title", "city", "country", "latitude", "longitude",
	)

	for _, s := range r.Sessions {
		info.WithLabelValues(s.User, s.Title, s.State, s.MediaType, s.Quality, s.QualityProfile, s.VideoStream).Set(1)
		progress.WithLabelValues(s.User, s.Title).Set(s.Progress)
		location.WithLabelValues(
			s.User, s.Title,
			s.Location.City, s.Location.Country,
			s.Location.Latitude, s.Location.Longitude,
		).Set(1)
	}
}

func (e *encoder) collectTautulliLibraries(r tasks.TautulliLibrariesResult) {
	itemCount := e.gauge("tautulli_library_item_count", "Tautulli library item count", "section_name", "section_type")
	parentCount := e.gauge("tautulli_library_parent_count", "Tautulli library parent count", "section_name", "section_type")
	childCount := e.gauge("tautulli_library_child_count", "Tautulli library child count", "section_name", "section_type")
	active := e.gauge("tautulli_library_active", "Tautulli library is active", "section_name", "section_type")

	for _, l := range r.Libraries {
		itemCount.WithLabelValues(l.SectionName, l.SectionType).Set(float64(l.Count))
		parentCount.WithLabelValues(l.SectionName, l.SectionType).Set(float64(l.ParentCount))
		childCount.WithLabelValues(l.SectionName, l.SectionType).Set(float64(l.ChildCount))
		active.WithLabelValues(l.SectionName, l.SectionType).Set(boolValue(l.Active))
	}
}

func (e *encoder) collectTautulliHistory(r tasks.TautulliHistoryResult) {
	e.gauge("tautulli_history_total_plays", "All-time Tautulli play count").
		WithLabelValues().Set(float64(r.TotalPlays))

	// The window is exclusive at the far edge: an entry exactly 24h old
	// no longer counts.
	cutoff := e.now().Add(-24 * time.Hour).Unix()
	watches := make(map[string]float64)
	var plays24h float64
	for _, entry := range r.Entries {
		if entry.Date <= cutoff {
			continue
		}
		plays24h++
		watches[entry.UserLabel()]++
	}

	e.gauge("tautulli_history_plays_24h", "Tautulli plays in the last 24 hours").
		WithLabelValues().Set(plays24h)

	userWatches := e.gauge("tautulli_history_user_watches_24h", "Per-user Tautulli plays in the last 24 hours", "user")
	for user, count := range watches {
		userWatches.WithLabelValues(user).Set(count)
	}
}

func (e *encoder) collectSessions(r tasks.SessionsResult) {
	e.gauge(r.Kind+"_session_count", "Number of active sessions", "name").
		WithLabelValues(r.Name).Set(float64(len(r.Sessions)))

	info := e.gauge(
		r.Kind+"_session_info",
		"Active playback session",
		"name", "user", "title", "state", "platform", "decision", "media_type", "quality",
	)
	progress := e.gauge(r.Kind+"_session_progress", "Session progress percent", "name", "user", "title")
	location := e.gauge(
		r.Kind+"_session_location",
		"Session location",
		"name", "user", "title", "city", "country", "latitude", "longitude",
	)
	userActive := e.gauge(r.Kind+"_user_active", "User has an active session", "name", "user")

	var lanKbps, wanKbps float64
	activeUsers := make(map[string]bool)
	for _, s := range r.Sessions {
		info.WithLabelValues(r.Name, s.User, s.Title, s.State, s.Platform, string(s.Decision), s.MediaType, s.Quality).Set(1)
		progress.WithLabelValues(r.Name, s.User, s.Title).Set(s.Progress)
		location.WithLabelValues(
			r.Name, s.User, s.Title,
			s.Location.City, s.Location.Country,
			s.Location.Latitude, s.Location.Longitude,
		).Set(1)

		if s.User != "" {
			activeUsers[s.User] = true
			userActive.WithLabelValues(r.Name, s.User).Set(1)
		}

		switch s.Bandwidth.Location {
		case models.BandwidthLAN:
			lanKbps += float64(s.Bandwidth.Kbps)
		case models.BandwidthWAN:
			wanKbps += float64(s.Bandwidth.Kbps)
		}
	}

	for _, u := range r.Users {
		if !activeUsers[u.Name] {
			userActive.WithLabelValues(r.Name, u.Name).Set(0)
		}
	}

	// Bandwidth totals are published only after the session loop has
	// fully accumulated them. Both series are always present.
	if r.Kind == "plex" {
		bandwidth := e.gauge("plex_session_bandwidth", "Per-location session bandwidth in kbps", "name", "location")
		bandwidth.WithLabelValues(r.Name, "LAN").Set(lanKbps)
		bandwidth.WithLabelValues(r.Name, "WAN").Set(wanKbps)
	}
}

func (e *encoder) collectLibraries(r tasks.LibrariesResult) {
	count := e.gauge(r.Kind+"_library_count", "Per-library item count", "name", "library_name", "library_type")
	childCount := e.gauge(r.Kind+"_library_child_count", "Per-library child item count", "name", "library_name", "library_type")
	grandChildCount := e.gauge(r.Kind+"_library_grandchild_count", "Per-library grandchild item count", "name", "library_name", "library_type")

	movieCount := e.gauge(r.Kind+"_movie_count", "Total movies across movie libraries")
	showCount := e.gauge(r.Kind+"_show_count", "Total shows across show libraries")
	seasonCount := e.gauge(r.Kind+"_season_count", "Total seasons across show libraries")
	episodeCount := e.gauge(r.Kind+"_episode_count", "Total episodes across show libraries")

	for _, l := range r.Libraries {
		count.WithLabelValues(r.Name, l.Name, l.MediaType).Set(float64(l.Count))
		childCount.WithLabelValues(r.Name, l.Name, l.MediaType).Set(float64(l.ChildCount))
		grandChildCount.WithLabelValues(r.Name, l.Name, l.MediaType).Set(float64(l.GrandChildCount))

		switch l.MediaType {
		case "movie":
			movieCount.WithLabelValues().Add(float64(l.Count))
		case "show":
			showCount.WithLabelValues().Add(float64(l.Count))
			seasonCount.WithLabelValues().Add(float64(l.ChildCount))
			episodeCount.WithLabelValues().Add(float64(l.GrandChildCount))
		}
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
