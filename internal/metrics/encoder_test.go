// Homers - Media Stack Prometheus Exporter
// Copyright 2026 tcheronneau
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tcheronneau/homers

package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcheronneau/homers/internal/models"
	"github.com/tcheronneau/homers/internal/tasks"
)

func encodeText(t *testing.T, results []tasks.Result) string {
	t.Helper()
	contentType, body, err := Encode(results, FormatPrometheus)
	require.NoError(t, err)
	assert.Equal(t, ContentTypePrometheus, contentType)
	return string(body)
}

func TestNegotiate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		accept string
		want   Format
	}{
		{name: "absent header", accept: "", want: FormatPrometheus},
		{name: "plain text", accept: "text/plain", want: FormatPrometheus},
		{name: "wildcard", accept: "*/*", want: FormatPrometheus},
		{
			name:   "openmetrics",
			accept: "application/openmetrics-text",
			want:   FormatOpenMetrics,
		},
		{
			name:   "openmetrics with params",
			accept: "application/openmetrics-text; version=1.0.0; charset=utf-8",
			want:   FormatOpenMetrics,
		},
		{
			name:   "openmetrics among alternatives",
			accept: "text/html, application/openmetrics-text;q=0.9, */*;q=0.1",
			want:   FormatOpenMetrics,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Negotiate(tt.accept))
		})
	}
}

func TestEncodeSonarr(t *testing.T) {
	t.Parallel()

	body := encodeText(t, []tasks.Result{
		tasks.SonarrTodayResult{Name: "test", Episodes: []models.SonarrEpisode{
			{SeasonNumber: 1, EpisodeNumber: 2, Title: "Pilot", Serie: "The Wire", HasFile: true},
		}},
		tasks.SonarrMissingResult{Name: "test", Episodes: []models.SonarrEpisode{
			{SeasonNumber: 3, EpisodeNumber: 4, Title: "Gone", Serie: "The Wire", HasFile: false},
		}},
	})

	assert.Contains(t, body,
		`homers_sonarr_today_episode{episode_number="2",name="test",season_number="1",serie="The Wire",sxe="S01E02",title="Pilot"} 1`)
	assert.Contains(t, body, `homers_sonarr_today_episodes_total{name="test"} 1`)
	assert.Contains(t, body,
		`homers_sonarr_missing_episode{episode_number="4",name="test",season_number="3",serie="The Wire",sxe="S03E04",title="Gone"} 0`)
	assert.Contains(t, body, `homers_sonarr_missing_episodes_total{name="test"} 1`)
}

func TestEncodeSharedFamilies(t *testing.T) {
	t.Parallel()

	body := encodeText(t, []tasks.Result{
		tasks.SonarrTodayResult{Name: "a"},
		tasks.SonarrTodayResult{Name: "b"},
	})

	assert.Equal(t, 1, strings.Count(body, "# TYPE homers_sonarr_today_episodes_total gauge"),
		"instances of the same kind share one family")
	assert.Contains(t, body, `homers_sonarr_today_episodes_total{name="a"} 0`)
	assert.Contains(t, body, `homers_sonarr_today_episodes_total{name="b"} 0`)
}

func TestEncodeRadarr(t *testing.T) {
	t.Parallel()

	body := encodeText(t, []tasks.Result{
		tasks.RadarrResult{Name: "test", Movies: []models.RadarrMovie{
			models.NewRadarrMovie("Dune", true, true, true),
			models.NewRadarrMovie("Tenet", false, true, true),
			models.NewRadarrMovie("Nope", false, false, false),
		}},
	})

	assert.Contains(t, body, `homers_radarr_movie_has_file{name="test",title="Dune"} 1`)
	assert.Contains(t, body, `homers_radarr_movie_has_file{name="test",title="Tenet"} 0`)
	assert.Contains(t, body, `homers_radarr_movie_monitored{name="test",title="Nope"} 0`)
	assert.Contains(t, body, `homers_radarr_movies_total{name="test"} 3`)
	assert.Contains(t, body, `homers_radarr_monitored_total{name="test"} 2`)
	assert.Contains(t, body, `homers_radarr_missing_total{name="test"} 1`)
}

func TestEncodeLidarrReadarr(t *testing.T) {
	t.Parallel()

	body := encodeText(t, []tasks.Result{
		tasks.LidarrResult{Name: "music", Artists: []models.LidarrArtist{
			{Name: "Boards of Canada", Monitored: true, TrackFileCount: 120},
			{Name: "Autechre", Monitored: false, TrackFileCount: 80},
		}},
		tasks.ReadarrResult{Name: "books", Authors: []models.ReadarrAuthor{
			{Name: "Ursula K. Le Guin", Monitored: true, BookFileCount: 12},
		}},
	})

	assert.Contains(t, body, `homers_lidarr_artist_monitored{artist="Boards of Canada",name="music"} 1`)
	assert.Contains(t, body, `homers_lidarr_artists_total{name="music"} 2`)
	assert.Contains(t, body, `homers_lidarr_monitored_artists_total{name="music"} 1`)
	assert.Contains(t, body, `homers_lidarr_tracks_total{name="music"} 200`)

	assert.Contains(t, body, `homers_readarr_author_monitored{author="Ursula K. Le Guin",name="books"} 1`)
	assert.Contains(t, body, `homers_readarr_books_total{name="books"} 12`)
}

func TestEncodeRequests(t *testing.T) {
	t.Parallel()

	body := encodeText(t, []tasks.Result{
		tasks.RequestsResult{Kind: "jellyseerr", Requests: []models.OverseerrRequest{
			{MediaType: "movie", RequestStatus: models.RequestStatusPending, MediaStatus: models.MediaStatusPending, RequestedBy: "alice", MediaTitle: "Dune"},
			{MediaType: "tv", RequestStatus: models.RequestStatusApproved, MediaStatus: models.MediaStatusAvailable, RequestedBy: "bob", MediaTitle: "The Wire"},
			{MediaType: "movie", RequestStatus: models.RequestStatusDeclined, MediaStatus: models.MediaStatusUnknown, RequestedBy: "carol", MediaTitle: "Nope"},
		}},
	})

	assert.Contains(t, body, `homers_jellyseerr_request_status{media_title="Dune",media_type="movie",requested_by="alice"} 1`)
	assert.Contains(t, body, `homers_jellyseerr_media_status{media_title="The Wire",media_type="tv",requested_by="bob"} 5`)
	assert.Contains(t, body, `homers_jellyseerr_requests_total{name="jellyseerr"} 3`)
	assert.Contains(t, body, `homers_jellyseerr_requests_pending_total{name="jellyseerr"} 1`)
	assert.Contains(t, body, `homers_jellyseerr_requests_approved_total{name="jellyseerr"} 1`)
	assert.Contains(t, body, `homers_jellyseerr_requests_declined_total{name="jellyseerr"} 1`)
	assert.NotContains(t, body, "homers_overseerr_", "family prefix follows the result kind")
}

func TestEncodeSessions(t *testing.T) {
	t.Parallel()

	body := encodeText(t, []tasks.Result{
		tasks.SessionsResult{
			Kind: "plex",
			Name: "home",
			Users: []models.User{
				{Name: "alice"}, {Name: "bob"}, {Name: "carol"},
			},
			Sessions: []models.Session{
				{
					Title: "The Wire", User: "alice", State: "playing", MediaType: "episode",
					Platform: "Chrome", Decision: models.DecisionDirectPlay, Quality: "1080p",
					Progress:  50,
					Location:  models.UnknownLocation("192.168.1.50"),
					Bandwidth: models.Bandwidth{Kbps: 8000, Location: models.BandwidthLAN},
				},
				{
					Title: "Dune", User: "bob", State: "paused", MediaType: "movie",
					Platform: "iOS", Decision: models.DecisionTranscode, Quality: "4k",
					Progress:  25,
					Location:  models.Location{City: "Paris", Country: "France", Latitude: "48.8566", Longitude: "2.3522"},
					Bandwidth: models.Bandwidth{Kbps: 20000, Location: models.BandwidthWAN},
				},
			},
		},
	})

	assert.Contains(t, body, `homers_plex_session_count{name="home"} 2`)
	assert.Contains(t, body,
		`homers_plex_session_info{decision="direct_play",media_type="episode",name="home",platform="Chrome",quality="1080p",state="playing",title="The Wire",user="alice"} 1`)
	assert.Contains(t, body, `homers_plex_session_progress{name="home",title="Dune",user="bob"} 25`)
	assert.Contains(t, body,
		`homers_plex_session_location{city="Paris",country="France",latitude="48.8566",longitude="2.3522",name="home",title="Dune",user="bob"} 1`)

	// Session count matches the number of info series.
	assert.Equal(t, 2, strings.Count(body, "homers_plex_session_info{"))

	// Active users score 1, known idle users 0.
	assert.Contains(t, body, `homers_plex_user_active{name="home",user="alice"} 1`)
	assert.Contains(t, body, `homers_plex_user_active{name="home",user="bob"} 1`)
	assert.Contains(t, body, `homers_plex_user_active{name="home",user="carol"} 0`)

	// Bandwidth is summed per location, both series always present.
	assert.Contains(t, body, `homers_plex_session_bandwidth{location="LAN",name="home"} 8000`)
	assert.Contains(t, body, `homers_plex_session_bandwidth{location="WAN",name="home"} 20000`)
}

func TestEncodeSessionsBandwidthIsPlexOnly(t *testing.T) {
	t.Parallel()

	body := encodeText(t, []tasks.Result{
		tasks.SessionsResult{Kind: "jellyfin", Name: "home", Sessions: []models.Session{
			{Title: "Dune", User: "alice", Bandwidth: models.Bandwidth{Kbps: 4000, Location: models.BandwidthUnknown}},
		}},
	})

	assert.Contains(t, body, `homers_jellyfin_session_count{name="home"} 1`)
	assert.NotContains(t, body, "session_bandwidth")
}

func TestEncodeSessionsEmptyPlexStillEmitsBandwidth(t *testing.T) {
	t.Parallel()

	body := encodeText(t, []tasks.Result{
		tasks.SessionsResult{Kind: "plex", Name: "home"},
	})

	assert.Contains(t, body, `homers_plex_session_count{name="home"} 0`)
	assert.Contains(t, body, `homers_plex_session_bandwidth{location="LAN",name="home"} 0`)
	assert.Contains(t, body, `homers_plex_session_bandwidth{location="WAN",name="home"} 0`)
}

func TestEncodeLibraries(t *testing.T) {
	t.Parallel()

	body := encodeText(t, []tasks.Result{
		tasks.LibrariesResult{Kind: "plex", Name: "home", Libraries: []models.LibraryCount{
			{Name: "Movies", MediaType: "movie", Count: 1500},
			{Name: "TV", MediaType: "show", Count: 200, ChildCount: 900, GrandChildCount: 12000},
		}},
		tasks.LibrariesResult{Kind: "plex", Name: "remote", Libraries: []models.LibraryCount{
			{Name: "Movies", MediaType: "movie", Count: 300},
		}},
	})

	assert.Contains(t, body, `homers_plex_library_count{library_name="Movies",library_type="movie",name="home"} 1500`)
	assert.Contains(t, body, `homers_plex_library_child_count{library_name="TV",library_type="show",name="home"} 900`)
	assert.Contains(t, body, `homers_plex_library_grandchild_count{library_name="TV",library_type="show",name="home"} 12000`)

	// Aggregates accumulate across instances into unlabelled series.
	assert.Contains(t, body, "homers_plex_movie_count 1800")
	assert.Contains(t, body, "homers_plex_show_count 200")
	assert.Contains(t, body, "homers_plex_season_count 900")
	assert.Contains(t, body, "homers_plex_episode_count 12000")
}

func TestEncodeTautulliSessions(t *testing.T) {
	t.Parallel()

	body := encodeText(t, []tasks.Result{
		tasks.TautulliSessionsResult{Sessions: []models.TautulliSession{
			{
				User: "alice", Title: "The Wire", State: "playing", MediaType: "episode",
				Quality: "1080p", QualityProfile: "Original", VideoStream: "direct play",
				Progress: 42,
				Location: models.Location{City: "Paris", Country: "France", Latitude: "48.8566", Longitude: "2.3522"},
			},
			{User: "bob", Title: "Dune", State: "paused", MediaType: "movie", Location: models.UnknownLocation("10.0.0.2")},
		}},
	})

	assert.Contains(t, body, "homers_tautulli_session_count 2")
	assert.Contains(t, body,
		`homers_tautulli_session_info{media_type="episode",quality="1080p",quality_profile="Original",state="playing",title="The Wire",user="alice",video_stream="direct play"} 1`)
	assert.Contains(t, body, `homers_tautulli_session_progress{title="The Wire",user="alice"} 42`)
	assert.Contains(t, body,
		`homers_tautulli_session_location{city="Unknown",country="Unknown",latitude="0.0",longitude="0.0",title="Dune",user="bob"} 1`)
}

func TestEncodeTautulliLibraries(t *testing.T) {
	t.Parallel()

	body := encodeText(t, []tasks.Result{
		tasks.TautulliLibrariesResult{Libraries: []models.TautulliLibrary{
			{SectionName: "Movies", SectionType: "movie", Count: 1500, Active: true},
			{SectionName: "TV", SectionType: "show", Count: 200, ParentCount: 900, ChildCount: 12000, Active: false},
		}},
	})

	assert.Contains(t, body, `homers_tautulli_library_item_count{section_name="Movies",section_type="movie"} 1500`)
	assert.Contains(t, body, `homers_tautulli_library_parent_count{section_name="TV",section_type="show"} 900`)
	assert.Contains(t, body, `homers_tautulli_library_child_count{section_name="TV",section_type="show"} 12000`)
	assert.Contains(t, body, `homers_tautulli_library_active{section_name="Movies",section_type="movie"} 1`)
	assert.Contains(t, body, `homers_tautulli_library_active{section_name="TV",section_type="show"} 0`)
}

func TestEncodeTautulliHistory(t *testing.T) {
	t.Parallel()

	now := time.Now()
	body := encodeText(t, []tasks.Result{
		tasks.TautulliHistoryResult{
			TotalPlays: 4321,
			Entries: []models.TautulliHistoryEntry{
				{Date: now.Add(-time.Hour).Unix(), User: "alice"},
				{Date: now.Add(-2 * time.Hour).Unix(), User: "alice", FriendlyName: "Alice"},
				{Date: now.Add(-3 * time.Hour).Unix(), User: "bob"},
				{Date: now.Add(-48 * time.Hour).Unix(), User: "carol"},
			},
		},
	})

	assert.Contains(t, body, "homers_tautulli_history_total_plays 4321")
	assert.Contains(t, body, "homers_tautulli_history_plays_24h 3", "entries older than 24h are excluded")
	assert.Contains(t, body, `homers_tautulli_history_user_watches_24h{user="alice"} 1`)
	assert.Contains(t, body, `homers_tautulli_history_user_watches_24h{user="Alice"} 1`, "friendly name wins when present")
	assert.Contains(t, body, `homers_tautulli_history_user_watches_24h{user="bob"} 1`)
	assert.NotContains(t, body, `user="carol"`)
}

func TestEncodeTautulliHistoryWindowBoundary(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	e := newEncoder()
	e.now = func() time.Time { return fixed }

	cutoff := fixed.Add(-24 * time.Hour).Unix()
	_, body, err := e.encode([]tasks.Result{
		tasks.TautulliHistoryResult{Entries: []models.TautulliHistoryEntry{
			{Date: cutoff, User: "edge"},
			{Date: cutoff + 1, User: "alice"},
		}},
	}, FormatPrometheus)
	require.NoError(t, err)

	assert.Contains(t, string(body), "homers_tautulli_history_plays_24h 1",
		"an entry exactly 24h old is excluded")
	assert.NotContains(t, string(body), `user="edge"`)
	assert.Contains(t, string(body), `homers_tautulli_history_user_watches_24h{user="alice"} 1`)
}

func TestEncodeOpenMetrics(t *testing.T) {
	t.Parallel()

	contentType, body, err := Encode([]tasks.Result{
		tasks.RadarrResult{Name: "test"},
	}, FormatOpenMetrics)
	require.NoError(t, err)

	assert.Equal(t, ContentTypeOpenMetrics, contentType)
	assert.True(t, strings.HasSuffix(string(body), "# EOF\n"), "OpenMetrics output carries the EOF trailer")
	assert.Contains(t, string(body), `homers_radarr_movies_total{name="test"} 0`)
}

func TestEncodePrometheusHasNoTrailer(t *testing.T) {
	t.Parallel()

	_, body, err := Encode([]tasks.Result{tasks.RadarrResult{Name: "test"}}, FormatPrometheus)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "# EOF")
}

func TestEncodeEmptyResults(t *testing.T) {
	t.Parallel()

	contentType, body, err := Encode(nil, FormatPrometheus)
	require.NoError(t, err)
	assert.Equal(t, ContentTypePrometheus, contentType)
	assert.Empty(t, body)

	contentType, body, err = Encode(nil, FormatOpenMetrics)
	require.NoError(t, err)
	assert.Equal(t, ContentTypeOpenMetrics, contentType)
	assert.Equal(t, "# EOF\n", string(body))
}
