// Homers - Media Stack Prometheus Exporter
// Copyright 2026 tcheronneau
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tcheronneau/homers

package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcheronneau/homers/internal/config"
)

func TestRadarrMovies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/movie", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		fmt.Fprint(w, `[
			{"title":"Matrix","hasFile":true,"monitored":true,"isAvailable":true},
			{"title":"Dune","hasFile":false,"monitored":true,"isAvailable":true},
			{"title":"Old","hasFile":false,"monitored":false,"isAvailable":false}
		]`)
	}))
	defer srv.Close()

	r := NewRadarr("main", config.ArrConfig{Address: srv.URL, APIKey: "secret"})
	movies := r.Movies(context.Background())
	require.Len(t, movies, 3)

	assert.False(t, movies[0].MissingAvailable, "has_file excludes missing_available")
	assert.True(t, movies[1].MissingAvailable)
	assert.False(t, movies[2].MissingAvailable, "unavailable movie is not missing")

	for _, m := range movies {
		assert.Equal(t, !m.HasFile && m.IsAvailable, m.MissingAvailable, m.Title)
	}
}

func TestRadarrErrorYieldsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"not":"a list"}`)
	}))
	defer srv.Close()

	r := NewRadarr("main", config.ArrConfig{Address: srv.URL, APIKey: "secret"})
	assert.Empty(t, r.Movies(context.Background()))
}

func TestLidarrArtists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/artist", r.URL.Path)
		fmt.Fprint(w, `[
			{"artistName":"Air","monitored":true,"statistics":{"trackCount":120,"trackFileCount":100}},
			{"artistName":"Moby","monitored":false,"statistics":{"trackCount":50,"trackFileCount":50}}
		]`)
	}))
	defer srv.Close()

	l := NewLidarr("music", config.ArrConfig{Address: srv.URL, APIKey: "secret"})
	artists := l.Artists(context.Background())
	require.Len(t, artists, 2)
	assert.Equal(t, "Air", artists[0].Name)
	assert.True(t, artists[0].Monitored)
	assert.Equal(t, int64(100), artists[0].TrackFileCount)
	assert.Equal(t, int64(120), artists[0].TrackCount)
}

func TestReadarrAuthors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/author", r.URL.Path)
		fmt.Fprint(w, `[
			{"authorName":"Herbert","monitored":true,"statistics":{"bookCount":12,"bookFileCount":9}}
		]`)
	}))
	defer srv.Close()

	a := NewReadarr("books", config.ArrConfig{Address: srv.URL, APIKey: "secret"})
	authors := a.Authors(context.Background())
	require.Len(t, authors, 1)
	assert.Equal(t, "Herbert", authors[0].Name)
	assert.Equal(t, int64(9), authors[0].BookFileCount)
}
