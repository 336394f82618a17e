// Homers - Media Stack Prometheus Exporter
// Copyright 2026 tcheronneau
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tcheronneau/homers

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.HTTP.Address)
	assert.Equal(t, 8000, cfg.HTTP.Port)
	assert.Equal(t, "info", cfg.HTTP.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.HTTP.ScrapeTimeout)
	assert.Nil(t, cfg.Tautulli)
	assert.Empty(t, cfg.Sonarr)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
[http]
address = "0.0.0.0"
port = 9000
log_level = "debug"

[tautulli]
address = "http://tautulli:8181/"
apikey = "tautulli-key"

[overseerr]
address = "http://overseerr:5055"
apikey = "overseerr-key"

[jellyseerr]
address = "http://jellyseerr:5055"
apikey = "jellyseerr-key"
requests = 50

[sonarr.main]
address = "http://sonarr:8989/"
apikey = "sonarr-key"

[sonarr.anime]
address = "http://sonarr-anime:8989"
apikey = "anime-key"

[radarr.main]
address = "http://radarr:7878"
apikey = "radarr-key"

[plex.home]
address = "http://plex:32400/"
token = "plex-token"

[jellyfin.home]
address = "http://jellyfin:8096"
apikey = "jellyfin-key"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.HTTP.Address)
	assert.Equal(t, 9000, cfg.HTTP.Port)
	assert.Equal(t, "debug", cfg.HTTP.LogLevel)

	require.NotNil(t, cfg.Tautulli)
	assert.Equal(t, "http://tautulli:8181", cfg.Tautulli.Address, "trailing slash stripped")

	require.NotNil(t, cfg.Overseerr)
	assert.Equal(t, 20, cfg.Overseerr.Requests, "requests defaults to 20")
	require.NotNil(t, cfg.Jellyseerr)
	assert.Equal(t, 50, cfg.Jellyseerr.Requests)

	require.Len(t, cfg.Sonarr, 2)
	assert.Equal(t, "http://sonarr:8989", cfg.Sonarr["main"].Address)
	assert.Equal(t, "anime-key", cfg.Sonarr["anime"].APIKey)

	assert.Equal(t, "http://plex:32400", cfg.Plex["home"].Address)
	assert.Equal(t, "plex-token", cfg.Plex["home"].Token)
	assert.Equal(t, "http://jellyfin:8096", cfg.Jellyfin["home"].Address)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, `
[http]
port = 9000
`)
	t.Setenv("HOMERS_HTTP_PORT", "9999")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.HTTP.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "missing apikey",
			content: `
[sonarr.main]
address = "http://sonarr:8989"
`,
		},
		{
			name: "bad address",
			content: `
[radarr.main]
address = "not a url"
apikey = "key"
`,
		},
		{
			name: "bad port",
			content: `
[http]
port = 70000
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestNormalizeAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"http://h/", "http://h"},
		{"http://h", "http://h"},
		{"http://h//", "http://h/"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeAddress(tt.in))
	}

	// Normalisation is idempotent.
	for _, tt := range tests {
		assert.Equal(t, NormalizeAddress(tt.want), NormalizeAddress(NormalizeAddress(tt.in)))
	}
}
