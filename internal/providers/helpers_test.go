// Homers - Media Stack Prometheus Exporter
// Copyright 2026 tcheronneau
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tcheronneau/homers

package providers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tcheronneau/homers/internal/geoip"
)

// testGeo returns a resolver whose provider is unreachable, so every
// public lookup collapses to the sentinel without network traffic.
func testGeo(t *testing.T) *geoip.Resolver {
	t.Helper()
	r, err := geoip.NewResolver(geoip.NewIPAPIProviderWithEndpoint("http://127.0.0.1:0"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}
