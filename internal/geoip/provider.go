// Homers - Media Stack Prometheus Exporter
// Copyright 2026 tcheronneau
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tcheronneau/homers

// Package geoip resolves session IP addresses to geographic locations.
//
// Lookups go through ip-api.com, rate limited to the free tier's 45
// requests per minute and guarded by a circuit breaker. Results are cached
// in memory by IP. The resolver never fails its caller: any error yields
// the sentinel Location instead.
package geoip

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tcheronneau/homers/internal/models"
)

// Provider is a geolocation lookup backend.
type Provider interface {
	// Lookup resolves a public IP to a Location.
	Lookup(ctx context.Context, ip string) (models.Location, error)

	// Name identifies the provider in logs.
	Name() string
}

// ipAPIEndpoint is the free ip-api.com JSON endpoint. HTTP only; the free
// tier does not serve TLS.
const ipAPIEndpoint = "http://ip-api.com/json"

// ipAPIRatePerMinute is the free tier's request budget.
const ipAPIRatePerMinute = 45

// ipAPIResponse mirrors the ip-api.com JSON payload.
type ipAPIResponse struct {
	Status      string  `json:"status"`
	Message     string  `json:"message"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	Region      string  `json:"region"`
	RegionName  string  `json:"regionName"`
	City        string  `json:"city"`
	Zip         string  `json:"zip"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Timezone    string  `json:"timezone"`
	ISP         string  `json:"isp"`
	Query       string  `json:"query"`
}

// IPAPIProvider resolves IPs through ip-api.com.
type IPAPIProvider struct {
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[models.Location]
}

// NewIPAPIProvider creates a provider with the standard endpoint.
func NewIPAPIProvider() *IPAPIProvider {
	return NewIPAPIProviderWithEndpoint(ipAPIEndpoint)
}

// NewIPAPIProviderWithEndpoint creates a provider against a custom endpoint.
// Used by tests to point at a stub server.
func NewIPAPIProviderWithEndpoint(endpoint string) *IPAPIProvider {
	breaker := gobreaker.NewCircuitBreaker[models.Location](gobreaker.Settings{
		Name:        "ip-api",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &IPAPIProvider{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 5 * time.Second},
		limiter:  rate.NewLimiter(rate.Every(time.Minute/ipAPIRatePerMinute), ipAPIRatePerMinute),
		breaker:  breaker,
	}
}

// Name implements Provider.
func (p *IPAPIProvider) Name() string { return "ip-api" }

// Lookup implements Provider. The rate limiter is consulted without
// waiting so a burst of sessions cannot stall a scrape; over-budget
// lookups fail immediately and fall back to the sentinel upstream.
func (p *IPAPIProvider) Lookup(ctx context.Context, ip string) (models.Location, error) {
	if !p.limiter.Allow() {
		return models.Location{}, fmt.Errorf("ip-api rate limit exceeded")
	}
	return p.breaker.Execute(func() (models.Location, error) {
		return p.lookup(ctx, ip)
	})
}

func (p *IPAPIProvider) lookup(ctx context.Context, ip string) (models.Location, error) {
	url := fmt.Sprintf("%s/%s", p.endpoint, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return models.Location{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return models.Location{}, fmt.Errorf("ip-api request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return models.Location{}, fmt.Errorf("ip-api returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return models.Location{}, fmt.Errorf("failed to read ip-api response: %w", err)
	}

	var parsed ipAPIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return models.Location{}, fmt.Errorf("failed to parse ip-api response: %w", err)
	}
	if parsed.Status != "success" {
		return models.Location{}, fmt.Errorf("ip-api lookup failed: %s", parsed.Message)
	}

	return models.Location{
		City:      parsed.City,
		Country:   parsed.Country,
		IPAddress: ip,
		Latitude:  strconv.FormatFloat(parsed.Lat, 'f', 4, 64),
		Longitude: strconv.FormatFloat(parsed.Lon, 'f', 4, 64),
	}, nil
}
