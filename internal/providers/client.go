// Homers - Media Stack Prometheus Exporter
// Copyright 2026 tcheronneau
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tcheronneau/homers

// Package providers contains the per-backend HTTP adapters. Every adapter
// follows the same rules: it is constructed once at startup from its config
// section, its secret header is never logged, and every public fetch
// operation returns a normalised slice or an empty slice after logging.
// Failures never propagate to the scrape executor.
package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// maxErrorBodySize caps how much of an upstream error body is read for
// log context.
const maxErrorBodySize = 64 * 1024

// newHTTPClient builds the shared client shape used by all adapters.
// Request lifetimes are driven by the scrape context; the client timeout
// is a backstop.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// getJSON issues a GET request and decodes the JSON response into T.
// Non-2xx statuses become errors carrying a truncated response body.
func getJSON[T any](ctx context.Context, client *http.Client, reqURL string, headers map[string]string) (T, error) {
	var out T

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return out, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return out, fmt.Errorf("request failed: %w", redactError(err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return out, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, readBodyForError(resp.Body))
	}

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("failed to decode response: %w", err)
	}
	return out, nil
}

// redactError strips the query string from the URL embedded in a transport
// error. Some backends carry their API key as a query parameter, and the
// wrapped *url.Error would otherwise surface it in logs.
func redactError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		uerr.URL = redactURL(uerr.URL)
	}
	return err
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// readBodyForError reads a bounded portion of a response body for log
// context, collapsing whitespace.
func readBodyForError(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return fmt.Sprintf("<failed to read body: %v>", err)
	}
	return strings.Join(strings.Fields(string(body)), " ")
}
