// Homers - Media Stack Prometheus Exporter
// Copyright 2026 tcheronneau
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tcheronneau/homers

// Package api exposes the exporter's HTTP surface: the index route and the
// /metrics scrape endpoint.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/tcheronneau/homers/internal/logging"
	"github.com/tcheronneau/homers/internal/metrics"
	"github.com/tcheronneau/homers/internal/tasks"
)

// Plain-text bodies for the two 500 paths. The wording is part of the
// exporter's contract with its dashboards.
const (
	errBodyEncoder  = "Error formatting metrics. Check the logs."
	errBodyProvider = "Error while fetching provider data. Check the logs."
)

// indexBody is returned by the index route.
const indexBody = "Hello Homers"

// Handler serves scrapes against an immutable task registry.
type Handler struct {
	registry      []tasks.Task
	scrapeTimeout time.Duration
}

// NewHandler creates the scrape handler.
func NewHandler(registry []tasks.Task, scrapeTimeout time.Duration) *Handler {
	if scrapeTimeout <= 0 {
		scrapeTimeout = 30 * time.Second
	}
	return &Handler{registry: registry, scrapeTimeout: scrapeTimeout}
}

// NewRouter wires the two routes with request-scoped logging.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Get("/", h.Index)
	r.Get("/metrics", h.Metrics)
	return r
}

// Index implements GET /.
func (h *Handler) Index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(indexBody))
}

// Metrics implements GET /metrics. The scrape deadline bounds the whole
// fan-out; the response format follows the Accept header.
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.scrapeTimeout)
	defer cancel()

	results, err := tasks.Process(ctx, h.registry)
	if err != nil {
		logging.Error().Err(err).Msg("Scrape executor failed")
		plainError(w, errBodyProvider)
		return
	}

	format := metrics.Negotiate(r.Header.Get("Accept"))
	contentType, body, err := metrics.Encode(results, format)
	if err != nil {
		logging.Error().Err(err).Msg("Metric encoding failed")
		plainError(w, errBodyEncoder)
		return
	}

	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(body)
}

func plainError(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(body))
}

// requestLogger logs each request with a correlation id and timing.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logging.Debug().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("Request handled")
	})
}
