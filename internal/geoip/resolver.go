// Homers - Media Stack Prometheus Exporter
// Copyright 2026 tcheronneau
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tcheronneau/homers

package geoip

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tcheronneau/homers/internal/logging"
	"github.com/tcheronneau/homers/internal/models"
)

const (
	// lookupTimeout bounds a single provider lookup so a slow upstream
	// cannot eat the scrape deadline.
	lookupTimeout = 2 * time.Second

	// cacheTTL is how long resolved locations stay cached.
	cacheTTL = 24 * time.Hour
)

// Resolver resolves IPs to Locations with an in-memory cache in front of a
// Provider. Resolve never fails; errors collapse into the sentinel Location.
type Resolver struct {
	provider Provider
	cache    *badger.DB
}

// NewResolver creates a resolver backed by an in-memory Badger cache.
func NewResolver(provider Provider) (*Resolver, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	cache, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open geo cache: %w", err)
	}
	return &Resolver{provider: provider, cache: cache}, nil
}

// Close releases the cache.
func (r *Resolver) Close() error {
	return r.cache.Close()
}

// Resolve maps an IP literal to a Location. Empty input, private addresses,
// cache misses with failing lookups and timeouts all produce the sentinel.
func (r *Resolver) Resolve(ctx context.Context, ip string) models.Location {
	if ip == "" {
		return models.UnknownLocation(ip)
	}

	normalized := NormalizeIP(ip)
	if IsPrivateIP(normalized) {
		return models.UnknownLocation(normalized)
	}

	if loc, ok := r.cached(normalized); ok {
		return loc
	}

	lctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	loc, err := r.provider.Lookup(lctx, normalized)
	if err != nil {
		logging.Debug().
			Err(err).
			Str("ip", normalized).
			Str("provider", r.provider.Name()).
			Msg("Geo lookup failed, using sentinel location")
		return models.UnknownLocation(normalized)
	}

	r.store(normalized, loc)
	return loc
}

func (r *Resolver) cached(ip string) (models.Location, bool) {
	var loc models.Location
	err := r.cache.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(ip))
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return json.Unmarshal(val, &loc)
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			logging.Debug().Err(err).Str("ip", ip).Msg("Geo cache read failed")
		}
		return models.Location{}, false
	}
	return loc, true
}

func (r *Resolver) store(ip string, loc models.Location) {
	val, err := json.Marshal(loc)
	if err != nil {
		return
	}
	err = r.cache.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(ip), val).WithTTL(cacheTTL)
		return txn.SetEntry(entry)
	})
	if err != nil {
		logging.Debug().Err(err).Str("ip", ip).Msg("Geo cache write failed")
	}
}

// NormalizeIP strips a port suffix and IPv6 brackets from an address
// literal, e.g. "[2001:db8::1]:32400" -> "2001:db8::1".
func NormalizeIP(ip string) string {
	if host, _, err := net.SplitHostPort(ip); err == nil {
		return host
	}
	ip = strings.TrimPrefix(ip, "[")
	ip = strings.TrimSuffix(ip, "]")
	return ip
}

// IsPrivateIP reports whether the literal is a private, loopback,
// link-local or unspecified address. Such addresses are never sent to the
// lookup provider.
func IsPrivateIP(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	return parsed.IsPrivate() ||
		parsed.IsLoopback() ||
		parsed.IsLinkLocalUnicast() ||
		parsed.IsLinkLocalMulticast() ||
		parsed.IsUnspecified()
}
