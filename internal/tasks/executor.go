// Homers - Media Stack Prometheus Exporter
// Copyright 2026 tcheronneau
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tcheronneau/homers

package tasks

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tcheronneau/homers/internal/logging"
)

// maxConcurrency caps the fan-out. Well above any realistic task count;
// it exists only to bound pathological configurations.
const maxConcurrency = 64

// Process runs every task concurrently under the scrape context and
// collects their results. Task failures have already collapsed into empty
// results by the time they reach the executor, so the only error path is a
// scheduling failure.
//
// The context carries the scrape deadline; tasks cancelled by it
// contribute whatever (possibly empty) result their adapter produced.
func Process(ctx context.Context, registry []Task) ([]Result, error) {
	results := make([]Result, len(registry))

	g := new(errgroup.Group)
	g.SetLimit(maxConcurrency)
	for i, task := range registry {
		g.Go(func() error {
			start := time.Now()
			results[i] = task.Run(ctx)
			logging.Debug().
				Str("task", task.Describe()).
				Dur("elapsed", time.Since(start)).
				Msg("Task completed")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
