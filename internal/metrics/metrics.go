// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later
// Package metrics exposes pipeline counters as Prometheus collectors,
// optionally served over HTTP via --metrics-addr, mirroring the
// promhttp.Handler wiring used for the indexer's own metrics endpoint.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector tracks the counters referenced by spec §8's testable
// properties: cache hits per tier, batches run, and subprocess failures.
type Collector struct {
	CacheHits      *prometheus.CounterVec
	BatchesRun     prometheus.Counter
	BatchFailures  prometheus.Counter
	FilesSkipped   prometheus.Counter
	FilesExecuted  prometheus.Counter
	registry       *prometheus.Registry
}

// New builds a Collector registered on its own registry, so embedding it
// in a CLI never collides with the default global registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lun_cache_hits_total",
			Help: "Skip oracle hits by tier.",
		}, []string{"tier"}),
		BatchesRun: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lun_batches_run_total",
			Help: "Subprocess batches spawned.",
		}),
		BatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lun_batch_failures_total",
			Help: "Subprocess batches that exited non-zero.",
		}),
		FilesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lun_files_skipped_total",
			Help: "(file, tool) pairs skipped via cache hit.",
		}),
		FilesExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lun_files_executed_total",
			Help: "(file, tool) pairs that required a subprocess run.",
		}),
		registry: reg,
	}
	reg.MustRegister(c.CacheHits, c.BatchesRun, c.BatchFailures, c.FilesSkipped, c.FilesExecuted)
	return c
}

// Serve starts an HTTP server exposing /metrics, returning once ctx is
// canceled or the listener fails.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		return err
	}
}
