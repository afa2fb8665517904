// Copyright 2026 FCCU Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exposes Prometheus counters and gauges mirroring
// CollectorEngine's own Statistics, so a process embedding fccu can scrape
// the same numbers GetStatistics returns without polling it directly.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/faultcollector/fccu-core/pkg/logger"
)

const (
	namespace = "fccu"
	subsystem = "core"
)

var (
	reportedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "reported_total",
		Help:      "Total fault reports admitted onto the priority queue, by priority level.",
	}, []string{"priority"})

	droppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "dropped_total",
		Help:      "Total fault reports denied by admission control or a full ring, by priority level.",
	}, []string{"priority"})

	processedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "processed_total",
		Help:      "Total fault entries drained and processed.",
	})

	activeFaultsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "active_faults",
		Help:      "Current number of active (admitted, not yet cleared) faults.",
	})

	backpressureGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "backpressure_level",
		Help:      "Current coarse backpressure level (0=normal, 1=warning, 2=critical, 3=full).",
	})
)

// RecordReport increments the reported or dropped counter for priority,
// depending on admitted.
func RecordReport(priority string, admitted bool) {
	if admitted {
		reportedTotal.WithLabelValues(priority).Inc()
	} else {
		droppedTotal.WithLabelValues(priority).Inc()
	}
}

// RecordProcessed increments the lifetime processed counter.
func RecordProcessed() {
	processedTotal.Inc()
}

// SetActiveFaults sets the active-fault gauge to the given count.
func SetActiveFaults(n uint32) {
	activeFaultsGauge.Set(float64(n))
}

// SetBackpressureLevel sets the backpressure gauge to the given level.
func SetBackpressureLevel(level uint8) {
	backpressureGauge.Set(float64(level))
}

// SetupMetricsEndpoint starts an HTTP server exposing /metrics. Call once
// at process startup; the returned server should be shut down by the
// caller on exit.
func SetupMetricsEndpoint(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.For("metrics").Errorw("metrics endpoint stopped", "error", err)
		}
	}()

	return server
}

// Shutdown gracefully stops the metrics HTTP server.
func Shutdown(ctx context.Context, server *http.Server) error {
	return server.Shutdown(ctx)
}
