/*
 * Copyright 2026 The Tidemark Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package prometheus provides a Prometheus metrics exporter.
package prometheus

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace   = "tidemark"
	statusLabel = "status"
	opLabel     = "op"
)

// Metrics manages the metric information that Tidemark is trying to measure.
type Metrics struct {
	registry *prometheus.Registry

	summariesTotal       *prometheus.CounterVec
	summarySeconds       prometheus.Histogram
	changesReportedTotal prometheus.Counter
	rootMutationsTotal   *prometheus.CounterVec
	rootCachePurgesTotal prometheus.Counter
	rootCacheHitsTotal   prometheus.Counter
	rootCacheMissesTotal prometheus.Counter
}

// NewMetrics creates a new instance of Metrics.
func NewMetrics() (*Metrics, error) {
	reg := prometheus.NewRegistry()

	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("register process collector: %w", err)
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}

	metrics := &Metrics{
		registry: reg,
		summariesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "summary",
			Name:      "handled_total",
			Help:      "Total number of change summaries built, labeled by result status.",
		}, []string{statusLabel}),
		summarySeconds: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "summary",
			Name:      "build_seconds",
			Help:      "The time taken to build a change summary.",
		}),
		changesReportedTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "summary",
			Name:      "changes_reported_total",
			Help:      "The total count of change records delivered in summaries.",
		}),
		rootMutationsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "roots",
			Name:      "mutations_total",
			Help:      "Total number of sync root registrations and unregistrations.",
		}, []string{opLabel}),
		rootCachePurgesTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "roots",
			Name:      "cache_purges_total",
			Help:      "Total number of root cache purges.",
		}),
		rootCacheHitsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "roots",
			Name:      "cache_hits_total",
			Help:      "Total number of root cache hits.",
		}),
		rootCacheMissesTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "roots",
			Name:      "cache_misses_total",
			Help:      "Total number of root cache misses.",
		}),
	}

	return metrics, nil
}

// Registry returns the registry of this metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveSummary records the outcome of one change summary build.
func (m *Metrics) ObserveSummary(status string, seconds float64, changes int) {
	if m == nil {
		return
	}
	m.summariesTotal.With(prometheus.Labels{statusLabel: status}).Inc()
	m.summarySeconds.Observe(seconds)
	m.changesReportedTotal.Add(float64(changes))
}

// AddRootMutation counts one register or unregister operation.
func (m *Metrics) AddRootMutation(op string) {
	if m == nil {
		return
	}
	m.rootMutationsTotal.With(prometheus.Labels{opLabel: op}).Inc()
}

// AddRootCachePurge counts one purge of the root cache.
func (m *Metrics) AddRootCachePurge() {
	if m == nil {
		return
	}
	m.rootCachePurgesTotal.Inc()
}

// AddRootCacheAccess counts one cache lookup.
func (m *Metrics) AddRootCacheAccess(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.rootCacheHitsTotal.Inc()
	} else {
		m.rootCacheMissesTotal.Inc()
	}
}
