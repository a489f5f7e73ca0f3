// SPDX-License-Identifier: MPL-2.0

package cache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts cache activity.
type Metrics struct {
	Hits          prometheus.Counter
	Misses        prometheus.Counter
	FetchFailures prometheus.Counter
	BytesFetched  prometheus.Counter
}

// NewMetrics creates the cache counters and registers them with reg when it is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "modforge_cache_hits_total",
			Help: "Total number of releases served from the local cache",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "modforge_cache_misses_total",
			Help: "Total number of releases that had to be fetched",
		}),
		FetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "modforge_cache_fetch_failures_total",
			Help: "Total number of failed release fetches",
		}),
		BytesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "modforge_cache_fetched_bytes_total",
			Help: "Total number of archive bytes written to the cache",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Hits, m.Misses, m.FetchFailures, m.BytesFetched)
	}
	return m
}
