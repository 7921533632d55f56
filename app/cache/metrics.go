package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "rss_nest"
	MetricsSubsystem = "cache"
)

type Metrics struct {
	Lookups          *prometheus.CounterVec
	Locks            *prometheus.CounterVec
	Generations      *prometheus.CounterVec
	GenerationErrors *prometheus.CounterVec
	Invalidations    *prometheus.CounterVec
}

// NewMetrics registers the coordinator metrics with reg, or with the default
// registerer when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		Lookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "lookups_total",
				Help:      "Cache lookups by result (hit, miss, error)",
			},
			[]string{"site", "result"},
		),
		Locks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "lock_attempts_total",
				Help:      "Generation lock attempts by outcome (acquired, contended, error)",
			},
			[]string{"site", "outcome"},
		),
		Generations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "generations_total",
				Help:      "Feed generations by mode (locked, degraded, refresh)",
			},
			[]string{"site", "mode"},
		),
		GenerationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "generation_errors_total",
				Help:      "Failed feed generations",
			},
			[]string{"site"},
		),
		Invalidations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "invalidated_keys_total",
				Help:      "Cache entries removed by invalidation",
			},
			[]string{"site"},
		),
	}
}
