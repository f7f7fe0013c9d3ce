// Package metrics exposes the counters of a run as prometheus metrics and
// writes them in the node exporter textfile format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"authormigrate/internal/author"
	"authormigrate/internal/migrate"
)

// Namespace prefixes every metric name.
const Namespace = "authormigrate"

// Metrics holds the collectors of one run.
type Metrics struct {
	Registry        *prometheus.Registry
	RecordsTotal    prometheus.Counter
	RecordsUpdated  prometheus.Counter
	RecordsSkipped  prometheus.Counter
	RecordsUnable   prometheus.Counter
	AuthorsMapped   prometheus.Gauge
	AuthorsUnmapped prometheus.Gauge
	RunDuration     prometheus.Gauge
}

// NewMetrics creates the collectors on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		RecordsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "records_total",
			Help:      "Total number of content records processed",
		}),
		RecordsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "records_updated_total",
			Help:      "Number of content records whose author was updated",
		}),
		RecordsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "records_skipped_total",
			Help:      "Number of content records that needed no update",
		}),
		RecordsUnable: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "records_unable_total",
			Help:      "Number of content records that could not be updated",
		}),
		AuthorsMapped: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "authors_mapped",
			Help:      "Exported authors matched to a local account",
		}),
		AuthorsUnmapped: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "authors_unmapped",
			Help:      "Exported authors without a local account",
		}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the record processing phase",
		}),
	}

	registry.MustRegister(
		m.RecordsTotal,
		m.RecordsUpdated,
		m.RecordsSkipped,
		m.RecordsUnable,
		m.AuthorsMapped,
		m.AuthorsUnmapped,
		m.RunDuration,
	)

	return m
}

// Observe adds the counters of a finished run.
func (m *Metrics) Observe(result *migrate.Result, table *author.Table) {
	stats := result.Stats
	m.RecordsTotal.Add(float64(stats.Total()))
	m.RecordsUpdated.Add(float64(stats.Updated()))
	m.RecordsSkipped.Add(float64(stats.NotUpdated()))
	m.RecordsUnable.Add(float64(stats.CannotUpdate()))
	m.RunDuration.Set(result.Duration.Seconds())

	if table != nil {
		m.AuthorsMapped.Set(float64(table.MappedCount()))
		m.AuthorsUnmapped.Set(float64(table.UnmappedCount()))
	}
}

// WriteTextfile writes every metric to path, replacing it atomically.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
