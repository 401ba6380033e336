// Package observability holds the Prometheus metrics for the
// ingestion engine.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	Registry *prometheus.Registry

	rowsParsed        *prometheus.CounterVec
	rowsImported      prometheus.Counter
	rowsSkipped       *prometheus.CounterVec
	duplicatesFlagged prometheus.Counter
	rulesSynthesized  prometheus.Counter
	backups           *prometheus.CounterVec
	syncErrors        prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// engine metrics in it. A private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		rowsParsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankfeed_rows_parsed_total",
				Help: "Total rows parsed from bank files, by format.",
			},
			[]string{"format"},
		),
		rowsImported: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bankfeed_rows_imported_total",
				Help: "Total transactions written after validation.",
			},
		),
		rowsSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankfeed_rows_skipped_total",
				Help: "Total rows skipped during validation, by field.",
			},
			[]string{"field"},
		),
		duplicatesFlagged: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bankfeed_duplicates_flagged_total",
				Help: "Total transactions flagged as likely duplicates.",
			},
		),
		rulesSynthesized: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bankfeed_rules_synthesized_total",
				Help: "Total classification rules synthesized from verified transactions.",
			},
		),
		backups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankfeed_backups_total",
				Help: "Total backup operations, by kind.",
			},
			[]string{"kind"},
		),
		syncErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bankfeed_sync_errors_total",
				Help: "Total errors from the sync endpoint.",
			},
		),
	}
}

// IncrRowsParsed adds parsed rows for a format.
func (m *Metrics) IncrRowsParsed(format string, n int) {
	m.rowsParsed.WithLabelValues(format).Add(float64(n))
}

// IncrRowsImported adds transactions written after validation.
func (m *Metrics) IncrRowsImported(n int) {
	m.rowsImported.Add(float64(n))
}

// IncrRowsSkipped increments the skip counter for a field.
func (m *Metrics) IncrRowsSkipped(field string) {
	m.rowsSkipped.WithLabelValues(field).Inc()
}

// IncrDuplicatesFlagged adds flagged duplicates.
func (m *Metrics) IncrDuplicatesFlagged(n int) {
	m.duplicatesFlagged.Add(float64(n))
}

// IncrRulesSynthesized adds synthesized rules.
func (m *Metrics) IncrRulesSynthesized(n int) {
	m.rulesSynthesized.Add(float64(n))
}

// IncrBackup increments the backup counter with a kind label
// (created, restored, deleted, pruned).
func (m *Metrics) IncrBackup(kind string) {
	m.backups.WithLabelValues(kind).Inc()
}

// IncrSyncError increments the sync error counter.
func (m *Metrics) IncrSyncError() {
	m.syncErrors.Inc()
}
