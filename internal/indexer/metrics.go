package indexer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the indexer's Prometheus collectors.
type Metrics struct {
	CursorHeight  prometheus.Gauge
	LastApply     prometheus.Gauge
	BlocksApplied prometheus.Counter
	UtxosAdded    prometheus.Counter
	UtxosSpent    prometheus.Counter
	Errors        *prometheus.CounterVec
	ApplyDuration prometheus.Histogram
	State         *prometheus.GaugeVec
}

// Error kinds for the errors_total counter.
const (
	errKindSource = "source"
	errKindStore  = "store"
)

// NewMetrics registers the indexer collectors with reg. A nil reg uses a
// private registry, which keeps tests from colliding on the default one.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		CursorHeight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "utxoindex",
			Name:      "cursor_height",
			Help:      "Height of the last fully applied block",
		}),
		LastApply: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "utxoindex",
			Name:      "last_apply_timestamp_seconds",
			Help:      "Unix time of the last applied block, for staleness alerts",
		}),
		BlocksApplied: f.NewCounter(prometheus.CounterOpts{
			Namespace: "utxoindex",
			Name:      "blocks_applied_total",
			Help:      "Number of blocks applied",
		}),
		UtxosAdded: f.NewCounter(prometheus.CounterOpts{
			Namespace: "utxoindex",
			Name:      "utxos_added_total",
			Help:      "Number of outputs added to the UTXO set",
		}),
		UtxosSpent: f.NewCounter(prometheus.CounterOpts{
			Namespace: "utxoindex",
			Name:      "utxos_spent_total",
			Help:      "Number of outputs removed from the UTXO set",
		}),
		Errors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "utxoindex",
			Name:      "errors_total",
			Help:      "Number of failed indexing attempts by kind",
		}, []string{"kind"}),
		ApplyDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "utxoindex",
			Name:      "apply_duration_seconds",
			Help:      "Time to commit one block to the store",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		State: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "utxoindex",
			Name:      "state",
			Help:      "1 for the indexer's current state, 0 otherwise",
		}, []string{"state"}),
	}
}

func (m *Metrics) setState(current string) {
	for _, s := range allStates {
		v := 0.0
		if s == current {
			v = 1
		}
		m.State.WithLabelValues(s).Set(v)
	}
}
