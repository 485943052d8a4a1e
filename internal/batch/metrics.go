package batch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "filingcli"

// Metrics counts batch outcomes. Create one per registry; registering the
// same set twice panics, so tests pass their own prometheus.NewRegistry().
type Metrics struct {
	WorkbooksProcessed prometheus.Counter
	WorkbookFailures   prometheus.Counter
	Merges             *prometheus.CounterVec
	Splits             prometheus.Counter
}

// NewMetrics registers the batch counters with reg. A nil reg uses the
// default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		WorkbooksProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workbooks_processed_total",
			Help:      "Workbooks processed to completion.",
		}),
		WorkbookFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workbook_failures_total",
			Help:      "Workbooks that failed processing.",
		}),
		Merges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merges_total",
			Help:      "Table merges applied, by direction.",
		}, []string{"kind"}),
		Splits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "splits_total",
			Help:      "Worksheets created by splitting multi-table sheets.",
		}),
	}
}
