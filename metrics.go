// metrics.go - Prometheus metrics for collection traversals

package report

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records traversal activity. A nil *Metrics records nothing, so
// walkers can be built without a registry.
type Metrics struct {
	modeSelections *prometheus.CounterVec
	pagesLoaded    *prometheus.CounterVec
	documents      *prometheus.CounterVec
	errors         *prometheus.CounterVec
	countEstimate  prometheus.Histogram
}

// NewMetrics creates the traversal metrics under namespace and registers
// them with registerer. If registerer is nil a private registry is used.
func NewMetrics(namespace string, registerer prometheus.Registerer) (*Metrics, error) {
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	if namespace == "" {
		namespace = "mgoexport"
	}

	m := &Metrics{
		modeSelections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "walker",
			Name:      "mode_selections_total",
			Help:      "Traversals started, by selected mode.",
		}, []string{"mode"}),
		pagesLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "walker",
			Name:      "pages_loaded_total",
			Help:      "Bounded pages fetched or cursors opened, by mode.",
		}, []string{"mode"}),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "walker",
			Name:      "documents_total",
			Help:      "Documents yielded to consumers, by mode.",
		}, []string{"mode"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "walker",
			Name:      "errors_total",
			Help:      "Traversals stopped by an error, by kind.",
		}, []string{"kind"}),
		countEstimate: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "walker",
			Name:      "count_estimate",
			Help:      "Capped result count estimates taken before mode selection.",
			Buckets:   []float64{0, 10, 100, 500, 1000, 5000, 10000},
		}),
	}

	collectors := []prometheus.Collector{m.modeSelections, m.pagesLoaded, m.documents, m.errors, m.countEstimate}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeEstimate(n int64) {
	if m == nil {
		return
	}
	m.countEstimate.Observe(float64(n))
}

func (m *Metrics) modeSelected(mode Mode) {
	if m == nil {
		return
	}
	m.modeSelections.WithLabelValues(mode.String()).Inc()
}

func (m *Metrics) pageLoaded(mode Mode) {
	if m == nil {
		return
	}
	m.pagesLoaded.WithLabelValues(mode.String()).Inc()
}

func (m *Metrics) documentYielded(mode Mode) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(mode.String()).Inc()
}

func (m *Metrics) failed(err error) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(errorKind(err)).Inc()
}

func errorKind(err error) string {
	var dsErr *DataSourceError
	var violation *InvariantViolation
	switch {
	case errors.As(err, &dsErr):
		return "data_source"
	case errors.As(err, &violation):
		return "invariant"
	default:
		return "other"
	}
}
