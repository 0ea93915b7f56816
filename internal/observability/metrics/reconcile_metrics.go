package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReconcileMetrics tracks the bulk import and attribution pipeline.
type ReconcileMetrics struct {
	ordersImported      *prometheus.CounterVec
	ordersRefundedOut   *prometheus.CounterVec
	linesSkipped        *prometheus.CounterVec
	attributionsCreated *prometheus.CounterVec
	importDuration      *prometheus.HistogramVec
	importFailures      *prometheus.CounterVec
}

var (
	reconcileMetricsOnce sync.Once
	reconcileMetrics     *ReconcileMetrics
)

func Reconcile() *ReconcileMetrics {
	return ReconcileWithConfig(Config{})
}

func ReconcileWithConfig(cfg Config) *ReconcileMetrics {
	reconcileMetricsOnce.Do(func() {
		reconcileMetrics = newReconcileMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return reconcileMetrics
}

func ResetReconcileMetricsForTest() {
	reconcileMetricsOnce = sync.Once{}
	reconcileMetrics = nil
}

func newReconcileMetrics(registerer prometheus.Registerer, cfg Config) *ReconcileMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "postbuddy"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}

	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	ordersImported := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "postbuddy_orders_imported_total",
			Help:        "Orders inserted from bulk exports.",
			ConstLabels: constLabels,
		},
		[]string{"user_id"},
	)
	ordersRefundedOut := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "postbuddy_orders_refunded_out_total",
			Help:        "Orders deleted because refunds consumed their full amount.",
			ConstLabels: constLabels,
		},
		[]string{"user_id"},
	)
	linesSkipped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "postbuddy_export_lines_skipped_total",
			Help:        "Malformed bulk export lines dropped during import.",
			ConstLabels: constLabels,
		},
		[]string{"user_id"},
	)
	attributionsCreated := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "postbuddy_attributions_created_total",
			Help:        "Order to profile associations created.",
			ConstLabels: constLabels,
		},
		[]string{"kind"},
	)
	importDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "postbuddy_bulk_import_duration_seconds",
			Help:        "End to end duration of a bulk import run.",
			Buckets:     []float64{1, 5, 15, 30, 60, 120, 300, 600},
			ConstLabels: constLabels,
		},
		[]string{"outcome"},
	)
	importFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "postbuddy_bulk_import_failures_total",
			Help:        "Bulk import runs that surfaced an error.",
			ConstLabels: constLabels,
		},
		[]string{"stage"},
	)

	for _, collector := range []prometheus.Collector{
		ordersImported,
		ordersRefundedOut,
		linesSkipped,
		attributionsCreated,
		importDuration,
		importFailures,
	} {
		if err := registerer.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
		}
	}

	return &ReconcileMetrics{
		ordersImported:      ordersImported,
		ordersRefundedOut:   ordersRefundedOut,
		linesSkipped:        linesSkipped,
		attributionsCreated: attributionsCreated,
		importDuration:      importDuration,
		importFailures:      importFailures,
	}
}

func (m *ReconcileMetrics) AddOrdersImported(userID string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.ordersImported.WithLabelValues(userID).Add(float64(count))
}

func (m *ReconcileMetrics) AddOrdersRefundedOut(userID string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.ordersRefundedOut.WithLabelValues(userID).Add(float64(count))
}

func (m *ReconcileMetrics) AddLinesSkipped(userID string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.linesSkipped.WithLabelValues(userID).Add(float64(count))
}

// IncAttribution records one created association. kind is "profile" or
// "placeholder".
func (m *ReconcileMetrics) IncAttribution(kind string) {
	if m == nil {
		return
	}
	m.attributionsCreated.WithLabelValues(kind).Inc()
}

func (m *ReconcileMetrics) ObserveImport(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.importDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *ReconcileMetrics) IncImportFailure(stage string) {
	if m == nil {
		return
	}
	m.importFailures.WithLabelValues(stage).Inc()
}
