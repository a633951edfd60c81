package observability

import (
	"time"

	"github.com/boddenberg/pj-ledger-bfa-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the ledger.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	operationDuration *prometheus.HistogramVec
	externalErrors    *prometheus.CounterVec
	promotions        prometheus.Counter
	confirmations     *prometheus.CounterVec
	notifications     *prometheus.CounterVec
	sweepArmed        prometheus.Gauge
	ledgerSize        prometheus.Gauge
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// ledger metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_operation_duration_seconds",
				Help:    "Duration of ledger operations, including the backend round trip.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_external_errors_total",
				Help: "Total errors returned by the transactions backend.",
			},
			[]string{"operation"},
		),
		promotions: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ledger_sweep_promotions_total",
				Help: "Processing transactions promoted to processed by the sweep.",
			},
		),
		confirmations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_confirmations_total",
				Help: "Asynchronous backend confirmations of optimistic changes.",
			},
			[]string{"action", "result"},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_notifications_total",
				Help: "Notifications surfaced to the user.",
			},
			[]string{"level"},
		),
		sweepArmed: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ledger_sweep_timer_armed",
				Help: "1 while a sweep wake-up is armed.",
			},
		),
		ledgerSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ledger_transactions",
				Help: "Transactions held in memory.",
			},
		),
	}
}

// RecordOperation records the duration of a ledger operation.
func (m *Metrics) RecordOperation(operation string, d time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the backend error counter.
func (m *Metrics) IncrExternalError(operation string) {
	m.externalErrors.WithLabelValues(operation).Inc()
}

// AddPromotions counts records settled by one sweep pass.
func (m *Metrics) AddPromotions(n int) {
	m.promotions.Add(float64(n))
}

// IncrConfirmation counts an async confirmation outcome ("ok" or "failed").
func (m *Metrics) IncrConfirmation(action, result string) {
	m.confirmations.WithLabelValues(action, result).Inc()
}

// IncrNotification counts a notification by level.
func (m *Metrics) IncrNotification(level string) {
	m.notifications.WithLabelValues(level).Inc()
}

// SetSweepArmed flags whether a sweep timer is pending.
func (m *Metrics) SetSweepArmed(armed bool) {
	if armed {
		m.sweepArmed.Set(1)
		return
	}
	m.sweepArmed.Set(0)
}

// SetLedgerSize records how many transactions are held in memory.
func (m *Metrics) SetLedgerSize(n int) {
	m.ledgerSize.Set(float64(n))
}

// Snapshot reads the current metric values back for GET /v1/metrics/ledger.
func (m *Metrics) Snapshot() *domain.LedgerMetrics {
	confirmTotal := counterVecSum(m.confirmations, nil)
	confirmFailed := counterVecSum(m.confirmations, hasLabel("result", "failed"))

	failureRate := float64(0)
	if confirmTotal > 0 {
		failureRate = confirmFailed / confirmTotal
	}

	return &domain.LedgerMetrics{
		Promotions:         int64(counterValue(m.promotions)),
		ConfirmFailures:    int64(confirmFailed),
		ExternalErrors:     int64(counterVecSum(m.externalErrors, nil)),
		NotificationsSent:  int64(counterVecSum(m.notifications, nil)),
		SweepTimerArmed:    gaugeValue(m.sweepArmed) > 0,
		ConfirmFailureRate: failureRate,
	}
}

// counterValue extracts the current float64 value from a counter.
func counterValue(c prometheus.Counter) float64 {
	out := &dto.Metric{}
	if err := c.Write(out); err != nil {
		return 0
	}
	if out.Counter != nil && out.Counter.Value != nil {
		return *out.Counter.Value
	}
	return 0
}

func gaugeValue(g prometheus.Gauge) float64 {
	out := &dto.Metric{}
	if err := g.Write(out); err != nil {
		return 0
	}
	if out.Gauge != nil && out.Gauge.Value != nil {
		return *out.Gauge.Value
	}
	return 0
}

// counterVecSum adds up the label combinations of a CounterVec accepted by keep
// (all of them when keep is nil).
func counterVecSum(cv *prometheus.CounterVec, keep func(*dto.Metric) bool) float64 {
	ch := make(chan prometheus.Metric, 64)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()

	total := float64(0)
	for metric := range ch {
		out := &dto.Metric{}
		if err := metric.Write(out); err != nil {
			continue
		}
		if keep != nil && !keep(out) {
			continue
		}
		if out.Counter != nil && out.Counter.Value != nil {
			total += *out.Counter.Value
		}
	}
	return total
}

func hasLabel(name, value string) func(*dto.Metric) bool {
	return func(m *dto.Metric) bool {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == name && lp.GetValue() == value {
				return true
			}
		}
		return false
	}
}
