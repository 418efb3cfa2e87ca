// Package telemetry provides the engine's optional Prometheus metrics and
// OpenTelemetry tracing hooks, following the instrumentation shape of the
// teacher's pkg/metadata/lock/metrics.go and pkg/cache/cache_metrics.go:
// counters/histograms registered against a caller-supplied registry, safe
// to leave nil (a no-op) when the caller doesn't want metrics.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors an Engine updates on every
// operation. A nil *Metrics is valid and every method on it is a no-op,
// so callers that don't care about metrics never have to check for nil
// themselves.
type Metrics struct {
	ops        *prometheus.CounterVec
	opDuration *prometheus.HistogramVec
	lockWait   prometheus.Histogram
	bytesIn    prometheus.Counter
	bytesOut   prometheus.Counter
}

// NewMetrics registers Omnio's collectors against reg and returns a
// *Metrics bound to them. Pass nil to disable metrics entirely.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "omnio",
			Name:      "operations_total",
			Help:      "Count of engine operations by name and outcome.",
		}, []string{"op", "outcome"}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "omnio",
			Name:      "operation_duration_seconds",
			Help:      "Engine operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "omnio",
			Name:      "lock_wait_seconds",
			Help:      "Time spent waiting to acquire the engine lock.",
			Buckets:   prometheus.DefBuckets,
		}),
		bytesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "omnio",
			Name:      "bytes_written_total",
			Help:      "Total bytes accepted by WriteStream.",
		}),
		bytesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "omnio",
			Name:      "bytes_read_total",
			Help:      "Total bytes yielded by ReadStream.",
		}),
	}

	reg.MustRegister(m.ops, m.opDuration, m.lockWait, m.bytesIn, m.bytesOut)
	return m
}

func (m *Metrics) ObserveOp(op string, seconds float64, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.ops.WithLabelValues(op, outcome).Inc()
	m.opDuration.WithLabelValues(op).Observe(seconds)
}

func (m *Metrics) ObserveLockWait(seconds float64) {
	if m == nil {
		return
	}
	m.lockWait.Observe(seconds)
}

func (m *Metrics) AddBytesWritten(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesIn.Add(float64(n))
}

func (m *Metrics) AddBytesRead(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesOut.Add(float64(n))
}
