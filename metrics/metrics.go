// Package metrics adapts ports.Metrics to github.com/prometheus/client_golang,
// plus a no-op sink for tests and disabled deployments.
package metrics

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink records named observations as a labeled counter vector
// of running sums plus a gauge vector holding each event's last value;
// component-specific rate/latency breakdowns are
// expected to derive from named events (e.g. "broker.enqueue",
// "worker.handler_duration_ms") rather than from distinct metric types,
// keeping the ports.Metrics contract a single RecordEvent call.
type PrometheusSink struct {
	labelNames []string
	counter    *prometheus.CounterVec
	gauge      *prometheus.GaugeVec
}

// NewPrometheusSink registers its vectors against reg. Use
// prometheus.NewRegistry() for an isolated registry in tests, or
// prometheus.DefaultRegisterer in production.
func NewPrometheusSink(reg prometheus.Registerer, labelNames []string) *PrometheusSink {
	sorted := append([]string(nil), labelNames...)
	sort.Strings(sorted)

	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "queuecore",
		Name:      "events_total",
		Help:      "Count of named queuecore events.",
	}, append([]string{"event"}, sorted...))

	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "queuecore",
		Name:      "event_value",
		Help:      "Last recorded value for a named queuecore event.",
	}, append([]string{"event"}, sorted...))

	reg.MustRegister(counter, gauge)
	return &PrometheusSink{labelNames: sorted, counter: counter, gauge: gauge}
}

// RecordEvent sets the label values for name plus labels. Callers vary
// which label keys they populate per event kind (e.g. broker.enqueue
// sets only "queue", broker.nack.dead also sets "error_code"); any
// label name this sink was constructed with that labels does not supply
// is recorded as empty, so every call site can use the same sink
// without tracking its full label set.
func (s *PrometheusSink) RecordEvent(name string, labels map[string]string, value float64) {
	values := prometheus.Labels{"event": name}
	for _, k := range s.labelNames {
		values[k] = labels[k]
	}
	s.counter.With(values).Add(value)
	s.gauge.With(values).Set(value)
}

// Noop discards every observation; the default when metrics are disabled.
type Noop struct{}

func (Noop) RecordEvent(string, map[string]string, float64) {}
