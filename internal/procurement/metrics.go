package procurement

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes purchase order counters.
type Metrics struct {
	transitions  *prometheus.CounterVec
	receipts     *prometheus.CounterVec
	propagations *prometheus.CounterVec
	drift        prometheus.Counter
}

// NewMetrics registers the procurement collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "odyssey",
			Subsystem: "procurement",
			Name:      "status_transitions_total",
			Help:      "Purchase order status transitions.",
		}, []string{"from", "to"}),
		receipts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "odyssey",
			Subsystem: "procurement",
			Name:      "receipts_total",
			Help:      "Receipts processed by outcome.",
		}, []string{"outcome"}),
		propagations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "odyssey",
			Subsystem: "procurement",
			Name:      "requisition_propagations_total",
			Help:      "Requisition propagations by outcome.",
		}, []string{"outcome"}),
		drift: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "odyssey",
			Subsystem: "procurement",
			Name:      "status_drift_total",
			Help:      "Orders whose stored status differs from the derived one.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.transitions, m.receipts, m.propagations, m.drift)
	}
	return m
}

func (m *Metrics) observeTransition(from, to Status) {
	if m == nil || from == to {
		return
	}
	fromLabel := string(from)
	if fromLabel == "" {
		fromLabel = "NEW"
	}
	m.transitions.WithLabelValues(fromLabel, string(to)).Inc()
}

func (m *Metrics) observeReceipt(outcome string) {
	if m == nil {
		return
	}
	m.receipts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observePropagation(outcome string) {
	if m == nil {
		return
	}
	m.propagations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeDrift(n int) {
	if m == nil || n == 0 {
		return
	}
	m.drift.Add(float64(n))
}
