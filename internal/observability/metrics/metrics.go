package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConversationMetrics exposes counters/histograms for the missed-call flow.
type ConversationMetrics struct {
	triggersTotal    *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	dispatchTotal    *prometheus.CounterVec
	dispatchLatency  *prometheus.HistogramVec
	recordsTotal     *prometheus.CounterVec
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		triggersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "missedcall",
			Subsystem: "conversation",
			Name:      "triggers_total",
			Help:      "Inbound triggers handled by the orchestrator",
		}, []string{"kind", "outcome"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "missedcall",
			Subsystem: "conversation",
			Name:      "stage_transitions_total",
			Help:      "Session stage transitions",
		}, []string{"from", "to"}),
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "missedcall",
			Subsystem: "messaging",
			Name:      "dispatch_total",
			Help:      "Outbound WhatsApp template sends",
		}, []string{"template", "status"}),
		dispatchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "missedcall",
			Subsystem: "messaging",
			Name:      "dispatch_latency_seconds",
			Help:      "Latency of template sends to the messaging gateway",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		recordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "missedcall",
			Subsystem: "requests",
			Name:      "records_total",
			Help:      "Request records persisted when a flow completes",
		}, []string{"category"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.triggersTotal, m.transitionsTotal, m.dispatchTotal, m.dispatchLatency, m.recordsTotal)
	return m
}

func (m *ConversationMetrics) ObserveTrigger(kind, outcome string) {
	if m == nil {
		return
	}
	m.triggersTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *ConversationMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	if from == "" {
		from = "none"
	}
	m.transitionsTotal.WithLabelValues(from, to).Inc()
}

// ObserveDispatch records one send attempt; status is sent, failed or timeout.
func (m *ConversationMetrics) ObserveDispatch(template, status string, seconds float64) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(template, status).Inc()
	m.dispatchLatency.WithLabelValues(status).Observe(seconds)
}

func (m *ConversationMetrics) ObserveRecord(category string) {
	if m == nil {
		return
	}
	m.recordsTotal.WithLabelValues(category).Inc()
}
