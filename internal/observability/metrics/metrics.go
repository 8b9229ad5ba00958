package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulerMetrics exposes counters/histograms for the SMS scheduling flows.
type SchedulerMetrics struct {
	inboundTotal     *prometheus.CounterVec
	extractionsTotal *prometheus.CounterVec
	outboundTotal    *prometheus.CounterVec
	remindersTotal   *prometheus.CounterVec
	webhookLatency   *prometheus.HistogramVec
}

func NewSchedulerMetrics(reg prometheus.Registerer) *SchedulerMetrics {
	m := &SchedulerMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dental",
			Name:      "inbound_messages_total",
			Help:      "Inbound patient messages by router path",
		}, []string{"route"}),
		extractionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dental",
			Name:      "intent_extractions_total",
			Help:      "Intent extractions by resulting intent and outcome",
		}, []string{"intent", "outcome"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dental",
			Name:      "outbound_messages_total",
			Help:      "Outbound SMS sends by template kind",
		}, []string{"kind", "outcome"}),
		remindersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dental",
			Name:      "reminders_sent_total",
			Help:      "Appointment reminders by lead-time window",
		}, []string{"window", "outcome"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dental",
			Name:      "webhook_duration_seconds",
			Help:      "Latency of inbound SMS webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.extractionsTotal, m.outboundTotal, m.remindersTotal, m.webhookLatency)
	return m
}

func (m *SchedulerMetrics) ObserveInbound(route string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(route).Inc()
}

func (m *SchedulerMetrics) ObserveExtraction(intent, outcome string) {
	if m == nil {
		return
	}
	m.extractionsTotal.WithLabelValues(intent, outcome).Inc()
}

func (m *SchedulerMetrics) ObserveOutbound(kind string, err error) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(kind, outcome(err)).Inc()
}

func (m *SchedulerMetrics) ObserveReminder(window string, err error) {
	if m == nil {
		return
	}
	m.remindersTotal.WithLabelValues(window, outcome(err)).Inc()
}

func (m *SchedulerMetrics) ObserveWebhookLatency(status string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(status).Observe(seconds)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
