package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	tokensMinted   prometheus.Counter
	mintRejections *prometheus.CounterVec
	verifications  *prometheus.CounterVec
	auditFailures  prometheus.Counter
	eventFailures  prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		tokensMinted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ims",
			Subsystem: "card",
			Name:      "tokens_minted_total",
			Help:      "Verification tokens minted.",
		}),
		mintRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ims",
			Subsystem: "card",
			Name:      "mint_rejections_total",
			Help:      "Mint requests rejected, by reason.",
		}, []string{"reason"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ims",
			Subsystem: "card",
			Name:      "verifications_total",
			Help:      "Card verification attempts, by result and reason.",
		}, []string{"result", "reason"}),
		auditFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ims",
			Name:      "audit_write_failures_total",
			Help:      "Verification audit rows that could not be written.",
		}),
		eventFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ims",
			Name:      "event_publish_failures_total",
			Help:      "Domain events that could not be published.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.tokensMinted,
			m.mintRejections,
			m.verifications,
			m.auditFailures,
			m.eventFailures,
		)
	}
	return m
}

// NewRegistry returns a registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func (m *Metrics) TokenMinted() {
	if m == nil {
		return
	}
	m.tokensMinted.Inc()
}

func (m *Metrics) MintRejected(reason string) {
	if m == nil {
		return
	}
	m.mintRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) Verification(result, reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "none"
	}
	m.verifications.WithLabelValues(result, reason).Inc()
}

func (m *Metrics) AuditWriteFailed() {
	if m == nil {
		return
	}
	m.auditFailures.Inc()
}

func (m *Metrics) EventPublishFailed() {
	if m == nil {
		return
	}
	m.eventFailures.Inc()
}

// EventsUndelivered counts events an asynchronous producer gave up on.
func (m *Metrics) EventsUndelivered(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.eventFailures.Add(float64(n))
}
