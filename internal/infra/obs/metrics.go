package obs

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the HTTP and settlement collectors. It satisfies the
// application metrics port.
type Metrics struct {
	registry          *prometheus.Registry
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	sideEffectFailed  *prometheus.CounterVec
	paymentTransition *prometheus.CounterVec
	payoutTransition  *prometheus.CounterVec
	earningsPromoted  prometheus.Counter
	jobsProcessed     *prometheus.CounterVec
	outboxPublished   prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		sideEffectFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_side_effect_failures_total",
			Help: "Best-effort side effects that failed after commit",
		}, []string{"kind"}),
		paymentTransition: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_payment_transitions_total",
			Help: "Payment status transitions",
		}, []string{"status"}),
		payoutTransition: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_payout_transitions_total",
			Help: "Payout status transitions",
		}, []string{"status"}),
		earningsPromoted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "settlement_earnings_promoted_total",
			Help: "Earnings moved from pending to available",
		}),
		jobsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_jobs_processed_total",
			Help: "Delayed jobs handled, by type and result",
		}, []string{"type", "result"}),
		outboxPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "settlement_outbox_published_total",
			Help: "Outbox records relayed to the broker",
		}),
	}
	m.registry.MustRegister(
		prometheus.NewGoCollector(),
		m.httpRequests,
		m.httpDuration,
		m.sideEffectFailed,
		m.paymentTransition,
		m.payoutTransition,
		m.earningsPromoted,
		m.jobsProcessed,
		m.outboxPublished,
	)
	return m
}

func (m *Metrics) SideEffectFailed(kind string) {
	m.sideEffectFailed.WithLabelValues(kind).Inc()
}

func (m *Metrics) PaymentTransition(status string) {
	m.paymentTransition.WithLabelValues(status).Inc()
}

func (m *Metrics) PayoutTransition(status string) {
	m.payoutTransition.WithLabelValues(status).Inc()
}

func (m *Metrics) EarningsPromoted(n int) {
	m.earningsPromoted.Add(float64(n))
}

func (m *Metrics) JobProcessed(jobType, result string) {
	m.jobsProcessed.WithLabelValues(jobType, result).Inc()
}

func (m *Metrics) OutboxPublished(n int) {
	m.outboxPublished.Add(float64(n))
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
