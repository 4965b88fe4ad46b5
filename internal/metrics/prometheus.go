package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements the Collector interface using Prometheus metrics.
type PrometheusCollector struct {
	// Session metrics
	sessionsTotal  prometheus.Counter
	sessionsActive prometheus.Gauge

	// Command metrics
	commandsTotal *prometheus.CounterVec

	// Resolution metrics
	resolutionsTotal *prometheus.CounterVec

	// Message metrics
	messagesReceivedTotal prometheus.Counter
	messagesRejectedTotal *prometheus.CounterVec
	messagesSizeBytes     prometheus.Histogram

	// Delivery metrics
	deliveriesTotal *prometheus.CounterVec
	retriesTotal    *prometheus.CounterVec

	// Rate-limit metrics
	rateLimitWaitSeconds *prometheus.HistogramVec

	// Lane metrics
	lanesActive prometheus.Gauge
}

// NewPrometheusCollector creates a new PrometheusCollector with all metrics registered.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		sessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smtp2tg_sessions_total",
			Help: "Total number of SMTP sessions opened.",
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smtp2tg_sessions_active",
			Help: "Number of currently active SMTP sessions.",
		}),

		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smtp2tg_commands_total",
			Help: "Total number of SMTP commands processed.",
		}, []string{"command"}),

		resolutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smtp2tg_resolutions_total",
			Help: "Total number of recipient resolutions by result.",
		}, []string{"result"}),

		messagesReceivedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smtp2tg_messages_received_total",
			Help: "Total number of messages accepted for relay.",
		}),
		messagesRejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smtp2tg_messages_rejected_total",
			Help: "Total number of messages rejected.",
		}, []string{"reason"}),
		messagesSizeBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "smtp2tg_messages_size_bytes",
			Help:    "Size of received messages in bytes.",
			Buckets: []float64{1024, 10240, 102400, 1048576, 10485760, 26214400},
		}),

		deliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smtp2tg_deliveries_total",
			Help: "Total number of deliveries reaching a terminal state.",
		}, []string{"result"}),
		retriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smtp2tg_delivery_retries_total",
			Help: "Total number of delivery retries by reason.",
		}, []string{"reason"}),

		rateLimitWaitSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "smtp2tg_rate_limit_wait_seconds",
			Help:    "Time spent honoring backend retry-after hints.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"scope"}),

		lanesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smtp2tg_delivery_lanes_active",
			Help: "Number of destination lanes with queued or in-flight messages.",
		}),
	}

	// Register all metrics
	reg.MustRegister(
		c.sessionsTotal,
		c.sessionsActive,
		c.commandsTotal,
		c.resolutionsTotal,
		c.messagesReceivedTotal,
		c.messagesRejectedTotal,
		c.messagesSizeBytes,
		c.deliveriesTotal,
		c.retriesTotal,
		c.rateLimitWaitSeconds,
		c.lanesActive,
	)

	return c
}

// SessionOpened increments the session counter and active gauge.
func (c *PrometheusCollector) SessionOpened() {
	c.sessionsTotal.Inc()
	c.sessionsActive.Inc()
}

// SessionClosed decrements the active sessions gauge.
func (c *PrometheusCollector) SessionClosed() {
	c.sessionsActive.Dec()
}

// CommandProcessed increments the command counter.
func (c *PrometheusCollector) CommandProcessed(command string) {
	c.commandsTotal.WithLabelValues(command).Inc()
}

// RecipientResolved increments the resolution counter.
func (c *PrometheusCollector) RecipientResolved(result string) {
	c.resolutionsTotal.WithLabelValues(result).Inc()
}

// MessageReceived increments the message counter and observes message size.
func (c *PrometheusCollector) MessageReceived(sizeBytes int64) {
	c.messagesReceivedTotal.Inc()
	c.messagesSizeBytes.Observe(float64(sizeBytes))
}

// MessageRejected increments the message rejected counter.
func (c *PrometheusCollector) MessageRejected(reason string) {
	c.messagesRejectedTotal.WithLabelValues(reason).Inc()
}

// DeliveryCompleted increments the delivery counter.
func (c *PrometheusCollector) DeliveryCompleted(result string) {
	c.deliveriesTotal.WithLabelValues(result).Inc()
}

// DeliveryRetried increments the retry counter.
func (c *PrometheusCollector) DeliveryRetried(reason string) {
	c.retriesTotal.WithLabelValues(reason).Inc()
}

// RateLimitWait observes time spent waiting on a retry-after hint.
func (c *PrometheusCollector) RateLimitWait(scope string, seconds float64) {
	c.rateLimitWaitSeconds.WithLabelValues(scope).Observe(seconds)
}

// LaneStarted increments the active lanes gauge.
func (c *PrometheusCollector) LaneStarted() {
	c.lanesActive.Inc()
}

// LaneStopped decrements the active lanes gauge.
func (c *PrometheusCollector) LaneStopped() {
	c.lanesActive.Dec()
}
