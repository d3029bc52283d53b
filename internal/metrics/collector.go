// Package metrics exposes Prometheus instrumentation for the LSP client.
//
// A nil *Collector is valid and records nothing, so components can take
// one unconditionally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Token set outcomes recorded by TokenSet.
const (
	OutcomeApplied = "applied"
	OutcomeStale   = "stale"
	OutcomeError   = "error"
	OutcomeEmpty   = "empty"
	OutcomeInvalid = "invalid"
	OutcomeDropped = "dropped"
)

// Collector holds the client's metrics.
type Collector struct {
	requestsSent     *prometheus.CounterVec
	notificationsOut *prometheus.CounterVec
	responses        *prometheus.CounterVec
	pending          prometheus.Gauge
	framesIn         prometheus.Counter
	bytesIn          prometheus.Counter
	framingErrors    prometheus.Counter
	tokenSets        *prometheus.CounterVec
	tokensPainted    prometheus.Counter
	tokenLatency     prometheus.Histogram
	documentVersion  prometheus.Gauge

	logger *zap.Logger
}

// NewCollector registers the client metrics on reg under namespace.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.requestsSent = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_sent_total",
			Help:      "Requests written to the language server",
		},
		[]string{"method"},
	)

	c.notificationsOut = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Notifications written to the language server",
		},
		[]string{"method"},
	)

	c.responses = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Resolved requests by outcome",
		},
		[]string{"outcome"},
	)

	c.pending = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pending_requests",
		Help:      "Requests awaiting a response",
	})

	c.framesIn = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_received_total",
		Help:      "Complete frames read from the language server",
	})

	c.bytesIn = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bytes_received_total",
		Help:      "Raw bytes read from the language server",
	})

	c.framingErrors = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "framing_errors_total",
		Help:      "Protocol framing faults that stopped the receiver",
	})

	c.tokenSets = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_sets_total",
			Help:      "Semantic token responses by outcome",
		},
		[]string{"outcome"},
	)

	c.tokensPainted = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_painted_total",
		Help:      "Tokens painted into the document",
	})

	c.tokenLatency = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "token_request_latency_seconds",
		Help:      "Time from edit to applied semantic tokens",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})

	c.documentVersion = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "document_version",
		Help:      "Current document version",
	})

	c.logger.Debug("metrics registered", zap.String("namespace", namespace))
	return c
}

// RequestSent records an outgoing request.
func (c *Collector) RequestSent(method string) {
	if c == nil {
		return
	}
	c.requestsSent.WithLabelValues(method).Inc()
}

// NotificationSent records an outgoing notification.
func (c *Collector) NotificationSent(method string) {
	if c == nil {
		return
	}
	c.notificationsOut.WithLabelValues(method).Inc()
}

// Response records how a request was resolved: "result", "error",
// "dropped" or "failed".
func (c *Collector) Response(outcome string) {
	if c == nil {
		return
	}
	c.responses.WithLabelValues(outcome).Inc()
}

// SetPending records the size of the pending map.
func (c *Collector) SetPending(n int) {
	if c == nil {
		return
	}
	c.pending.Set(float64(n))
}

// FrameReceived records one complete incoming frame.
func (c *Collector) FrameReceived() {
	if c == nil {
		return
	}
	c.framesIn.Inc()
}

// BytesReceived records raw input.
func (c *Collector) BytesReceived(n int) {
	if c == nil {
		return
	}
	c.bytesIn.Add(float64(n))
}

// FramingError records a fatal framing fault.
func (c *Collector) FramingError() {
	if c == nil {
		return
	}
	c.framingErrors.Inc()
}

// TokenSet records a semantic token response outcome.
func (c *Collector) TokenSet(outcome string) {
	if c == nil {
		return
	}
	c.tokenSets.WithLabelValues(outcome).Inc()
}

// TokensApplied records a painted token set and its edit-to-paint latency.
func (c *Collector) TokensApplied(n int, latency time.Duration) {
	if c == nil {
		return
	}
	c.tokensPainted.Add(float64(n))
	c.tokenLatency.Observe(latency.Seconds())
}

// SetDocumentVersion records the current document version.
func (c *Collector) SetDocumentVersion(v int32) {
	if c == nil {
		return
	}
	c.documentVersion.Set(float64(v))
}
