package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector groups the service's prometheus instruments. A nil *Collector
// is valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	transitions      *prometheus.CounterVec
	historiesWritten prometheus.Counter
	auditMissing     prometheus.Gauge
	httpDuration     *prometheus.HistogramVec
}

// NewCollector registers the instruments on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		gatherer: reg,
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vetcare_appointment_transitions_total",
				Help: "Appointment lifecycle operations by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		historiesWritten: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vetcare_medical_histories_recorded_total",
				Help: "Medical history records written on completion",
			},
		),
		auditMissing: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "vetcare_completed_without_history",
				Help: "Completed appointments lacking a medical history record at the last audit",
			},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vetcare_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status_code"},
		),
	}

	reg.MustRegister(
		c.transitions,
		c.historiesWritten,
		c.auditMissing,
		c.httpDuration,
		collectors.NewGoCollector(),
	)

	return c
}

func (c *Collector) RecordTransition(action, outcome string) {
	if c == nil {
		return
	}
	c.transitions.WithLabelValues(action, outcome).Inc()
}

func (c *Collector) RecordHistoryWritten() {
	if c == nil {
		return
	}
	c.historiesWritten.Inc()
}

func (c *Collector) RecordAudit(missing int) {
	if c == nil {
		return
	}
	c.auditMissing.Set(float64(missing))
}

func (c *Collector) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// Handler exposes the registry in the prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
