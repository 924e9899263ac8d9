// Package metrics exposes Prometheus collectors for the three
// pipelines and the operational HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the registry and the pipeline instruments.
type Collector struct {
	registry *prometheus.Registry

	workDuration *prometheus.HistogramVec
	workTotal    *prometheus.CounterVec
	queueDepth   *prometheus.GaugeVec

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

// NewCollector constructs a collector with default histograms/counters.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	workDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "briefmill",
		Subsystem: "pipeline",
		Name:      "work_duration_seconds",
		Help:      "Time spent processing one unit of work per pipeline.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"pipeline"})

	workTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "briefmill",
		Subsystem: "pipeline",
		Name:      "work_total",
		Help:      "Total units of work taken off each pipeline queue.",
	}, []string{"pipeline"})

	queueDepth := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "briefmill",
		Subsystem: "pipeline",
		Name:      "queue_depth",
		Help:      "Current number of queued entries per pipeline.",
	}, []string{"pipeline"})

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "briefmill",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for inbound HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "briefmill",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of inbound HTTP requests.",
	}, []string{"method", "path", "status"})

	for _, c := range []prometheus.Collector{
		workDuration, workTotal, queueDepth, requestDuration, requestTotal,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &Collector{
		registry:        registry,
		workDuration:    workDuration,
		workTotal:       workTotal,
		queueDepth:      queueDepth,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
	}, nil
}

// ObserveWork records one processed unit for a pipeline.
func (c *Collector) ObserveWork(pipeline string, duration time.Duration) {
	c.workTotal.WithLabelValues(pipeline).Inc()
	c.workDuration.WithLabelValues(pipeline).Observe(duration.Seconds())
}

// SetQueueDepth updates the depth gauge for a pipeline queue.
func (c *Collector) SetQueueDepth(pipeline string, depth int) {
	c.queueDepth.WithLabelValues(pipeline).Set(float64(depth))
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.URL.Path

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
