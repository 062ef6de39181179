// Package metrics exposes a Prometheus registry scraped by external
// monitoring systems. It covers the pool's gauges (size, free, per-function
// breakdown) and the invoker's invocation counters/histograms broken down
// by execution_type, the subset of the teacher's much larger metrics
// surface that this module's components actually produce.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps the Prometheus collectors backing this module's domain
// stack entry for github.com/prometheus/client_golang.
type Metrics struct {
	registry *prometheus.Registry

	invocationsTotal   *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec
	coldstartDuration  prometheus.Histogram
	warmDispatchMs     prometheus.Histogram

	poolSize       prometheus.Gauge
	poolFree       prometheus.Gauge
	poolMax        prometheus.Gauge
	poolByFunction *prometheus.GaugeVec
	poolEvicted    *prometheus.CounterVec
	reaperRemove   prometheus.Counter
}

var defaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

var m *Metrics

// Init builds and registers the metrics registry. Safe to call once at
// daemon startup; subsequent calls are a no-op if already initialized.
func Init(namespace string, buckets []float64) {
	if m != nil {
		return
	}
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	nm := &Metrics{
		registry: registry,
		invocationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_total",
			Help:      "Total invocations by runtime, execution_type, and outcome.",
		}, []string{"runtime", "execution_type", "status"}),
		invocationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invocation_duration_ms",
			Help:      "Total invocation latency in milliseconds.",
			Buckets:   buckets,
		}, []string{"execution_type"}),
		coldstartDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "coldstart_duration_ms",
			Help:      "Cold-start container execution latency in milliseconds.",
			Buckets:   buckets,
		}),
		warmDispatchMs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "warm_dispatch_duration_ms",
			Help:      "Warm-container file-drop dispatch latency in milliseconds.",
			Buckets:   buckets,
		}),
		poolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pool_containers", Help: "Total warm containers currently held by the pool.",
		}),
		poolFree: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pool_containers_free", Help: "Warm containers currently not in use.",
		}),
		poolMax: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pool_max_containers", Help: "Configured pool capacity cap.",
		}),
		poolByFunction: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pool_containers_by_function", Help: "Warm containers per function_id, broken down by state.",
		}, []string{"func_id", "state"}),
		poolEvicted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "pool_evictions_total", Help: "Warm container evictions by reason.",
		}, []string{"reason"}),
		reaperRemove: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "pool_reaper_removed_total", Help: "Containers removed by the TTL reaper.",
		}),
	}

	registry.MustRegister(
		nm.invocationsTotal, nm.invocationDuration, nm.coldstartDuration, nm.warmDispatchMs,
		nm.poolSize, nm.poolFree, nm.poolMax, nm.poolByFunction, nm.poolEvicted, nm.reaperRemove,
	)
	m = nm
}

func RecordInvocation(runtime, executionType string, success bool, totalMs int64) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	m.invocationsTotal.WithLabelValues(runtime, executionType, status).Inc()
	m.invocationDuration.WithLabelValues(executionType).Observe(float64(totalMs))
}

func RecordColdstart(ms int64) {
	if m != nil {
		m.coldstartDuration.Observe(float64(ms))
	}
}

func RecordWarmDispatch(ms int64) {
	if m != nil {
		m.warmDispatchMs.Observe(float64(ms))
	}
}

func SetPoolSize(total, free, max int) {
	if m == nil {
		return
	}
	m.poolSize.Set(float64(total))
	m.poolFree.Set(float64(free))
	m.poolMax.Set(float64(max))
}

// SetPoolSizeByFunction records the per-function container breakdown
// (spec §6 stats() per-function breakdown).
func SetPoolSizeByFunction(funcID string, total, available, inUse int) {
	if m == nil {
		return
	}
	m.poolByFunction.WithLabelValues(funcID, "available").Set(float64(available))
	m.poolByFunction.WithLabelValues(funcID, "in_use").Set(float64(inUse))
}

func RecordEviction(reason string) {
	if m != nil {
		m.poolEvicted.WithLabelValues(reason).Inc()
	}
}

func RecordReaperRemoval() {
	if m != nil {
		m.reaperRemove.Inc()
	}
}

func Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// elapsedMs returns the whole milliseconds elapsed since start. Nothing in
// this module calls it at present.
func elapsedMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
