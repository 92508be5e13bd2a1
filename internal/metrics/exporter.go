// Package metrics exposes the atom engine's Prometheus instrumentation:
// publish outcomes, resolve latency, and materialize outcomes, all
// registered against a package-local registry rather than the global
// default so a host process embedding this package never collides with
// its own metric names.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registry every metric in this package is registered
// against. Handler serves it; a host process wanting these metrics under
// its own registry can register the exported collectors (PublishTotal,
// ResolveDurationSeconds, MaterializeTotal, PushTotal) there instead.
var Registry = prometheus.NewRegistry()

var (
	PublishTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atom_publish_total",
		Help: "Count of per-atom publish attempts, partitioned by outcome.",
	}, []string{"result"})

	ResolveDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "atom_resolve_duration_seconds",
		Help:    "Wall-clock time to resolve and cross-check a set of mirrors.",
		Buckets: prometheus.DefBuckets,
	})

	MaterializeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atom_materialize_total",
		Help: "Count of materialize operations, partitioned by outcome.",
	}, []string{"result"})

	PushTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atom_push_total",
		Help: "Count of per-ref push attempts, partitioned by outcome.",
	}, []string{"result"})
)

func init() {
	Registry.MustRegister(PublishTotal, ResolveDurationSeconds, MaterializeTotal, PushTotal)
}

// Handler returns an http.Handler serving Registry in the Prometheus
// exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

const (
	ResultOK      = "ok"
	ResultSkipped = "skipped"
	ResultError   = "error"
)
