package metrics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg         *prometheus.Registry
	Passes      *prometheus.CounterVec
	Writes      prometheus.Counter
	Settlements prometheus.Counter
	Failures    prometheus.Counter
	PassSec     prometheus.Histogram
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	passes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciler_passes_total",
		Help: "Reconciliation passes by outcome.",
	}, []string{"outcome"})
	writes := prometheus.NewCounter(prometheus.CounterOpts{Name: "reconciler_writes_total"})
	settlements := prometheus.NewCounter(prometheus.CounterOpts{Name: "reconciler_settlements_total"})
	failures := prometheus.NewCounter(prometheus.CounterOpts{Name: "reconciler_failures_total"})
	passSec := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "reconciler_pass_seconds",
		Buckets: prometheus.DefBuckets,
	})

	r.MustRegister(passes, writes, settlements, failures, passSec)
	return &Registry{
		reg:         r,
		Passes:      passes,
		Writes:      writes,
		Settlements: settlements,
		Failures:    failures,
		PassSec:     passSec,
	}
}

// ObservePass records one reconciliation pass.
func (r *Registry) ObservePass(outcome string, elapsed time.Duration) {
	r.Passes.WithLabelValues(outcome).Inc()
	r.PassSec.Observe(elapsed.Seconds())
	switch outcome {
	case "updated":
		r.Writes.Inc()
	case "settled":
		r.Writes.Inc()
		r.Settlements.Inc()
	case "failed":
		r.Failures.Inc()
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

func (r *Registry) RegisterRoutes(router chi.Router) {
	router.Handle("/metrics", r.Handler())
}
