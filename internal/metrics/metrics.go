// Package metrics exposes prometheus counters for the buffer engine. A nil
// *Recorder is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ddmrp"

type Recorder struct {
	registry            *prometheus.Registry
	evaluations         *prometheus.CounterVec
	alerts              *prometheus.CounterVec
	persistenceFailures *prometheus.CounterVec
	batchUnits          *prometheus.CounterVec
}

// NewRecorder registers the engine counters on a dedicated registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "netflow_evaluations_total",
			Help:      "Net flow evaluations by resulting color.",
		}, []string{"color"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_generated_total",
			Help:      "Alerts generated by type.",
		}, []string{"alert_type"}),
		persistenceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_failures_total",
			Help:      "Store writes that failed after all retries.",
		}, []string{"collection"}),
		batchUnits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_units_total",
			Help:      "Batch units processed by job and outcome.",
		}, []string{"job", "outcome"}),
	}
	r.registry.MustRegister(
		r.evaluations,
		r.alerts,
		r.persistenceFailures,
		r.batchUnits,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) ObserveEvaluation(color string) {
	if r == nil {
		return
	}
	r.evaluations.WithLabelValues(color).Inc()
}

func (r *Recorder) ObserveAlert(alertType string) {
	if r == nil {
		return
	}
	r.alerts.WithLabelValues(alertType).Inc()
}

func (r *Recorder) ObservePersistenceFailure(collection string) {
	if r == nil {
		return
	}
	r.persistenceFailures.WithLabelValues(collection).Inc()
}

// ObserveUnit satisfies pipeline.UnitObserver.
func (r *Recorder) ObserveUnit(job, outcome string) {
	if r == nil {
		return
	}
	r.batchUnits.WithLabelValues(job, outcome).Inc()
}

// Handler serves the registry in the prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
