// Package metrics exposes fit and repetition metrics in the Prometheus format
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the metric vectors of one process. A nil *Recorder records nothing, so
// callers never need to guard their calls.
type Recorder struct {
	registry *prometheus.Registry

	repetitions        *prometheus.CounterVec
	repetitionDuration *prometheus.HistogramVec
	finalGof           prometheus.Histogram
	steps              prometheus.Counter
	accepted           prometheus.Counter
	fits               *prometheus.CounterVec
	activeFits         prometheus.Gauge
}

// NewRecorder creates a recorder with its own registry, including the Go runtime and
// process collectors
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		repetitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcfit_repetitions_total",
				Help: "Finished optimization repetitions by outcome",
			},
			[]string{"status"},
		),
		repetitionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mcfit_repetition_duration_seconds",
				Help:    "Wall time of one optimization repetition",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
			},
			[]string{"status"},
		),
		finalGof: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mcfit_repetition_final_gof",
			Help:    "Reduced chi-square reached by completed repetitions",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 12),
		}),
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mcfit_optimizer_steps_total",
			Help: "Optimizer iterations performed by finished repetitions",
		}),
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mcfit_optimizer_accepted_total",
			Help: "Accepted replacement moves of finished repetitions",
		}),
		fits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcfit_fits_total",
				Help: "Fit jobs that reached a terminal state, by state",
			},
			[]string{"status"},
		),
		activeFits: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mcfit_fits_active",
			Help: "Fit jobs currently running",
		}),
	}
	r.registry.MustRegister(
		r.repetitions, r.repetitionDuration, r.finalGof, r.steps, r.accepted, r.fits, r.activeFits,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the registry holding every metric of the recorder
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveRepetition records one finished repetition
func (r *Recorder) ObserveRepetition(status string, steps, accepted int, gof float64, duration time.Duration) {
	if r == nil {
		return
	}
	r.repetitions.WithLabelValues(status).Inc()
	r.repetitionDuration.WithLabelValues(status).Observe(duration.Seconds())
	r.steps.Add(float64(steps))
	r.accepted.Add(float64(accepted))
	if status == "completed" {
		r.finalGof.Observe(gof)
	}
}

// FitStarted marks a fit job as running
func (r *Recorder) FitStarted() {
	if r == nil {
		return
	}
	r.activeFits.Inc()
}

// FitFinished marks a running fit job as finished in the given terminal state
func (r *Recorder) FitFinished(status string) {
	if r == nil {
		return
	}
	r.activeFits.Dec()
	r.fits.WithLabelValues(status).Inc()
}

// Handler serves the recorder's registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
