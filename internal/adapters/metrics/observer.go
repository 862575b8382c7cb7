// Package metrics exports run metrics in the Prometheus text format, for
// node_exporter's textfile collector.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/felixgeelhaar/vpsctl/internal/domain/execution"
	"github.com/felixgeelhaar/vpsctl/internal/domain/step"
	"github.com/felixgeelhaar/vpsctl/internal/ports"
)

const namespace = "vpsctl"

// Observer records step and run metrics and writes them to a textfile
// when the run finishes.
type Observer struct {
	playbook string
	path     string
	logger   ports.Logger
	registry *prometheus.Registry

	stepsTotal   *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	runDuration  prometheus.Gauge
	runCompleted prometheus.Gauge
	lastRun      prometheus.Gauge
}

// Ensure Observer implements execution.Observer.
var _ execution.Observer = (*Observer)(nil)

// NewObserver creates an observer for one playbook. With an empty path
// the metrics are only kept in the registry.
func NewObserver(playbook, path string, logger ports.Logger) *Observer {
	labels := prometheus.Labels{"playbook": playbook}
	o := &Observer{
		playbook: playbook,
		path:     path,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		stepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "step",
				Name:        "results_total",
				Help:        "Step results by outcome",
				ConstLabels: labels,
			},
			[]string{"outcome"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Subsystem:   "step",
				Name:        "duration_seconds",
				Help:        "Duration of each step in seconds",
				ConstLabels: labels,
				Buckets:     prometheus.ExponentialBuckets(0.01, 4, 8), // 10ms to ~3min
			},
			[]string{"step"},
		),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "run",
			Name:        "duration_seconds",
			Help:        "Wall time of the last run",
			ConstLabels: labels,
		}),
		runCompleted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "run",
			Name:        "completed",
			Help:        "1 if the last run completed, 0 if it aborted",
			ConstLabels: labels,
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "run",
			Name:        "last_timestamp_seconds",
			Help:        "Unix time the last run finished",
			ConstLabels: labels,
		}),
	}

	o.registry.MustRegister(o.stepsTotal, o.stepDuration, o.runDuration, o.runCompleted, o.lastRun)
	return o
}

// Registry returns the registry holding the collectors.
func (o *Observer) Registry() *prometheus.Registry {
	return o.registry
}

// StepStarted is a no-op; durations come from the result.
func (o *Observer) StepStarted(context.Context, step.StepID) {}

// StepFinished counts the outcome and observes the duration.
func (o *Observer) StepFinished(_ context.Context, result execution.RunResult) {
	o.stepsTotal.WithLabelValues(result.Outcome().String()).Inc()
	o.stepDuration.WithLabelValues(result.StepID().String()).Observe(result.Duration().Seconds())
}

// RunFinished records the run and writes the textfile.
func (o *Observer) RunFinished(ctx context.Context, report *execution.Report) {
	o.runDuration.Set(report.Duration().Seconds())
	if report.Completed() {
		o.runCompleted.Set(1)
	} else {
		o.runCompleted.Set(0)
	}
	if !report.FinishedAt.IsZero() {
		o.lastRun.Set(float64(report.FinishedAt.Unix()))
	}

	if o.path == "" {
		return
	}
	if err := prometheus.WriteToTextfile(o.path, o.registry); err != nil {
		o.logger.Warn(ctx, "failed to write metrics file",
			ports.F("path", o.path), ports.F("playbook", o.playbook), ports.Err(err))
		return
	}
	o.logger.Debug(ctx, "metrics written", ports.F("path", o.path))
}
