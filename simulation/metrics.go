package simulation

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the prometheus collectors of a runner.
type Metrics struct {
	Steps         prometheus.Counter
	StepErrors    prometheus.Counter
	StepDuration  prometheus.Histogram
	LiveInstances prometheus.Gauge
}

// NewMetrics registers the runner metrics against reg, defaulting to the global registry when nil. Registering twice
// against the same registry returns the collectors registered first.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	steps, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "urdfsim_steps_total",
		Help: "Total number of simulation steps taken.",
	}))
	if err != nil {
		return nil, err
	}
	stepErrors, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "urdfsim_step_errors_total",
		Help: "Total number of simulation steps that failed.",
	}))
	if err != nil {
		return nil, err
	}
	duration, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "urdfsim_step_duration_seconds",
		Help:    "Wall time spent in one simulation step.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	}))
	if err != nil {
		return nil, err
	}
	live, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "urdfsim_live_instances",
		Help: "Current number of robots stepped by the runner.",
	}))
	if err != nil {
		return nil, err
	}
	return &Metrics{Steps: steps, StepErrors: stepErrors, StepDuration: duration, LiveInstances: live}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, errors.Wrap(err, "registering runner metrics")
	}
	return c, nil
}
