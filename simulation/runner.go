// Package simulation runs the fixed step loop that drives a bridge and its world.
package simulation

import (
	"context"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"go.viam.com/urdfsim/articulation"
	"go.viam.com/urdfsim/logging"
	"go.viam.com/urdfsim/physics"
)

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	// Timestep is the simulated length of one step in seconds. Run also waits this long between steps.
	Timestep float64
	// MaxSteps stops Run after that many steps when positive.
	MaxSteps int
	// Clock defaults to the wall clock.
	Clock clock.Clock
	// Registerer receives the runner metrics, defaulting to the global registry.
	Registerer prometheus.Registerer
}

// Runner steps one world at a fixed rate. It runs on the goroutine that calls it.
type Runner struct {
	bridge  *articulation.Bridge
	world   physics.World
	cfg     RunnerConfig
	clock   clock.Clock
	metrics *Metrics
	logger  logging.Logger
	steps   int
}

// NewRunner returns a runner for the instances of bridge living in world.
func NewRunner(bridge *articulation.Bridge, world physics.World, cfg RunnerConfig, logger logging.Logger) (*Runner, error) {
	if !(cfg.Timestep > 0) || math.IsInf(cfg.Timestep, 0) {
		return nil, errors.Wrapf(articulation.ErrInvalidTimestep, "%v", cfg.Timestep)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	metrics, err := NewMetrics(cfg.Registerer)
	if err != nil {
		return nil, err
	}
	return &Runner{
		bridge:  bridge,
		world:   world,
		cfg:     cfg,
		clock:   cfg.Clock,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// Metrics returns the collectors the runner reports to.
func (r *Runner) Metrics() *Metrics {
	return r.metrics
}

// Steps returns the number of steps taken so far.
func (r *Runner) Steps() int {
	return r.steps
}

// Step advances the simulation by one timestep.
func (r *Runner) Step() error {
	start := r.clock.Now()
	err := r.bridge.Step(r.world, r.cfg.Timestep)
	r.metrics.StepDuration.Observe(r.clock.Since(start).Seconds())
	r.metrics.LiveInstances.Set(float64(r.bridge.Len()))
	if err != nil {
		r.metrics.StepErrors.Inc()
		return errors.Wrapf(err, "step %d", r.steps+1)
	}
	r.steps++
	r.metrics.Steps.Inc()
	return nil
}

// StepN takes n steps as fast as possible, stopping at the first error.
func (r *Runner) StepN(n int) error {
	for i := 0; i < n; i++ {
		if err := r.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Run steps once per timestep of clock time until ctx is done, a step fails or MaxSteps steps were taken.
func (r *Runner) Run(ctx context.Context) error {
	period := time.Duration(r.cfg.Timestep * float64(time.Second))
	if period <= 0 {
		period = time.Nanosecond
	}
	ticker := r.clock.Ticker(period)
	defer ticker.Stop()
	r.logger.Debugw("simulation started", "timestep", r.cfg.Timestep, "max_steps", r.cfg.MaxSteps)
	for {
		if r.cfg.MaxSteps > 0 && r.steps >= r.cfg.MaxSteps {
			r.logger.Debugw("simulation finished", "steps", r.steps)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Step(); err != nil {
				return err
			}
		}
	}
}
