package articulation

import (
	"math"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"go.viam.com/urdfsim/logging"
	"go.viam.com/urdfsim/physics"
)

// Bridge drives the instances living in one world from the simulation loop. It is not safe for concurrent use: the
// host calls it from a single simulation goroutine.
type Bridge struct {
	logger    logging.Logger
	instances []*Instance
}

// NewBridge returns an empty bridge.
func NewBridge(logger logging.Logger) *Bridge {
	return &Bridge{logger: logger}
}

// Add hands an instance to the bridge. Adding the same instance twice has no effect.
func (b *Bridge) Add(inst *Instance) error {
	if inst.lifecycle == Removed {
		return errors.Wrapf(ErrInstanceRemoved, "robot %q", inst.name)
	}
	if !lo.Contains(b.instances, inst) {
		b.instances = append(b.instances, inst)
	}
	return nil
}

// Instances returns the live instances in the order they were added.
func (b *Bridge) Instances() []*Instance {
	return append([]*Instance(nil), b.instances...)
}

// Len returns the number of live instances.
func (b *Bridge) Len() int {
	return len(b.instances)
}

// Step pushes the queued targets of every instance into the world, advances the world by dt and invalidates every
// cached state. Instances removed without going through the bridge are dropped first. When the world fails to step,
// the targets pushed so far stay applied and the cached states are still invalidated, but no instance moves to
// Stepped.
func (b *Bridge) Step(world physics.World, dt float64) error {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return errors.Wrapf(ErrInvalidTimestep, "%v", dt)
	}
	b.instances = lo.Reject(b.instances, func(inst *Instance, _ int) bool {
		return inst.lifecycle == Removed
	})
	var applyErr error
	for _, inst := range b.instances {
		applyErr = multierr.Append(applyErr, inst.applyTargets(world))
	}
	if err := world.Step(dt); err != nil {
		for _, inst := range b.instances {
			inst.cache = nil
		}
		return multierr.Combine(applyErr, err)
	}
	for _, inst := range b.instances {
		inst.stepped()
	}
	return applyErr
}

// Remove removes an instance from the world and from the bridge.
func (b *Bridge) Remove(inst *Instance, world physics.World) error {
	b.instances = lo.Without(b.instances, inst)
	return inst.Remove(world)
}
