package cli

import (
	"fmt"
	"runtime"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"go.viam.com/urdfsim/articulation"
	"go.viam.com/urdfsim/config"
	"go.viam.com/urdfsim/importer"
	"go.viam.com/urdfsim/logging"
	"go.viam.com/urdfsim/physics"
	"go.viam.com/urdfsim/simulation"
)

// SimulateAction imports every robot of a scene, applies its targets and steps the world.
func SimulateAction(c *cli.Context) error {
	logger := loggerFromContext(c)
	cfg, err := config.Read(c.String(simulateFlagConfig))
	if err != nil {
		return err
	}
	steps := c.Int(simulateFlagSteps)
	if steps < 0 {
		return errors.Errorf("--%s must not be negative", simulateFlagSteps)
	}

	prepared, importers, err := prepareRobots(c, cfg, logger)
	if err != nil {
		return err
	}

	world := physics.NewEngine(cfg.World.EngineConfig())
	bridge := articulation.NewBridge(logger)
	instances := make(map[string]*articulation.Instance, len(cfg.Robots))
	for i, robot := range cfg.Robots {
		res, err := importers[i].Instantiate(prepared[i], world)
		if err != nil {
			return errors.Wrapf(err, "robot %q", robot.Name)
		}
		for _, warning := range multierr.Errors(res.Warnings) {
			warningf(c.App.ErrWriter, "robot %q: %v", robot.Name, warning)
		}
		if err := bridge.Add(res.Instance); err != nil {
			return err
		}
		instances[robot.Name] = res.Instance
	}
	for _, target := range cfg.Targets {
		t, err := target.Target()
		if err != nil {
			return err
		}
		if err := instances[target.Robot].SetJointTarget(target.Joint, t); err != nil {
			return errors.Wrapf(err, "robot %q", target.Robot)
		}
	}

	runner, err := simulation.NewRunner(bridge, world, simulation.RunnerConfig{
		Timestep:   cfg.World.Timestep,
		MaxSteps:   steps,
		Registerer: prometheus.NewRegistry(),
	}, logger)
	if err != nil {
		return err
	}
	if c.Bool(simulateFlagRealtime) {
		err = runner.Run(c.Context)
	} else {
		err = runner.StepN(steps)
	}
	if err != nil {
		return err
	}

	printf(c.App.Writer, "simulated %d steps, %.3fs\n", runner.Steps(), world.Time())
	for _, inst := range bridge.Instances() {
		for _, rejected := range inst.RejectedTargets() {
			warningf(c.App.ErrWriter, "robot %q: rejected %s target for joint %q: %s",
				inst.Name(), rejected.Target.Mode, rejected.Joint, rejected.Reason)
		}
	}
	out, err := stateTable(bridge, world)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s\n", out)
	return nil
}

// prepareRobots decodes and resolves every robot of the scene in parallel. Nothing touches the world yet.
func prepareRobots(
	c *cli.Context,
	cfg *config.Config,
	logger logging.Logger,
) ([]*importer.Prepared, []*importer.Importer, error) {
	prepared := make([]*importer.Prepared, len(cfg.Robots))
	importers := make([]*importer.Importer, len(cfg.Robots))
	group, ctx := errgroup.WithContext(c.Context)
	group.SetLimit(runtime.NumCPU())
	for i, robot := range cfg.Robots {
		opts, err := robot.ImportOptions()
		if err != nil {
			return nil, nil, errors.Wrapf(err, "robot %q", robot.Name)
		}
		imp, err := importer.New(opts, logger.Sublogger(robot.Name))
		if err != nil {
			return nil, nil, errors.Wrapf(err, "robot %q", robot.Name)
		}
		importers[i] = imp
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p, err := imp.PrepareFile(robot.URDF, robot.MeshDir)
			if err != nil {
				return errors.Wrapf(err, "robot %q", robot.Name)
			}
			prepared[i] = p
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, nil, err
	}
	return prepared, importers, nil
}

func stateTable(bridge *articulation.Bridge, world physics.World) (string, error) {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Robot", "Joint", "Positions", "Velocities"})
	for _, inst := range bridge.Instances() {
		state, err := inst.ReadState(world)
		if err != nil {
			return "", err
		}
		doc := inst.Tree().Document()
		for _, j := range inst.Tree().JointOrder() {
			name := doc.Joints[j].Name
			reading := state.Joints[name]
			if len(reading.Positions) == 0 {
				continue
			}
			t.AppendRow(table.Row{inst.Name(), name, formatValues(reading.Positions), formatValues(reading.Velocities)})
		}
	}
	return t.Render(), nil
}

func formatValues(values []float64) string {
	out := ""
	for i, v := range values {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%.4f", v)
	}
	return out
}
