// Package config defines the scene file consumed by the urdfsim CLI: one physics world, the robots imported into
// it and the joint targets applied once they are in place.
package config

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/go-viper/mapstructure/v2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/urdfsim/articulation"
	"go.viam.com/urdfsim/importer"
	"go.viam.com/urdfsim/physics"
	"go.viam.com/urdfsim/utils"
)

// Config is a simulation scene.
type Config struct {
	ConfigFilePath string `json:"-"`

	World   World    `json:"world"`
	Robots  []Robot  `json:"robots"`
	Targets []Target `json:"targets,omitempty"`
}

// Vector is a 3D vector.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// World configures the physics world.
type World struct {
	// Gravity defaults to earth gravity along -Z.
	Gravity *Vector `json:"gravity,omitempty"`
	// Timestep is the length of one step in seconds.
	Timestep     float64 `json:"timestep"`
	MaxBodies    int     `json:"max_bodies,omitempty"`
	MaxJoints    int     `json:"max_joints,omitempty"`
	MaxColliders int     `json:"max_colliders,omitempty"`
}

// Robot is a URDF file to import.
type Robot struct {
	Name string `json:"name"`
	URDF string `json:"urdf"`
	// MeshDir resolves mesh references. Defaults to the directory of the URDF file.
	MeshDir string `json:"mesh_dir,omitempty"`
	// Attributes are decoded into importer.Options.
	Attributes utils.AttributeMap `json:"attributes,omitempty"`
}

// Target is a joint target set once every robot is imported.
type Target struct {
	Robot  string    `json:"robot"`
	Joint  string    `json:"joint"`
	Mode   string    `json:"mode"`
	Values []float64 `json:"values"`
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate() error {
	if err := c.World.Validate("world"); err != nil {
		return err
	}
	if len(c.Robots) == 0 {
		return utils.NewConfigValidationFieldRequiredError("", "robots")
	}
	seen := make(map[string]bool, len(c.Robots))
	for i := range c.Robots {
		path := fmt.Sprintf("robots.%d", i)
		if err := c.Robots[i].Validate(path); err != nil {
			return err
		}
		if seen[c.Robots[i].Name] {
			return utils.NewConfigValidationError(path, errors.Errorf("duplicate robot name %q", c.Robots[i].Name))
		}
		seen[c.Robots[i].Name] = true
	}
	for i := range c.Targets {
		path := fmt.Sprintf("targets.%d", i)
		if err := c.Targets[i].Validate(path); err != nil {
			return err
		}
		if !seen[c.Targets[i].Robot] {
			return utils.NewConfigValidationError(path, errors.Errorf("unknown robot %q", c.Targets[i].Robot))
		}
	}
	return nil
}

// Validate ensures all parts of the world config are valid.
func (w *World) Validate(path string) error {
	if w.Timestep == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "timestep")
	}
	if !(w.Timestep > 0) || math.IsInf(w.Timestep, 0) {
		return utils.NewConfigValidationError(path, errors.Errorf("timestep must be positive, got %v", w.Timestep))
	}
	var err error
	for _, limit := range []struct {
		field string
		value int
	}{
		{"max_bodies", w.MaxBodies},
		{"max_joints", w.MaxJoints},
		{"max_colliders", w.MaxColliders},
	} {
		if limit.value < 0 {
			err = multierr.Append(err, errors.Errorf("%s must not be negative, got %d", limit.field, limit.value))
		}
	}
	if err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	return nil
}

// EngineConfig returns the configuration of the reference physics engine.
func (w *World) EngineConfig() physics.EngineConfig {
	cfg := physics.DefaultEngineConfig()
	if w.Gravity != nil {
		cfg.Gravity = r3.Vector{X: w.Gravity.X, Y: w.Gravity.Y, Z: w.Gravity.Z}
	}
	cfg.MaxBodies = w.MaxBodies
	cfg.MaxJoints = w.MaxJoints
	cfg.MaxColliders = w.MaxColliders
	return cfg
}

// Validate ensures all parts of the robot config are valid, including its attributes.
func (r *Robot) Validate(path string) error {
	if r.Name == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "name")
	}
	if r.URDF == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "urdf")
	}
	if _, err := r.ImportOptions(); err != nil {
		return utils.NewConfigValidationError(path+".attributes", err)
	}
	return nil
}

// ImportOptions decodes the attributes over importer.DefaultOptions. Unknown attributes are an error. The robot name
// is used as the instance name unless the attributes set one.
func (r *Robot) ImportOptions() (importer.Options, error) {
	if r.Attributes.Has("name") {
		if _, err := utils.AssertType[string](r.Attributes["name"]); err != nil {
			return importer.Options{}, errors.Wrap(err, "attribute \"name\"")
		}
	}
	opts := importer.DefaultOptions()
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:  "json",
		Result:   &opts,
		Metadata: &md,
	})
	if err != nil {
		return importer.Options{}, err
	}
	if err := decoder.Decode(map[string]interface{}(r.Attributes)); err != nil {
		return importer.Options{}, err
	}
	if len(md.Unused) > 0 {
		return importer.Options{}, errors.Errorf("unknown attributes %q", md.Unused)
	}
	if opts.Name == "" {
		opts.Name = r.Name
	}
	if err := opts.Validate(); err != nil {
		return importer.Options{}, err
	}
	return opts, nil
}

// Validate ensures all parts of the target config are valid.
func (t *Target) Validate(path string) error {
	if t.Robot == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "robot")
	}
	if t.Joint == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "joint")
	}
	if len(t.Values) == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "values")
	}
	if _, err := t.Target(); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	return nil
}

// Target converts the config to a joint target. An empty mode means position.
func (t *Target) Target() (articulation.Target, error) {
	mode := articulation.Position
	if t.Mode != "" {
		var err error
		if mode, err = articulation.ParseMode(t.Mode); err != nil {
			return articulation.Target{}, err
		}
	}
	return articulation.Target{Mode: mode, Values: append([]float64(nil), t.Values...)}, nil
}

// resolvePaths makes the file paths of the robots absolute, relative to dir.
func (c *Config) resolvePaths(dir string) {
	for i := range c.Robots {
		r := &c.Robots[i]
		if r.URDF != "" && !filepath.IsAbs(r.URDF) {
			r.URDF = filepath.Join(dir, r.URDF)
		}
		if r.MeshDir != "" && !filepath.IsAbs(r.MeshDir) {
			r.MeshDir = filepath.Join(dir, r.MeshDir)
		}
	}
}
