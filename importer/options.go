package importer

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/urdfsim/articulation"
	"go.viam.com/urdfsim/collision"
	"go.viam.com/urdfsim/meshes"
	"go.viam.com/urdfsim/spatialmath"
)

// Options configures an import. The zero value is not usable; start from DefaultOptions and override fields, which
// is also what decoding a partial JSON object over DefaultOptions does.
type Options struct {
	Name                    string               `json:"name,omitempty"`
	DefaultLinkMass         float64              `json:"default_link_mass"`
	OnMeshResolutionFailure meshes.FailurePolicy `json:"on_mesh_resolution_failure"`
	ClampActuationToLimits  bool                 `json:"clamp_actuation_to_limits"`
	FloatingBase            bool                 `json:"floating_base,omitempty"`
	SelfCollisions          bool                 `json:"self_collisions,omitempty"`
	CollisionGroups         *collision.Groups    `json:"collision_groups,omitempty"`
	DriveStiffness          float64              `json:"drive_stiffness"`
	DriveDamping            float64              `json:"drive_damping"`
	BasePose                *PoseConfig          `json:"base_pose,omitempty"`
}

// Translation is a position in meters.
type Translation struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// RPY is a fixed axis roll, pitch, yaw rotation in radians, as in URDF origins.
type RPY struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// PoseConfig places a robot in the world.
type PoseConfig struct {
	Translation Translation `json:"translation"`
	Orientation RPY         `json:"orientation"`
}

// Pose converts the config to a pose.
func (p *PoseConfig) Pose() spatialmath.Pose {
	if p == nil {
		return spatialmath.NewZeroPose()
	}
	return spatialmath.NewPose(
		r3.Vector{X: p.Translation.X, Y: p.Translation.Y, Z: p.Translation.Z},
		&spatialmath.EulerAngles{Roll: p.Orientation.Roll, Pitch: p.Orientation.Pitch, Yaw: p.Orientation.Yaw},
	)
}

// DefaultOptions returns the options of an import that sets nothing.
func DefaultOptions() Options {
	defaults := articulation.DefaultOptions()
	return Options{
		DefaultLinkMass:         defaults.DefaultLinkMass,
		OnMeshResolutionFailure: meshes.Skip,
		ClampActuationToLimits:  defaults.ClampActuationToLimits,
		DriveStiffness:          defaults.DriveStiffness,
		DriveDamping:            defaults.DriveDamping,
	}
}

// Validate ensures all parts of the options are valid.
func (o Options) Validate() error {
	if !(o.DefaultLinkMass > 0) || math.IsInf(o.DefaultLinkMass, 0) {
		return errors.Errorf("default_link_mass must be positive, got %v", o.DefaultLinkMass)
	}
	if !o.OnMeshResolutionFailure.Valid() {
		return errors.Errorf("on_mesh_resolution_failure must be %q or %q, got %q",
			meshes.Skip, meshes.UseBoundingPrimitive, o.OnMeshResolutionFailure)
	}
	if o.DriveStiffness < 0 {
		return errors.Errorf("drive_stiffness must not be negative, got %v", o.DriveStiffness)
	}
	if o.DriveDamping < 0 {
		return errors.Errorf("drive_damping must not be negative, got %v", o.DriveDamping)
	}
	return nil
}

func (o Options) articulation() articulation.Options {
	groups := collision.AllGroups
	if o.CollisionGroups != nil {
		groups = *o.CollisionGroups
	}
	return articulation.Options{
		Name:                   o.Name,
		DefaultLinkMass:        o.DefaultLinkMass,
		ClampActuationToLimits: o.ClampActuationToLimits,
		FloatingBase:           o.FloatingBase,
		SelfCollisions:         o.SelfCollisions,
		CollisionGroups:        groups,
		DriveStiffness:         o.DriveStiffness,
		DriveDamping:           o.DriveDamping,
		BasePose:               o.BasePose.Pose(),
	}
}
