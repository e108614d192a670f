// Package articulation instantiates kinematic trees as articulated bodies in a physics world and synchronizes them
// with the simulation loop: targets are queued on an Instance and pushed into the world by a Bridge right before
// each step.
package articulation

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/urdfsim/kinematics"
	"go.viam.com/urdfsim/logging"
	"go.viam.com/urdfsim/meshes"
	"go.viam.com/urdfsim/physics"
	"go.viam.com/urdfsim/spatialmath"
	"go.viam.com/urdfsim/urdf"
)

// Instantiate creates one body per link, one collider per resolved collision shape and one joint per URDF joint, then
// registers them as one articulation. Links are placed at their rest pose composed with the base pose. Either every
// object is created or, on failure, everything created so far is removed again in reverse order.
func Instantiate(
	tree *kinematics.Tree,
	shapes map[string]*meshes.LinkShapes,
	world physics.World,
	opts Options,
	logger logging.Logger,
) (*Instance, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	doc := tree.Document()
	// check every joint before touching the world
	for i := range doc.Joints {
		if _, err := jointKind(doc.Joints[i].Type); err != nil {
			return nil, errors.Wrapf(err, "joint %q", doc.Joints[i].Name)
		}
	}

	name := opts.Name
	if name == "" {
		name = doc.Name
	}
	inst := &Instance{
		id:        uuid.New(),
		name:      name,
		tree:      tree,
		opts:      opts,
		logger:    logger,
		bodies:    make([]physics.BodyHandle, len(doc.Links)),
		colliders: make([][]physics.ColliderHandle, len(doc.Links)),
		joints:    make([]physics.JointHandle, len(doc.Joints)),
		pending:   map[int]Target{},
		applied:   map[int]Target{},
		lifecycle: Unbuilt,
	}

	var undo []func() error
	fail := func(err error) (*Instance, error) {
		var rollbackErr error
		for i := len(undo) - 1; i >= 0; i-- {
			rollbackErr = multierr.Append(rollbackErr, undo[i]())
		}
		if rollbackErr != nil {
			logger.Debugw("rollback left objects in the world", "robot", name, "error", rollbackErr)
		}
		return nil, err
	}

	base := opts.basePose()
	for _, link := range tree.Order() {
		l := &doc.Links[link]
		h, err := world.CreateBody(physics.BodyDesc{
			Name:  l.Name,
			Pose:  spatialmath.Compose(base, tree.RestPose(link)),
			Mass:  massOf(l, opts.DefaultLinkMass, logger),
			Fixed: link == tree.Root() && !opts.FloatingBase,
		})
		if err != nil {
			return fail(errors.Wrapf(ErrWorldRejected, "body for link %q: %v", l.Name, err))
		}
		inst.bodies[link] = h
		undo = append(undo, func() error { return world.RemoveBody(h) })

		linkShapes, ok := shapes[l.Name]
		if !ok {
			continue
		}
		for _, shape := range linkShapes.Collisions {
			c, err := world.CreateCollider(physics.ColliderDesc{
				Name:     shape.Geometry.Label(),
				Body:     h,
				Geometry: shape.Geometry,
				Groups:   opts.CollisionGroups,
			})
			if err != nil {
				return fail(errors.Wrapf(ErrWorldRejected, "collider for link %q: %v", l.Name, err))
			}
			inst.colliders[link] = append(inst.colliders[link], c)
			undo = append(undo, func() error { return world.RemoveCollider(c) })
		}
	}

	jointHandles := make([]physics.JointHandle, 0, len(doc.Joints))
	for _, j := range tree.JointOrder() {
		joint := &doc.Joints[j]
		parent, _ := doc.LinkIndex(joint.Parent)
		child, _ := doc.LinkIndex(joint.Child)
		desc, err := jointDesc(joint, inst.bodies[parent], inst.bodies[child])
		if err != nil {
			return fail(err)
		}
		h, err := world.CreateJoint(desc)
		if err != nil {
			return fail(errors.Wrapf(ErrWorldRejected, "joint %q: %v", joint.Name, err))
		}
		inst.joints[j] = h
		jointHandles = append(jointHandles, h)
		undo = append(undo, func() error { return world.RemoveJoint(h) })
	}

	bodyHandles := make([]physics.BodyHandle, 0, len(inst.bodies))
	for _, link := range tree.Order() {
		bodyHandles = append(bodyHandles, inst.bodies[link])
	}
	art, err := world.CreateArticulation(physics.ArticulationDesc{
		Name:         name,
		Bodies:       bodyHandles,
		Joints:       jointHandles,
		SelfContacts: opts.SelfCollisions,
	})
	if err != nil {
		return fail(errors.Wrapf(ErrWorldRejected, "articulation %q: %v", name, err))
	}
	inst.articulation = art

	inst.lifecycle = Instantiated
	logger.Debugw("instantiated robot", "robot", name, "id", inst.id, "links", len(doc.Links), "joints", len(doc.Joints))
	return inst, nil
}

// massOf returns the mass properties of a link. A missing or non positive mass is replaced by the default, and a
// tensor that cannot be diagonalized by a point mass.
func massOf(link *urdf.Link, defaultMass float64, logger logging.Logger) physics.MassProperties {
	in := link.Inertial
	if in == nil || !(in.Mass > 0) {
		com := spatialmath.NewZeroPose()
		if in != nil && in.Origin != nil {
			com = in.Origin
		}
		return physics.PointMass(defaultMass, com.Point())
	}
	t := in.Inertia
	mass, err := physics.NewMassProperties(in.Mass, in.Origin, t.Ixx, t.Ixy, t.Ixz, t.Iyy, t.Iyz, t.Izz)
	if err != nil {
		logger.Debugw("using a point mass for link", "link", link.Name, "error", err)
		com := spatialmath.NewZeroPose()
		if in.Origin != nil {
			com = in.Origin
		}
		return physics.PointMass(in.Mass, com.Point())
	}
	return mass
}

func jointKind(t urdf.JointType) (physics.JointKind, error) {
	switch t {
	case urdf.FixedJoint:
		return physics.WeldJoint, nil
	case urdf.RevoluteJoint, urdf.ContinuousJoint:
		return physics.RevoluteJoint, nil
	case urdf.PrismaticJoint:
		return physics.PrismaticJoint, nil
	case urdf.PlanarJoint:
		return physics.PlanarJoint, nil
	case urdf.FloatingJoint:
		return physics.FreeJoint, nil
	default:
		return 0, errors.Wrapf(ErrUnsupportedJointType, "%q", string(t))
	}
}

func jointDesc(joint *urdf.Joint, parent, child physics.BodyHandle) (physics.JointDesc, error) {
	kind, err := jointKind(joint.Type)
	if err != nil {
		return physics.JointDesc{}, errors.Wrapf(err, "joint %q", joint.Name)
	}
	desc := physics.JointDesc{
		Name:   joint.Name,
		Kind:   kind,
		Parent: parent,
		Child:  child,
		Frame:  joint.Origin,
		Axis:   joint.Axis,
	}
	if limit := joint.Limit; limit != nil {
		desc.MaxVelocity = limit.Velocity
		desc.MaxEffort = limit.Effort
		if joint.Type == urdf.RevoluteJoint || joint.Type == urdf.PrismaticJoint {
			desc.Limited = limit.HasPositionLimits()
			desc.Lower, desc.Upper = limit.Lower, limit.Upper
		}
	}
	if dyn := joint.Dynamics; dyn != nil {
		desc.Damping = dyn.Damping
		desc.Friction = dyn.Friction
	}
	return desc, nil
}
