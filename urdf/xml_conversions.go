package urdf

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/urdfsim/spatialmath"
	"go.viam.com/urdfsim/utils"
)

// defaultAxis is the joint axis when none is declared.
var defaultAxis = r3.Vector{X: 1}

// robotXML is a struct which details the XML used in the root element of a URDF file.
type robotXML struct {
	XMLName   xml.Name      `xml:"robot"`
	Name      string        `xml:"name,attr"`
	Materials []materialXML `xml:"material"`
	Links     []linkXML     `xml:"link"`
	Joints    []jointXML    `xml:"joint"`
}

type linkXML struct {
	Name       string         `xml:"name,attr"`
	Inertial   *inertialXML   `xml:"inertial,omitempty"`
	Visuals    []visualXML    `xml:"visual"`
	Collisions []collisionXML `xml:"collision"`
}

type inertialXML struct {
	Origin  *poseXML    `xml:"origin,omitempty"`
	Mass    *valueXML   `xml:"mass"`
	Inertia *inertiaXML `xml:"inertia,omitempty"`
}

type valueXML struct {
	Value string `xml:"value,attr"`
}

type inertiaXML struct {
	Ixx string `xml:"ixx,attr"`
	Ixy string `xml:"ixy,attr"`
	Ixz string `xml:"ixz,attr"`
	Iyy string `xml:"iyy,attr"`
	Iyz string `xml:"iyz,attr"`
	Izz string `xml:"izz,attr"`
}

type visualXML struct {
	Name     string       `xml:"name,attr,omitempty"`
	Origin   *poseXML     `xml:"origin,omitempty"`
	Geometry geometryXML  `xml:"geometry"`
	Material *materialXML `xml:"material,omitempty"`
}

type collisionXML struct {
	Name     string      `xml:"name,attr,omitempty"`
	Origin   *poseXML    `xml:"origin,omitempty"`
	Geometry geometryXML `xml:"geometry"`
}

type geometryXML struct {
	Box      *boxXML      `xml:"box,omitempty"`
	Sphere   *sphereXML   `xml:"sphere,omitempty"`
	Cylinder *cylinderXML `xml:"cylinder,omitempty"`
	Capsule  *cylinderXML `xml:"capsule,omitempty"`
	Mesh     *meshXML     `xml:"mesh,omitempty"`
}

type boxXML struct {
	Size string `xml:"size,attr"` // "x y z" format, in meters
}

type sphereXML struct {
	Radius string `xml:"radius,attr"` // in meters
}

type cylinderXML struct {
	Radius string `xml:"radius,attr"`
	Length string `xml:"length,attr"`
}

type meshXML struct {
	Filename string `xml:"filename,attr"` // path to mesh file (STL or PLY)
	Scale    string `xml:"scale,attr,omitempty"`
}

type materialXML struct {
	Name    string      `xml:"name,attr,omitempty"`
	Color   *colorXML   `xml:"color,omitempty"`
	Texture *textureXML `xml:"texture,omitempty"`
}

type colorXML struct {
	RGBA string `xml:"rgba,attr"`
}

type textureXML struct {
	Filename string `xml:"filename,attr"`
}

type jointXML struct {
	Name     string       `xml:"name,attr"`
	Type     string       `xml:"type,attr"`
	Origin   *poseXML     `xml:"origin,omitempty"`
	Parent   frameXML     `xml:"parent"`
	Child    frameXML     `xml:"child"`
	Axis     *axisXML     `xml:"axis,omitempty"`
	Limit    *limitXML    `xml:"limit,omitempty"`
	Dynamics *dynamicsXML `xml:"dynamics,omitempty"`
	Mimic    *mimicXML    `xml:"mimic,omitempty"`
}

type frameXML struct {
	Link string `xml:"link,attr"`
}

type axisXML struct {
	XYZ string `xml:"xyz,attr"`
}

type limitXML struct {
	Lower    string `xml:"lower,attr,omitempty"` // translation limits are in meters, revolute limits are in radians
	Upper    string `xml:"upper,attr,omitempty"`
	Velocity string `xml:"velocity,attr,omitempty"`
	Effort   string `xml:"effort,attr,omitempty"`
}

type dynamicsXML struct {
	Damping  string `xml:"damping,attr,omitempty"`
	Friction string `xml:"friction,attr,omitempty"`
}

type mimicXML struct {
	Joint      string `xml:"joint,attr"`
	Multiplier string `xml:"multiplier,attr,omitempty"`
	Offset     string `xml:"offset,attr,omitempty"`
}

type poseXML struct {
	XYZ string `xml:"xyz,attr,omitempty"` // "x y z" format, in meters
	RPY string `xml:"rpy,attr,omitempty"` // Fixed frame angle "r p y" format, in radians
}

func (p *poseXML) parse() (spatialmath.Pose, error) {
	if p == nil {
		return spatialmath.NewZeroPose(), nil
	}
	xyz, err := utils.ParseFloatVector(p.XYZ, 3, []float64{0, 0, 0})
	if err != nil {
		return nil, err
	}
	rpy, err := utils.ParseFloatVector(p.RPY, 3, []float64{0, 0, 0})
	if err != nil {
		return nil, err
	}
	return spatialmath.NewPose(
		r3.Vector{X: xyz[0], Y: xyz[1], Z: xyz[2]},
		&spatialmath.EulerAngles{Roll: rpy[0], Pitch: rpy[1], Yaw: rpy[2]},
	), nil
}

func newPoseXML(p spatialmath.Pose) *poseXML {
	if p == nil || spatialmath.PoseAlmostEqual(p, spatialmath.NewZeroPose()) {
		return nil
	}
	pt := p.Point()
	o := p.Orientation().EulerAngles()
	return &poseXML{
		XYZ: formatFloats(pt.X, pt.Y, pt.Z),
		RPY: formatFloats(o.Roll, o.Pitch, o.Yaw),
	}
}

func (g *geometryXML) parse() (Geometry, error) {
	switch {
	case g.Box != nil:
		if strings.TrimSpace(g.Box.Size) == "" {
			return nil, errMissing("box size")
		}
		size, err := utils.ParseFloatVector(g.Box.Size, 3, nil)
		if err != nil {
			return nil, err
		}
		return Box{Size: r3.Vector{X: size[0], Y: size[1], Z: size[2]}}, nil
	case g.Sphere != nil:
		radius, err := requiredFloat(g.Sphere.Radius, "sphere radius")
		if err != nil {
			return nil, err
		}
		return Sphere{Radius: radius}, nil
	case g.Cylinder != nil:
		radius, length, err := g.Cylinder.parse("cylinder")
		if err != nil {
			return nil, err
		}
		return Cylinder{Radius: radius, Length: length}, nil
	case g.Capsule != nil:
		radius, length, err := g.Capsule.parse("capsule")
		if err != nil {
			return nil, err
		}
		return Capsule{Radius: radius, Length: length}, nil
	case g.Mesh != nil:
		if g.Mesh.Filename == "" {
			return nil, errMissing("mesh filename")
		}
		scale, err := utils.ParseFloatVector(g.Mesh.Scale, 3, []float64{1, 1, 1})
		if err != nil {
			return nil, err
		}
		return Mesh{Filename: g.Mesh.Filename, Scale: r3.Vector{X: scale[0], Y: scale[1], Z: scale[2]}}, nil
	default:
		return nil, errMissing("geometry")
	}
}

func (c *cylinderXML) parse(kind string) (float64, float64, error) {
	radius, err := requiredFloat(c.Radius, kind+" radius")
	if err != nil {
		return 0, 0, err
	}
	length, err := requiredFloat(c.Length, kind+" length")
	if err != nil {
		return 0, 0, err
	}
	return radius, length, nil
}

func newGeometryXML(g Geometry) geometryXML {
	switch geom := g.(type) {
	case Box:
		return geometryXML{Box: &boxXML{Size: formatFloats(geom.Size.X, geom.Size.Y, geom.Size.Z)}}
	case Sphere:
		return geometryXML{Sphere: &sphereXML{Radius: formatFloats(geom.Radius)}}
	case Cylinder:
		return geometryXML{Cylinder: &cylinderXML{Radius: formatFloats(geom.Radius), Length: formatFloats(geom.Length)}}
	case Capsule:
		return geometryXML{Capsule: &cylinderXML{Radius: formatFloats(geom.Radius), Length: formatFloats(geom.Length)}}
	case Mesh:
		m := &meshXML{Filename: geom.Filename}
		if geom.Scale != (r3.Vector{X: 1, Y: 1, Z: 1}) {
			m.Scale = formatFloats(geom.Scale.X, geom.Scale.Y, geom.Scale.Z)
		}
		return geometryXML{Mesh: m}
	default:
		return geometryXML{}
	}
}

func (m *materialXML) parse() (*Material, error) {
	if m == nil {
		return nil, nil
	}
	material := &Material{Name: m.Name}
	if m.Color != nil {
		rgba, err := utils.ParseFloatVector(m.Color.RGBA, 4, nil)
		if err != nil {
			return nil, err
		}
		if rgba == nil {
			return nil, errMissing("color rgba")
		}
		material.Color = &[4]float64{rgba[0], rgba[1], rgba[2], rgba[3]}
	}
	if m.Texture != nil {
		material.Texture = m.Texture.Filename
	}
	return material, nil
}

func newMaterialXML(m *Material) *materialXML {
	if m == nil {
		return nil
	}
	ret := &materialXML{Name: m.Name}
	if m.Color != nil {
		ret.Color = &colorXML{RGBA: formatFloats(m.Color[0], m.Color[1], m.Color[2], m.Color[3])}
	}
	if m.Texture != "" {
		ret.Texture = &textureXML{Filename: m.Texture}
	}
	return ret
}

func (i *inertialXML) parse() (*Inertial, error) {
	if i.Mass == nil {
		return nil, errMissing("inertial mass")
	}
	mass, err := requiredFloat(i.Mass.Value, "inertial mass")
	if err != nil {
		return nil, err
	}
	origin, err := i.Origin.parse()
	if err != nil {
		return nil, err
	}
	inertial := &Inertial{Mass: mass, Origin: origin}
	if i.Inertia != nil {
		fields := []struct {
			raw string
			dst *float64
		}{
			{i.Inertia.Ixx, &inertial.Inertia.Ixx},
			{i.Inertia.Ixy, &inertial.Inertia.Ixy},
			{i.Inertia.Ixz, &inertial.Inertia.Ixz},
			{i.Inertia.Iyy, &inertial.Inertia.Iyy},
			{i.Inertia.Iyz, &inertial.Inertia.Iyz},
			{i.Inertia.Izz, &inertial.Inertia.Izz},
		}
		for _, f := range fields {
			if *f.dst, err = optionalFloat(f.raw, 0); err != nil {
				return nil, err
			}
		}
	}
	return inertial, nil
}

func newInertialXML(i *Inertial) *inertialXML {
	if i == nil {
		return nil
	}
	in := i.Inertia
	return &inertialXML{
		Origin: newPoseXML(i.Origin),
		Mass:   &valueXML{Value: formatFloats(i.Mass)},
		Inertia: &inertiaXML{
			Ixx: formatFloats(in.Ixx), Ixy: formatFloats(in.Ixy), Ixz: formatFloats(in.Ixz),
			Iyy: formatFloats(in.Iyy), Iyz: formatFloats(in.Iyz), Izz: formatFloats(in.Izz),
		},
	}
}

func (a *axisXML) parse() (r3.Vector, error) {
	if a == nil {
		return defaultAxis, nil
	}
	xyz, err := utils.ParseFloatVector(a.XYZ, 3, []float64{1, 0, 0})
	if err != nil {
		return r3.Vector{}, err
	}
	axis := r3.Vector{X: xyz[0], Y: xyz[1], Z: xyz[2]}
	if axis.Norm() == 0 {
		return r3.Vector{}, errMissing("non-zero axis")
	}
	return axis.Normalize(), nil
}

func (l *limitXML) parse() (*Limit, error) {
	if l == nil {
		return nil, nil
	}
	var (
		limit Limit
		err   error
	)
	if limit.Lower, err = optionalFloat(l.Lower, 0); err != nil {
		return nil, err
	}
	if limit.Upper, err = optionalFloat(l.Upper, 0); err != nil {
		return nil, err
	}
	if limit.Velocity, err = optionalFloat(l.Velocity, 0); err != nil {
		return nil, err
	}
	if limit.Effort, err = optionalFloat(l.Effort, 0); err != nil {
		return nil, err
	}
	return &limit, nil
}

func (d *dynamicsXML) parse() (*Dynamics, error) {
	if d == nil {
		return nil, nil
	}
	var (
		dynamics Dynamics
		err      error
	)
	if dynamics.Damping, err = optionalFloat(d.Damping, 0); err != nil {
		return nil, err
	}
	if dynamics.Friction, err = optionalFloat(d.Friction, 0); err != nil {
		return nil, err
	}
	return &dynamics, nil
}

func (m *mimicXML) parse() (*Mimic, error) {
	if m == nil {
		return nil, nil
	}
	if m.Joint == "" {
		return nil, errMissing("mimic joint")
	}
	mimic := Mimic{Joint: m.Joint}
	var err error
	if mimic.Multiplier, err = optionalFloat(m.Multiplier, 1); err != nil {
		return nil, err
	}
	if mimic.Offset, err = optionalFloat(m.Offset, 0); err != nil {
		return nil, err
	}
	return &mimic, nil
}

func errMissing(what string) error {
	return errors.Errorf("missing %s", what)
}

func requiredFloat(raw, what string) (float64, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, errMissing(what)
	}
	return optionalFloat(raw, 0)
}

func optionalFloat(raw string, def float64) (float64, error) {
	values, err := utils.ParseFloatVector(raw, 1, []float64{def})
	if err != nil {
		return 0, err
	}
	return values[0], nil
}

func formatFloats(values ...float64) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, strconv.FormatFloat(v, 'g', -1, 64))
	}
	return strings.Join(parts, " ")
}
