package urdf

import (
	"encoding/xml"
	"fmt"
	"os"

	"github.com/pkg/errors"
)

// ParseFile reads and parses the URDF file at path.
func ParseFile(path string) (*Document, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read URDF file")
	}
	return Parse(data)
}

// Parse decodes URDF text into a Document. It fails with ErrMalformed on structurally invalid input and with
// ErrDuplicateName when two links or two joints share a name.
func Parse(data []byte) (*Document, error) {
	robot := &robotXML{}
	if err := xml.Unmarshal(data, robot); err != nil {
		return nil, errors.Wrapf(ErrMalformed, "failed to decode URDF XML: %v", err)
	}

	materials := make(map[string]*Material, len(robot.Materials))
	globalMaterials := make([]Material, 0, len(robot.Materials))
	for _, m := range robot.Materials {
		material, err := m.parse()
		if err != nil {
			return nil, newMalformedError("material", m.Name, "%v", err)
		}
		materials[material.Name] = material
		globalMaterials = append(globalMaterials, *material)
	}

	links := make([]Link, 0, len(robot.Links))
	for _, linkElem := range robot.Links {
		link, err := linkElem.parse(materials)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}

	joints := make([]Joint, 0, len(robot.Joints))
	for _, jointElem := range robot.Joints {
		joint, err := jointElem.parse()
		if err != nil {
			return nil, err
		}
		joints = append(joints, joint)
	}

	doc, err := NewDocument(robot.Name, links, joints)
	if err != nil {
		return nil, err
	}
	doc.Materials = globalMaterials
	return doc, nil
}

func (l *linkXML) parse(materials map[string]*Material) (Link, error) {
	if l.Name == "" {
		return Link{}, newMalformedError("link", "", "missing name")
	}
	link := Link{Name: l.Name}
	wrap := func(element string, i int, err error) error {
		return newMalformedError("link", l.Name, "%s %d: %v", element, i, err)
	}

	for i, v := range l.Visuals {
		origin, err := v.Origin.parse()
		if err != nil {
			return Link{}, wrap("visual", i, err)
		}
		geometry, err := v.Geometry.parse()
		if err != nil {
			return Link{}, wrap("visual", i, err)
		}
		material, err := v.Material.parse()
		if err != nil {
			return Link{}, wrap("visual", i, err)
		}
		// a bare reference picks up the color of the robot level material of the same name
		if material != nil && material.Color == nil && material.Texture == "" {
			if declared, ok := materials[material.Name]; ok {
				material = declared
			}
		}
		link.Visuals = append(link.Visuals, Visual{Name: v.Name, Origin: origin, Geometry: geometry, Material: material})
	}

	for i, c := range l.Collisions {
		origin, err := c.Origin.parse()
		if err != nil {
			return Link{}, wrap("collision", i, err)
		}
		geometry, err := c.Geometry.parse()
		if err != nil {
			return Link{}, wrap("collision", i, err)
		}
		link.Collisions = append(link.Collisions, Collision{Name: c.Name, Origin: origin, Geometry: geometry})
	}

	if l.Inertial != nil {
		inertial, err := l.Inertial.parse()
		if err != nil {
			return Link{}, newMalformedError("link", l.Name, "inertial: %v", err)
		}
		link.Inertial = inertial
	}
	return link, nil
}

func (j *jointXML) parse() (Joint, error) {
	if j.Name == "" {
		return Joint{}, newMalformedError("joint", "", "missing name")
	}
	malformed := func(format string, args ...interface{}) error {
		return newMalformedError("joint", j.Name, format, args...)
	}
	if j.Type == "" {
		return Joint{}, malformed("missing type")
	}
	if j.Parent.Link == "" {
		return Joint{}, malformed("missing parent link")
	}
	if j.Child.Link == "" {
		return Joint{}, malformed("missing child link")
	}

	joint := Joint{
		Name:   j.Name,
		Type:   JointType(j.Type),
		Parent: j.Parent.Link,
		Child:  j.Child.Link,
	}
	var err error
	if joint.Origin, err = j.Origin.parse(); err != nil {
		return Joint{}, malformed("origin: %v", err)
	}
	if joint.Axis, err = j.Axis.parse(); err != nil {
		return Joint{}, malformed("axis: %v", err)
	}
	if joint.Limit, err = j.Limit.parse(); err != nil {
		return Joint{}, malformed("limit: %v", err)
	}
	if joint.Dynamics, err = j.Dynamics.parse(); err != nil {
		return Joint{}, malformed("dynamics: %v", err)
	}
	if joint.Mimic, err = j.Mimic.parse(); err != nil {
		return Joint{}, malformed("mimic: %v", err)
	}
	return joint, nil
}

// Marshal encodes a Document as URDF text.
func Marshal(doc *Document) ([]byte, error) {
	robot := &robotXML{Name: doc.Name}
	for i := range doc.Materials {
		robot.Materials = append(robot.Materials, *newMaterialXML(&doc.Materials[i]))
	}
	for _, link := range doc.Links {
		elem := linkXML{Name: link.Name, Inertial: newInertialXML(link.Inertial)}
		for _, v := range link.Visuals {
			elem.Visuals = append(elem.Visuals, visualXML{
				Name:     v.Name,
				Origin:   newPoseXML(v.Origin),
				Geometry: newGeometryXML(v.Geometry),
				Material: newMaterialXML(v.Material),
			})
		}
		for _, c := range link.Collisions {
			elem.Collisions = append(elem.Collisions, collisionXML{
				Name:     c.Name,
				Origin:   newPoseXML(c.Origin),
				Geometry: newGeometryXML(c.Geometry),
			})
		}
		robot.Links = append(robot.Links, elem)
	}
	for _, joint := range doc.Joints {
		elem := jointXML{
			Name:   joint.Name,
			Type:   string(joint.Type),
			Origin: newPoseXML(joint.Origin),
			Parent: frameXML{joint.Parent},
			Child:  frameXML{joint.Child},
		}
		if joint.Axis != defaultAxis {
			elem.Axis = &axisXML{XYZ: formatFloats(joint.Axis.X, joint.Axis.Y, joint.Axis.Z)}
		}
		if l := joint.Limit; l != nil {
			elem.Limit = &limitXML{
				Lower:    formatFloats(l.Lower),
				Upper:    formatFloats(l.Upper),
				Velocity: formatFloats(l.Velocity),
				Effort:   formatFloats(l.Effort),
			}
		}
		if d := joint.Dynamics; d != nil {
			elem.Dynamics = &dynamicsXML{Damping: formatFloats(d.Damping), Friction: formatFloats(d.Friction)}
		}
		if m := joint.Mimic; m != nil {
			elem.Mimic = &mimicXML{Joint: m.Joint, Multiplier: formatFloats(m.Multiplier), Offset: formatFloats(m.Offset)}
		}
		robot.Joints = append(robot.Joints, elem)
	}

	output, err := xml.MarshalIndent(robot, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal URDF")
	}
	return []byte(fmt.Sprintf("%s%s\n", xml.Header, output)), nil
}
