package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Mesh is a collision geometry that represents a set of triangles, stored as vertex and index buffers.
// Vertices are expressed in the frame of the mesh's pose.
type Mesh struct {
	pose     Pose
	vertices []r3.Vector
	indices  [][3]int
	label    string
}

// NewMesh instantiates a new mesh Geometry. Every index must address a vertex.
func NewMesh(pose Pose, vertices []r3.Vector, indices [][3]int, label string) (*Mesh, error) {
	for i, tri := range indices {
		for _, idx := range tri {
			if idx < 0 || idx >= len(vertices) {
				return nil, errors.Errorf("triangle %d references vertex %d but mesh has %d vertices", i, idx, len(vertices))
			}
		}
	}
	return &Mesh{pose: pose, vertices: vertices, indices: indices, label: label}, nil
}

// Type returns MeshType.
func (m *Mesh) Type() GeometryType { return MeshType }

// Pose returns the pose of the mesh.
func (m *Mesh) Pose() Pose { return m.pose }

// Vertices returns the vertex buffer of the mesh.
func (m *Mesh) Vertices() []r3.Vector { return m.vertices }

// Indices returns the index buffer of the mesh, three vertex indices per triangle.
func (m *Mesh) Indices() [][3]int { return m.indices }

// Triangles returns the triangles of the mesh, in the frame of the mesh.
func (m *Mesh) Triangles() []*Triangle {
	triangles := make([]*Triangle, 0, len(m.indices))
	for _, tri := range m.indices {
		triangles = append(triangles, NewTriangle(m.vertices[tri[0]], m.vertices[tri[1]], m.vertices[tri[2]]))
	}
	return triangles
}

// Transform returns a copy of the mesh whose pose is composed with p.
// Vertices are in the frame of the mesh, like the corners of a box, so no need to transform them.
func (m *Mesh) Transform(p Pose) Geometry {
	return &Mesh{pose: Compose(p, m.pose), vertices: m.vertices, indices: m.indices, label: m.label}
}

// Scale returns a copy of the mesh with every vertex scaled componentwise by s.
func (m *Mesh) Scale(s r3.Vector) *Mesh {
	scaled := make([]r3.Vector, len(m.vertices))
	for i, v := range m.vertices {
		scaled[i] = r3.Vector{X: v.X * s.X, Y: v.Y * s.Y, Z: v.Z * s.Z}
	}
	indices := m.indices
	// a mirroring scale flips the winding of every triangle
	if s.X*s.Y*s.Z < 0 {
		indices = make([][3]int, len(m.indices))
		for i, tri := range m.indices {
			indices[i] = [3]int{tri[0], tri[2], tri[1]}
		}
	}
	return &Mesh{pose: m.pose, vertices: scaled, indices: indices, label: m.label}
}

// BoundingBox returns the axis aligned bounding box of the vertices.
func (m *Mesh) BoundingBox() (r3.Vector, r3.Vector) {
	if len(m.vertices) == 0 {
		return r3.Vector{}, r3.Vector{}
	}
	lo := r3.Vector{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	hi := r3.Vector{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for _, v := range m.vertices {
		lo = r3.Vector{X: math.Min(lo.X, v.X), Y: math.Min(lo.Y, v.Y), Z: math.Min(lo.Z, v.Z)}
		hi = r3.Vector{X: math.Max(hi.X, v.X), Y: math.Max(hi.Y, v.Y), Z: math.Max(hi.Z, v.Z)}
	}
	return lo.Add(hi).Mul(0.5), hi.Sub(lo).Mul(0.5)
}

// Label returns the label of the mesh, the path it was loaded from when it came from a file.
func (m *Mesh) Label() string { return m.label }

// SetLabel sets the label of the mesh.
func (m *Mesh) SetLabel(label string) { m.label = label }

func (m *Mesh) String() string {
	pt := m.pose.Point()
	return fmt.Sprintf("Type: Mesh | Position: X:%.3f, Y:%.3f, Z:%.3f | Vertices: %d | Triangles: %d",
		pt.X, pt.Y, pt.Z, len(m.vertices), len(m.indices))
}
