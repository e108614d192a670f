package meshes

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"go.uber.org/multierr"

	"go.viam.com/urdfsim/spatialmath"
	"go.viam.com/urdfsim/urdf"
)

// FailurePolicy decides what replaces a geometry element that could not be resolved.
type FailurePolicy string

const (
	// Skip drops the element.
	Skip = FailurePolicy("skip")
	// UseBoundingPrimitive substitutes a box: the bounding box of the other element list of the same link when it
	// resolved, else a box with the same inertia as the link, else nothing.
	UseBoundingPrimitive = FailurePolicy("use_bounding_primitive")
)

// Valid reports whether p is a known policy.
func (p FailurePolicy) Valid() bool {
	return p == Skip || p == UseBoundingPrimitive
}

// Shape is a resolved geometry expressed in the frame of its link.
type Shape struct {
	Geometry spatialmath.Geometry
	// Material is only set for visuals.
	Material *urdf.Material
	// Substitute is set when the geometry was produced by the failure policy.
	Substitute bool
}

// LinkShapes holds the resolved visual and collision shapes of one link.
type LinkShapes struct {
	Visuals    []Shape
	Collisions []Shape
}

const (
	visualElement    = "visual"
	collisionElement = "collision"
)

// ResolveLinks resolves the visual and collision geometry of every link of a document. The two lists are resolved
// independently so a broken collision mesh never removes a working visual and vice versa. Failures do not abort:
// each one is returned as a *ResolveError aggregated in the warnings, and the policy decides its replacement.
func (r *Resolver) ResolveLinks(doc *urdf.Document, basePath string, policy FailurePolicy) (map[string]*LinkShapes, error) {
	shapes := make(map[string]*LinkShapes, len(doc.Links))
	var warnings error
	for i := range doc.Links {
		link := &doc.Links[i]
		visuals, visualFailures := r.resolveElements(link, visualElement, basePath)
		collisions, collisionFailures := r.resolveElements(link, collisionElement, basePath)

		for _, failure := range append(visualFailures, collisionFailures...) {
			warnings = multierr.Append(warnings, failure)
		}
		if policy == UseBoundingPrimitive {
			visuals = substitute(link, visuals, collisions, visualFailures)
			collisions = substitute(link, collisions, visuals, collisionFailures)
		}
		shapes[link.Name] = &LinkShapes{Visuals: visuals, Collisions: collisions}
	}
	return shapes, warnings
}

func (r *Resolver) resolveElements(link *urdf.Link, element, basePath string) ([]Shape, []*ResolveError) {
	type item struct {
		origin   spatialmath.Pose
		geometry urdf.Geometry
		material *urdf.Material
	}
	var items []item
	if element == visualElement {
		for _, v := range link.Visuals {
			items = append(items, item{v.Origin, v.Geometry, v.Material})
		}
	} else {
		for _, c := range link.Collisions {
			items = append(items, item{c.Origin, c.Geometry, nil})
		}
	}

	var (
		shapes   []Shape
		failures []*ResolveError
	)
	for i, it := range items {
		g, err := r.Resolve(it.geometry, basePath)
		if err != nil {
			//nolint:errorlint
			resolveErr, ok := err.(*ResolveError)
			if !ok {
				resolveErr = &ResolveError{Err: err}
			}
			resolveErr.Link = link.Name
			resolveErr.Element = fmt.Sprintf("%s %d", element, i)
			failures = append(failures, resolveErr)
			continue
		}
		placed := g.Transform(it.origin)
		if placed.Label() == "" {
			placed.SetLabel(fmt.Sprintf("%s:%s:%d", link.Name, element, i))
		}
		shapes = append(shapes, Shape{Geometry: placed, Material: it.material})
	}
	return shapes, failures
}

// substitute appends one bounding primitive per failure.
func substitute(link *urdf.Link, resolved, other []Shape, failures []*ResolveError) []Shape {
	if len(failures) == 0 {
		return resolved
	}
	box := boundingBoxOf(other)
	if box == nil {
		box = inertiaEquivalentBox(link.Inertial)
	}
	if box == nil {
		return resolved
	}
	for range failures {
		resolved = append(resolved, Shape{Geometry: box, Substitute: true})
	}
	return resolved
}

// boundingBoxOf returns the axis aligned box, in the link frame, that covers every non substituted shape.
func boundingBoxOf(shapes []Shape) spatialmath.Geometry {
	lo := r3.Vector{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	hi := r3.Vector{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	found := false
	for _, s := range shapes {
		if s.Substitute {
			continue
		}
		found = true
		center, half := s.Geometry.BoundingBox()
		for _, corner := range boxCorners(center, half) {
			p := spatialmath.TransformPoint(s.Geometry.Pose(), corner)
			lo = r3.Vector{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
			hi = r3.Vector{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
		}
	}
	if !found {
		return nil
	}
	box, err := spatialmath.NewBox(spatialmath.NewPoseFromPoint(lo.Add(hi).Mul(0.5)), hi.Sub(lo), "bounding_box")
	if err != nil {
		return nil
	}
	return box
}

func boxCorners(center, half r3.Vector) []r3.Vector {
	corners := make([]r3.Vector, 0, 8)
	for _, sx := range []float64{-1, 1} {
		for _, sy := range []float64{-1, 1} {
			for _, sz := range []float64{-1, 1} {
				corners = append(corners, center.Add(r3.Vector{X: sx * half.X, Y: sy * half.Y, Z: sz * half.Z}))
			}
		}
	}
	return corners
}

// inertiaEquivalentBox returns the solid box with the mass and principal moments of the inertial block, placed at the
// center of mass. For a box, Ixx = m(y²+z²)/12 and so on, which gives x² = 6(Iyy+Izz-Ixx)/m.
func inertiaEquivalentBox(inertial *urdf.Inertial) spatialmath.Geometry {
	if inertial == nil || inertial.Mass <= 0 {
		return nil
	}
	in, m := inertial.Inertia, inertial.Mass
	sq := r3.Vector{
		X: 6 * (in.Iyy + in.Izz - in.Ixx) / m,
		Y: 6 * (in.Ixx + in.Izz - in.Iyy) / m,
		Z: 6 * (in.Ixx + in.Iyy - in.Izz) / m,
	}
	if sq.X <= 0 || sq.Y <= 0 || sq.Z <= 0 {
		return nil
	}
	dims := r3.Vector{X: math.Sqrt(sq.X), Y: math.Sqrt(sq.Y), Z: math.Sqrt(sq.Z)}
	origin := inertial.Origin
	if origin == nil {
		origin = spatialmath.NewZeroPose()
	}
	box, err := spatialmath.NewBox(origin, dims, "inertia_box")
	if err != nil {
		return nil
	}
	return box
}
