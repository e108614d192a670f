// Package kinematics turns the links and joints of a URDF document into a validated kinematic tree with the rest pose
// of every link.
package kinematics

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"go.viam.com/urdfsim/spatialmath"
	"go.viam.com/urdfsim/urdf"
)

// Tree is a single rooted tree over the links of a document. Links and joints are addressed by their index in the
// document. A Tree is immutable.
type Tree struct {
	doc  *urdf.Document
	root int
	// parentJoint holds, per link, the index of the joint whose child it is, or -1 for the root.
	parentJoint []int
	// children holds, per link, the indices of the joints whose parent it is, in declaration order.
	children [][]int
	order    []int
	rest     []spatialmath.Pose
}

// Build validates that the joints of doc connect its links into one tree and computes the rest pose of each link
// relative to the root by composing joint origins breadth first. Children are visited in declaration order.
func Build(doc *urdf.Document) (*Tree, error) {
	numLinks := len(doc.Links)
	if numLinks == 0 {
		return nil, errors.Wrapf(ErrNoRoot, "robot %q declares no links", doc.Name)
	}

	g := simple.NewDirectedGraph()
	for i := 0; i < numLinks; i++ {
		g.AddNode(simple.Node(i))
	}
	parents := make([][]int, numLinks)
	children := make([][]int, numLinks)
	for j := range doc.Joints {
		joint := &doc.Joints[j]
		p, ok := doc.LinkIndex(joint.Parent)
		if !ok {
			return nil, errors.Errorf("joint %q references unknown parent link %q", joint.Name, joint.Parent)
		}
		c, ok := doc.LinkIndex(joint.Child)
		if !ok {
			return nil, errors.Errorf("joint %q references unknown child link %q", joint.Name, joint.Child)
		}
		if p == c {
			return nil, errors.Wrapf(ErrCycle, "joint %q connects link %q to itself", joint.Name, joint.Parent)
		}
		g.SetEdge(g.NewEdge(simple.Node(p), simple.Node(c)))
		parents[c] = append(parents[c], j)
		children[p] = append(children[p], j)
	}

	if _, err := topo.Sort(g); err != nil {
		//nolint:errorlint
		if cycles, ok := err.(topo.Unorderable); ok && len(cycles) > 0 {
			return nil, errors.Wrapf(ErrCycle, "links %s", cycleNames(doc, cycles[0]))
		}
		return nil, errors.Wrap(ErrCycle, err.Error())
	}

	var roots []int
	for i := range doc.Links {
		if len(parents[i]) == 0 {
			roots = append(roots, i)
		}
	}
	switch len(roots) {
	case 0:
		return nil, errors.Wrapf(ErrNoRoot, "robot %q", doc.Name)
	case 1:
	default:
		names := lo.Map(roots, func(i, _ int) string { return doc.Links[i].Name })
		return nil, errors.Wrapf(ErrMultipleRoots, "links %s have no parent joint", strings.Join(names, ", "))
	}

	t := &Tree{
		doc:         doc,
		root:        roots[0],
		parentJoint: make([]int, numLinks),
		children:    children,
		order:       make([]int, 0, numLinks),
		rest:        make([]spatialmath.Pose, numLinks),
	}
	for i := range t.parentJoint {
		t.parentJoint[i] = -1
	}

	visited := make([]bool, numLinks)
	visited[t.root] = true
	t.rest[t.root] = spatialmath.NewZeroPose()
	queue := []int{t.root}
	for len(queue) > 0 {
		link := queue[0]
		queue = queue[1:]
		t.order = append(t.order, link)
		for _, j := range children[link] {
			joint := &doc.Joints[j]
			child, _ := doc.LinkIndex(joint.Child)
			if visited[child] {
				return nil, errors.Wrapf(ErrCycle, "link %q is reached again through joint %q", joint.Child, joint.Name)
			}
			visited[child] = true
			t.parentJoint[child] = j
			origin := joint.Origin
			if origin == nil {
				origin = spatialmath.NewZeroPose()
			}
			t.rest[child] = spatialmath.Compose(t.rest[link], origin)
			queue = append(queue, child)
		}
	}
	if len(t.order) != numLinks {
		for i, seen := range visited {
			if !seen {
				return nil, errors.Wrapf(ErrCycle, "link %q is not reachable from root %q", doc.Links[i].Name, doc.Links[t.root].Name)
			}
		}
	}
	return t, nil
}

func cycleNames(doc *urdf.Document, nodes []graph.Node) string {
	ids := make([]int, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, int(n.ID()))
	}
	sort.Ints(ids)
	return strings.Join(lo.Map(ids, func(i, _ int) string { return doc.Links[i].Name }), ", ")
}

// Document returns the document the tree was built from.
func (t *Tree) Document() *urdf.Document {
	return t.doc
}

// Len returns the number of links in the tree.
func (t *Tree) Len() int {
	return len(t.order)
}

// Root returns the index of the root link.
func (t *Tree) Root() int {
	return t.root
}

// RootName returns the name of the root link.
func (t *Tree) RootName() string {
	return t.doc.Links[t.root].Name
}

// Order returns link indices in breadth first order from the root. Every link comes after its parent.
func (t *Tree) Order() []int {
	return append([]int(nil), t.order...)
}

// Links returns the link names in breadth first order.
func (t *Tree) Links() []string {
	return lo.Map(t.order, func(i, _ int) string { return t.doc.Links[i].Name })
}

// JointOrder returns joint indices in breadth first order: the parent joint of each non root link of Order.
func (t *Tree) JointOrder() []int {
	joints := make([]int, 0, len(t.order)-1)
	for _, link := range t.order {
		if j := t.parentJoint[link]; j >= 0 {
			joints = append(joints, j)
		}
	}
	return joints
}

// ParentJoint returns the index of the joint whose child is link, or -1 for the root.
func (t *Tree) ParentJoint(link int) int {
	return t.parentJoint[link]
}

// Parent returns the name of the parent link of the named link. ok is false for the root and for unknown links.
func (t *Tree) Parent(link string) (parent string, ok bool) {
	i, ok := t.doc.LinkIndex(link)
	if !ok || t.parentJoint[i] < 0 {
		return "", false
	}
	return t.doc.Joints[t.parentJoint[i]].Parent, true
}

// Children returns the indices of the joints whose parent is link, in declaration order.
func (t *Tree) Children(link int) []int {
	return append([]int(nil), t.children[link]...)
}

// RestPose returns the pose of a link relative to the root when every joint is at zero.
func (t *Tree) RestPose(link int) spatialmath.Pose {
	return t.rest[link]
}

// RestPoseByName is RestPose addressed by link name.
func (t *Tree) RestPoseByName(link string) (spatialmath.Pose, bool) {
	i, ok := t.doc.LinkIndex(link)
	if !ok {
		return nil, false
	}
	return t.rest[i], true
}
