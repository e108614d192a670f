package cli

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/urdfsim/kinematics"
	"go.viam.com/urdfsim/urdf"
	"go.viam.com/urdfsim/utils"
)

// InspectAction prints the kinematic tree of a URDF file.
func InspectAction(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("a URDF file is required")
	}
	doc, err := urdf.ParseFile(path)
	if err != nil {
		return err
	}
	tree, err := kinematics.Build(doc)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "robot %q: %d links, %d joints, root %q\n", doc.Name, len(doc.Links), len(doc.Joints), tree.RootName())
	printf(c.App.Writer, "%s\n", linkTable(tree))
	if len(doc.Joints) > 0 {
		printf(c.App.Writer, "%s\n", jointTable(tree))
	}
	return nil
}

// linkTable lists the links in breadth first order with their rest pose relative to the root.
func linkTable(tree *kinematics.Tree) string {
	doc := tree.Document()
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Link", "Parent", "Translation", "Orientation", "Mass", "Visuals", "Collisions"})
	for i, link := range tree.Order() {
		l := &doc.Links[link]
		parent, _ := tree.Parent(l.Name)
		pose := tree.RestPose(link)
		tra := pose.Point()
		ori := pose.Orientation().EulerAngles()
		mass := "-"
		if l.Inertial != nil {
			mass = fmt.Sprintf("%g", l.Inertial.Mass)
		}
		t.AppendRow(table.Row{
			i,
			l.Name,
			parent,
			fmt.Sprintf("X:%.3f, Y:%.3f, Z:%.3f", tra.X, tra.Y, tra.Z),
			fmt.Sprintf(
				"Roll:%.2f, Pitch:%.2f, Yaw:%.2f",
				utils.RadToDeg(ori.Roll),
				utils.RadToDeg(ori.Pitch),
				utils.RadToDeg(ori.Yaw),
			),
			mass,
			len(l.Visuals),
			len(l.Collisions),
		})
	}
	return t.Render()
}

func jointTable(tree *kinematics.Tree) string {
	doc := tree.Document()
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Joint", "Type", "Parent", "Child", "Axis", "Limits"})
	for _, j := range tree.JointOrder() {
		joint := &doc.Joints[j]
		axis := ""
		if joint.Type.DoF() > 0 {
			axis = fmt.Sprintf("%g %g %g", joint.Axis.X, joint.Axis.Y, joint.Axis.Z)
		}
		t.AppendRow(table.Row{joint.Name, string(joint.Type), joint.Parent, joint.Child, axis, limitString(joint)})
	}
	return t.Render()
}

func limitString(joint *urdf.Joint) string {
	l := joint.Limit
	if l == nil {
		return ""
	}
	var parts []string
	if joint.Type != urdf.ContinuousJoint && l.HasPositionLimits() {
		parts = append(parts, fmt.Sprintf("[%g, %g]", l.Lower, l.Upper))
	}
	if l.Velocity > 0 {
		parts = append(parts, fmt.Sprintf("velocity %g", l.Velocity))
	}
	if l.Effort > 0 {
		parts = append(parts, fmt.Sprintf("effort %g", l.Effort))
	}
	return strings.Join(parts, ", ")
}
