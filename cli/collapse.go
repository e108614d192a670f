package cli

import (
	"os"
	"strings"

	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	"go.viam.com/urdfsim/urdf"
)

// CollapseAction rewrites a URDF file without its fixed leaf joints.
func CollapseAction(c *cli.Context) error {
	input := c.String(collapseFlagInput)
	output := c.String(collapseFlagOutput)
	if output == "" {
		output = input
	}
	doc, err := urdf.ParseFile(input)
	if err != nil {
		return err
	}
	collapsed, err := urdf.CollapseFixedLeaves(doc)
	if err != nil {
		return err
	}

	jointName := func(j urdf.Joint, _ int) string { return j.Name }
	removed := lo.Without(lo.Map(doc.Joints, jointName), lo.Map(collapsed.Joints, jointName)...)
	if len(removed) == 0 {
		printf(c.App.Writer, "no fixed leaf joints in %s\n", input)
	} else {
		printf(c.App.Writer, "removing %d fixed leaf joints: %s\n", len(removed), strings.Join(removed, ", "))
	}
	if c.Bool(collapseFlagDryRun) {
		printf(c.App.Writer, "dry run, would write %d links and %d joints to %s\n",
			len(collapsed.Links), len(collapsed.Joints), output)
		return nil
	}

	data, err := urdf.Marshal(collapsed)
	if err != nil {
		return err
	}
	//nolint:gosec
	if err := os.WriteFile(output, data, fileOutputPerm); err != nil {
		return err
	}
	printf(c.App.Writer, "wrote %s\n", output)
	return nil
}
