// Package cli contains the urdfsim command line: inspecting URDF files, collapsing fixed leaves and running scenes.
package cli

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"go.viam.com/urdfsim/logging"
)

const (
	// Flags.
	generalFlagDebug = "debug"

	collapseFlagInput  = "input"
	collapseFlagOutput = "output"
	collapseFlagDryRun = "dry-run"

	simulateFlagConfig   = "config"
	simulateFlagSteps    = "steps"
	simulateFlagRealtime = "realtime"

	fileOutputPerm = 0o644
)

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:            "urdfsim",
		Usage:           "import URDF robots into a physics world",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    generalFlagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "inspect",
				Usage:     "print the links and joints of a URDF file",
				ArgsUsage: "<file.urdf>",
				Action:    InspectAction,
			},
			{
				Name:  "collapse",
				Usage: "remove fixed joints whose child link is a leaf",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     collapseFlagInput,
						Required: true,
						Usage:    "URDF file to read",
					},
					&cli.StringFlag{
						Name:  collapseFlagOutput,
						Usage: "URDF file to write, defaults to the input file",
					},
					&cli.BoolFlag{
						Name:  collapseFlagDryRun,
						Usage: "print what would be removed without writing anything",
					},
				},
				Action: CollapseAction,
			},
			{
				Name:  "simulate",
				Usage: "import the robots of a scene and step the world",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     simulateFlagConfig,
						Aliases:  []string{"c"},
						Required: true,
						Usage:    "load the scene from `FILE`",
					},
					&cli.IntFlag{
						Name:  simulateFlagSteps,
						Value: 100,
						Usage: "number of steps to take",
					},
					&cli.BoolFlag{
						Name:  simulateFlagRealtime,
						Usage: "pace steps with the wall clock instead of stepping as fast as possible",
					},
				},
				Action: SimulateAction,
			},
		},
	}
}

func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	_, _ = fmt.Fprintf(w, format, a...)
}

func warningf(w io.Writer, format string, a ...interface{}) {
	printf(w, "Warning: "+format+"\n", a...)
}

// loggerFromContext logs to the error writer of the app so command output stays parseable.
func loggerFromContext(c *cli.Context) logging.Logger {
	logger := logging.NewBlankLogger("urdfsim")
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))
	if !c.Bool(generalFlagDebug) {
		logger.SetLevel(logging.INFO)
	}
	return logger
}
