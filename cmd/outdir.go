package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/simforcing/forcing/forcing/outputdir"
)

var outdirRemove bool

var outdirCmd = &cobra.Command{
	Use:   "outdir [BASE]",
	Short: "Create the next versioned output folder and print its path",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		base := envOr(envOutputDir, "output")
		if len(args) == 1 {
			base = args[0]
		}
		style := outputdir.ActiveLink
		if outdirRemove {
			style = outputdir.RemovePreexisting
		}
		dir, err := outputdir.Generate(base, style)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if id, err := outputdir.RunID(dir); err == nil {
			logrus.Infof("run id %s", id)
		}
		fmt.Println(dir)
	},
}

func init() {
	outdirCmd.Flags().BoolVar(&outdirRemove, "remove-preexisting", false, "Delete BASE and recreate it instead of adding a new version")
}
