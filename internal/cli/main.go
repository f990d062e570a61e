package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "timewarp",
		Short:        "Re-time a video with a piecewise speed curve",
		SilenceUsage: true,
	}
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	root.AddCommand(
		newWarpCmd(),
		newDurationCmd(),
		newPlotCmd(),
		newLookupCmd(),
		newComponentsCmd(),
		newPlayCmd(),
	)
	return root
}

// addComponentFlags registers the two ways of passing a component set.
func addComponentFlags(cmd *cobra.Command) {
	cmd.Flags().String("components", "", "JSON file with component records")
	cmd.Flags().String("preset", "", "Named preset from the presets database")
}
