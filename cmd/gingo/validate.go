package main

import (
	"fmt"

	"github.com/cuemby/gingo/pkg/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a clusters file",
	Long: `Parse a clusters file and check every cluster definition and probe
without contacting any backend.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")

		file, err := config.LoadClusters(path)
		if err != nil {
			return err
		}
		if err := file.Validate(); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ %s is valid (%d clusters)\n", path, len(file.Clusters))
		for _, c := range file.Clusters {
			state := "enabled"
			if !c.Enabled {
				state = "disabled"
			}
			probe := "none"
			if c.Probe != nil {
				probe = string(c.Probe.Type)
			}
			fmt.Fprintf(out, "  %-20s target=%d interval=%s probe=%s %s\n",
				c.ID, c.TargetCount, c.CheckInterval(), probe, state)
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringP("file", "f", "clusters.yaml", "Path to the clusters file")
}
