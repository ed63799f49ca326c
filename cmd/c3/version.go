package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/x2ee/c3/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print the engine version and its dependency versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.GetBuildInfo()
		fmt.Printf("c3 %s (go %s)\n", version.GetEngineVersion(), info.GoVersion)
		for _, dep := range info.Dependencies {
			fmt.Printf("  %s %s\n", dep.Path, dep.Version)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(versionCmd)
}
