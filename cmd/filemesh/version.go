package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/filemesh"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of filemesh",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "filemesh version %s\n", filemesh.Version)
	},
}
