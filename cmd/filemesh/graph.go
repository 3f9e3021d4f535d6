package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the orchestration graph as a Mermaid diagram",
	RunE: func(cmd *cobra.Command, args []string) error {
		fm, err := newMesh(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Fprint(cmd.OutOrStdout(), fm.Mermaid(nil))
		return nil
	},
}
