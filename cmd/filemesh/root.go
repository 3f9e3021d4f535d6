package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/filemesh"
	"github.com/hupe1980/filemesh/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "filemesh",
	Short: "Supervisor/worker orchestration for file and folder tasks",
	Long: `FileMesh resolves natural-language file and folder requests by routing
them among specialised workers under the direction of a supervisor until the
supervisor signals completion.

Configuration is read from --config, ./filemesh.yaml and FILEMESH_* environment
variables, in that order of increasing precedence.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(versionCmd)
}

// newMesh loads the configuration and builds the runtime.
func newMesh(ctx context.Context, optFns ...func(o *filemesh.Options)) (*filemesh.FileMesh, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	return filemesh.New(ctx, cfg, optFns...)
}
