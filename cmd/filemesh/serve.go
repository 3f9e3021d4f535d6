package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/filemesh/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts the FileMesh runtime behind an HTTP API:

  POST /agent    {"msg": "..."} -> {"answer"|"error", "status", "run_id"}
  GET  /healthz  liveness
  GET  /metrics  Prometheus metrics
  GET  /graph    Mermaid topology
  GET  /runs     recent runs (?q= filters, ?limit= bounds)
  GET  /runs/{id} one run with its trace`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fm, err := newMesh(ctx)
		if err != nil {
			return err
		}

		cfg := fm.Config().Server
		if serveAddr != "" {
			cfg.Addr = serveAddr
		}

		handler := server.NewHandler(fm.Engine(), func(o *server.Options) {
			o.Logger = fm.Logger()
			o.MaxBodyBytes = cfg.MaxBodyBytes
			o.Metrics = fm.Metrics().Handler()
			o.Graph = func() string { return fm.Mermaid(nil) }
			o.Runs = fm.History()
		})

		return server.New(handler, cfg, fm.Logger()).ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "Listen address (overrides server.addr)")
}
