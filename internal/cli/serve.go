package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pendergraft/contradeploy/internal/observability/metrics"
	"github.com/pendergraft/contradeploy/internal/server"
)

func createServeCmd(version string) *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the deployment ledger over HTTP",
		Long: `Start a read-only HTTP API over the deployment ledger.

Endpoints:
  GET /health
  GET /metrics
  GET /api/v1/deployments
  GET /api/v1/deployments/{chainId}/{address}

The server stops gracefully on SIGINT or SIGTERM.

EXAMPLES:
  contradeploy serve
  contradeploy serve --host 0.0.0.0 --port 9000
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, version, host, port)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host (default from HOST or 127.0.0.1)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default from PORT or 8090)")

	return cmd
}

func runServe(cmd *cobra.Command, version, host string, port int) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}

	logger := setupLogger(cfg, cmd.ErrOrStderr())
	logger.Info("starting contradeploy ledger server", "version", version)

	metrics.Init(cfg.Metrics.Enabled)

	ledger, closeLedger, err := openLedger(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLedger()
	if ledger == nil {
		return fmt.Errorf("the deployment ledger is disabled (storage type none)")
	}

	srv := server.New(cfg.Server, ledger, logger)
	return srv.ListenAndServe(ctx)
}
