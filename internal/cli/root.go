// Package cli implements the contradeploy command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pendergraft/contradeploy/internal/config"
	deploymentsDomain "github.com/pendergraft/contradeploy/internal/deployments/domain"
	"github.com/pendergraft/contradeploy/internal/observability/metrics"
	"github.com/pendergraft/contradeploy/internal/storage"
)

var (
	cfgFile     string
	rootDir     string
	networkName string
)

// Execute runs the CLI
func Execute(ctx context.Context, version string) error {
	return newRootCmd(version).ExecuteContext(ctx)
}

func newRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "contradeploy",
		Short: "Deploy a compiled contract and export its address",
		Long: `contradeploy deploys a compiled contract from Hardhat or Foundry artifacts,
waits for confirmation and writes the deployed address to JSON files under
the artifacts directory.

Configuration comes from the environment (and a .env file), optionally
overlaid with a contradeploy.toml project file.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "project config file (default: contradeploy.toml or cd.toml in --root)")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "project root directory (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&networkName, "network", "", "network to use (default from config)")

	// Add subcommands
	rootCmd.AddCommand(createDeployCmd())
	rootCmd.AddCommand(createAccountsCmd())
	rootCmd.AddCommand(createConfigCmd())
	rootCmd.AddCommand(createDeploymentsCmd())
	rootCmd.AddCommand(createVerifyCmd())
	rootCmd.AddCommand(createServeCmd(version))

	return rootCmd
}

// loadConfig loads the environment and project configuration and validates it
func loadConfig() (*config.Config, error) {
	cfg, _, err := config.LoadWithProject(cfgFile, rootDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setupLogger builds the logger. Logs go to w so that stdout carries only
// command output.
func setupLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openLedger opens and migrates the deployment ledger. It returns a nil
// service when storage is disabled.
func openLedger(ctx context.Context, cfg *config.Config, logger *slog.Logger) (deploymentsDomain.Service, func(), error) {
	if cfg.Storage.Type == "none" {
		return nil, func() {}, nil
	}

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing storage: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	closeFn := func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing storage", slog.String("error", err.Error()))
		}
	}
	return deploymentsDomain.NewService(store), closeFn, nil
}

// flushMetrics writes the metrics textfile when one is configured
func flushMetrics(cfg *config.Config, logger *slog.Logger) {
	if cfg.Metrics.TextFile == "" || !metrics.Enabled() {
		return
	}
	if err := metrics.WriteTextfile(cfg.Metrics.TextFile); err != nil {
		logger.Warn("writing metrics file",
			slog.String("path", cfg.Metrics.TextFile),
			slog.String("error", err.Error()),
		)
	}
}

func truncateAddress(addr string) string {
	if len(addr) <= 14 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
