package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/cobra"

	"github.com/pendergraft/contradeploy/internal/chains"
	"github.com/pendergraft/contradeploy/internal/chains/evm"
	"github.com/pendergraft/contradeploy/internal/config"
	"github.com/pendergraft/contradeploy/internal/etherscan"
	"github.com/pendergraft/contradeploy/internal/observability/metrics"
	verificationDomain "github.com/pendergraft/contradeploy/internal/verification/domain"
)

// errNotVerified is returned when the deployed code does not match the artifact
var errNotVerified = errors.New("deployed bytecode does not match the artifact")

type verifyOptions struct {
	address   string
	contract  string
	etherscan bool
	libraries map[string]string
}

func createVerifyCmd() *cobra.Command {
	var opts verifyOptions

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify deployed contract matches the local artifact",
		Long: `Verify that a deployed contract's bytecode matches the compiled artifact.

Compares the on-chain code with the artifact's deployed bytecode,
stripping CBOR metadata for a partial match. With --etherscan the source
is then submitted to the network's block explorer as standard JSON input
from the build-info files, and the command waits for the explorer's
verdict. A match marks the ledger entry verified.

EXAMPLES:
  # Compare on-chain code with the artifact
  contradeploy verify --address 0x5FbDB2315678afecb367f032d93F642f64180aa3

  # Also publish the source on Polygonscan
  contradeploy verify --network mumbai --etherscan \
    --address 0x5FbDB2315678afecb367f032d93F642f64180aa3
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.address, "address", "", "contract address (required)")
	cmd.Flags().StringVar(&opts.contract, "contract", "", "contract name (default from config)")
	cmd.Flags().BoolVar(&opts.etherscan, "etherscan", false, "submit the source to the network's block explorer")
	cmd.Flags().StringToStringVar(&opts.libraries, "library", nil, "linked library as <source>:<Name>=<address> (repeatable)")
	_ = cmd.MarkFlagRequired("address")

	return cmd
}

func runVerify(cmd *cobra.Command, opts verifyOptions) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg, cmd.ErrOrStderr())

	metrics.Init(cfg.Metrics.Enabled)
	defer flushMetrics(cfg, logger)

	contract := opts.contract
	if contract == "" {
		contract = cfg.Contract
	}

	netName, network, err := cfg.Network(networkName)
	if err != nil {
		return err
	}
	if network.URL == "" || network.URL == config.UndefinedParam {
		return fmt.Errorf("network %s has no RPC URL configured", netName)
	}

	var explorer verificationDomain.SourceVerifier
	if opts.etherscan {
		apiKey := cfg.ExplorerAPIKey(network)
		if network.ExplorerURL == "" || apiKey == config.UndefinedParam {
			return fmt.Errorf("network %s has no block explorer configured", netName)
		}
		explorer = etherscan.New(network.ExplorerURL, apiKey, etherscan.WithLogger(logger))
	}

	client, err := ethclient.DialContext(ctx, network.URL)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", netName, err)
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain ID: %w", err)
	}

	registry := chains.NewRegistry()
	registry.Register(evm.NewChain(
		evm.WithArtifactsDir(cfg.Paths.Artifacts),
		evm.WithCodeReader(client),
	))

	ledger, closeLedger, err := openLedger(ctx, cfg, logger)
	if err != nil {
		logger.Warn("verification will not be recorded", slog.String("error", err.Error()))
		ledger, closeLedger = nil, func() {}
	}
	defer closeLedger()

	svc := verificationDomain.NewService(registry, ledger, logger)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "🔍 Verifying %s\n", contract)
	fmt.Fprintf(out, "   Network: %s (chain %s)\n", netName, chainID)
	fmt.Fprintf(out, "   Address: %s\n", opts.address)

	result, err := svc.Verify(ctx, verificationDomain.VerifyRequest{
		Chain:       "evm",
		Builder:     cfg.Builder,
		Root:        cfg.Paths.Root,
		Contract:    contract,
		Network:     netName,
		ChainID:     chainID.Int64(),
		RPC:         network.URL,
		Address:     opts.address,
		Libraries:   opts.libraries,
		Explorer:    explorer,
		ExplorerKey: network.ExplorerKey,
	})
	if result != nil {
		metrics.Verification(netName, result.MatchType)
		printVerifyResult(out, result, network.ExplorerKey)
	}
	if err != nil {
		metrics.Verification(netName, "error")
		return err
	}
	if result.SourceVerified {
		metrics.Verification(netName, "explorer")
	}
	if !result.Verified {
		return errNotVerified
	}
	return nil
}

func printVerifyResult(out io.Writer, result *verificationDomain.VerifyResult, explorerKey string) {
	fmt.Fprintln(out)

	switch result.MatchType {
	case "full":
		fmt.Fprintln(out, "✅ VERIFIED - Full match")
		fmt.Fprintln(out, "   Deployed bytecode exactly matches the artifact (including metadata)")
	case "partial":
		fmt.Fprintln(out, "✅ VERIFIED - Partial match")
		fmt.Fprintln(out, "   Executable code matches, but metadata differs")
		fmt.Fprintln(out, "   (This can happen with different source paths or comments)")
	default:
		fmt.Fprintln(out, "❌ NOT VERIFIED - No match")
		if result.Message != "" {
			fmt.Fprintf(out, "   Reason: %s\n", result.Message)
		}
	}

	if result.SourceVerified {
		fmt.Fprintf(out, "✅ Source verified on %s\n", explorerKey)
	}
	if result.Recorded {
		fmt.Fprintln(out, "   Ledger entry marked verified")
	}
}
