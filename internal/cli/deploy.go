package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pendergraft/contradeploy/internal/chains"
	"github.com/pendergraft/contradeploy/internal/chains/evm"
	"github.com/pendergraft/contradeploy/internal/config"
	"github.com/pendergraft/contradeploy/internal/deploy"
	deploymentsDomain "github.com/pendergraft/contradeploy/internal/deployments/domain"
	"github.com/pendergraft/contradeploy/internal/observability/metrics"
	"github.com/pendergraft/contradeploy/internal/signer"
	"github.com/pendergraft/contradeploy/internal/validation"
)

// errAborted is returned when the operator declines the confirmation prompt
var errAborted = errors.New("deployment aborted")

// stdinIsTerminal is replaced in tests
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

type deployOptions struct {
	contract  string
	compile   bool
	timeout   time.Duration
	yes       bool
	libraries map[string]string
}

func createDeployCmd() *cobra.Command {
	var opts deployOptions

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the contract and export its address",
		Long: `Deploy a contract from the build tool's artifacts.

The contract factory is read from the Hardhat or Foundry artifact, the
creation transaction is signed with the network's first configured key
(or sent from the node's first unlocked account) and the command waits
for confirmation. The address is then written to

  <artifacts>/contracts/<Name>.sol/<Name>.addr.json
  <artifacts>/contracts/<Name>.sol/<Name>.addr-<timestamp>.json

Deploying to a network other than a local node asks for confirmation
unless --yes is given.

EXAMPLES:
  # Deploy the default contract to the default network
  contradeploy deploy

  # Compile first, then deploy to Mumbai
  contradeploy deploy --network mumbai --compile

  # Non-interactive (CI): skip the prompt
  contradeploy deploy --network mumbai --yes

  # Deploy another contract with a linked library
  contradeploy deploy --contract Arena \
    --library contracts/Dice.sol:Dice=0x5FbDB2315678afecb367f032d93F642f64180aa3
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.contract, "contract", "", "contract name (default from config)")
	cmd.Flags().BoolVar(&opts.compile, "compile", false, "run the build tool's compile command first")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "give up after this long (default: wait indefinitely)")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "skip the confirmation prompt")
	cmd.Flags().StringToStringVar(&opts.libraries, "library", nil, "linked library as <source>:<Name>=<address> (repeatable)")

	return cmd
}

func runDeploy(cmd *cobra.Command, opts deployOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg, cmd.ErrOrStderr())

	metrics.Init(cfg.Metrics.Enabled)
	defer flushMetrics(cfg, logger)

	name := opts.contract
	if name == "" {
		name = cfg.Contract
	}
	if err := validation.ValidateContractName(name); err != nil {
		return err
	}

	netName, network, err := cfg.Network(networkName)
	if err != nil {
		return err
	}
	if network.URL == "" || network.URL == config.UndefinedParam {
		return fmt.Errorf("network %s has no RPC URL configured", netName)
	}

	builder, err := resolveBuilder(cfg)
	if err != nil {
		return err
	}

	if !network.IsLocal() && !opts.yes {
		if !stdinIsTerminal() {
			return fmt.Errorf("deploying to %s needs confirmation: pass --yes when stdin is not a terminal", netName)
		}
		ok, err := confirm(cmd.InOrStdin(), cmd.ErrOrStderr(),
			fmt.Sprintf("Deploy %s to %s (chain %d)?", name, netName, network.ChainID))
		if err != nil {
			return err
		}
		if !ok {
			return errAborted
		}
	}

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
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
	if network.ChainID != 0 && chainID.Int64() != network.ChainID {
		return fmt.Errorf("network %s: node reports chain ID %s, config expects %d", netName, chainID, network.ChainID)
	}

	sender, err := signer.Select(ctx, network, chainID, client, client.Client())
	if err != nil {
		return err
	}

	factories := &deploy.ArtifactFactories{
		Builder:        builder,
		Root:           cfg.Paths.Root,
		Libraries:      opts.libraries,
		Compile:        opts.compile,
		CompileCommand: strings.Fields(cfg.CompileCommand),
		Stdout:         cmd.ErrOrStderr(),
		Stderr:         cmd.ErrOrStderr(),
	}

	deployer := deploy.New(client, sender, factories, deploy.Options{
		Root:         cfg.Paths.Root,
		ArtifactsDir: cfg.Paths.Artifacts,
		GasReport:    cfg.GasReporter.Enabled,
		Currency:     cfg.GasReporter.Currency,
		Out:          out,
		Logger:       logger,
	})

	logger.Debug("deploying",
		slog.String("contract", name),
		slog.String("network", netName),
		slog.String("builder", builder.Name()),
		slog.String("from", sender.Address().Hex()),
	)

	start := time.Now()
	result, err := deployer.Deploy(ctx, name)
	if err != nil {
		metrics.DeploymentResult(netName, metrics.StatusFailure, time.Since(start))
		return err
	}
	metrics.DeploymentResult(netName, metrics.StatusSuccess, time.Since(start))
	metrics.DeploymentGas(netName, name, result.Gas.GasUsed)

	recordDeployment(ctx, cfg, logger, netName, chainID.Int64(), result)
	return nil
}

// recordDeployment adds the deployment to the ledger. The exports are
// already written, so failures here are logged and not returned.
func recordDeployment(ctx context.Context, cfg *config.Config, logger *slog.Logger, network string, chainID int64, result *deploy.Result) {
	ledger, closeLedger, err := openLedger(ctx, cfg, logger)
	if err != nil {
		logger.Warn("deployment not recorded", slog.String("error", err.Error()))
		return
	}
	defer closeLedger()
	if ledger == nil {
		return
	}

	_, err = ledger.Record(ctx, deploymentsDomain.RecordRequest{
		Contract:        result.Name,
		Network:         network,
		ChainID:         chainID,
		Address:         result.Address.Hex(),
		TxHash:          result.TxHash.Hex(),
		DeployerAddress: result.Deployer.Hex(),
		BlockNumber:     result.BlockNumber,
		GasUsed:         result.Gas.GasUsed,
		ExportPath:      result.Paths.Stable,
		TimestampedPath: result.Paths.Timestamped,
	})
	if err != nil {
		logger.Warn("deployment not recorded", slog.String("error", err.Error()))
		return
	}
	logger.Debug("deployment recorded",
		slog.String("address", result.Address.Hex()),
		slog.Int64("chain_id", chainID),
	)
}

// resolveBuilder returns the configured builder, or the one detected in the project root
func resolveBuilder(cfg *config.Config) (chains.Builder, error) {
	chain := evm.NewChain(evm.WithArtifactsDir(cfg.Paths.Artifacts))
	if cfg.Builder != "" {
		return chain.Builder(cfg.Builder)
	}
	return chain.DetectBuilder(cfg.Paths.Root)
}

// confirm asks a yes/no question; anything but y or yes is a no
func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N]: ", prompt)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("reading answer: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
