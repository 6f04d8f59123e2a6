package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pendergraft/contradeploy/internal/config"
)

func createConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}

	cmd.AddCommand(createConfigInitCmd())
	cmd.AddCommand(createConfigShowCmd())

	return cmd
}

func createConfigInitCmd() *cobra.Command {
	var contract string
	var defaultNetwork string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create config file",
		Long: `Create a contradeploy.toml configuration file in the project root.

This file holds project settings that are not secrets: the contract to
deploy, the default network, compiler settings and extra networks. RPC
URLs and keys stay in the environment or a .env file.

EXAMPLES:
  # Create config with defaults
  contradeploy config init

  # Default to Mumbai instead of the local node
  contradeploy config init --default-network mumbai

  # Overwrite existing config
  contradeploy config init --force
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(cmd.OutOrStdout(), contract, defaultNetwork, force)
		},
	}

	cmd.Flags().StringVar(&contract, "contract", config.DefaultContractName, "contract to deploy")
	cmd.Flags().StringVar(&defaultNetwork, "default-network", config.DefaultNetworkName, "network used when --network is not given")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config")

	return cmd
}

func createConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current config",
		Long: `Display the effective configuration.

Shows which environment variables are set and which project file was
loaded, followed by the merged configuration. Private keys and API keys
are masked.

EXAMPLES:
  contradeploy config show
  contradeploy config show --root ./contracts-repo
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd.OutOrStdout())
		},
	}

	return cmd
}

func projectRoot() string {
	if rootDir != "" {
		return rootDir
	}
	return "."
}

func runConfigInit(out io.Writer, contract, defaultNetwork string, force bool) error {
	root := projectRoot()
	configPath := filepath.Join(root, config.ProjectConfigFiles[0])

	// Check if any config file already exists
	if existing := config.FindProjectConfig(root); existing != "" && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", existing)
	}

	content := fmt.Sprintf(`# contradeploy project configuration
# Secrets (RPC URLs, private keys, explorer API keys) belong in the
# environment or a .env file, not here.

contract = %q
default_network = %q

# "hardhat" or "foundry"; detected from the project when empty
# builder = "hardhat"

# Overrides the builder's compile command for deploy --compile
# compile_command = "npx hardhat compile"

# artifacts_dir = "artifacts"

[solidity]
version = "0.8.10"
runs = 200

[gas_reporter]
currency = "USD"

# Extra or overridden networks
# [networks.sepolia]
# url = "https://rpc.sepolia.org"
# chain_id = 11155111
# explorer_key = "sepolia"
# explorer_url = "https://api-sepolia.etherscan.io/api"
`, contract, defaultNetwork)

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(out, "Created %s\n", configPath)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Configuration:")
	fmt.Fprintf(out, "  Contract:        %s\n", contract)
	fmt.Fprintf(out, "  Default network: %s\n", defaultNetwork)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintf(out, "  1. Set %s and %s in .env\n", config.EnvMumbaiURL, config.EnvAccountPrivateKey)
	fmt.Fprintln(out, "  2. Run 'contradeploy accounts' to check the deployer")
	fmt.Fprintln(out, "  3. Run 'contradeploy deploy' to deploy")

	return nil
}

// shownEnv are the variables listed by config show
var shownEnv = []struct {
	name   string
	secret bool
}{
	{config.EnvAccountPrivateKey, true},
	{config.EnvMumbaiURL, false},
	{config.EnvMumbaiEtherscanKey, true},
	{config.EnvReportGas, false},
}

func runConfigShow(out io.Writer) error {
	cfg, path, err := config.LoadWithProject(cfgFile, rootDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fmt.Fprintln(out, "# Environment")
	for _, env := range shownEnv {
		value, ok := os.LookupEnv(env.name)
		switch {
		case !ok:
			value = "(not set)"
		case env.secret:
			value = config.MaskSecret(value)
		}
		fmt.Fprintf(out, "#   %s=%s\n", env.name, value)
	}

	if path == "" {
		fmt.Fprintln(out, "# Project config: (not found)")
	} else {
		fmt.Fprintf(out, "# Project config: %s\n", path)
	}
	fmt.Fprintln(out)

	data, err := cfg.YAML()
	if err != nil {
		return fmt.Errorf("rendering config: %w", err)
	}
	_, err = out.Write(data)
	return err
}
