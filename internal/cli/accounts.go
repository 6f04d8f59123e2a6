package cli

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/spf13/cobra"

	"github.com/pendergraft/contradeploy/internal/config"
	"github.com/pendergraft/contradeploy/internal/signer"
)

func createAccountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Print the list of accounts",
		Long: `Print the addresses of the network's accounts, one per line.

These are the addresses of the configured private keys or, when the
network has none, the node's unlocked accounts.

EXAMPLES:
  contradeploy accounts
  contradeploy accounts --network mumbai
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccounts(cmd)
		},
	}

	return cmd
}

func runAccounts(cmd *cobra.Command) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	netName, network, err := cfg.Network(networkName)
	if err != nil {
		return err
	}

	var caller signer.RPCCaller
	if len(network.Accounts) == 0 {
		if network.URL == "" || network.URL == config.UndefinedParam {
			return fmt.Errorf("network %s has no RPC URL configured", netName)
		}
		client, err := rpc.DialContext(ctx, network.URL)
		if err != nil {
			return fmt.Errorf("connecting to %s: %w", netName, err)
		}
		defer client.Close()
		caller = client
	}

	accounts, err := signer.Accounts(ctx, caller, network)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, account := range accounts {
		fmt.Fprintln(out, account.Hex())
	}
	return nil
}
