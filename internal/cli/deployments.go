package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	deploymentsDomain "github.com/pendergraft/contradeploy/internal/deployments/domain"
	"github.com/pendergraft/contradeploy/pkg/client"
)

// deploymentSource reads the ledger. *client.Client reads it from a
// running server; localSource opens the configured store.
type deploymentSource interface {
	ListDeployments(ctx context.Context, opts client.ListOptions) (*client.ListDeploymentsResponse, error)
	GetDeployment(ctx context.Context, chainID int64, address string) (*client.Deployment, error)
}

func createDeploymentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deployments",
		Short: "Deployment ledger commands",
	}

	cmd.AddCommand(createDeploymentsListCmd())
	cmd.AddCommand(createDeploymentsInfoCmd())

	return cmd
}

func createDeploymentsListCmd() *cobra.Command {
	var serverURL string
	var chainID int64
	var contract string
	var verified *bool
	var cursor string
	var jsonOutput bool
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List deployments",
		Long: `List recorded deployments, newest first.

Reads the local ledger, or a ledger server when --server is given.
--network filters by network name.

EXAMPLES:
  # List all deployments
  contradeploy deployments list

  # Filter by network
  contradeploy deployments list --network mumbai

  # Show only verified deployments
  contradeploy deployments list --verified

  # Read from a ledger server
  contradeploy deployments list --server http://127.0.0.1:8090
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := client.ListOptions{
				Network:  networkName,
				ChainID:  chainID,
				Contract: contract,
				Verified: verified,
				Limit:    limit,
				Cursor:   cursor,
			}
			return runDeploymentsList(cmd, serverURL, opts, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "", "ledger server URL (default: local ledger)")
	cmd.Flags().Int64Var(&chainID, "chain-id", 0, "filter by chain ID")
	cmd.Flags().StringVar(&contract, "contract", "", "filter by contract name")
	cmd.Flags().StringVar(&cursor, "cursor", "", "continue from a previous listing")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of items to show")

	// Handle --verified flag
	var verifiedFlag bool
	cmd.Flags().BoolVar(&verifiedFlag, "verified", false, "show only verified deployments (--verified=false for unverified)")
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("verified") {
			verified = &verifiedFlag
		}
		return nil
	}

	return cmd
}

func createDeploymentsInfoCmd() *cobra.Command {
	var serverURL string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "info <chain-id> <address>",
		Short: "Show deployment details",
		Long: `Display detailed information about a recorded deployment.

EXAMPLES:
  contradeploy deployments info 80001 0x5FbDB2315678afecb367f032d93F642f64180aa3
`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			chainID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid chain ID %q", args[0])
			}
			return runDeploymentsInfo(cmd, serverURL, chainID, args[1], jsonOutput)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "", "ledger server URL (default: local ledger)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

// openSource returns the ledger server client when serverURL is set,
// otherwise the local ledger
func openSource(cmd *cobra.Command, serverURL string) (deploymentSource, func(), error) {
	if serverURL != "" {
		return client.New(serverURL), func() {}, nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := setupLogger(cfg, cmd.ErrOrStderr())

	ledger, closeLedger, err := openLedger(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if ledger == nil {
		return nil, nil, fmt.Errorf("the deployment ledger is disabled (storage type none); use --server")
	}
	return localSource{svc: ledger}, closeLedger, nil
}

func runDeploymentsList(cmd *cobra.Command, serverURL string, opts client.ListOptions, jsonOutput bool) error {
	source, closeSource, err := openSource(cmd, serverURL)
	if err != nil {
		return err
	}
	defer closeSource()

	result, err := source.ListDeployments(cmd.Context(), opts)
	if err != nil {
		return fmt.Errorf("failed to list deployments: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printDeploymentList(out, result)
	return nil
}

func printDeploymentList(out io.Writer, result *client.ListDeploymentsResponse) {
	if len(result.Data) == 0 {
		fmt.Fprintln(out, "No deployments found")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NETWORK\tCHAIN\tADDRESS\tCONTRACT\tVERIFIED\tDEPLOYED")
	for _, d := range result.Data {
		verifiedStr := "no"
		if d.Verified {
			verifiedStr = "yes"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n",
			d.Network, d.ChainID, truncateAddress(d.Address), d.ContractName, verifiedStr,
			d.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	w.Flush()

	if result.Pagination.HasMore {
		fmt.Fprintf(out, "\n(showing %d deployments, more with --cursor %s)\n", len(result.Data), result.Pagination.NextCursor)
	}
}

func runDeploymentsInfo(cmd *cobra.Command, serverURL string, chainID int64, address string, jsonOutput bool) error {
	source, closeSource, err := openSource(cmd, serverURL)
	if err != nil {
		return err
	}
	defer closeSource()

	deployment, err := source.GetDeployment(cmd.Context(), chainID, address)
	if err != nil {
		var apiErr *client.APIError
		if errors.Is(err, deploymentsDomain.ErrNotFound) || (errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound) {
			return fmt.Errorf("no deployment recorded at %s on chain %d", address, chainID)
		}
		return fmt.Errorf("failed to get deployment: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(deployment)
	}

	printDeployment(out, deployment)
	return nil
}

func printDeployment(out io.Writer, d *client.Deployment) {
	fmt.Fprintf(out, "Deployment: %s\n", d.Address)
	fmt.Fprintf(out, "Contract:   %s\n", d.ContractName)
	fmt.Fprintf(out, "Network:    %s (chain %d)\n", d.Network, d.ChainID)
	if d.TxHash != "" {
		fmt.Fprintf(out, "Tx Hash:    %s\n", d.TxHash)
	}
	if d.DeployerAddress != "" {
		fmt.Fprintf(out, "Deployer:   %s\n", d.DeployerAddress)
	}
	if d.BlockNumber > 0 {
		fmt.Fprintf(out, "Block:      %d\n", d.BlockNumber)
	}
	if d.GasUsed > 0 {
		fmt.Fprintf(out, "Gas used:   %d\n", d.GasUsed)
	}
	if d.ExportPath != "" {
		fmt.Fprintf(out, "Export:     %s\n", d.ExportPath)
	}
	if d.TimestampedPath != "" {
		fmt.Fprintf(out, "Backup:     %s\n", d.TimestampedPath)
	}
	fmt.Fprintf(out, "Verified:   %v\n", d.Verified)
	if len(d.VerifiedOn) > 0 {
		fmt.Fprintf(out, "Explorers:  %v\n", d.VerifiedOn)
	}
	fmt.Fprintf(out, "Recorded:   %s\n", d.CreatedAt.Local().Format("2006-01-02 15:04:05 MST"))
}

// localSource reads the ledger through the deployment service
type localSource struct {
	svc deploymentsDomain.Service
}

func (s localSource) ListDeployments(ctx context.Context, opts client.ListOptions) (*client.ListDeploymentsResponse, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	result, err := s.svc.List(ctx, deploymentsDomain.ListFilter{
		Network:  opts.Network,
		ChainID:  opts.ChainID,
		Contract: opts.Contract,
		Verified: opts.Verified,
	}, deploymentsDomain.PaginationParams{
		Limit:  limit,
		Cursor: opts.Cursor,
	})
	if err != nil {
		return nil, err
	}

	resp := &client.ListDeploymentsResponse{
		Data: make([]client.DeploymentSummary, len(result.Deployments)),
		Pagination: client.Pagination{
			Limit:      limit,
			HasMore:    result.HasMore,
			NextCursor: result.NextCursor,
		},
	}
	for i, d := range result.Deployments {
		resp.Data[i] = client.DeploymentSummary{
			ChainID:      d.ChainID,
			Network:      d.Network,
			Address:      d.Address,
			ContractName: d.ContractName,
			Verified:     d.Verified,
			TxHash:       d.TxHash,
			CreatedAt:    d.CreatedAt,
		}
	}
	return resp, nil
}

func (s localSource) GetDeployment(ctx context.Context, chainID int64, address string) (*client.Deployment, error) {
	d, err := s.svc.Get(ctx, chainID, address)
	if err != nil {
		return nil, err
	}

	verifiedOn := d.VerifiedOn
	if verifiedOn == nil {
		verifiedOn = []string{}
	}
	return &client.Deployment{
		ID:              d.ID,
		ContractName:    d.ContractName,
		Network:         d.Network,
		ChainID:         d.ChainID,
		Address:         d.Address,
		DeployerAddress: d.DeployerAddress,
		TxHash:          d.TxHash,
		BlockNumber:     d.BlockNumber,
		GasUsed:         d.GasUsed,
		ExportPath:      d.ExportPath,
		TimestampedPath: d.TimestampedPath,
		Verified:        d.Verified,
		VerifiedAt:      d.VerifiedAt,
		VerifiedOn:      verifiedOn,
		CreatedAt:       d.CreatedAt,
	}, nil
}
