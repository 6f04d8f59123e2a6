//go:build e2e

package e2e

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pendergraft/contradeploy/internal/chains/evm"
	"github.com/pendergraft/contradeploy/internal/config"
	"github.com/pendergraft/contradeploy/internal/deploy"
	deploymentsDomain "github.com/pendergraft/contradeploy/internal/deployments/domain"
	"github.com/pendergraft/contradeploy/internal/server"
	"github.com/pendergraft/contradeploy/internal/signer"
	"github.com/pendergraft/contradeploy/internal/storage"
	"github.com/pendergraft/contradeploy/pkg/client"
)

const (
	// init code that returns the one-byte runtime 0x00
	contractInit    = "0x6001600c60003960016000f300"
	contractRuntime = "0x00"
)

// TestContext holds shared test infrastructure
type TestContext struct {
	PostgresContainer *postgres.PostgresContainer
	ConnString        string
	TestServer        *httptest.Server
	Ledger            deploymentsDomain.Service
	Store             storage.Store
}

// setupPostgresE starts a Postgres container and returns the connection string
func setupPostgresE(ctx context.Context) (*postgres.PostgresContainer, string, error) {
	postgresContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("contradeploy"),
		postgres.WithUsername("contradeploy"),
		postgres.WithPassword("contradeploy"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	connString, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = postgresContainer.Terminate(ctx)
		return nil, "", fmt.Errorf("failed to get postgres connection string: %w", err)
	}

	return postgresContainer, connString, nil
}

// startServerE starts the ledger server in-process over a Postgres store
func startServerE(connString string) (*httptest.Server, deploymentsDomain.Service, storage.Store, error) {
	cfg := config.StorageConfig{
		Type:     "postgres",
		Postgres: config.PostgresConfig{URL: connString},
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	store, err := storage.New(cfg, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create store: %w", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		return nil, nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	ledger := deploymentsDomain.NewService(store)
	srv := server.New(config.ServerConfig{
		RateLimitRPM:   6000,
		RateLimitBurst: 100,
	}, ledger, logger)

	return httptest.NewServer(srv.Handler()), ledger, store, nil
}

// newClient creates a new API client for the test server
func newClient() *client.Client {
	return client.New(testCtx.TestServer.URL)
}

// chain is a simulated chain with one funded signer
type chain struct {
	client simulated.Client
	sender *signer.LocalSigner
}

// startChain starts a simulated chain that mines a block every 50ms until
// the test ends
func startChain(t *testing.T) *chain {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)

	funds := new(big.Int).Mul(big.NewInt(params.Ether), big.NewInt(100))
	backend := simulated.NewBackend(types.GenesisAlloc{addr: {Balance: funds}})
	c := backend.Client()

	chainID, err := c.ChainID(context.Background())
	require.NoError(t, err)

	sender, err := signer.NewLocalSigner(hex.EncodeToString(crypto.FromECDSA(key)), chainID, c)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				backend.Commit()
			}
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = backend.Close()
	})

	return &chain{client: c, sender: sender}
}

// writeHardhatProject lays out a compiled Hardhat project holding one
// contract whose runtime code is contractRuntime
func writeHardhatProject(t *testing.T, name string) string {
	t.Helper()
	dir := t.TempDir()
	contractDir := filepath.Join(dir, "artifacts", "contracts", name+".sol")
	buildInfoDir := filepath.Join(dir, "artifacts", "build-info")
	require.NoError(t, os.MkdirAll(contractDir, 0755))
	require.NoError(t, os.MkdirAll(buildInfoDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hardhat.config.js"), []byte("module.exports = {}"), 0644))

	writeJSON(t, filepath.Join(contractDir, name+".json"), map[string]any{
		"_format":                "hh-sol-artifact-1",
		"contractName":           name,
		"sourceName":             "contracts/" + name + ".sol",
		"abi":                    []any{},
		"bytecode":               contractInit,
		"deployedBytecode":       contractRuntime,
		"linkReferences":         map[string]any{},
		"deployedLinkReferences": map[string]any{},
	})
	writeJSON(t, filepath.Join(contractDir, name+".dbg.json"), map[string]any{
		"_format":   "hh-sol-dbg-1",
		"buildInfo": "../../build-info/e2e.json",
	})
	writeJSON(t, filepath.Join(buildInfoDir, "e2e.json"), map[string]any{
		"id":              "e2e",
		"_format":         "hh-sol-build-info-1",
		"solcVersion":     "0.8.10",
		"solcLongVersion": "0.8.10+commit.fc410830",
		"input": map[string]any{
			"language": "Solidity",
			"sources":  map[string]any{"contracts/" + name + ".sol": map[string]any{"content": "contract " + name + " {}"}},
			"settings": map[string]any{"optimizer": map[string]any{"enabled": true, "runs": 200}},
		},
		"output": map[string]any{
			"contracts": map[string]any{"contracts/" + name + ".sol": map[string]any{name: map[string]any{}}},
		},
	})

	return dir
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))
}

// deployAndRecord deploys the project's contract to the chain and records
// it in the shared ledger under the given network name
func deployAndRecord(t *testing.T, c *chain, root, name, network string) *deploy.Result {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	factories := &deploy.ArtifactFactories{
		Builder: evm.NewHardhatBuilder(""),
		Root:    root,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	result, err := deploy.New(c.client, c.sender, factories, deploy.Options{Root: root}).Deploy(ctx, name)
	require.NoError(t, err)

	chainID, err := c.client.ChainID(ctx)
	require.NoError(t, err)

	_, err = testCtx.Ledger.Record(ctx, deploymentsDomain.RecordRequest{
		Contract:        name,
		Network:         network,
		ChainID:         chainID.Int64(),
		Address:         result.Address.Hex(),
		TxHash:          result.TxHash.Hex(),
		DeployerAddress: result.Deployer.Hex(),
		BlockNumber:     result.BlockNumber,
		GasUsed:         result.Gas.GasUsed,
		ExportPath:      result.Paths.Stable,
		TimestampedPath: result.Paths.Timestamped,
	})
	require.NoError(t, err)

	return result
}

// assertHTTPError asserts that an error is an APIError with the expected code
func assertHTTPError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	require.Error(t, err, "Expected an error")
	apiErr, ok := err.(*client.APIError)
	require.True(t, ok, "Error should be an APIError")
	require.Equal(t, expectedCode, apiErr.Code, "Error code mismatch")
}
