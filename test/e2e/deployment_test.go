//go:build e2e

package e2e

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/contradeploy/pkg/client"
)

// TestDeployment_RecordAndQuery deploys to a simulated chain, records the
// deployment in Postgres and reads it back over the API
func TestDeployment_RecordAndQuery(t *testing.T) {
	c := startChain(t)
	root := writeHardhatProject(t, "ChainBattles")
	result := deployAndRecord(t, c, root, "ChainBattles", "e2e-record")

	t.Run("export file written", func(t *testing.T) {
		data, err := os.ReadFile(result.Paths.Stable)
		require.NoError(t, err)
		assert.Equal(t, "{\n  \"name\": \"ChainBattles\",\n  \"addr\": \""+result.Address.Hex()+"\"\n}", string(data))
	})

	api := newClient()

	t.Run("get deployment by address", func(t *testing.T) {
		chainID, err := c.client.ChainID(context.Background())
		require.NoError(t, err)

		deployment, err := api.GetDeployment(context.Background(), chainID.Int64(), result.Address.Hex())
		require.NoError(t, err)
		assert.Equal(t, "ChainBattles", deployment.ContractName)
		assert.Equal(t, "e2e-record", deployment.Network)
		assert.Equal(t, result.TxHash.Hex(), deployment.TxHash)
		assert.Equal(t, result.Deployer.Hex(), deployment.DeployerAddress)
		assert.Equal(t, result.Gas.GasUsed, deployment.GasUsed)
		assert.Equal(t, result.Paths.Stable, deployment.ExportPath)
		assert.False(t, deployment.Verified)
		assert.NotNil(t, deployment.VerifiedOn, "VerifiedOn should be present (may be empty for unverified deployments)")
	})

	t.Run("address lookup is case insensitive", func(t *testing.T) {
		chainID, err := c.client.ChainID(context.Background())
		require.NoError(t, err)

		lower := strings.ToLower(result.Address.Hex())
		deployment, err := api.GetDeployment(context.Background(), chainID.Int64(), lower)
		require.NoError(t, err)
		assert.Equal(t, result.Address.Hex(), deployment.Address)
	})

	t.Run("unknown deployment", func(t *testing.T) {
		_, err := api.GetDeployment(context.Background(), 1337, "0x000000000000000000000000000000000000dEaD")
		assertHTTPError(t, err, "NOT_FOUND")
	})
}

// TestDeployment_ListDeployments tests listing and filtering deployments
func TestDeployment_ListDeployments(t *testing.T) {
	const network = "e2e-list"

	c := startChain(t)
	root := writeHardhatProject(t, "ChainBattles")
	first := deployAndRecord(t, c, root, "ChainBattles", network)
	second := deployAndRecord(t, c, root, "ChainBattles", network)
	require.NotEqual(t, first.Address, second.Address)

	api := newClient()
	ctx := context.Background()

	t.Run("list by network, newest first", func(t *testing.T) {
		resp, err := api.ListDeployments(ctx, client.ListOptions{Network: network})
		require.NoError(t, err)
		require.Len(t, resp.Data, 2)
		assert.Equal(t, second.Address.Hex(), resp.Data[0].Address)
		assert.Equal(t, first.Address.Hex(), resp.Data[1].Address)
		assert.False(t, resp.Pagination.HasMore)
	})

	t.Run("paginate", func(t *testing.T) {
		page, err := api.ListDeployments(ctx, client.ListOptions{Network: network, Limit: 1})
		require.NoError(t, err)
		require.Len(t, page.Data, 1)
		require.True(t, page.Pagination.HasMore)

		next, err := api.ListDeployments(ctx, client.ListOptions{Network: network, Limit: 1, Cursor: page.Pagination.NextCursor})
		require.NoError(t, err)
		require.Len(t, next.Data, 1)
		assert.NotEqual(t, page.Data[0].Address, next.Data[0].Address)
	})

	t.Run("filter by contract", func(t *testing.T) {
		resp, err := api.ListDeployments(ctx, client.ListOptions{Network: network, Contract: "Unknown"})
		require.NoError(t, err)
		assert.Empty(t, resp.Data)
	})
}
