//go:build e2e

package e2e

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/contradeploy/internal/chains"
	"github.com/pendergraft/contradeploy/internal/chains/evm"
	"github.com/pendergraft/contradeploy/internal/verification/domain"
	"github.com/pendergraft/contradeploy/pkg/client"
)

// TestVerify_MarksLedger verifies a deployed contract against its artifact
// and checks the ledger entry is marked verified
func TestVerify_MarksLedger(t *testing.T) {
	const network = "e2e-verify"

	c := startChain(t)
	root := writeHardhatProject(t, "ChainBattles")
	result := deployAndRecord(t, c, root, "ChainBattles", network)

	ctx := context.Background()
	chainID, err := c.client.ChainID(ctx)
	require.NoError(t, err)

	registry := chains.NewRegistry()
	registry.Register(evm.NewChain(evm.WithCodeReader(c.client)))
	svc := domain.NewService(registry, testCtx.Ledger, slog.New(slog.NewTextHandler(io.Discard, nil)))

	verified, err := svc.Verify(ctx, domain.VerifyRequest{
		Chain:    "evm",
		Root:     root,
		Contract: "ChainBattles",
		Network:  network,
		ChainID:  chainID.Int64(),
		Address:  result.Address.Hex(),
	})
	require.NoError(t, err)
	assert.True(t, verified.Verified)
	assert.Equal(t, "full", verified.MatchType)
	assert.True(t, verified.Recorded)

	api := newClient()
	deployment, err := api.GetDeployment(ctx, chainID.Int64(), result.Address.Hex())
	require.NoError(t, err)
	assert.True(t, deployment.Verified)
	assert.NotNil(t, deployment.VerifiedAt)

	isVerified := true
	resp, err := api.ListDeployments(ctx, client.ListOptions{Network: network, Verified: &isVerified})
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, result.Address.Hex(), resp.Data[0].Address)
}

// TestVerify_NoCode verifies an address with no code on chain
func TestVerify_NoCode(t *testing.T) {
	c := startChain(t)
	root := writeHardhatProject(t, "ChainBattles")

	ctx := context.Background()
	chainID, err := c.client.ChainID(ctx)
	require.NoError(t, err)

	registry := chains.NewRegistry()
	registry.Register(evm.NewChain(evm.WithCodeReader(c.client)))
	svc := domain.NewService(registry, testCtx.Ledger, slog.New(slog.NewTextHandler(io.Discard, nil)))

	verified, err := svc.Verify(ctx, domain.VerifyRequest{
		Chain:    "evm",
		Root:     root,
		Contract: "ChainBattles",
		ChainID:  chainID.Int64(),
		Address:  "0x000000000000000000000000000000000000dEaD",
	})
	require.NoError(t, err)
	assert.False(t, verified.Verified)
	assert.False(t, verified.Recorded)
}
