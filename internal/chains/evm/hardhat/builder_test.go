package hardhat

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/contradeploy/internal/chains"
)

// writeProject lays out a compiled Hardhat project with one contract
func writeProject(t *testing.T, name, bytecode string) string {
	t.Helper()
	dir := t.TempDir()
	contractDir := filepath.Join(dir, "artifacts", "contracts", name+".sol")
	buildInfoDir := filepath.Join(dir, "artifacts", "build-info")
	require.NoError(t, os.MkdirAll(contractDir, 0755))
	require.NoError(t, os.MkdirAll(buildInfoDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hardhat.config.ts"), []byte("export default {}"), 0644))

	artifact := map[string]any{
		"_format":                "hh-sol-artifact-1",
		"contractName":           name,
		"sourceName":             "contracts/" + name + ".sol",
		"abi":                    []map[string]any{{"type": "function", "name": "train"}},
		"bytecode":               bytecode,
		"deployedBytecode":       "0x6080604052",
		"linkReferences":         map[string]any{},
		"deployedLinkReferences": map[string]any{},
	}
	data, _ := json.Marshal(artifact)
	require.NoError(t, os.WriteFile(filepath.Join(contractDir, name+".json"), data, 0644))

	dbg := map[string]any{"_format": "hh-sol-dbg-1", "buildInfo": "../../build-info/f00d.json"}
	data, _ = json.Marshal(dbg)
	require.NoError(t, os.WriteFile(filepath.Join(contractDir, name+".dbg.json"), data, 0644))

	bi := map[string]any{
		"id":              "f00d",
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
	}
	data, _ = json.Marshal(bi)
	require.NoError(t, os.WriteFile(filepath.Join(buildInfoDir, "f00d.json"), data, 0644))

	return dir
}

func TestBuilder_Metadata(t *testing.T) {
	b := New()

	assert.Equal(t, "hardhat", b.Name())
	assert.Equal(t, "Hardhat", b.DisplayName())
	assert.Equal(t, "evm", b.Chain())
	assert.Equal(t, "hardhat.config.ts", b.ConfigFile())
	assert.Equal(t, []string{"npx", "hardhat", "compile"}, b.CompileCommand())
}

func TestBuilder_Detect(t *testing.T) {
	b := New()

	for _, name := range ConfigFiles {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(""), 0644))

			detected, err := b.Detect(dir)
			require.NoError(t, err)
			assert.True(t, detected)
		})
	}

	t.Run("no config", func(t *testing.T) {
		detected, err := b.Detect(t.TempDir())
		require.NoError(t, err)
		assert.False(t, detected)
	})
}

func TestBuilder_ArtifactPath(t *testing.T) {
	b := New()

	t.Run("flat layout", func(t *testing.T) {
		dir := writeProject(t, "ChainBattles", "0x6080")
		assert.Equal(t,
			filepath.Join(dir, "artifacts", "contracts", "ChainBattles.sol", "ChainBattles.json"),
			b.ArtifactPath(dir, "ChainBattles"))
	})

	t.Run("nested source directory", func(t *testing.T) {
		dir := t.TempDir()
		nested := filepath.Join(dir, "artifacts", "contracts", "game", "ChainBattles.sol")
		require.NoError(t, os.MkdirAll(nested, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(nested, "ChainBattles.json"), []byte("{}"), 0644))

		assert.Equal(t, filepath.Join(nested, "ChainBattles.json"), b.ArtifactPath(dir, "ChainBattles"))
	})

	t.Run("custom artifacts dir", func(t *testing.T) {
		b := NewWithArtifactsDir("build")
		assert.Equal(t,
			filepath.Join("proj", "build", "contracts", "X.sol", "X.json"),
			b.ArtifactPath("proj", "X"))
	})
}

func TestBuilder_Parse(t *testing.T) {
	b := New()

	t.Run("valid artifact", func(t *testing.T) {
		dir := writeProject(t, "ChainBattles", "0x608060405234801561001057600080fd5b50")

		artifact, err := b.Parse(b.ArtifactPath(dir, "ChainBattles"))
		require.NoError(t, err)
		assert.Equal(t, "ChainBattles", artifact.Name)
		assert.Equal(t, "evm", artifact.Chain)
		require.NotNil(t, artifact.EVM)
		assert.Equal(t, "contracts/ChainBattles.sol", artifact.EVM.SourcePath)
		assert.Equal(t, "0x608060405234801561001057600080fd5b50", artifact.EVM.Bytecode)
		assert.JSONEq(t, `[{"type":"function","name":"train"}]`, string(artifact.EVM.ABI))

		// from build-info via the debug file
		assert.Equal(t, "0.8.10+commit.fc410830", artifact.EVM.Compiler.Version)
		assert.True(t, artifact.EVM.Compiler.Optimizer.Enabled)
		assert.Equal(t, 200, artifact.EVM.Compiler.Optimizer.Runs)
	})

	t.Run("no bytecode", func(t *testing.T) {
		dir := writeProject(t, "IBattles", "0x")

		_, err := b.Parse(b.ArtifactPath(dir, "IBattles"))
		assert.ErrorIs(t, err, chains.ErrNoBytecode)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := b.Parse(filepath.Join(t.TempDir(), "Nope.json"))
		assert.Error(t, err)
	})

	t.Run("not a hardhat artifact", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "X.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"abi":[]}`), 0644))

		_, err := b.Parse(path)
		assert.Error(t, err)
	})
}

func TestBuilder_GetVerificationInput(t *testing.T) {
	b := New()
	dir := writeProject(t, "ChainBattles", "0x6080")

	vi, err := b.GetVerificationInput(dir, "ChainBattles", "contracts/ChainBattles.sol")
	require.NoError(t, err)
	assert.Equal(t, "0.8.10+commit.fc410830", vi.SolcLongVersion)

	var input map[string]any
	require.NoError(t, json.Unmarshal(vi.StandardJSON, &input))
	assert.Equal(t, "Solidity", input["language"])
	assert.Contains(t, input, "sources")

	t.Run("falls back to build-info search without debug file", func(t *testing.T) {
		require.NoError(t, os.Remove(filepath.Join(dir, "artifacts", "contracts", "ChainBattles.sol", "ChainBattles.dbg.json")))

		vi, err := b.GetVerificationInput(dir, "ChainBattles", "contracts/ChainBattles.sol")
		require.NoError(t, err)
		assert.Equal(t, "0.8.10+commit.fc410830", vi.SolcLongVersion)
	})
}
