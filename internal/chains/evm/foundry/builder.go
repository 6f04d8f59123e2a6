// Package foundry provides the Foundry builder for EVM contracts.
package foundry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pendergraft/contradeploy/internal/chains"
	"github.com/pendergraft/contradeploy/internal/chains/evm/buildinfo"
)

// Builder implements chains.Builder for Foundry projects
type Builder struct {
	outDir string
}

// New creates a new Foundry builder
func New() *Builder {
	return &Builder{outDir: "out"}
}

// Name returns the builder identifier
func (b *Builder) Name() string {
	return "foundry"
}

// DisplayName returns a human-readable name
func (b *Builder) DisplayName() string {
	return "Foundry"
}

// Chain returns the chain this builder targets
func (b *Builder) Chain() string {
	return "evm"
}

// ConfigFile returns the config file name
func (b *Builder) ConfigFile() string {
	return "foundry.toml"
}

// CompileCommand returns the command that writes artifacts and build-info
func (b *Builder) CompileCommand() []string {
	return []string{"forge", "build", "--build-info"}
}

// Detect checks if a directory is a Foundry project
func (b *Builder) Detect(dir string) (bool, error) {
	configPath := filepath.Join(dir, b.ConfigFile())
	_, err := os.Stat(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ArtifactPath returns out/{Name}.sol/{Name}.json
func (b *Builder) ArtifactPath(dir, contractName string) string {
	return filepath.Join(dir, b.outDir, contractName+".sol", contractName+".json")
}

// Parse parses a Foundry artifact file
func (b *Builder) Parse(artifactPath string) (*chains.Artifact, error) {
	data, err := os.ReadFile(artifactPath)
	if err != nil {
		return nil, fmt.Errorf("reading artifact: %w", err)
	}

	var raw FoundryArtifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing artifact JSON: %w", err)
	}

	// Interfaces and abstract contracts have no bytecode
	if raw.Bytecode.Object == "" || raw.Bytecode.Object == "0x" {
		return nil, fmt.Errorf("%s: %w", filepath.Base(artifactPath), chains.ErrNoBytecode)
	}

	var metadata FoundryMetadata
	if raw.RawMetadata != "" {
		_ = json.Unmarshal([]byte(raw.RawMetadata), &metadata) // Non-fatal, continue without metadata
	}

	contractName := strings.TrimSuffix(filepath.Base(artifactPath), ".json")

	return &chains.Artifact{
		Name:  contractName,
		Chain: "evm",
		EVM: &chains.EVMArtifact{
			SourcePath:       getFirstKey(metadata.Settings.CompilationTarget),
			ABI:              raw.ABI,
			Bytecode:         raw.Bytecode.Object,
			DeployedBytecode: raw.DeployedBytecode.Object,
			LinkReferences:   raw.Bytecode.LinkReferences,
			Compiler: chains.EVMCompiler{
				Version:    metadata.Compiler.Version,
				EVMVersion: metadata.Settings.EVMVersion,
				ViaIR:      metadata.Settings.ViaIR,
				Optimizer: chains.OptimizerConfig{
					Enabled: metadata.Settings.Optimizer.Enabled,
					Runs:    metadata.Settings.Optimizer.Runs,
				},
			},
		},
	}, nil
}

// standardJSONKeysToStrip are top-level keys Foundry adds that the Solidity compiler rejects.
var standardJSONKeysToStrip = []string{"allowPaths", "basePath", "includePaths", "version"}

// GetVerificationInput extracts Standard JSON Input and full solc version from build-info.
// When sourcePath is non-empty, only a build-info whose output contains
// contracts[sourcePath][contractName] is accepted.
func (b *Builder) GetVerificationInput(dir, contractName, sourcePath string) (*chains.VerificationInput, error) {
	bi, err := buildinfo.Find(filepath.Join(dir, b.outDir, "build-info"), sourcePath, contractName)
	if err != nil {
		return nil, err
	}

	stdJSON, err := bi.StandardJSON(standardJSONKeysToStrip...)
	if err != nil {
		return nil, fmt.Errorf("reading standard JSON input: %w", err)
	}

	return &chains.VerificationInput{
		StandardJSON:    stdJSON,
		SolcLongVersion: bi.SolcLongVersion,
	}, nil
}

// FoundryArtifact represents the structure of a Foundry artifact JSON file
type FoundryArtifact struct {
	ABI              json.RawMessage `json:"abi"`
	Bytecode         BytecodeObject  `json:"bytecode"`
	DeployedBytecode BytecodeObject  `json:"deployedBytecode"`
	RawMetadata      string          `json:"rawMetadata"`
}

// BytecodeObject represents bytecode in a Foundry artifact
type BytecodeObject struct {
	Object         string                             `json:"object"`
	SourceMap      string                             `json:"sourceMap"`
	LinkReferences map[string]map[string][]chains.Link `json:"linkReferences"`
}

// FoundryMetadata represents the parsed rawMetadata field
type FoundryMetadata struct {
	Compiler CompilerMeta `json:"compiler"`
	Language string       `json:"language"`
	Settings SettingsMeta `json:"settings"`
}

// CompilerMeta contains compiler information
type CompilerMeta struct {
	Version string `json:"version"`
}

// SettingsMeta contains compiler settings
type SettingsMeta struct {
	CompilationTarget map[string]string `json:"compilationTarget"`
	EVMVersion        string            `json:"evmVersion"`
	Optimizer         OptimizerMeta     `json:"optimizer"`
	ViaIR             bool              `json:"viaIR"`
}

// OptimizerMeta contains optimizer settings
type OptimizerMeta struct {
	Enabled bool `json:"enabled"`
	Runs    int  `json:"runs"`
}

// getFirstKey returns the first key from a map
func getFirstKey(m map[string]string) string {
	for k := range m {
		return k
	}
	return ""
}
