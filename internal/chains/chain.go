// Package chains provides the chain module interfaces and the build-tool
// builders that turn compiled artifacts into deployable contracts.
package chains

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoBytecode is returned when an artifact has no creation code,
// as for interfaces and abstract contracts.
var ErrNoBytecode = errors.New("contract has no bytecode")

// Chain represents a blockchain ecosystem
type Chain interface {
	// Metadata
	Name() string        // "evm"
	DisplayName() string // "Ethereum/EVM"

	// Builder discovery
	DetectBuilder(dir string) (Builder, error)
	Builder(name string) (Builder, error)
	Builders() []Builder

	// Verification
	VerifyDeployment(ctx context.Context, opts VerifyOptions) (*VerifyResult, error)
	GetDeployedBytecode(ctx context.Context, rpc string, address string) ([]byte, error)
}

// Builder reads compiled artifacts from a specific build tool
type Builder interface {
	// Metadata
	Name() string        // "hardhat", "foundry"
	DisplayName() string // "Hardhat", "Foundry"
	Chain() string       // "evm"

	// Detection
	Detect(dir string) (bool, error)
	ConfigFile() string // "hardhat.config.ts", "foundry.toml"

	// CompileCommand is the command that produces artifacts and build-info
	CompileCommand() []string

	// Artifact handling
	ArtifactPath(dir, contractName string) string
	Parse(artifactPath string) (*Artifact, error)
	GetVerificationInput(dir, contractName, sourcePath string) (*VerificationInput, error)
}

// VerifyOptions configures verification
type VerifyOptions struct {
	RPC          string
	Address      string
	ExpectedCode string // hex runtime bytecode from the artifact
	Libraries    map[string]string
}

// VerifyResult contains verification results
type VerifyResult struct {
	Match     bool   // Whether the bytecode matches
	MatchType string // "full", "partial", "none"
	Message   string // Human-readable explanation
}

// VerificationInput is the compiler input needed for source verification
type VerificationInput struct {
	StandardJSON    []byte
	SolcLongVersion string // "0.8.10+commit.fc410830"
}

// Artifact is a compiled contract ready to be deployed
type Artifact struct {
	Name  string `json:"name"`
	Chain string `json:"chain"`

	EVM *EVMArtifact `json:"evm,omitempty"`
}

// EVMArtifact contains EVM-specific contract data
type EVMArtifact struct {
	SourcePath       string          `json:"sourcePath"`
	ABI              json.RawMessage `json:"abi"`
	Bytecode         string          `json:"bytecode"`
	DeployedBytecode string          `json:"deployedBytecode"`
	// LinkReferences is non-empty when the bytecode still has library placeholders
	LinkReferences map[string]map[string][]Link `json:"linkReferences,omitempty"`
	Compiler       EVMCompiler                  `json:"compiler"`
}

// Link is a library placeholder position in the bytecode
type Link struct {
	Start  int `json:"start"`
	Length int `json:"length"`
}

// EVMCompiler contains EVM compiler details, when the artifact records them
type EVMCompiler struct {
	Version    string          `json:"version"` // "0.8.10+commit.fc410830"
	Optimizer  OptimizerConfig `json:"optimizer"`
	EVMVersion string          `json:"evmVersion"`
	ViaIR      bool            `json:"viaIR"`
}

// OptimizerConfig contains optimizer settings
type OptimizerConfig struct {
	Enabled bool `json:"enabled"`
	Runs    int  `json:"runs"`
}

// Registry holds all registered chain modules
type Registry struct {
	chains map[string]Chain
}

// NewRegistry creates a new chain registry
func NewRegistry() *Registry {
	return &Registry{
		chains: make(map[string]Chain),
	}
}

// Register adds a chain module to the registry
func (r *Registry) Register(c Chain) {
	r.chains[c.Name()] = c
}

// Get retrieves a chain module by name
func (r *Registry) Get(name string) (Chain, bool) {
	c, ok := r.chains[name]
	return c, ok
}

// DetectChainAndBuilder detects the chain and builder for a project directory
func (r *Registry) DetectChainAndBuilder(dir string) (Chain, Builder, error) {
	for _, chain := range r.chains {
		builder, err := chain.DetectBuilder(dir)
		if err == nil && builder != nil {
			return chain, builder, nil
		}
	}
	return nil, nil, fmt.Errorf("no supported builder detected in %s", dir)
}
