// Package hardhat provides the Hardhat builder for EVM contracts.
package hardhat

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pendergraft/contradeploy/internal/chains"
	"github.com/pendergraft/contradeploy/internal/chains/evm/buildinfo"
)

// ConfigFiles are the Hardhat config file names, in detection order
var ConfigFiles = []string{"hardhat.config.ts", "hardhat.config.js", "hardhat.config.cjs"}

// Builder implements chains.Builder for Hardhat projects
type Builder struct {
	artifactsDir string
}

// New creates a Hardhat builder reading from the default artifacts directory
func New() *Builder {
	return NewWithArtifactsDir("")
}

// NewWithArtifactsDir creates a Hardhat builder for a project whose
// paths.artifacts setting is not the default
func NewWithArtifactsDir(dir string) *Builder {
	if dir == "" {
		dir = "artifacts"
	}
	return &Builder{artifactsDir: dir}
}

// Name returns the builder identifier
func (b *Builder) Name() string {
	return "hardhat"
}

// DisplayName returns a human-readable name
func (b *Builder) DisplayName() string {
	return "Hardhat"
}

// Chain returns the chain this builder targets
func (b *Builder) Chain() string {
	return "evm"
}

// ConfigFile returns the primary config file name
func (b *Builder) ConfigFile() string {
	return ConfigFiles[0]
}

// CompileCommand returns the command that writes artifacts and build-info
func (b *Builder) CompileCommand() []string {
	return []string{"npx", "hardhat", "compile"}
}

// Detect checks if a directory is a Hardhat project
func (b *Builder) Detect(dir string) (bool, error) {
	for _, name := range ConfigFiles {
		_, err := os.Stat(filepath.Join(dir, name))
		if err == nil {
			return true, nil
		}
		if !os.IsNotExist(err) {
			return false, err
		}
	}
	return false, nil
}

// ArtifactPath returns artifacts/contracts/{Name}.sol/{Name}.json. Sources
// in subdirectories of contracts/ are found by searching the artifacts tree;
// the flat path is returned when nothing is found.
func (b *Builder) ArtifactPath(dir, contractName string) string {
	root := filepath.Join(dir, b.artifactsDir, "contracts")
	flat := filepath.Join(root, contractName+".sol", contractName+".json")
	if _, err := os.Stat(flat); err == nil {
		return flat
	}

	found := ""
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && d.Name() == contractName+".json" && filepath.Base(filepath.Dir(path)) == contractName+".sol" {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if found != "" {
		return found
	}
	return flat
}

// Parse parses a Hardhat artifact file (hh-sol-artifact-1)
func (b *Builder) Parse(artifactPath string) (*chains.Artifact, error) {
	data, err := os.ReadFile(artifactPath)
	if err != nil {
		return nil, fmt.Errorf("reading artifact: %w", err)
	}

	var raw Artifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing artifact JSON: %w", err)
	}
	if raw.ContractName == "" {
		return nil, fmt.Errorf("%s is not a Hardhat artifact", filepath.Base(artifactPath))
	}

	// Interfaces and abstract contracts have no bytecode
	if raw.Bytecode == "" || raw.Bytecode == "0x" {
		return nil, fmt.Errorf("%s: %w", raw.ContractName, chains.ErrNoBytecode)
	}

	artifact := &chains.Artifact{
		Name:  raw.ContractName,
		Chain: "evm",
		EVM: &chains.EVMArtifact{
			SourcePath:       raw.SourceName,
			ABI:              raw.ABI,
			Bytecode:         raw.Bytecode,
			DeployedBytecode: raw.DeployedBytecode,
			LinkReferences:   raw.LinkReferences,
		},
	}

	// Compiler details live in the build-info the debug file points to
	if bi, err := b.debugBuildInfo(artifactPath); err == nil {
		artifact.EVM.Compiler.Version = bi.SolcLongVersion
		if settings, err := bi.Settings(); err == nil {
			artifact.EVM.Compiler.EVMVersion = settings.EVMVersion
			artifact.EVM.Compiler.ViaIR = settings.ViaIR
			artifact.EVM.Compiler.Optimizer = chains.OptimizerConfig{
				Enabled: settings.Optimizer.Enabled,
				Runs:    settings.Optimizer.Runs,
			}
		}
	}

	return artifact, nil
}

// GetVerificationInput extracts Standard JSON Input and full solc version from build-info.
// The artifact's debug file is consulted first; otherwise the build-info
// directory is searched.
func (b *Builder) GetVerificationInput(dir, contractName, sourcePath string) (*chains.VerificationInput, error) {
	bi, err := b.debugBuildInfo(b.ArtifactPath(dir, contractName))
	if err != nil {
		bi, err = buildinfo.Find(filepath.Join(dir, b.artifactsDir, "build-info"), sourcePath, contractName)
		if err != nil {
			return nil, err
		}
	}

	stdJSON, err := bi.StandardJSON()
	if err != nil {
		return nil, fmt.Errorf("reading standard JSON input: %w", err)
	}

	return &chains.VerificationInput{
		StandardJSON:    stdJSON,
		SolcLongVersion: bi.SolcLongVersion,
	}, nil
}

// debugBuildInfo follows {Name}.dbg.json to the build-info it names
func (b *Builder) debugBuildInfo(artifactPath string) (*buildinfo.File, error) {
	dbgPath := artifactPath[:len(artifactPath)-len(filepath.Ext(artifactPath))] + ".dbg.json"
	data, err := os.ReadFile(dbgPath)
	if err != nil {
		return nil, err
	}

	var dbg DebugFile
	if err := json.Unmarshal(data, &dbg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(dbgPath), err)
	}
	if dbg.BuildInfo == "" {
		return nil, errors.New("debug file names no build-info")
	}

	return buildinfo.Read(filepath.Join(filepath.Dir(dbgPath), filepath.FromSlash(dbg.BuildInfo)))
}

// Artifact represents the structure of a Hardhat artifact JSON file
type Artifact struct {
	Format                 string                              `json:"_format"`
	ContractName           string                              `json:"contractName"`
	SourceName             string                              `json:"sourceName"`
	ABI                    json.RawMessage                     `json:"abi"`
	Bytecode               string                              `json:"bytecode"`
	DeployedBytecode       string                              `json:"deployedBytecode"`
	LinkReferences         map[string]map[string][]chains.Link `json:"linkReferences"`
	DeployedLinkReferences map[string]map[string][]chains.Link `json:"deployedLinkReferences"`
}

// DebugFile is the {Name}.dbg.json file written next to each artifact
type DebugFile struct {
	Format    string `json:"_format"`
	BuildInfo string `json:"buildInfo"` // relative, e.g. "../../build-info/<id>.json"
}
