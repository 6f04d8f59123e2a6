// Package deploy deploys a compiled contract, waits for it to be mined and
// exports its address next to the build artifacts.
package deploy

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/pendergraft/contradeploy/internal/chains"
	"github.com/pendergraft/contradeploy/internal/chains/evm"
)

// ErrNoBytecode is returned for artifacts without creation code
var ErrNoBytecode = chains.ErrNoBytecode

// Factory is a deployable contract: its ABI and creation bytecode
type Factory struct {
	Name     string
	ABI      abi.ABI
	Bytecode []byte
	Artifact *chains.Artifact
}

// FactorySource resolves a contract name to a Factory
type FactorySource interface {
	Factory(ctx context.Context, name string) (*Factory, error)
}

// NewFactory builds a Factory from a parsed artifact, linking libraries
func NewFactory(artifact *chains.Artifact, libraries map[string]string) (*Factory, error) {
	if artifact == nil || artifact.EVM == nil {
		return nil, fmt.Errorf("artifact has no EVM section")
	}
	code := strings.TrimPrefix(artifact.EVM.Bytecode, "0x")
	if code == "" {
		return nil, fmt.Errorf("%s: %w", artifact.Name, ErrNoBytecode)
	}

	linked, err := evm.LinkBytecode(code, libraries)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", artifact.Name, err)
	}
	bytecode, err := hex.DecodeString(linked)
	if err != nil {
		return nil, fmt.Errorf("%s: decoding bytecode: %w", artifact.Name, err)
	}

	abiJSON := artifact.EVM.ABI
	if len(abiJSON) == 0 {
		abiJSON = []byte("[]")
	}
	parsed, err := abi.JSON(bytes.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("%s: parsing ABI: %w", artifact.Name, err)
	}

	return &Factory{
		Name:     artifact.Name,
		ABI:      parsed,
		Bytecode: bytecode,
		Artifact: artifact,
	}, nil
}

// DeployData returns the creation bytecode followed by the ABI-encoded
// constructor arguments
func (f *Factory) DeployData(args ...any) ([]byte, error) {
	packed, err := f.ABI.Pack("", args...)
	if err != nil {
		return nil, fmt.Errorf("encoding constructor arguments: %w", err)
	}
	data := make([]byte, 0, len(f.Bytecode)+len(packed))
	data = append(data, f.Bytecode...)
	return append(data, packed...), nil
}

// ArtifactFactories reads factories from a build tool's artifacts
type ArtifactFactories struct {
	Builder   chains.Builder
	Root      string
	Libraries map[string]string

	// Compile runs the build tool before reading artifacts
	Compile        bool
	CompileCommand []string // empty = builder default
	Stdout         io.Writer
	Stderr         io.Writer
}

// Factory returns the factory for the named contract
func (s *ArtifactFactories) Factory(ctx context.Context, name string) (*Factory, error) {
	if s.Compile {
		if err := s.compile(ctx); err != nil {
			return nil, err
		}
	}

	path := s.Builder.ArtifactPath(s.Root, name)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("artifact for %s not found at %s (compile the project first): %w", name, path, err)
	}

	artifact, err := s.Builder.Parse(path)
	if err != nil {
		return nil, err
	}
	return NewFactory(artifact, s.Libraries)
}

func (s *ArtifactFactories) compile(ctx context.Context) error {
	command := s.CompileCommand
	if len(command) == 0 {
		command = s.Builder.CompileCommand()
	}
	return RunCommand(ctx, s.Root, command, s.Stdout, s.Stderr)
}

// RunCommand runs a build command in dir
func RunCommand(ctx context.Context, dir string, command []string, stdout, stderr io.Writer) error {
	if len(command) == 0 {
		return fmt.Errorf("empty compile command")
	}
	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Dir = dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("running %s: %w", strings.Join(command, " "), err)
	}
	return nil
}
