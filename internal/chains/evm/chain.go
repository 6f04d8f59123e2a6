// Package evm provides the EVM chain module for Ethereum and compatible chains.
package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/pendergraft/contradeploy/internal/chains"
)

// CodeReader reads contract code; *ethclient.Client satisfies it
type CodeReader interface {
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

// Chain implements the chains.Chain interface for EVM-compatible blockchains
type Chain struct {
	builders []chains.Builder
	reader   CodeReader
}

// Option configures a Chain
type Option func(*Chain)

// WithArtifactsDir sets the Hardhat artifacts directory
func WithArtifactsDir(dir string) Option {
	return func(c *Chain) {
		c.builders[0] = NewHardhatBuilder(dir)
	}
}

// WithCodeReader makes the chain read code from r instead of dialing the RPC URL
func WithCodeReader(r CodeReader) Option {
	return func(c *Chain) {
		c.reader = r
	}
}

// NewChain creates a new EVM chain module
func NewChain(opts ...Option) *Chain {
	c := &Chain{
		builders: []chains.Builder{
			NewHardhatBuilder(""),
			NewFoundryBuilder(),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the chain identifier
func (c *Chain) Name() string {
	return "evm"
}

// DisplayName returns a human-readable name
func (c *Chain) DisplayName() string {
	return "Ethereum/EVM"
}

// Builders returns all available builders for this chain
func (c *Chain) Builders() []chains.Builder {
	return c.builders
}

// Builder returns the builder with the given name
func (c *Chain) Builder(name string) (chains.Builder, error) {
	for _, b := range c.builders {
		if b.Name() == name {
			return b, nil
		}
	}
	return nil, fmt.Errorf("unknown builder %q", name)
}

// DetectBuilder detects which builder is used in the given directory
func (c *Chain) DetectBuilder(dir string) (chains.Builder, error) {
	for _, b := range c.builders {
		detected, err := b.Detect(dir)
		if err != nil {
			continue
		}
		if detected {
			return b, nil
		}
	}
	return nil, fmt.Errorf("no EVM builder detected in %s", dir)
}

// VerifyDeployment verifies that deployed bytecode matches expected bytecode
func (c *Chain) VerifyDeployment(ctx context.Context, opts chains.VerifyOptions) (*chains.VerifyResult, error) {
	deployed, err := c.GetDeployedBytecode(ctx, opts.RPC, opts.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to get deployed bytecode: %w", err)
	}

	return CompareBytecode(deployed, opts.ExpectedCode, opts.Libraries), nil
}

// GetDeployedBytecode fetches the deployed bytecode with eth_getCode at the latest block
func (c *Chain) GetDeployedBytecode(ctx context.Context, rpc string, address string) ([]byte, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid address %q", address)
	}

	reader := c.reader
	if reader == nil {
		client, err := ethclient.DialContext(ctx, rpc)
		if err != nil {
			return nil, fmt.Errorf("connecting to %s: %w", rpc, err)
		}
		defer client.Close()
		reader = client
	}

	code, err := reader.CodeAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, fmt.Errorf("eth_getCode: %w", err)
	}
	return code, nil
}
