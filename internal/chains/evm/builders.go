package evm

import (
	"github.com/pendergraft/contradeploy/internal/chains"
	"github.com/pendergraft/contradeploy/internal/chains/evm/foundry"
	"github.com/pendergraft/contradeploy/internal/chains/evm/hardhat"
)

// NewFoundryBuilder creates a new Foundry builder
func NewFoundryBuilder() chains.Builder {
	return foundry.New()
}

// NewHardhatBuilder creates a new Hardhat builder; an empty artifactsDir means "artifacts"
func NewHardhatBuilder(artifactsDir string) chains.Builder {
	return hardhat.NewWithArtifactsDir(artifactsDir)
}
