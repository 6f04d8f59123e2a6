package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pendergraft/contradeploy/internal/chains"
	deploymentsDomain "github.com/pendergraft/contradeploy/internal/deployments/domain"
	"github.com/pendergraft/contradeploy/internal/etherscan"
	"github.com/pendergraft/contradeploy/internal/validation"
)

// Common errors returned by the verification service.
var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidChainID = errors.New("invalid chain ID")
	ErrInvalidName    = errors.New("invalid contract name")
	ErrChainNotFound  = errors.New("chain not supported")
)

// Service verifies deployed contracts against local build artifacts
type Service struct {
	registry *chains.Registry
	ledger   Ledger
	logger   *slog.Logger
}

// NewService creates a new verification service. ledger may be nil.
func NewService(registry *chains.Registry, ledger Ledger, logger *slog.Logger) *Service {
	return &Service{
		registry: registry,
		ledger:   ledger,
		logger:   logger,
	}
}

// Verify compares the code at the address with the artifact's deployed
// bytecode. When the code matches and an explorer is given, the source is
// submitted to it. A match marks the ledger entry verified.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	if err := validation.ValidateAddress(req.Address); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if err := validation.ValidateChainID(req.ChainID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidChainID, err)
	}
	if err := validation.ValidateContractName(req.Contract); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidName, err)
	}

	chain, ok := s.registry.Get(req.Chain)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChainNotFound, req.Chain)
	}

	builder, err := resolveBuilder(chain, req.Builder, req.Root)
	if err != nil {
		return nil, err
	}

	artifact, err := builder.Parse(builder.ArtifactPath(req.Root, req.Contract))
	if err != nil {
		return nil, fmt.Errorf("reading artifact for %s: %w", req.Contract, err)
	}
	if artifact.EVM == nil || artifact.EVM.DeployedBytecode == "" || artifact.EVM.DeployedBytecode == "0x" {
		return nil, fmt.Errorf("%s: %w", req.Contract, chains.ErrNoBytecode)
	}

	match, err := chain.VerifyDeployment(ctx, chains.VerifyOptions{
		RPC:          req.RPC,
		Address:      req.Address,
		ExpectedCode: artifact.EVM.DeployedBytecode,
		Libraries:    req.Libraries,
	})
	if err != nil {
		return nil, fmt.Errorf("verifying deployment: %w", err)
	}

	result := &VerifyResult{
		Verified:  match.Match,
		MatchType: match.MatchType,
		Message:   match.Message,
	}
	if !match.Match {
		return result, nil
	}

	var verifiedOn []string
	if req.Explorer != nil {
		if err := s.submitSource(ctx, builder, artifact, req); err != nil {
			return result, err
		}
		result.SourceVerified = true
		if req.ExplorerKey != "" {
			verifiedOn = append(verifiedOn, req.ExplorerKey)
		}
	}

	if s.ledger == nil {
		return result, nil
	}
	err = s.ledger.UpdateVerificationStatus(ctx, req.ChainID, req.Address, true, verifiedOn)
	switch {
	case errors.Is(err, deploymentsDomain.ErrNotFound):
		s.logger.Debug("deployment not in ledger", slog.String("address", req.Address))
	case err != nil:
		return result, fmt.Errorf("recording verification: %w", err)
	default:
		result.Recorded = true
	}

	return result, nil
}

func (s *Service) submitSource(ctx context.Context, builder chains.Builder, artifact *chains.Artifact, req VerifyRequest) error {
	input, err := builder.GetVerificationInput(req.Root, req.Contract, artifact.EVM.SourcePath)
	if err != nil {
		return fmt.Errorf("reading compiler input: %w", err)
	}

	compiler := input.SolcLongVersion
	if compiler == "" {
		compiler = artifact.EVM.Compiler.Version
	}

	s.logger.Info("submitting source to explorer",
		slog.String("contract", req.Contract),
		slog.String("explorer", req.ExplorerKey),
	)

	return req.Explorer.Verify(ctx, etherscan.SubmitRequest{
		Address:         req.Address,
		ContractName:    artifact.EVM.SourcePath + ":" + req.Contract,
		CompilerVersion: compiler,
		StandardJSON:    input.StandardJSON,
	})
}

func resolveBuilder(chain chains.Chain, name, root string) (chains.Builder, error) {
	if name != "" {
		return chain.Builder(name)
	}
	return chain.DetectBuilder(root)
}
