package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/pendergraft/contradeploy/internal/storage"
	"github.com/pendergraft/contradeploy/internal/validation"
)

// Common errors returned by the deployment service.
var (
	ErrNotFound       = errors.New("deployment not found")
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidChainID = errors.New("invalid chain ID")
	ErrInvalidName    = errors.New("invalid contract name")
	ErrInvalidCursor  = errors.New("invalid cursor")
)

// Store is the subset of storage.Store the service uses.
type Store interface {
	storage.DeploymentStore
}

// Service defines the deployment service interface.
type Service interface {
	// Record records a new deployment, replacing any entry at the same address.
	Record(ctx context.Context, req RecordRequest) (*Deployment, error)

	// Get retrieves a deployment by chain and address.
	Get(ctx context.Context, chainID int64, address string) (*Deployment, error)

	// List lists deployments with filtering and pagination.
	List(ctx context.Context, filter ListFilter, pagination PaginationParams) (*ListResult, error)

	// UpdateVerificationStatus updates the verification status of a deployment.
	UpdateVerificationStatus(ctx context.Context, chainID int64, address string, verified bool, verifiedOn []string) error
}

// service implements the Service interface.
type service struct {
	store Store
}

// NewService creates a new deployment service.
func NewService(store Store) Service {
	return &service{store: store}
}

// Record records a new deployment.
func (s *service) Record(ctx context.Context, req RecordRequest) (*Deployment, error) {
	address, err := validation.NormalizeAddress(req.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if err := validation.ValidateChainID(req.ChainID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidChainID, err)
	}
	if err := validation.ValidateContractName(req.Contract); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidName, err)
	}

	deployment := &storage.Deployment{
		ContractName:    req.Contract,
		Network:         req.Network,
		ChainID:         req.ChainID,
		Address:         address,
		TxHash:          req.TxHash,
		DeployerAddress: req.DeployerAddress,
		BlockNumber:     req.BlockNumber,
		GasUsed:         req.GasUsed,
		ExportPath:      req.ExportPath,
		TimestampedPath: req.TimestampedPath,
		CreatedAt:       req.DeployedAt,
	}

	if err := s.store.RecordDeployment(ctx, deployment); err != nil {
		return nil, fmt.Errorf("recording deployment: %w", err)
	}

	return toDeployment(deployment), nil
}

// Get retrieves a deployment by chain and address.
func (s *service) Get(ctx context.Context, chainID int64, address string) (*Deployment, error) {
	if err := validation.ValidateAddress(address); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

	deployment, err := s.store.GetDeployment(ctx, chainID, address)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting deployment: %w", err)
	}

	return toDeployment(deployment), nil
}

// List lists deployments with filtering and pagination.
func (s *service) List(ctx context.Context, filter ListFilter, pagination PaginationParams) (*ListResult, error) {
	result, err := s.store.ListDeployments(ctx, storage.DeploymentFilter{
		Network:  filter.Network,
		ChainID:  filter.ChainID,
		Contract: filter.Contract,
		Verified: filter.Verified,
	}, storage.PaginationParams{
		Limit:  pagination.Limit,
		Cursor: pagination.Cursor,
	})
	if err != nil {
		if errors.Is(err, storage.ErrInvalidCursor) {
			return nil, ErrInvalidCursor
		}
		return nil, fmt.Errorf("listing deployments: %w", err)
	}

	deployments := make([]Deployment, len(result.Data))
	for i, d := range result.Data {
		deployments[i] = *toDeployment(&d)
	}

	return &ListResult{
		Deployments: deployments,
		HasMore:     result.HasMore,
		NextCursor:  result.NextCursor,
	}, nil
}

// UpdateVerificationStatus updates the verification status of a deployment.
func (s *service) UpdateVerificationStatus(ctx context.Context, chainID int64, address string, verified bool, verifiedOn []string) error {
	deployment, err := s.store.GetDeployment(ctx, chainID, address)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("getting deployment: %w", err)
	}

	if err := s.store.UpdateVerificationStatus(ctx, deployment.ID, verified, verifiedOn); err != nil {
		return fmt.Errorf("updating verification status: %w", err)
	}

	return nil
}

func toDeployment(d *storage.Deployment) *Deployment {
	return &Deployment{
		ID:              d.ID,
		ContractName:    d.ContractName,
		Network:         d.Network,
		ChainID:         d.ChainID,
		Address:         d.Address,
		TxHash:          d.TxHash,
		DeployerAddress: d.DeployerAddress,
		BlockNumber:     d.BlockNumber,
		GasUsed:         d.GasUsed,
		ExportPath:      d.ExportPath,
		TimestampedPath: d.TimestampedPath,
		Verified:        d.Verified,
		VerifiedAt:      d.VerifiedAt,
		VerifiedOn:      d.VerifiedOn,
		CreatedAt:       d.CreatedAt,
	}
}
