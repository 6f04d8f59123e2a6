// Package domain contains the business logic for the deployment ledger.
package domain

import (
	"time"
)

// Deployment represents a recorded deployment.
type Deployment struct {
	ID              string
	ContractName    string
	Network         string
	ChainID         int64
	Address         string
	TxHash          string
	DeployerAddress string
	BlockNumber     uint64
	GasUsed         uint64
	ExportPath      string
	TimestampedPath string
	Verified        bool
	VerifiedAt      *time.Time
	VerifiedOn      []string
	CreatedAt       time.Time
}

// RecordRequest is the request to record a new deployment.
type RecordRequest struct {
	Contract        string
	Network         string
	ChainID         int64
	Address         string
	TxHash          string
	DeployerAddress string
	BlockNumber     uint64
	GasUsed         uint64
	ExportPath      string
	TimestampedPath string
	// DeployedAt defaults to the time of recording
	DeployedAt time.Time
}

// ListFilter contains filter options for listing deployments.
type ListFilter struct {
	Network  string
	ChainID  int64
	Contract string
	Verified *bool
}

// PaginationParams contains pagination options.
type PaginationParams struct {
	Limit  int
	Cursor string
}

// ListResult contains paginated list results.
type ListResult struct {
	Deployments []Deployment
	HasMore     bool
	NextCursor  string
}
