// Package transport provides HTTP request/response types for the deployments domain.
package transport

import (
	"time"

	"github.com/pendergraft/contradeploy/internal/deployments/domain"
)

// DeploymentListResponse is the response for listing deployments.
type DeploymentListResponse struct {
	Data       []DeploymentItem `json:"data"`
	Pagination Pagination       `json:"pagination"`
}

// DeploymentItem is a deployment in a list.
type DeploymentItem struct {
	ChainID      int64     `json:"chainId"`
	Network      string    `json:"network"`
	Address      string    `json:"address"`
	ContractName string    `json:"contractName"`
	Verified     bool      `json:"verified"`
	TxHash       string    `json:"txHash,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Pagination provides pagination metadata.
type Pagination struct {
	Limit      int    `json:"limit"`
	HasMore    bool   `json:"hasMore"`
	NextCursor string `json:"nextCursor"`
}

// DeploymentResponse is the response for getting a deployment.
type DeploymentResponse struct {
	ID              string     `json:"id"`
	ContractName    string     `json:"contractName"`
	Network         string     `json:"network"`
	ChainID         int64      `json:"chainId"`
	Address         string     `json:"address"`
	DeployerAddress string     `json:"deployerAddress"`
	TxHash          string     `json:"txHash"`
	BlockNumber     uint64     `json:"blockNumber"`
	GasUsed         uint64     `json:"gasUsed"`
	ExportPath      string     `json:"exportPath"`
	TimestampedPath string     `json:"timestampedPath"`
	Verified        bool       `json:"verified"`
	VerifiedAt      *time.Time `json:"verifiedAt,omitempty"`
	VerifiedOn      []string   `json:"verifiedOn"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewDeploymentItem converts a domain deployment to a list item.
func NewDeploymentItem(d domain.Deployment) DeploymentItem {
	return DeploymentItem{
		ChainID:      d.ChainID,
		Network:      d.Network,
		Address:      d.Address,
		ContractName: d.ContractName,
		Verified:     d.Verified,
		TxHash:       d.TxHash,
		CreatedAt:    d.CreatedAt,
	}
}

// NewDeploymentResponse converts a domain deployment to the detail response.
func NewDeploymentResponse(d *domain.Deployment) DeploymentResponse {
	verifiedOn := d.VerifiedOn
	if verifiedOn == nil {
		verifiedOn = []string{}
	}
	return DeploymentResponse{
		ID:              d.ID,
		ContractName:    d.ContractName,
		Network:         d.Network,
		ChainID:         d.ChainID,
		Address:         d.Address,
		DeployerAddress: d.DeployerAddress,
		TxHash:          d.TxHash,
		BlockNumber:     d.BlockNumber,
		GasUsed:         d.GasUsed,
		ExportPath:      d.ExportPath,
		TimestampedPath: d.TimestampedPath,
		Verified:        d.Verified,
		VerifiedAt:      d.VerifiedAt,
		VerifiedOn:      verifiedOn,
		CreatedAt:       d.CreatedAt,
	}
}
