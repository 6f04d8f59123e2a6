package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pendergraft/contradeploy/internal/config"
)

// DeploymentStore handles deployment ledger operations
type DeploymentStore interface {
	RecordDeployment(ctx context.Context, d *Deployment) error
	GetDeployment(ctx context.Context, chainID int64, address string) (*Deployment, error)
	ListDeployments(ctx context.Context, filter DeploymentFilter, pagination PaginationParams) (*PaginatedResult[Deployment], error)
	UpdateVerificationStatus(ctx context.Context, id string, verified bool, verifiedOn []string) error
}

// Store combines the ledger operations with lifecycle methods.
// Domain services define their own minimal interfaces based on their actual usage.
type Store interface {
	DeploymentStore

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}

// Deployment is one ledger entry. Entries are unique on (ChainID, Address);
// recording the same pair again replaces the entry, which happens whenever
// a development node is restarted and hands out the same addresses.
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
	VerifiedOn      []string // explorer keys, e.g. "polygonMumbai"
	CreatedAt       time.Time
}

// DeploymentFilter contains filter options for listing deployments
type DeploymentFilter struct {
	Network  string
	ChainID  int64
	Contract string
	Verified *bool
}

// PaginationParams contains pagination options
type PaginationParams struct {
	Limit  int
	Cursor string
}

// PaginatedResult contains paginated results
type PaginatedResult[T any] struct {
	Data       []T
	HasMore    bool
	NextCursor string
}

// New creates a new store based on configuration
func New(cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Type {
	case "sqlite":
		return NewSQLiteStore(cfg.SQLite.Path, logger)
	case "postgres":
		if cfg.Postgres.URL == "" {
			return nil, fmt.Errorf("postgres storage requires DATABASE_URL")
		}
		return NewPostgresStore(cfg.Postgres.URL, logger)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
