package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

const deploymentColumns = `id, contract_name, network, chain_id, address, tx_hash, deployer_address,
	block_number, gas_used, export_path, timestamped_path, verified, verified_at, verified_on, created_at`

// sqlLedger holds the deployment queries shared by the SQL backends.
// bind renders the n-th (1-based) query placeholder.
type sqlLedger struct {
	db     *sql.DB
	logger *slog.Logger
	bind   func(n int) string
}

// RecordDeployment inserts d, replacing any entry for the same chain and
// address. d.ID is set to the ID of the stored row.
func (l *sqlLedger) RecordDeployment(ctx context.Context, d *Deployment) error {
	if d.ID == "" {
		d.ID = generateID()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}

	b := l.binder()
	query := `
		INSERT INTO deployments (id, contract_name, network, chain_id, address, tx_hash, deployer_address,
			block_number, gas_used, export_path, timestamped_path, verified, verified_on, created_at)
		VALUES (` + b.next(14) + `)
		ON CONFLICT (chain_id, address) DO UPDATE SET
			contract_name = excluded.contract_name,
			network = excluded.network,
			tx_hash = excluded.tx_hash,
			deployer_address = excluded.deployer_address,
			block_number = excluded.block_number,
			gas_used = excluded.gas_used,
			export_path = excluded.export_path,
			timestamped_path = excluded.timestamped_path,
			verified = excluded.verified,
			verified_at = NULL,
			verified_on = excluded.verified_on,
			created_at = excluded.created_at
		RETURNING id
	`
	err := l.db.QueryRowContext(ctx, query,
		d.ID, d.ContractName, d.Network, d.ChainID, d.Address, d.TxHash, d.DeployerAddress,
		int64(d.BlockNumber), int64(d.GasUsed), d.ExportPath, d.TimestampedPath, false, encodeList(nil), formatTime(d.CreatedAt),
	).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("recording deployment: %w", err)
	}
	d.Verified = false
	d.VerifiedAt = nil
	d.VerifiedOn = nil
	return nil
}

// GetDeployment retrieves a deployment. Addresses match case-insensitively.
func (l *sqlLedger) GetDeployment(ctx context.Context, chainID int64, address string) (*Deployment, error) {
	b := l.binder()
	query := `SELECT ` + deploymentColumns + ` FROM deployments WHERE chain_id = ` + b.next(1) + ` AND LOWER(address) = LOWER(` + b.next(1) + `)`

	d, err := scanDeployment(l.db.QueryRowContext(ctx, query, chainID, address))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

// ListDeployments lists deployments, newest first
func (l *sqlLedger) ListDeployments(ctx context.Context, filter DeploymentFilter, pagination PaginationParams) (*PaginatedResult[Deployment], error) {
	b := l.binder()
	var where []string
	var args []any

	if filter.Network != "" {
		where = append(where, "network = "+b.next(1))
		args = append(args, filter.Network)
	}
	if filter.ChainID != 0 {
		where = append(where, "chain_id = "+b.next(1))
		args = append(args, filter.ChainID)
	}
	if filter.Contract != "" {
		where = append(where, "contract_name = "+b.next(1))
		args = append(args, filter.Contract)
	}
	if filter.Verified != nil {
		where = append(where, "verified = "+b.next(1))
		args = append(args, *filter.Verified)
	}
	if pagination.Cursor != "" {
		createdAt, id, err := decodeCursor(pagination.Cursor)
		if err != nil {
			return nil, err
		}
		where = append(where, fmt.Sprintf("(created_at < %s OR (created_at = %s AND id < %s))", b.next(1), b.next(1), b.next(1)))
		args = append(args, createdAt, createdAt, id)
	}

	query := `SELECT ` + deploymentColumns + ` FROM deployments`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ` + b.next(1)
	args = append(args, pagination.Limit+1)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing deployments: %w", err)
	}
	defer rows.Close()

	var deployments []Deployment
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hasMore := len(deployments) > pagination.Limit
	var nextCursor string
	if hasMore {
		deployments = deployments[:pagination.Limit]
		last := deployments[len(deployments)-1]
		nextCursor = encodeCursor(formatTime(last.CreatedAt), last.ID)
	}

	return &PaginatedResult[Deployment]{
		Data:       deployments,
		HasMore:    hasMore,
		NextCursor: nextCursor,
	}, nil
}

// UpdateVerificationStatus updates a deployment's verification status
func (l *sqlLedger) UpdateVerificationStatus(ctx context.Context, id string, verified bool, verifiedOn []string) error {
	var verifiedAt any
	if verified {
		verifiedAt = formatTime(time.Now())
	}

	b := l.binder()
	query := `UPDATE deployments SET verified = ` + b.next(1) + `, verified_at = ` + b.next(1) + `, verified_on = ` + b.next(1) + ` WHERE id = ` + b.next(1)
	res, err := l.db.ExecContext(ctx, query, verified, verifiedAt, encodeList(verifiedOn), id)
	if err != nil {
		return fmt.Errorf("updating verification status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeployment(row rowScanner) (*Deployment, error) {
	var (
		d                     Deployment
		blockNumber, gasUsed  int64
		verifiedAt            sql.NullString
		verifiedOn, createdAt string
	)
	err := row.Scan(
		&d.ID, &d.ContractName, &d.Network, &d.ChainID, &d.Address, &d.TxHash, &d.DeployerAddress,
		&blockNumber, &gasUsed, &d.ExportPath, &d.TimestampedPath, &d.Verified, &verifiedAt, &verifiedOn, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	d.BlockNumber = uint64(blockNumber)
	d.GasUsed = uint64(gasUsed)
	d.VerifiedOn = decodeList(verifiedOn)
	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
	}
	if verifiedAt.Valid {
		t, err := parseTime(verifiedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing verified_at %q: %w", verifiedAt.String, err)
		}
		d.VerifiedAt = &t
	}
	return &d, nil
}

// placeholders numbers bind parameters across one query
type placeholders struct {
	bind func(int) string
	n    int
}

func (l *sqlLedger) binder() *placeholders {
	return &placeholders{bind: l.bind}
}

// next returns the next count placeholders joined by commas
func (p *placeholders) next(count int) string {
	parts := make([]string, count)
	for i := range parts {
		p.n++
		parts[i] = p.bind(p.n)
	}
	return strings.Join(parts, ", ")
}

func questionMark(int) string { return "?" }

func dollarN(n int) string { return "$" + strconv.Itoa(n) }
