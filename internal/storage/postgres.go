package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	*sqlLedger
}

// NewPostgresStore creates a new Postgres store
func NewPostgresStore(url string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{&sqlLedger{db: db, logger: logger, bind: dollarN}}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *PostgresStore) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS deployments (
		id TEXT PRIMARY KEY,
		contract_name TEXT NOT NULL,
		network TEXT NOT NULL,
		chain_id BIGINT NOT NULL,
		address TEXT NOT NULL,
		tx_hash TEXT NOT NULL DEFAULT '',
		deployer_address TEXT NOT NULL DEFAULT '',
		block_number BIGINT NOT NULL DEFAULT 0,
		gas_used BIGINT NOT NULL DEFAULT 0,
		export_path TEXT NOT NULL DEFAULT '',
		timestamped_path TEXT NOT NULL DEFAULT '',
		verified BOOLEAN NOT NULL DEFAULT FALSE,
		verified_at TEXT,
		verified_on TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL,
		UNIQUE(chain_id, address)
	);

	CREATE INDEX IF NOT EXISTS idx_deployments_created ON deployments(created_at, id);
	CREATE INDEX IF NOT EXISTS idx_deployments_network ON deployments(network);
	CREATE INDEX IF NOT EXISTS idx_deployments_contract ON deployments(contract_name);
	`

	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.logger.Debug("database migrations complete", slog.String("backend", "postgres"))
	return nil
}
