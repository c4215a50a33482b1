package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"warden/pkg/logging"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// SQLStore implements Store on database/sql. The backend is selected by DSN
// scheme: postgres:// and postgresql:// use pgx, everything else is treated
// as a sqlite path or DSN.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

var _ Store = (*SQLStore)(nil)

const (
	schemaSQLite = `
CREATE TABLE IF NOT EXISTS oauth_tokens (
	client_id        VARCHAR(255) NOT NULL,
	integration_type VARCHAR(64)  NOT NULL,
	token_json       TEXT         NOT NULL,
	stored_at        TIMESTAMP    NOT NULL,
	PRIMARY KEY (client_id, integration_type)
);
CREATE INDEX IF NOT EXISTS idx_oauth_tokens_stored_at ON oauth_tokens (stored_at);`

	schemaPostgres = `
CREATE TABLE IF NOT EXISTS oauth_tokens (
	client_id        VARCHAR(255) NOT NULL,
	integration_type VARCHAR(64)  NOT NULL,
	token_json       TEXT         NOT NULL,
	stored_at        TIMESTAMPTZ  NOT NULL,
	PRIMARY KEY (client_id, integration_type)
);
CREATE INDEX IF NOT EXISTS idx_oauth_tokens_stored_at ON oauth_tokens (stored_at);`

	upsertSQLite = `
INSERT INTO oauth_tokens (client_id, integration_type, token_json, stored_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (client_id, integration_type)
DO UPDATE SET token_json = excluded.token_json, stored_at = excluded.stored_at`

	upsertPostgres = `
INSERT INTO oauth_tokens (client_id, integration_type, token_json, stored_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (client_id, integration_type)
DO UPDATE SET token_json = excluded.token_json, stored_at = excluded.stored_at`

	selectSQLite = `
SELECT token_json, stored_at FROM oauth_tokens WHERE client_id = ? AND integration_type = ?`

	selectPostgres = `
SELECT token_json, stored_at FROM oauth_tokens WHERE client_id = $1 AND integration_type = $2`
)

// New opens the database named by dsn, verifies connectivity and ensures the
// schema exists. Failures here are startup configuration errors.
func New(ctx context.Context, dsn string) (*SQLStore, error) {
	s := &SQLStore{dialect: dialectSQLite}
	driver := "sqlite"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		s.dialect = dialectPostgres
		driver = "pgx"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s.db = db

	if s.dialect == dialectSQLite {
		// A single connection keeps in-memory databases coherent and
		// sidesteps writer lock contention on file databases.
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{
			"PRAGMA journal_mode=WAL;",
			"PRAGMA busy_timeout=5000;",
		} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("apply %s: %w", strings.TrimRight(pragma, ";"), err)
			}
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	schema := schemaSQLite
	if s.dialect == dialectPostgres {
		schema = schemaPostgres
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	logging.Debug("Store", "Opened %s credential store", driver)
	return s, nil
}

// Upsert writes the record in its own short transaction. Concurrent writers
// for the same pair race benignly; the last commit wins the whole row.
func (s *SQLStore) Upsert(ctx context.Context, rec TokenRecord) error {
	query := upsertSQLite
	if s.dialect == dialectPostgres {
		query = upsertPostgres
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, query,
		rec.ClientID, rec.IntegrationType, rec.TokenJSON, rec.StoredAt.UTC()); err != nil {
		return fmt.Errorf("upsert token record: %w", err)
	}
	return tx.Commit()
}

func (s *SQLStore) Get(ctx context.Context, clientID, integrationType string) (*TokenRecord, error) {
	query := selectSQLite
	if s.dialect == dialectPostgres {
		query = selectPostgres
	}

	rec := TokenRecord{ClientID: clientID, IntegrationType: integrationType}
	err := s.db.QueryRowContext(ctx, query, clientID, integrationType).
		Scan(&rec.TokenJSON, &rec.StoredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read token record: %w", err)
	}
	return &rec, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
