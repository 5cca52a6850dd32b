package db

import (
	"context"
	"fmt"
	"regexp"

	"submitflow/backend/types"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

const schema = `
CREATE TABLE IF NOT EXISTS %[1]s (
    id VARCHAR(255) PRIMARY KEY,
    recipient VARCHAR(320) NOT NULL,
    attempts INT NOT NULL,
    status VARCHAR(16) NOT NULL,
    delivery_status VARCHAR(64) NOT NULL,
    error_message TEXT,
    body_text TEXT NOT NULL,
    storage_path TEXT NOT NULL,
    assignment_id VARCHAR(255) NOT NULL,
    recorded_at BIGINT NOT NULL
);
`

const upsert = `INSERT INTO %[1]s
        (id, recipient, attempts, status, delivery_status, error_message, body_text, storage_path, assignment_id, recorded_at)
        VALUES
        (:id, :recipient, :attempts, :status, :delivery_status, :error_message, :body_text, :storage_path, :assignment_id, :recorded_at)
        ON CONFLICT (id) DO UPDATE SET
        recipient = EXCLUDED.recipient,
        attempts = EXCLUDED.attempts,
        status = EXCLUDED.status,
        delivery_status = EXCLUDED.delivery_status,
        error_message = EXCLUDED.error_message,
        body_text = EXCLUDED.body_text,
        storage_path = EXCLUDED.storage_path,
        assignment_id = EXCLUDED.assignment_id,
        recorded_at = EXCLUDED.recorded_at`

// PostgresRecorder keeps status records in a PostgreSQL table.
type PostgresRecorder struct {
	db     *sqlx.DB
	upsert string
	schema string
}

// NewPostgres connects to the database and returns a recorder for table.
func NewPostgres(ctx context.Context, dsn string, table string) (*PostgresRecorder, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	conn, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return newPostgresRecorder(conn, table), nil
}

func newPostgresRecorder(conn *sqlx.DB, table string) *PostgresRecorder {
	return &PostgresRecorder{
		db:     conn,
		upsert: fmt.Sprintf(upsert, table),
		schema: fmt.Sprintf(schema, table),
	}
}

// Migrate creates the status table if it does not exist.
func (r *PostgresRecorder) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, r.schema); err != nil {
		return fmt.Errorf("failed to create status table: %w", err)
	}
	return nil
}

func (r *PostgresRecorder) Record(ctx context.Context, record *types.StatusRecord) error {
	if _, err := r.db.NamedExecContext(ctx, r.upsert, record); err != nil {
		return fmt.Errorf("failed to upsert status record %s: %w", record.ID, err)
	}
	return nil
}

func (r *PostgresRecorder) Close() error {
	return r.db.Close()
}
