package postgres

import (
	"context"
	"fmt"

	"github.com/ErlanBelekov/agentgate/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

const auditSchema = `
CREATE TABLE IF NOT EXISTS auth_audit (
	id          UUID PRIMARY KEY,
	request_id  TEXT NOT NULL DEFAULT '',
	operation   TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	email_hash  TEXT NOT NULL DEFAULT '',
	status      INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS auth_audit_created_at_idx ON auth_audit (created_at);`

type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// EnsureSchema creates the audit table if it does not exist yet.
func (r *AuditRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, auditSchema); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

func (r *AuditRepository) Insert(ctx context.Context, e *domain.AuditEvent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO auth_audit (id, request_id, operation, outcome, email_hash, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.RequestID, e.Operation, e.Outcome, e.EmailHash, e.Status, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
