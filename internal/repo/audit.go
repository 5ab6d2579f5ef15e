package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AuditRepo appends to the audit log. Rows are never updated or deleted.
type AuditRepo interface {
	Record(ctx context.Context, actorID uuid.UUID, role, description string) error
}

// pgAuditRepo is the Postgres implementation of AuditRepo.
type pgAuditRepo struct {
	db db
}

// NewAuditRepo constructs an AuditRepo backed by the provided db connection.
// Pass the pool, not a transaction: audit rows are written after the state
// change has committed and must survive independently of it.
func NewAuditRepo(db db) AuditRepo {
	return &pgAuditRepo{db: db}
}

func (r *pgAuditRepo) Record(ctx context.Context, actorID uuid.UUID, role, description string) error {
	const q = `
		INSERT INTO audit_logs (actor_id, role, description)
		VALUES (@actor_id, @role, @description)`

	args := pgx.NamedArgs{"actor_id": actorID, "role": role, "description": description}
	if _, err := r.db.Exec(ctx, q, args); err != nil {
		return fmt.Errorf("repo.AuditRepo.Record: %w", err)
	}
	return nil
}
