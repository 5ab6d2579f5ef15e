// Package audit records who changed what. Writes happen after the state
// change has committed and never fail the operation that triggered them.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/triplog/internal/repo"
)

// Recorder writes audit entries through a repo.AuditRepo and logs failures.
type Recorder struct {
	repo    repo.AuditRepo
	logger  *slog.Logger
	timeout time.Duration
}

// NewRecorder constructs a Recorder. A nil logger means slog.Default().
func NewRecorder(r repo.AuditRepo, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{repo: r, logger: logger, timeout: 5 * time.Second}
}

// Record appends one entry. The write is detached from ctx cancellation so a
// client hanging up right after a commit does not lose the audit row.
func (a *Recorder) Record(ctx context.Context, actorID uuid.UUID, role, description string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	defer cancel()

	if err := a.repo.Record(ctx, actorID, role, description); err != nil {
		a.logger.ErrorContext(ctx, "audit record failed",
			"actor_id", actorID, "role", role, "description", description, "error", err)
	}
}
