package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/triplog/internal/domain"
)

// DestinationRepo defines the persistence operations for Destinations.
type DestinationRepo interface {
	// GetByID retrieves a single destination by its UUID.
	// Returns domain.ErrNotFound if no live destination with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Destination, error)

	// GetForUpdate is GetByID with a row lock held until the transaction ends.
	// Lock the parent trip first to keep a consistent lock order.
	GetForUpdate(ctx context.Context, id uuid.UUID) (domain.Destination, error)

	// ListByTrip returns all live destinations of a trip ordered by sequence.
	ListByTrip(ctx context.Context, tripID uuid.UUID) ([]domain.Destination, error)

	// Insert creates a destination row with the caller-assigned ID.
	Insert(ctx context.Context, d domain.Destination) error

	// Update overwrites the mutable columns of a destination.
	// Returns domain.ErrNotFound if no destination with that ID exists.
	Update(ctx context.Context, d domain.Destination) error
}

// pgDestinationRepo is the Postgres implementation of DestinationRepo.
type pgDestinationRepo struct {
	db db
}

// NewDestinationRepo constructs a DestinationRepo backed by the provided db connection.
func NewDestinationRepo(db db) DestinationRepo {
	return &pgDestinationRepo{db: db}
}

const destinationColumns = `id, trip_id, sequence, destination, purpose, status, approval_status,
	ad_hoc, approver_id, detail, deleted_at, created_at, updated_at`

func (r *pgDestinationRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Destination, error) {
	q := `SELECT ` + destinationColumns + ` FROM destinations WHERE id = @id AND deleted_at IS NULL`

	result, err := scanDestination(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Destination{}, fmt.Errorf("repo.DestinationRepo.GetByID: %w", err)
	}
	return result, nil
}

func (r *pgDestinationRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (domain.Destination, error) {
	q := `SELECT ` + destinationColumns + ` FROM destinations WHERE id = @id AND deleted_at IS NULL FOR UPDATE`

	result, err := scanDestination(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Destination{}, fmt.Errorf("repo.DestinationRepo.GetForUpdate: %w", err)
	}
	return result, nil
}

func (r *pgDestinationRepo) ListByTrip(ctx context.Context, tripID uuid.UUID) ([]domain.Destination, error) {
	q := `SELECT ` + destinationColumns + ` FROM destinations
		WHERE trip_id = @trip_id AND deleted_at IS NULL
		ORDER BY sequence`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"trip_id": tripID})
	if err != nil {
		return nil, fmt.Errorf("repo.DestinationRepo.ListByTrip: %w", err)
	}
	defer rows.Close()

	dests := []domain.Destination{}
	for rows.Next() {
		d, err := scanDestination(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.DestinationRepo.ListByTrip: scan: %w", err)
		}
		dests = append(dests, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.DestinationRepo.ListByTrip: rows: %w", err)
	}
	return dests, nil
}

func (r *pgDestinationRepo) Insert(ctx context.Context, d domain.Destination) error {
	const q = `
		INSERT INTO destinations (id, trip_id, sequence, destination, purpose, status,
		                          approval_status, ad_hoc, approver_id, detail)
		VALUES (@id, @trip_id, @sequence, @destination, @purpose, @status,
		        @approval_status, @ad_hoc, @approver_id, @detail)`

	if _, err := r.db.Exec(ctx, q, destinationArgs(d)); err != nil {
		return fmt.Errorf("repo.DestinationRepo.Insert: %w", err)
	}
	return nil
}

func (r *pgDestinationRepo) Update(ctx context.Context, d domain.Destination) error {
	const q = `
		UPDATE destinations
		SET status          = @status,
		    approval_status = @approval_status,
		    approver_id     = @approver_id,
		    detail          = @detail,
		    deleted_at      = @deleted_at,
		    updated_at      = now()
		WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, destinationArgs(d))
	if err != nil {
		if uniqueViolation(err, "one_active_destination_per_trip") {
			err = &domain.StateError{
				Kind:   domain.ErrPrecondition,
				Entity: "trip",
				ID:     d.TripID,
				Reason: "another destination is already in progress",
			}
		}
		return fmt.Errorf("repo.DestinationRepo.Update: %w", err)
	}
	if err := exactlyOne(tag); err != nil {
		return fmt.Errorf("repo.DestinationRepo.Update: %w", err)
	}
	return nil
}

func destinationArgs(d domain.Destination) pgx.NamedArgs {
	return pgx.NamedArgs{
		"id":              d.ID,
		"trip_id":         d.TripID,
		"sequence":        d.Sequence,
		"destination":     d.To,
		"purpose":         d.Purpose,
		"status":          string(d.Status),
		"approval_status": string(d.ApprovalStatus),
		"ad_hoc":          d.AdHoc,
		"approver_id":     d.ApproverID,
		"detail":          d.Detail,
		"deleted_at":      d.DeletedAt,
	}
}

// scanDestination maps a single database row into a domain.Destination.
func scanDestination(s scanner) (domain.Destination, error) {
	var (
		d          domain.Destination
		id         pgtype.UUID
		tripID     pgtype.UUID
		approverID pgtype.UUID
		status     string
		approval   string
	)

	err := s.Scan(&id, &tripID, &d.Sequence, &d.To, &d.Purpose, &status, &approval,
		&d.AdHoc, &approverID, &d.Detail, &d.DeletedAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return domain.Destination{}, notFound(err)
	}

	d.ID = uuid.UUID(id.Bytes)
	d.TripID = uuid.UUID(tripID.Bytes)
	d.ApproverID = nullableUUID(approverID)
	d.Status = domain.DestinationStatus(status)
	d.ApprovalStatus = domain.ApprovalStatus(approval)
	return d, nil
}
