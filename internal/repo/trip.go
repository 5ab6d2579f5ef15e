package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/triplog/internal/domain"
)

// TripRepo defines the persistence operations for Trips.
// The service layer depends on this interface, not the concrete Postgres
// implementation, which allows the service to be unit-tested with a fake.
// Every read ignores tombstoned rows.
type TripRepo interface {
	// GetByID retrieves a single trip by its UUID primary key.
	// Returns domain.ErrNotFound if no live trip with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error)

	// GetForUpdate is GetByID with a row lock held until the transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (domain.Trip, error)

	// List returns one page of trips matching the filter, ordered by
	// trip_date descending, and the total number of matches.
	List(ctx context.Context, f domain.TripFilter, p domain.PaginationParams) ([]domain.Trip, int64, error)

	// ActiveOnVehicle returns the IDs of trips on the vehicle that are in progress.
	ActiveOnVehicle(ctx context.Context, vehicleID uuid.UUID) ([]uuid.UUID, error)

	// LockVehicle serializes callers on the same vehicle until the
	// surrounding transaction ends.
	LockVehicle(ctx context.Context, vehicleID uuid.UUID) error

	// LatestTripDate returns the most recent trip date on the vehicle, or nil.
	LatestTripDate(ctx context.Context, vehicleID uuid.UUID) (*time.Time, error)

	// Insert creates a trip row with the caller-assigned ID.
	Insert(ctx context.Context, trip domain.Trip) error

	// Update overwrites the mutable columns of a trip.
	// Returns domain.ErrNotFound if no trip with that ID exists.
	Update(ctx context.Context, trip domain.Trip) error
}

// pgTripRepo is the Postgres implementation of TripRepo.
type pgTripRepo struct {
	db db
}

// NewTripRepo constructs a TripRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewTripRepo(db db) TripRepo {
	return &pgTripRepo{db: db}
}

const tripColumns = `id, driver_id, vehicle_id, approver_id, trip_date, start_odometer,
	current_odometer, status, approval_status, pre_approved, safety_form,
	ended_at, deleted_at, created_at, updated_at`

func (r *pgTripRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	q := `SELECT ` + tripColumns + ` FROM trips WHERE id = @id AND deleted_at IS NULL`

	result, err := scanTrip(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.GetByID: %w", err)
	}
	return result, nil
}

func (r *pgTripRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	q := `SELECT ` + tripColumns + ` FROM trips WHERE id = @id AND deleted_at IS NULL FOR UPDATE`

	result, err := scanTrip(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.GetForUpdate: %w", err)
	}
	return result, nil
}

// List builds its WHERE clause from the non-nil filter fields.
func (r *pgTripRepo) List(ctx context.Context, f domain.TripFilter, p domain.PaginationParams) ([]domain.Trip, int64, error) {
	where := []string{"deleted_at IS NULL"}
	args := pgx.NamedArgs{}
	if f.ParticipantID != nil {
		where = append(where, "(driver_id = @participant_id OR approver_id = @participant_id)")
		args["participant_id"] = *f.ParticipantID
	}
	if f.DriverID != nil {
		where = append(where, "driver_id = @driver_id")
		args["driver_id"] = *f.DriverID
	}
	if f.ApproverID != nil {
		where = append(where, "approver_id = @approver_id")
		args["approver_id"] = *f.ApproverID
	}
	if f.VehicleID != nil {
		where = append(where, "vehicle_id = @vehicle_id")
		args["vehicle_id"] = *f.VehicleID
	}
	if f.Status != nil {
		where = append(where, "status = @status")
		args["status"] = string(*f.Status)
	}
	if f.ApprovalStatus != nil {
		where = append(where, "approval_status = @approval_status")
		args["approval_status"] = string(*f.ApprovalStatus)
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM trips WHERE `+cond, args).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repo.TripRepo.List: count: %w", err)
	}

	args["limit"] = p.Limit
	args["offset"] = p.Offset()
	q := `SELECT ` + tripColumns + ` FROM trips WHERE ` + cond + `
		ORDER BY trip_date DESC, created_at DESC
		LIMIT @limit OFFSET @offset`

	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.TripRepo.List: %w", err)
	}
	defer rows.Close()

	trips := []domain.Trip{}
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repo.TripRepo.List: scan: %w", err)
		}
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repo.TripRepo.List: rows: %w", err)
	}
	return trips, total, nil
}

func (r *pgTripRepo) ActiveOnVehicle(ctx context.Context, vehicleID uuid.UUID) ([]uuid.UUID, error) {
	const q = `
		SELECT id FROM trips
		WHERE vehicle_id = @vehicle_id
		  AND status = 'in_progress'
		  AND deleted_at IS NULL`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"vehicle_id": vehicleID})
	if err != nil {
		return nil, fmt.Errorf("repo.TripRepo.ActiveOnVehicle: %w", err)
	}
	ids, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (uuid.UUID, error) {
		var id pgtype.UUID
		err := row.Scan(&id)
		return uuid.UUID(id.Bytes), err
	})
	if err != nil {
		return nil, fmt.Errorf("repo.TripRepo.ActiveOnVehicle: scan: %w", err)
	}
	return ids, nil
}

// LockVehicle takes a transaction-scoped advisory lock keyed on the vehicle.
// Outside a transaction the lock is released immediately, so it only makes
// sense inside Transactor.WithinTx.
func (r *pgTripRepo) LockVehicle(ctx context.Context, vehicleID uuid.UUID) error {
	const q = `SELECT pg_advisory_xact_lock(hashtextextended(@vehicle_id::text, 0))`

	if _, err := r.db.Exec(ctx, q, pgx.NamedArgs{"vehicle_id": vehicleID}); err != nil {
		return fmt.Errorf("repo.TripRepo.LockVehicle: %w", err)
	}
	return nil
}

func (r *pgTripRepo) LatestTripDate(ctx context.Context, vehicleID uuid.UUID) (*time.Time, error) {
	const q = `
		SELECT max(trip_date) FROM trips
		WHERE vehicle_id = @vehicle_id AND deleted_at IS NULL`

	var latest pgtype.Date
	if err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"vehicle_id": vehicleID}).Scan(&latest); err != nil {
		return nil, fmt.Errorf("repo.TripRepo.LatestTripDate: %w", err)
	}
	if !latest.Valid {
		return nil, nil
	}
	return &latest.Time, nil
}

func (r *pgTripRepo) Insert(ctx context.Context, trip domain.Trip) error {
	const q = `
		INSERT INTO trips (id, driver_id, vehicle_id, approver_id, trip_date, start_odometer,
		                   current_odometer, status, approval_status, pre_approved, safety_form, ended_at)
		VALUES (@id, @driver_id, @vehicle_id, @approver_id, @trip_date, @start_odometer,
		        @current_odometer, @status, @approval_status, @pre_approved, @safety_form, @ended_at)`

	args, err := tripArgs(trip)
	if err != nil {
		return fmt.Errorf("repo.TripRepo.Insert: %w", err)
	}
	if _, err := r.db.Exec(ctx, q, args); err != nil {
		return fmt.Errorf("repo.TripRepo.Insert: %w", vehicleBusy(err, trip))
	}
	return nil
}

func (r *pgTripRepo) Update(ctx context.Context, trip domain.Trip) error {
	const q = `
		UPDATE trips
		SET approver_id      = @approver_id,
		    current_odometer = @current_odometer,
		    status           = @status,
		    approval_status  = @approval_status,
		    safety_form      = @safety_form,
		    ended_at         = @ended_at,
		    deleted_at       = @deleted_at,
		    updated_at       = now()
		WHERE id = @id`

	args, err := tripArgs(trip)
	if err != nil {
		return fmt.Errorf("repo.TripRepo.Update: %w", err)
	}
	tag, err := r.db.Exec(ctx, q, args)
	if err != nil {
		return fmt.Errorf("repo.TripRepo.Update: %w", vehicleBusy(err, trip))
	}
	if err := exactlyOne(tag); err != nil {
		return fmt.Errorf("repo.TripRepo.Update: %w", err)
	}
	return nil
}

func tripArgs(t domain.Trip) (pgx.NamedArgs, error) {
	var safety any
	if t.Safety != nil {
		b, err := json.Marshal(t.Safety)
		if err != nil {
			return nil, fmt.Errorf("encode safety form: %w", err)
		}
		safety = string(b)
	}
	return pgx.NamedArgs{
		"id":               t.ID,
		"driver_id":        t.DriverID,
		"vehicle_id":       t.VehicleID,
		"approver_id":      t.ApproverID, // nil becomes NULL
		"trip_date":        pgtype.Date{Time: t.TripDate, Valid: true},
		"start_odometer":   t.StartOdometer,
		"current_odometer": t.CurrentOdometer,
		"status":           string(t.Status),
		"approval_status":  string(t.ApprovalStatus),
		"pre_approved":     t.PreApproved,
		"safety_form":      safety,
		"ended_at":         t.EndedAt,
		"deleted_at":       t.DeletedAt,
	}, nil
}

// vehicleBusy translates a violation of one_active_trip_per_vehicle, which
// can only happen if a start raced past the vehicle lock.
func vehicleBusy(err error, t domain.Trip) error {
	if uniqueViolation(err, "one_active_trip_per_vehicle") {
		return &domain.StateError{
			Kind:   domain.ErrPrecondition,
			Entity: "vehicle",
			ID:     t.VehicleID,
			Reason: "vehicle is already on a trip in progress",
		}
	}
	return err
}

// scanTrip maps a single database row into a domain.Trip.
// It handles the UUID, nullable approver and JSONB safety form conversions.
func scanTrip(s scanner) (domain.Trip, error) {
	var (
		t          domain.Trip
		id         pgtype.UUID
		driverID   pgtype.UUID
		vehicleID  pgtype.UUID
		approverID pgtype.UUID
		tripDate   pgtype.Date
		status     string
		approval   string
		safety     []byte
	)

	err := s.Scan(&id, &driverID, &vehicleID, &approverID, &tripDate, &t.StartOdometer,
		&t.CurrentOdometer, &status, &approval, &t.PreApproved, &safety,
		&t.EndedAt, &t.DeletedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.Trip{}, notFound(err)
	}

	t.ID = uuid.UUID(id.Bytes)
	t.DriverID = uuid.UUID(driverID.Bytes)
	t.VehicleID = uuid.UUID(vehicleID.Bytes)
	t.ApproverID = nullableUUID(approverID)
	t.TripDate = tripDate.Time
	t.Status = domain.TripStatus(status)
	t.ApprovalStatus = domain.ApprovalStatus(approval)
	if safety != nil {
		var form domain.SafetyForm
		if err := json.Unmarshal(safety, &form); err != nil {
			return domain.Trip{}, fmt.Errorf("decode safety form: %w", err)
		}
		t.Safety = &form
	}
	return t, nil
}

func nullableUUID(u pgtype.UUID) *uuid.UUID {
	if !u.Valid {
		return nil
	}
	id := uuid.UUID(u.Bytes)
	return &id
}
