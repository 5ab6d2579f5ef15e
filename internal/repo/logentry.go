package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/triplog/internal/domain"
)

// LogRepo defines the persistence operations for destination log entries.
type LogRepo interface {
	// GetByDestination returns the log entry of a destination.
	// Returns domain.ErrNotFound if the destination has not been started.
	GetByDestination(ctx context.Context, destinationID uuid.UUID) (domain.LogEntry, error)

	// ListByTrip returns the log entries of every started destination of a trip.
	ListByTrip(ctx context.Context, tripID uuid.UUID) ([]domain.LogEntry, error)

	// LastClosedOdometer returns the odometer reading of the most recently
	// closed log entry across all destinations of the vehicle, or nil if the
	// vehicle has no closed entries.
	LastClosedOdometer(ctx context.Context, vehicleID uuid.UUID) (*int, error)

	// Insert creates a log entry with the caller-assigned ID.
	Insert(ctx context.Context, l domain.LogEntry) error

	// Update overwrites the closing columns of a log entry.
	Update(ctx context.Context, l domain.LogEntry) error
}

// pgLogRepo is the Postgres implementation of LogRepo.
type pgLogRepo struct {
	db db
}

// NewLogRepo constructs a LogRepo backed by the provided db connection.
func NewLogRepo(db db) LogRepo {
	return &pgLogRepo{db: db}
}

const logColumns = `l.id, l.destination_id, l.start_time, l.end_time, l.start_odometer, l.odometer,
	l.distance, l.running_time, l.fuel_received, l.fuel_type, l.purpose, l.remarks,
	l.created_at, l.updated_at`

func (r *pgLogRepo) GetByDestination(ctx context.Context, destinationID uuid.UUID) (domain.LogEntry, error) {
	q := `SELECT ` + logColumns + ` FROM log_entries l WHERE l.destination_id = @destination_id`

	result, err := scanLog(r.db.QueryRow(ctx, q, pgx.NamedArgs{"destination_id": destinationID}))
	if err != nil {
		return domain.LogEntry{}, fmt.Errorf("repo.LogRepo.GetByDestination: %w", err)
	}
	return result, nil
}

func (r *pgLogRepo) ListByTrip(ctx context.Context, tripID uuid.UUID) ([]domain.LogEntry, error) {
	q := `SELECT ` + logColumns + `
		FROM log_entries l
		JOIN destinations d ON d.id = l.destination_id
		WHERE d.trip_id = @trip_id AND d.deleted_at IS NULL
		ORDER BY d.sequence`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"trip_id": tripID})
	if err != nil {
		return nil, fmt.Errorf("repo.LogRepo.ListByTrip: %w", err)
	}
	defer rows.Close()

	logs := []domain.LogEntry{}
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.LogRepo.ListByTrip: scan: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.LogRepo.ListByTrip: rows: %w", err)
	}
	return logs, nil
}

func (r *pgLogRepo) LastClosedOdometer(ctx context.Context, vehicleID uuid.UUID) (*int, error) {
	const q = `
		SELECT l.odometer
		FROM log_entries l
		JOIN destinations d ON d.id = l.destination_id
		JOIN trips t ON t.id = d.trip_id
		WHERE t.vehicle_id = @vehicle_id
		  AND l.end_time IS NOT NULL
		  AND d.deleted_at IS NULL
		  AND t.deleted_at IS NULL
		ORDER BY l.end_time DESC
		LIMIT 1`

	var odometer int
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"vehicle_id": vehicleID}).Scan(&odometer)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repo.LogRepo.LastClosedOdometer: %w", err)
	}
	return &odometer, nil
}

func (r *pgLogRepo) Insert(ctx context.Context, l domain.LogEntry) error {
	const q = `
		INSERT INTO log_entries (id, destination_id, start_time, end_time, start_odometer, odometer,
		                         distance, running_time, fuel_received, fuel_type, purpose, remarks)
		VALUES (@id, @destination_id, @start_time, @end_time, @start_odometer, @odometer,
		        @distance, @running_time, @fuel_received, @fuel_type, @purpose, @remarks)`

	if _, err := r.db.Exec(ctx, q, logArgs(l)); err != nil {
		return fmt.Errorf("repo.LogRepo.Insert: %w", err)
	}
	return nil
}

// Update only touches the columns written when a destination ends; the
// opening reading and start time are immutable.
func (r *pgLogRepo) Update(ctx context.Context, l domain.LogEntry) error {
	const q = `
		UPDATE log_entries
		SET end_time      = @end_time,
		    odometer      = @odometer,
		    distance      = @distance,
		    running_time  = @running_time,
		    fuel_received = @fuel_received,
		    fuel_type     = @fuel_type,
		    purpose       = @purpose,
		    remarks       = @remarks,
		    updated_at    = now()
		WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, logArgs(l))
	if err != nil {
		return fmt.Errorf("repo.LogRepo.Update: %w", err)
	}
	if err := exactlyOne(tag); err != nil {
		return fmt.Errorf("repo.LogRepo.Update: %w", err)
	}
	return nil
}

func logArgs(l domain.LogEntry) pgx.NamedArgs {
	return pgx.NamedArgs{
		"id":             l.ID,
		"destination_id": l.DestinationID,
		"start_time":     l.StartTime,
		"end_time":       l.EndTime,
		"start_odometer": l.StartOdometer,
		"odometer":       l.Odometer,
		"distance":       l.Distance,
		"running_time":   l.RunningTime,
		"fuel_received":  l.FuelReceived,
		"fuel_type":      l.FuelType,
		"purpose":        l.Purpose,
		"remarks":        l.Remarks,
	}
}

// scanLog maps a single database row into a domain.LogEntry.
func scanLog(s scanner) (domain.LogEntry, error) {
	var (
		l      domain.LogEntry
		id     pgtype.UUID
		destID pgtype.UUID
	)

	err := s.Scan(&id, &destID, &l.StartTime, &l.EndTime, &l.StartOdometer, &l.Odometer,
		&l.Distance, &l.RunningTime, &l.FuelReceived, &l.FuelType, &l.Purpose, &l.Remarks,
		&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return domain.LogEntry{}, notFound(err)
	}

	l.ID = uuid.UUID(id.Bytes)
	l.DestinationID = uuid.UUID(destID.Bytes)
	return l, nil
}
