// Package repo contains all database access logic for the trip log service.
// Each resource has its own file with an interface and a Postgres implementation.
// No business logic lives here, only SQL, row locking and type mapping.
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pkordes/triplog/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// beginner is satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx (the latter
// starts a savepoint).
type beginner interface {
	db
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store groups the repos that take part in one unit of work.
type Store interface {
	Trips() TripRepo
	Destinations() DestinationRepo
	Logs() LogRepo
}

// Transactor is a Store whose reads run outside a transaction, plus the
// ability to run a function inside one. Every multi-row mutation in the
// service layer goes through WithinTx.
type Transactor interface {
	Store
	WithinTx(ctx context.Context, fn func(Store) error) error
}

type pgStore struct {
	db db
}

func (s pgStore) Trips() TripRepo               { return &pgTripRepo{db: s.db} }
func (s pgStore) Destinations() DestinationRepo { return &pgDestinationRepo{db: s.db} }
func (s pgStore) Logs() LogRepo                 { return &pgLogRepo{db: s.db} }

// pgTransactor is the Postgres implementation of Transactor.
type pgTransactor struct {
	pgStore
	conn beginner
}

// NewTransactor constructs a Transactor backed by the provided connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx, in which case
// WithinTx runs inside a savepoint and is still rolled back with the test.
func NewTransactor(conn beginner) Transactor {
	return &pgTransactor{pgStore: pgStore{db: conn}, conn: conn}
}

// WithinTx runs fn in a transaction. The transaction commits if fn returns
// nil and rolls back otherwise.
func (t *pgTransactor) WithinTx(ctx context.Context, fn func(Store) error) error {
	err := pgx.BeginFunc(ctx, t.conn, func(tx pgx.Tx) error {
		return fn(pgStore{db: tx})
	})
	if err != nil {
		return fmt.Errorf("repo.Transactor.WithinTx: %w", err)
	}
	return nil
}

// Apply executes every mutation of plan, in order, against s.
// Call it with the Store handed to WithinTx so the plan commits atomically.
func Apply(ctx context.Context, s Store, plan *domain.Plan) error {
	for i, m := range plan.Mutations {
		var err error
		switch m := m.(type) {
		case domain.InsertTrip:
			err = s.Trips().Insert(ctx, m.Trip)
		case domain.UpdateTrip:
			err = s.Trips().Update(ctx, m.Trip)
		case domain.InsertDestination:
			err = s.Destinations().Insert(ctx, m.Destination)
		case domain.UpdateDestination:
			err = s.Destinations().Update(ctx, m.Destination)
		case domain.InsertLog:
			err = s.Logs().Insert(ctx, m.Log)
		case domain.UpdateLog:
			err = s.Logs().Update(ctx, m.Log)
		default:
			err = fmt.Errorf("unknown mutation %T", m)
		}
		if err != nil {
			return fmt.Errorf("repo.Apply: mutation %d: %w", i, err)
		}
	}
	return nil
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing the scan
// helpers to be reused for both QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}

// notFound maps pgx.ErrNoRows to domain.ErrNotFound and passes anything else through.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

// uniqueViolation reports whether err is a unique violation on constraint.
func uniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}

// exactlyOne turns an UPDATE that touched no rows into domain.ErrNotFound.
func exactlyOne(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
