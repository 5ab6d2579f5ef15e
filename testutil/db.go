// Package testutil provides shared helpers for integration tests.
// Helpers in this package skip automatically when required environment
// variables are not set, so unit tests can run without a running database.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver for database/sql
)

// NewPool opens a *pgxpool.Pool connected to the database specified by the
// TEST_DATABASE_URL environment variable.
//
// The test is skipped automatically if TEST_DATABASE_URL is not set, so
// integration tests are opt-in and never break CI environments that lack a DB.
// The pool is closed automatically when the test (and all its subtests) finish.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := requireDSN(t)

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("testutil.NewPool: open pool: %v", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		t.Fatalf("testutil.NewPool: ping: %v", err)
	}

	t.Cleanup(pool.Close)
	return pool
}

// NewSQLDB opens a *sql.DB connected to the database specified by the
// TEST_DATABASE_URL environment variable using the pgx database/sql driver.
//
// Use this when you need a *sql.DB rather than a *pgxpool.Pool, for example
// when driving goose migrations in integration tests.
// The connection is closed automatically when the test finishes.
func NewSQLDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := requireDSN(t)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("testutil.NewSQLDB: open: %v", err)
	}

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		t.Fatalf("testutil.NewSQLDB: ping: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// NewTx begins a transaction on a fresh test pool and rolls it back when the
// test finishes, so every row a test writes disappears with it.
func NewTx(t *testing.T) pgx.Tx {
	t.Helper()
	pool := NewPool(t)

	tx, err := pool.Begin(context.Background())
	if err != nil {
		t.Fatalf("testutil.NewTx: begin: %v", err)
	}
	t.Cleanup(func() { _ = tx.Rollback(context.Background()) })
	return tx
}

// Org is a minimal organization: one sub-unit with a driver, an approving
// officer and a vehicle.
type Org struct {
	BaseID    uuid.UUID
	SubUnitID uuid.UUID
	DriverID  uuid.UUID
	OfficerID uuid.UUID
	VehicleID uuid.UUID
}

// SeedOrg inserts an Org through tx. Registrations are random so several
// orgs can coexist in one transaction.
func SeedOrg(t *testing.T, tx pgx.Tx) Org {
	t.Helper()
	ctx := context.Background()
	o := Org{
		BaseID:    uuid.New(),
		SubUnitID: uuid.New(),
		DriverID:  uuid.New(),
		OfficerID: uuid.New(),
		VehicleID: uuid.New(),
	}

	stmts := []struct {
		sql  string
		args []any
	}{
		{`INSERT INTO sub_units (id, base_id, name) VALUES ($1, $2, 'Transport')`, []any{o.SubUnitID, o.BaseID}},
		{`INSERT INTO members (id, sub_unit_id, name, capabilities) VALUES ($1, $2, 'Driver', '{driver}')`, []any{o.DriverID, o.SubUnitID}},
		{`INSERT INTO members (id, sub_unit_id, name, capabilities) VALUES ($1, $2, 'Officer', '{approving_officer}')`, []any{o.OfficerID, o.SubUnitID}},
		{`INSERT INTO vehicles (id, sub_unit_id, registration) VALUES ($1, $2, $3)`, []any{o.VehicleID, o.SubUnitID, fmt.Sprintf("TST-%s", o.VehicleID.String()[:8])}},
	}
	for _, st := range stmts {
		if _, err := tx.Exec(ctx, st.sql, st.args...); err != nil {
			t.Fatalf("testutil.SeedOrg: %v", err)
		}
	}
	return o
}

// MustOpenSQLDB opens a *sql.DB for the given DSN and panics on any error.
// Use this in TestMain functions where no *testing.T is available.
// Callers are responsible for closing the returned *sql.DB.
func MustOpenSQLDB(dsn string) *sql.DB {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		panic("testutil.MustOpenSQLDB: open: " + err.Error())
	}
	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		panic("testutil.MustOpenSQLDB: ping: " + err.Error())
	}
	return db
}

// requireDSN returns the TEST_DATABASE_URL environment variable value,
// skipping the test if it is not set.
func requireDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping integration test")
	}
	return dsn
}
