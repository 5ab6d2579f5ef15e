package testutil_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/triplog/migrations"
	"github.com/pkordes/triplog/testutil"
)

var tables = []string{"sub_units", "members", "vehicles", "trips", "destinations", "log_entries", "audit_logs"}

// The partial unique indexes back the one-running-trip-per-vehicle and
// one-running-destination-per-trip rules.
var indexes = []string{"one_active_trip_per_vehicle", "one_active_destination_per_trip"}

// TestMigrations applies every migration, checks the schema, rolls back to
// zero and checks nothing is left. It starts from version 0 because the repo
// package's TestMain may already have migrated the shared database.
func TestMigrations(t *testing.T) {
	db := testutil.NewSQLDB(t)
	ctx := context.Background()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	require.NoError(t, err, "create goose provider")

	_, err = provider.DownTo(ctx, 0)
	require.NoError(t, err, "initial reset")

	results, err := provider.Up(ctx)
	require.NoError(t, err, "goose up")
	assert.Len(t, results, 3)
	for _, table := range tables {
		assert.True(t, exists(t, db, tableQuery, table), "table %q after up", table)
	}
	for _, index := range indexes {
		assert.True(t, exists(t, db, indexQuery, index), "index %q after up", index)
	}

	_, err = provider.DownTo(ctx, 0)
	require.NoError(t, err, "goose down-to 0")
	for _, table := range tables {
		assert.False(t, exists(t, db, tableQuery, table), "table %q after down", table)
	}

	// Leave the schema migrated for packages that run after this one.
	_, err = provider.Up(ctx)
	require.NoError(t, err, "goose up again")
}

const (
	tableQuery = `SELECT EXISTS (
		SELECT 1 FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = $1)`
	indexQuery = `SELECT EXISTS (
		SELECT 1 FROM pg_indexes
		WHERE schemaname = 'public' AND indexname = $1)`
)

func exists(t *testing.T, db *sql.DB, q, name string) bool {
	t.Helper()
	var ok bool
	require.NoError(t, db.QueryRowContext(context.Background(), q, name).Scan(&ok), "lookup %q", name)
	return ok
}
