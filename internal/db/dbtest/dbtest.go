// Package dbtest provisions isolated Postgres schemas for integration tests.
package dbtest

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/vetcare-appointments/internal/db"
)

// DSNEnv names the variable holding the connection string of a disposable
// Postgres database.
const DSNEnv = "VETCARE_TEST_POSTGRES_DSN"

// Pool recreates the schema vetcare_test_<name>, applies the application
// tables to it and returns a pool bound to it. The test is skipped when
// DSNEnv is unset.
func Pool(t *testing.T, name string) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv(DSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", DSNEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	schema := pgx.Identifier{"vetcare_test_" + name}.Sanitize()

	conn, err := pgx.Connect(ctx, dsn)
	require.NoError(t, err)
	_, err = conn.Exec(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schema))
	require.NoError(t, err)
	_, err = conn.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", schema))
	require.NoError(t, err)
	require.NoError(t, conn.Close(ctx))

	cfg, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = "vetcare_test_" + name

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, db.ApplySchema(ctx, pool))
	return pool
}

func InsertUser(t *testing.T, pool *pgxpool.Pool, id uuid.UUID, name, role string) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO users (id, name, email, role) VALUES ($1, $2, $3, $4)
	`, id, name, id.String()+"@vetcare.test", role)
	require.NoError(t, err)
}

func InsertPet(t *testing.T, pool *pgxpool.Pool, id, ownerID uuid.UUID, name, species string) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO pets (id, owner_id, name, species) VALUES ($1, $2, $3, $4)
	`, id, ownerID, name, species)
	require.NoError(t, err)
}

// InsertAppointment stores an Accepted appointment for the given participants.
func InsertAppointment(t *testing.T, pool *pgxpool.Pool, id, doctorID, ownerID, petID uuid.UUID, date time.Time) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO appointments (id, doctor_id, owner_id, pet_id, appointment_date, appointment_time,
		                          appointment_type, charges, status)
		VALUES ($1, $2, $3, $4, $5, '10:00', 'OnClinic', 50, 'Accepted')
	`, id, doctorID, ownerID, petID, date)
	require.NoError(t, err)
}

// Count returns the number of rows in table matching where.
func Count(t *testing.T, pool *pgxpool.Pool, table, where string, args ...any) int {
	t.Helper()
	var n int
	err := pool.QueryRow(context.Background(),
		fmt.Sprintf("SELECT count(*) FROM %s WHERE %s", pgx.Identifier{table}.Sanitize(), where), args...).Scan(&n)
	require.NoError(t, err)
	return n
}
