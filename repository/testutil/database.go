package testutil

import (
	"context"
	"testing"
	"time"

	"arcade/database"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// TestDatabase represents a test database instance
type TestDatabase struct {
	Container *postgres.PostgresContainer
	DB        *database.DB
	URL       string
}

// SetupTestDatabase creates a new PostgreSQL test container and runs migrations.
// Skipped under -short since it needs a Docker daemon.
func SetupTestDatabase(t *testing.T) *TestDatabase {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}

	ctx := context.Background()

	labels := map[string]string{
		"test":      "arcade-repository",
		"test-name": t.Name(),
		"timestamp": time.Now().Format("20060102-150405"),
		"cleanup":   "auto",
	}

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("arcade_test"),
		postgres.WithUsername("test_user"),
		postgres.WithPassword("test_password"),
		postgres.BasicWaitStrategies(),
		testcontainers.WithLabels(labels),
	)
	require.NoError(t, err)

	testDB := &TestDatabase{
		Container: postgresContainer,
	}
	t.Cleanup(func() {
		testDB.cleanup(t)
	})

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Run migrations first (before creating the connection)
	require.NoError(t, database.RunMigrationsWithURL(connStr))

	db, err := database.NewConnection(ctx, connStr)
	require.NoError(t, err)

	testDB.DB = db
	testDB.URL = connStr

	return testDB
}

// cleanup closes the pool and terminates the container, never failing the test
func (td *TestDatabase) cleanup(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Logf("Panic during container cleanup (recovered): %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if td.DB != nil {
		td.DB.Close()
	}

	if td.Container != nil {
		if err := td.Container.Terminate(ctx); err != nil {
			t.Logf("Warning: Failed to terminate test container: %v", err)
		}
	}
}

// SetBalance overwrites a user's balance directly, bypassing the ledger
func (td *TestDatabase) SetBalance(t *testing.T, userID int64, balance int64) {
	t.Helper()
	_, err := td.DB.Exec(context.Background(), `UPDATE users SET balance = $1 WHERE id = $2`, balance, userID)
	require.NoError(t, err)
}

// SumBalances returns the total of all user balances
func (td *TestDatabase) SumBalances(t *testing.T) int64 {
	t.Helper()
	var total int64
	err := td.DB.QueryRow(context.Background(), `SELECT COALESCE(SUM(balance), 0)::BIGINT FROM users`).Scan(&total)
	require.NoError(t, err)
	return total
}

// CountRows returns the number of rows in a table
func (td *TestDatabase) CountRows(t *testing.T, table string) int {
	t.Helper()
	var count int
	err := td.DB.QueryRow(context.Background(), `SELECT COUNT(*) FROM `+table).Scan(&count)
	require.NoError(t, err)
	return count
}
