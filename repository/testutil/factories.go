package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"arcade/database"
	"arcade/models"

	"github.com/stretchr/testify/require"
)

var nameSeq atomic.Int64

// UniqueName returns a user name that is unique within the test binary
func UniqueName(prefix string) string {
	return fmt.Sprintf("%s%d", prefix, nameSeq.Add(1))
}

// CreateTestUser builds an in-memory user with default values
func CreateTestUser(id int64, name string) *models.User {
	now := time.Now()
	return &models.User{
		ID:           id,
		Name:         name,
		PasswordHash: "digest",
		Balance:      5000,
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// CreateTestUserWithBalance builds an in-memory user with a specific balance
func CreateTestUserWithBalance(id int64, name string, balance int64) *models.User {
	user := CreateTestUser(id, name)
	user.Balance = balance
	return user
}

// InsertUser stores a user row with the given balance and returns it
func InsertUser(t *testing.T, db *database.DB, name string, balance int64) *models.User {
	t.Helper()

	user := &models.User{Name: name, PasswordHash: "digest", Balance: balance}
	err := db.QueryRow(context.Background(), `
		INSERT INTO users (name, password_hash, balance)
		VALUES ($1, $2, $3)
		RETURNING id, total_wins, best_win, created_at, last_active_at
	`, name, user.PasswordHash, balance).Scan(
		&user.ID,
		&user.TotalWins,
		&user.BestWin,
		&user.CreatedAt,
		&user.LastActiveAt,
	)
	require.NoError(t, err)
	return user
}

// InsertHistory stores a history row with an explicit timestamp
func InsertHistory(t *testing.T, db *database.DB, userID int64, game string, amount int64, createdAt time.Time) {
	t.Helper()

	_, err := db.Exec(context.Background(), `
		INSERT INTO history (user_id, game, amount, created_at)
		VALUES ($1, $2, $3, $4)
	`, userID, game, amount, createdAt)
	require.NoError(t, err)
}
