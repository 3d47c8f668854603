package repository

import (
	"context"
	"errors"
	"fmt"

	"arcade/database"
	"arcade/models"
	"arcade/service"

	"github.com/jackc/pgx/v5"
)

const userColumns = `id, name, password_hash, balance, total_wins, best_win, created_at, last_active_at`

// UserRepository implements the UserRepository interface
type UserRepository struct {
	q queryable
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

// newUserRepositoryWithTx creates a new user repository with a transaction
func newUserRepositoryWithTx(tx queryable) *UserRepository {
	return &UserRepository{q: tx}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.PasswordHash,
		&user.Balance,
		&user.TotalWins,
		&user.BestWin,
		&user.CreatedAt,
		&user.LastActiveAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByID retrieves a user by id
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return user, nil
}

// GetByName retrieves a user by exact, case-sensitive name
func (r *UserRepository) GetByName(ctx context.Context, name string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE name = $1`

	user, err := scanUser(r.q.QueryRow(ctx, query, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %q: %w", name, err)
	}
	return user, nil
}

// Create creates a new user with the initial balance
func (r *UserRepository) Create(ctx context.Context, name, passwordHash string, initialBalance int64) (*models.User, error) {
	query := `
		INSERT INTO users (name, password_hash, balance, total_wins, best_win)
		VALUES ($1, $2, $3, 0, 0)
		RETURNING ` + userColumns

	user, err := scanUser(r.q.QueryRow(ctx, query, name, passwordHash, initialBalance))
	if isUniqueViolation(err, "users_name_key") {
		return nil, service.ErrDuplicateName
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user %q: %w", name, err)
	}
	return user, nil
}

// ApplyDelta adds amount to the balance and updates win statistics in one statement.
// The floor check happens in the WHERE clause so concurrent deltas cannot race past it.
func (r *UserRepository) ApplyDelta(ctx context.Context, id int64, amount int64) (*models.User, error) {
	query := `
		UPDATE users
		SET balance = balance + $1,
		    total_wins = total_wins + CASE WHEN $1 > 0 THEN 1 ELSE 0 END,
		    best_win = GREATEST(best_win, $1),
		    last_active_at = NOW()
		WHERE id = $2
		  AND balance + $1 >= 0
		RETURNING ` + userColumns

	user, err := scanUser(r.q.QueryRow(ctx, query, amount, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.explainMissedUpdate(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to apply delta %d for user %d: %w", amount, id, err)
	}
	return user, nil
}

// AddBalance adds to a user's balance atomically
func (r *UserRepository) AddBalance(ctx context.Context, id int64, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}

	query := `
		UPDATE users
		SET balance = balance + $1
		WHERE id = $2
	`

	result, err := r.q.Exec(ctx, query, amount, id)
	if err != nil {
		return fmt.Errorf("failed to add balance for user %d: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %d not found", id)
	}

	return nil
}

// DeductBalance deducts from a user's balance atomically, failing if insufficient funds
func (r *UserRepository) DeductBalance(ctx context.Context, id int64, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}

	// The balance is re-checked at write time; the caller's earlier read is only advisory
	query := `
		UPDATE users
		SET balance = balance - $1, last_active_at = NOW()
		WHERE id = $2 AND balance >= $1
	`

	result, err := r.q.Exec(ctx, query, amount, id)
	if err != nil {
		return fmt.Errorf("failed to deduct balance for user %d: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return r.explainMissedUpdate(ctx, id)
	}

	return nil
}

// LockPair row-locks both users in ascending id order until the transaction ends.
func (r *UserRepository) LockPair(ctx context.Context, firstID, secondID int64) error {
	query := `SELECT id FROM users WHERE id = ANY($1) ORDER BY id FOR UPDATE`

	rows, err := r.q.Query(ctx, query, []int64{firstID, secondID})
	if err != nil {
		return fmt.Errorf("failed to lock users %d and %d: %w", firstID, secondID, err)
	}
	locked, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return fmt.Errorf("failed to lock users %d and %d: %w", firstID, secondID, err)
	}

	want := 2
	if firstID == secondID {
		want = 1
	}
	if len(locked) != want {
		return fmt.Errorf("failed to lock users %d and %d: user not found", firstID, secondID)
	}
	return nil
}

// Touch refreshes a user's last activity time
func (r *UserRepository) Touch(ctx context.Context, id int64) error {
	if _, err := r.q.Exec(ctx, `UPDATE users SET last_active_at = NOW() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to touch user %d: %w", id, err)
	}
	return nil
}

// explainMissedUpdate tells a missing user apart from a failed balance guard
func (r *UserRepository) explainMissedUpdate(ctx context.Context, id int64) error {
	user, err := r.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("user %d not found", id)
	}
	return service.ErrInsufficientFunds
}
