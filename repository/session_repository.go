package repository

import (
	"context"
	"errors"
	"fmt"

	"arcade/database"
	"arcade/models"

	"github.com/jackc/pgx/v5"
)

// SessionRepository implements the SessionRepository interface
type SessionRepository struct {
	q queryable
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{q: db.Pool}
}

func newSessionRepositoryWithTx(tx queryable) *SessionRepository {
	return &SessionRepository{q: tx}
}

// Create stores a new session, filling in CreatedAt
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (token, user_id)
		VALUES ($1, $2)
		RETURNING created_at
	`

	if err := r.q.QueryRow(ctx, query, session.Token, session.UserID).Scan(&session.CreatedAt); err != nil {
		return fmt.Errorf("failed to create session for user %d: %w", session.UserID, err)
	}
	return nil
}

// GetWithUser resolves a token with an exact-match lookup joined to its user
func (r *SessionRepository) GetWithUser(ctx context.Context, token string) (*models.Session, *models.User, error) {
	query := `
		SELECT s.token, s.user_id, s.created_at,
		       u.id, u.name, u.password_hash, u.balance, u.total_wins, u.best_win, u.created_at, u.last_active_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token = $1
	`

	var session models.Session
	var user models.User
	err := r.q.QueryRow(ctx, query, token).Scan(
		&session.Token,
		&session.UserID,
		&session.CreatedAt,
		&user.ID,
		&user.Name,
		&user.PasswordHash,
		&user.Balance,
		&user.TotalWins,
		&user.BestWin,
		&user.CreatedAt,
		&user.LastActiveAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve session: %w", err)
	}

	return &session, &user, nil
}
