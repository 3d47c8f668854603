package repository

import (
	"context"
	"fmt"

	"arcade/database"
	"arcade/models"
)

// HistoryRepository implements the HistoryRepository interface
type HistoryRepository struct {
	q queryable
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *database.DB) *HistoryRepository {
	return &HistoryRepository{q: db.Pool}
}

func newHistoryRepositoryWithTx(tx queryable) *HistoryRepository {
	return &HistoryRepository{q: tx}
}

// Record creates a new history entry
func (r *HistoryRepository) Record(ctx context.Context, entry *models.HistoryEntry) error {
	query := `
		INSERT INTO history (user_id, game, amount)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query, entry.UserID, entry.Game, entry.Amount).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record history for user %d: %w", entry.UserID, err)
	}
	return nil
}

// GetRecentByUser returns a user's newest history entries, newest first
func (r *HistoryRepository) GetRecentByUser(ctx context.Context, userID int64, limit int) ([]*models.HistoryEntry, error) {
	query := `
		SELECT id, user_id, game, amount, created_at
		FROM history
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get history for user %d: %w", userID, err)
	}
	defer rows.Close()

	var entries []*models.HistoryEntry
	for rows.Next() {
		var entry models.HistoryEntry
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Game, &entry.Amount, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}

	return entries, nil
}
