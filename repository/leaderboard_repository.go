package repository

import (
	"context"
	"fmt"
	"time"

	"arcade/database"
	"arcade/models"

	"github.com/jackc/pgx/v5"
)

// LeaderboardRepository implements the read-only ranking queries
type LeaderboardRepository struct {
	q queryable
}

// NewLeaderboardRepository creates a new leaderboard repository
func NewLeaderboardRepository(db *database.DB) *LeaderboardRepository {
	return &LeaderboardRepository{q: db.Pool}
}

func newLeaderboardRepositoryWithTx(tx queryable) *LeaderboardRepository {
	return &LeaderboardRepository{q: tx}
}

// TopByBalance ranks users by balance, ties broken by id
func (r *LeaderboardRepository) TopByBalance(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error) {
	query := `
		SELECT id, name, balance
		FROM users
		ORDER BY balance DESC, id
		LIMIT $1
	`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get global leaderboard: %w", err)
	}
	return collectLeaderboard(rows)
}

// TopByWinningsSince ranks users by summed history amounts since the given time.
// Users without entries in the window score 0.
func (r *LeaderboardRepository) TopByWinningsSince(ctx context.Context, since time.Time, limit int) ([]*models.LeaderboardEntry, error) {
	query := `
		SELECT u.id, u.name, COALESCE(SUM(h.amount), 0)::BIGINT AS score
		FROM users u
		LEFT JOIN history h ON h.user_id = u.id AND h.created_at >= $1
		GROUP BY u.id, u.name
		ORDER BY score DESC, u.id
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get weekly leaderboard: %w", err)
	}
	return collectLeaderboard(rows)
}

// RecentActivity returns the newest history rows across all users
func (r *LeaderboardRepository) RecentActivity(ctx context.Context, limit int) ([]*models.ActivityEntry, error) {
	query := `
		SELECT h.id, u.name, h.game, h.amount, h.created_at
		FROM history h
		JOIN users u ON u.id = h.user_id
		ORDER BY h.created_at DESC, h.id DESC
		LIMIT $1
	`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent activity: %w", err)
	}
	defer rows.Close()

	var entries []*models.ActivityEntry
	for rows.Next() {
		var entry models.ActivityEntry
		if err := rows.Scan(&entry.ID, &entry.Name, &entry.Game, &entry.Amount, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activity: %w", err)
	}

	return entries, nil
}

func collectLeaderboard(rows pgx.Rows) ([]*models.LeaderboardEntry, error) {
	defer rows.Close()

	var entries []*models.LeaderboardEntry
	for rows.Next() {
		var entry models.LeaderboardEntry
		if err := rows.Scan(&entry.UserID, &entry.Name, &entry.Score); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate leaderboard: %w", err)
	}

	return entries, nil
}
