package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"arcade/database"
	"arcade/models"
	"arcade/service"

	"github.com/jackc/pgx/v5"
)

const idempotencyKeyIndex = "transfers_sender_idempotency_key_idx"

// TransferRepository implements the TransferRepository interface
type TransferRepository struct {
	q queryable
}

// NewTransferRepository creates a new transfer repository
func NewTransferRepository(db *database.DB) *TransferRepository {
	return &TransferRepository{q: db.Pool}
}

func newTransferRepositoryWithTx(tx queryable) *TransferRepository {
	return &TransferRepository{q: tx}
}

// Create inserts a transfer row.
// A tx code collision is absorbed by ON CONFLICT so the surrounding transaction stays usable.
func (r *TransferRepository) Create(ctx context.Context, transfer *models.Transfer) error {
	query := `
		INSERT INTO transfers (tx_code, sender_id, receiver_id, amount, idempotency_key)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tx_code) DO NOTHING
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		transfer.TxCode,
		transfer.SenderID,
		transfer.ReceiverID,
		transfer.Amount,
		transfer.IdempotencyKey,
	).Scan(&transfer.ID, &transfer.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return service.ErrTxCodeCollision
	}
	if isUniqueViolation(err, idempotencyKeyIndex) {
		return service.ErrDuplicateIdempotencyKey
	}
	if err != nil {
		return fmt.Errorf("failed to create transfer %s: %w", transfer.TxCode, err)
	}
	return nil
}

// GetByIdempotencyKey finds a sender's transfer by idempotency key
func (r *TransferRepository) GetByIdempotencyKey(ctx context.Context, senderID int64, key string) (*models.Transfer, error) {
	query := `
		SELECT id, tx_code, sender_id, receiver_id, amount, idempotency_key, created_at
		FROM transfers
		WHERE sender_id = $1 AND idempotency_key = $2
	`

	var transfer models.Transfer
	err := r.q.QueryRow(ctx, query, senderID, key).Scan(
		&transfer.ID,
		&transfer.TxCode,
		&transfer.SenderID,
		&transfer.ReceiverID,
		&transfer.Amount,
		&transfer.IdempotencyKey,
		&transfer.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transfer by idempotency key for user %d: %w", senderID, err)
	}
	return &transfer, nil
}

// GetByUser returns transfers the user sent or received, newest first
func (r *TransferRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]*models.TransferView, error) {
	query := `
		SELECT t.id, t.tx_code, t.amount, t.created_at,
		       t.sender_id, u_send.name, t.receiver_id, u_recv.name
		FROM transfers t
		JOIN users u_send ON u_send.id = t.sender_id
		JOIN users u_recv ON u_recv.id = t.receiver_id
		WHERE t.sender_id = $1 OR t.receiver_id = $1
		ORDER BY t.created_at DESC, t.id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get transfers for user %d: %w", userID, err)
	}
	defer rows.Close()

	var views []*models.TransferView
	for rows.Next() {
		var view models.TransferView
		err := rows.Scan(
			&view.ID,
			&view.TxCode,
			&view.Amount,
			&view.CreatedAt,
			&view.SenderID,
			&view.SenderName,
			&view.ReceiverID,
			&view.ReceiverName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		views = append(views, &view)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transfers: %w", err)
	}

	return views, nil
}

// ClearIdempotencyKeys releases keys of transfers older than cutoff so they can be reused
func (r *TransferRepository) ClearIdempotencyKeys(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE transfers
		SET idempotency_key = NULL
		WHERE idempotency_key IS NOT NULL AND created_at < $1
	`

	result, err := r.q.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clear idempotency keys before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return result.RowsAffected(), nil
}
