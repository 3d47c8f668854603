package models

import (
	"time"
)

// MaxAmount bounds a single ledger or transfer amount to the integers a JSON number holds exactly
const MaxAmount int64 = 1 << 53

// Transfer is a committed movement of points from one user to another
type Transfer struct {
	ID             int64     `db:"id"`
	TxCode         string    `db:"tx_code"`
	SenderID       int64     `db:"sender_id"`
	ReceiverID     int64     `db:"receiver_id"`
	Amount         int64     `db:"amount"`
	IdempotencyKey *string   `db:"idempotency_key"`
	CreatedAt      time.Time `db:"created_at"`
}

// TransferView is a transfer joined with both parties' names
type TransferView struct {
	ID           int64
	TxCode       string
	Amount       int64
	SenderID     int64
	SenderName   string
	ReceiverID   int64
	ReceiverName string
	CreatedAt    time.Time
}

// TransferRequest carries the caller-supplied transfer parameters
type TransferRequest struct {
	Receiver       string
	Amount         int64
	IdempotencyKey string
}

// TransferResult is returned after a transfer commits or is replayed
type TransferResult struct {
	TxCode           string
	Amount           int64
	SenderName       string
	ReceiverID       int64
	ReceiverName     string
	NewSenderBalance int64
	CreatedAt        time.Time
	Replayed         bool // true when an idempotency key matched an earlier transfer
}
