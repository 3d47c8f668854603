package models

import (
	"time"
)

// MaxNameLength is the longest display name an account may register with
const MaxNameLength = 40

// User represents a player account with its point balance
type User struct {
	ID           int64     `db:"id"`
	Name         string    `db:"name"`
	PasswordHash string    `db:"password_hash"`
	Balance      int64     `db:"balance"`
	TotalWins    int64     `db:"total_wins"`
	BestWin      int64     `db:"best_win"`
	CreatedAt    time.Time `db:"created_at"`
	LastActiveAt time.Time `db:"last_active_at"`
}

// Receiver is the public identity of a transfer counterparty
type Receiver struct {
	ID   int64
	Name string
}
