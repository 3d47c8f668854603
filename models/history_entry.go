package models

import (
	"time"
)

const (
	// SyncLabel marks a zero-amount ledger call that only refreshes the client snapshot
	SyncLabel = "SYNC"

	// DefaultGameLabel is used when a ledger call carries no game label
	DefaultGameLabel = "Game"

	// MaxGameLabelLength bounds the stored game label
	MaxGameLabelLength = 64
)

// HistoryEntry is one immutable line of a user's game ledger.
// Positive amounts are wins, zero or negative are losses or neutral results.
type HistoryEntry struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Game      string    `db:"game"`
	Amount    int64     `db:"amount"`
	CreatedAt time.Time `db:"created_at"`
}

// LedgerResult is the user's state after a ledger call
type LedgerResult struct {
	Balance   int64
	TotalWins int64
	BestWin   int64
	Entry     *HistoryEntry // nil for SYNC reads
}
