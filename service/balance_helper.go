package service

import (
	"context"
	"fmt"

	"arcade/events"
	"arcade/models"
)

// RecordLedgerEntry appends a history entry and queues the matching event.
// This is the single entry point for game results reaching the history table.
func RecordLedgerEntry(ctx context.Context, uow UnitOfWork, entry *models.HistoryEntry, newBalance int64) error {
	if err := uow.HistoryRepository().Record(ctx, entry); err != nil {
		return fmt.Errorf("failed to record history entry: %w", err)
	}

	// Flushed only after the transaction commits
	uow.EventBus().Publish(events.LedgerEntryEvent{
		UserID:     entry.UserID,
		EntryID:    entry.ID,
		Game:       entry.Game,
		Amount:     entry.Amount,
		NewBalance: newBalance,
		CreatedAt:  entry.CreatedAt,
	})

	return nil
}
