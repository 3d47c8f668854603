package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"arcade/models"

	log "github.com/sirupsen/logrus"
)

type ledgerService struct {
	uowFactory UnitOfWorkFactory
}

// NewLedgerService creates a new ledger service
func NewLedgerService(uowFactory UnitOfWorkFactory) LedgerService {
	return &ledgerService{
		uowFactory: uowFactory,
	}
}

// ApplyDelta adds amount to the user's balance and records it under label.
// A zero amount labelled SYNC is a read of the current row.
func (s *ledgerService) ApplyDelta(ctx context.Context, user *models.User, amount int64, label string) (*models.LedgerResult, error) {
	if amount > models.MaxAmount || amount < -models.MaxAmount {
		return nil, ErrInvalidAmount
	}

	label = strings.TrimSpace(label)
	if label == "" {
		label = models.DefaultGameLabel
	}
	if utf8.RuneCountInString(label) > models.MaxGameLabelLength {
		return nil, ErrLabelTooLong
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storageError(err, "failed to begin transaction")
	}
	defer uow.Rollback()

	if amount == 0 && label == models.SyncLabel {
		current, err := uow.UserRepository().GetByID(ctx, user.ID)
		if err != nil {
			return nil, storageError(err, "failed to read balance")
		}
		if current == nil {
			return nil, ErrSessionInvalid
		}
		return &models.LedgerResult{
			Balance:   current.Balance,
			TotalWins: current.TotalWins,
			BestWin:   current.BestWin,
		}, nil
	}

	updated, err := uow.UserRepository().ApplyDelta(ctx, user.ID, amount)
	if err != nil {
		return nil, classify(err, "failed to apply delta")
	}

	entry := &models.HistoryEntry{
		UserID: user.ID,
		Game:   label,
		Amount: amount,
	}
	if err := RecordLedgerEntry(ctx, uow, entry, updated.Balance); err != nil {
		return nil, storageError(err, "failed to record ledger entry")
	}

	if err := uow.Commit(); err != nil {
		return nil, storageError(err, "failed to commit ledger entry")
	}

	log.WithFields(log.Fields{
		"userID":     user.ID,
		"game":       label,
		"amount":     amount,
		"newBalance": updated.Balance,
	}).Debug("Applied ledger delta")

	return &models.LedgerResult{
		Balance:   updated.Balance,
		TotalWins: updated.TotalWins,
		BestWin:   updated.BestWin,
		Entry:     entry,
	}, nil
}
