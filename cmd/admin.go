package cmd

import (
	"context"
	"fmt"

	"arcade/config"
	"arcade/database"
	"arcade/events"
	"arcade/repository"
	"arcade/service"

	log "github.com/sirupsen/logrus"
)

// AdminAdjustmentLabel tags ledger entries written by the adjust-balance command
const AdminAdjustmentLabel = "ADMIN"

// AdjustBalance applies a signed amount to the named user's balance through the ledger,
// so the change shows up in history and the leaderboards like any game result.
func AdjustBalance(ctx context.Context, name string, amount int64) error {
	cfg := config.Get()
	ConfigureLogging(cfg)

	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Admin adjustments are not forwarded anywhere
	uowFactory := repository.NewUnitOfWorkFactory(db, events.NewBus())
	return adjustBalance(ctx, uowFactory, name, amount)
}

func adjustBalance(ctx context.Context, uowFactory service.UnitOfWorkFactory, name string, amount int64) error {
	uow := uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	user, err := uow.UserRepository().GetByName(ctx, name)
	uow.Rollback()
	if err != nil {
		return fmt.Errorf("failed to look up user %q: %w", name, err)
	}
	if user == nil {
		return fmt.Errorf("user %q not found", name)
	}

	result, err := service.NewLedgerService(uowFactory).ApplyDelta(ctx, user, amount, AdminAdjustmentLabel)
	if err != nil {
		return fmt.Errorf("failed to adjust balance: %w", err)
	}

	log.WithFields(log.Fields{
		"user":       user.Name,
		"userID":     user.ID,
		"amount":     amount,
		"newBalance": result.Balance,
	}).Info("Adjusted balance")
	return nil
}
