package service

import (
	"context"
	"fmt"
	"time"

	"arcade/config"

	log "github.com/sirupsen/logrus"
)

// IdempotencyPurger periodically releases transfer idempotency keys older than the replay window
type IdempotencyPurger struct {
	uowFactory UnitOfWorkFactory
	window     time.Duration
	interval   time.Duration
	now        func() time.Time
}

// NewIdempotencyPurger creates a new idempotency key purger
func NewIdempotencyPurger(uowFactory UnitOfWorkFactory, cfg *config.Config) *IdempotencyPurger {
	return &IdempotencyPurger{
		uowFactory: uowFactory,
		window:     cfg.IdempotencyWindow,
		interval:   cfg.IdempotencyPurgeInterval,
		now:        time.Now,
	}
}

// Start runs the purger until ctx is cancelled or the returned stop function is called
func (p *IdempotencyPurger) Start(ctx context.Context) func() {
	stopChan := make(chan struct{})

	if p.interval <= 0 {
		log.Info("Idempotency purger disabled")
		return func() {}
	}

	go func() {
		log.Infof("Idempotency purger started, running every %v", p.interval)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info("Idempotency purger shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Idempotency purger shutting down (stop requested)...")
				return
			case <-ticker.C:
				if _, err := p.PurgeOnce(ctx); err != nil {
					log.WithError(err).Error("Error purging idempotency keys")
				}
			}
		}
	}()

	return func() {
		close(stopChan)
	}
}

// PurgeOnce clears keys of transfers older than the window and returns how many were released
func (p *IdempotencyPurger) PurgeOnce(ctx context.Context) (int64, error) {
	uow := p.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	cutoff := p.now().Add(-p.window)
	cleared, err := uow.TransferRepository().ClearIdempotencyKeys(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if cleared > 0 {
		log.WithFields(log.Fields{
			"cleared": cleared,
			"cutoff":  cutoff,
		}).Info("Released expired idempotency keys")
	}
	return cleared, nil
}
