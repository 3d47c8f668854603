package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"arcade/config"
	"arcade/events"
	"arcade/models"

	log "github.com/sirupsen/logrus"
)

const (
	// TransferHistoryLimit is how many transfers History returns
	TransferHistoryLimit = 50

	// MaxIdempotencyKeyLength matches the transfers.idempotency_key column
	MaxIdempotencyKeyLength = 64

	maxTxCodeAttempts = 5
)

type transferService struct {
	uowFactory        UnitOfWorkFactory
	idempotencyWindow time.Duration
	now               func() time.Time
}

// NewTransferService creates a new transfer service
func NewTransferService(uowFactory UnitOfWorkFactory, cfg *config.Config) TransferService {
	return &transferService{
		uowFactory:        uowFactory,
		idempotencyWindow: cfg.IdempotencyWindow,
		now:               time.Now,
	}
}

// Transfer moves req.Amount from sender to the identified receiver.
// The sender snapshot drives the early checks; the debit itself re-checks the balance at write time.
func (s *transferService) Transfer(ctx context.Context, sender *models.User, req models.TransferRequest) (*models.TransferResult, error) {
	identifier := strings.TrimSpace(req.Receiver)
	if identifier == "" {
		return nil, ErrEmptyReceiver
	}
	if req.Amount <= 0 || req.Amount > models.MaxAmount {
		return nil, ErrInvalidAmount
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	if utf8.RuneCountInString(key) > MaxIdempotencyKeyLength {
		return nil, ErrInvalidKey
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storageError(err, "failed to begin transaction")
	}
	defer uow.Rollback()

	if key != "" {
		replay, err := s.replay(ctx, uow, sender.ID, key, identifier, req.Amount)
		if err != nil {
			return nil, err
		}
		if replay != nil {
			return replay, nil
		}
	}

	if sender.Balance < req.Amount {
		return nil, ErrInsufficientFunds
	}
	if identifiesUser(identifier, sender) {
		return nil, ErrSelfTransfer
	}

	receiver, err := resolveReceiver(ctx, uow.UserRepository(), identifier)
	if err != nil {
		return nil, err
	}
	if receiver.ID == sender.ID {
		return nil, ErrSelfTransfer
	}

	if err := uow.UserRepository().LockPair(ctx, sender.ID, receiver.ID); err != nil {
		return nil, storageError(err, "failed to lock transfer parties")
	}

	// A request with the same key may have committed while this one waited for the locks
	if key != "" {
		replay, err := s.replay(ctx, uow, sender.ID, key, identifier, req.Amount)
		if err != nil {
			return nil, err
		}
		if replay != nil {
			return replay, nil
		}
	}

	if err := uow.UserRepository().DeductBalance(ctx, sender.ID, req.Amount); err != nil {
		return nil, classify(err, "failed to deduct transfer amount")
	}
	if err := uow.UserRepository().AddBalance(ctx, receiver.ID, req.Amount); err != nil {
		return nil, storageError(err, "failed to credit transfer amount")
	}

	transfer := &models.Transfer{
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Amount:     req.Amount,
	}
	if key != "" {
		transfer.IdempotencyKey = &key
	}

	err = s.insertWithFreshCode(ctx, uow, transfer)
	if errors.Is(err, ErrDuplicateIdempotencyKey) {
		// A concurrent request with the same key committed first; answer with its result
		if rbErr := uow.Rollback(); rbErr != nil {
			return nil, storageError(rbErr, "failed to roll back duplicate transfer")
		}
		return s.replayCommitted(ctx, sender.ID, key, identifier, req.Amount)
	}
	if err != nil {
		return nil, err
	}

	updatedSender, err := uow.UserRepository().GetByID(ctx, sender.ID)
	if err != nil {
		return nil, storageError(err, "failed to re-read sender balance")
	}
	if updatedSender == nil {
		return nil, storageError(fmt.Errorf("user %d not found", sender.ID), "failed to re-read sender balance")
	}

	uow.EventBus().Publish(events.TransferCompletedEvent{
		TxCode:     transfer.TxCode,
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Amount:     transfer.Amount,
		CreatedAt:  transfer.CreatedAt,
	})

	if err := uow.Commit(); err != nil {
		return nil, storageError(err, "failed to commit transfer")
	}

	log.WithFields(log.Fields{
		"txCode":     transfer.TxCode,
		"senderID":   sender.ID,
		"receiverID": receiver.ID,
		"amount":     transfer.Amount,
	}).Info("Transfer completed")

	return &models.TransferResult{
		TxCode:           transfer.TxCode,
		Amount:           transfer.Amount,
		SenderName:       updatedSender.Name,
		ReceiverID:       receiver.ID,
		ReceiverName:     receiver.Name,
		NewSenderBalance: updatedSender.Balance,
		CreatedAt:        transfer.CreatedAt,
	}, nil
}

// History returns the newest transfers the user sent or received
func (s *transferService) History(ctx context.Context, userID int64) ([]*models.TransferView, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storageError(err, "failed to begin transaction")
	}
	defer uow.Rollback()

	views, err := uow.TransferRepository().GetByUser(ctx, userID, TransferHistoryLimit)
	if err != nil {
		return nil, storageError(err, "failed to get transfer history")
	}
	return views, nil
}

// LookupReceiver resolves an identifier the same way Transfer does
func (s *transferService) LookupReceiver(ctx context.Context, identifier string) (*models.Receiver, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrEmptyReceiver
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storageError(err, "failed to begin transaction")
	}
	defer uow.Rollback()

	user, err := resolveReceiver(ctx, uow.UserRepository(), identifier)
	if err != nil {
		return nil, err
	}
	return &models.Receiver{ID: user.ID, Name: user.Name}, nil
}

// insertWithFreshCode stores the transfer, drawing a new tx code on collision
func (s *transferService) insertWithFreshCode(ctx context.Context, uow UnitOfWork, transfer *models.Transfer) error {
	for attempt := 1; attempt <= maxTxCodeAttempts; attempt++ {
		transfer.TxCode = newTxCode()

		err := uow.TransferRepository().Create(ctx, transfer)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrDuplicateIdempotencyKey) {
			return err
		}
		if !errors.Is(err, ErrTxCodeCollision) {
			return storageError(err, "failed to record transfer")
		}

		log.WithFields(log.Fields{
			"txCode":  transfer.TxCode,
			"attempt": attempt,
		}).Warn("Transfer code collision, retrying")
	}
	return storageError(ErrTxCodeCollision, "failed to allocate a unique transfer code")
}

// replay returns the result of an earlier transfer with the same key, nil when there is none.
// The earlier transfer must have the same receiver and amount.
func (s *transferService) replay(ctx context.Context, uow UnitOfWork, senderID int64, key, receiverIdentifier string, amount int64) (*models.TransferResult, error) {
	original, err := uow.TransferRepository().GetByIdempotencyKey(ctx, senderID, key)
	if err != nil {
		return nil, storageError(err, "failed to look up idempotency key")
	}
	if original == nil {
		return nil, nil
	}
	if s.now().Sub(original.CreatedAt) > s.idempotencyWindow {
		return nil, ErrIdempotencyKeyReused
	}

	sender, err := uow.UserRepository().GetByID(ctx, senderID)
	if err != nil {
		return nil, storageError(err, "failed to read sender")
	}
	receiver, err := uow.UserRepository().GetByID(ctx, original.ReceiverID)
	if err != nil {
		return nil, storageError(err, "failed to read receiver")
	}
	if sender == nil || receiver == nil {
		return nil, storageError(errors.New("transfer party missing"), "failed to replay transfer")
	}
	if original.Amount != amount || !identifiesUser(receiverIdentifier, receiver) {
		return nil, ErrIdempotencyKeyMismatch
	}

	log.WithFields(log.Fields{
		"txCode":   original.TxCode,
		"senderID": senderID,
	}).Info("Replaying transfer for repeated idempotency key")

	return &models.TransferResult{
		TxCode:           original.TxCode,
		Amount:           original.Amount,
		SenderName:       sender.Name,
		ReceiverID:       receiver.ID,
		ReceiverName:     receiver.Name,
		NewSenderBalance: sender.Balance,
		CreatedAt:        original.CreatedAt,
		Replayed:         true,
	}, nil
}

// replayCommitted replays a key in a fresh unit of work after losing an insert race
func (s *transferService) replayCommitted(ctx context.Context, senderID int64, key, receiverIdentifier string, amount int64) (*models.TransferResult, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storageError(err, "failed to begin transaction")
	}
	defer uow.Rollback()

	result, err := s.replay(ctx, uow, senderID, key, receiverIdentifier, amount)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, ErrTransactionFailed
	}
	return result, nil
}

// resolveReceiver treats an all-digit identifier as an id and anything else as an exact name
func resolveReceiver(ctx context.Context, users UserRepository, identifier string) (*models.User, error) {
	var user *models.User
	var err error
	if isAllDigits(identifier) {
		id, parseErr := strconv.ParseInt(identifier, 10, 64)
		if parseErr != nil {
			return nil, ErrReceiverMissing
		}
		user, err = users.GetByID(ctx, id)
	} else {
		user, err = users.GetByName(ctx, identifier)
	}
	if err != nil {
		return nil, storageError(err, "failed to look up receiver")
	}
	if user == nil {
		return nil, ErrReceiverMissing
	}
	return user, nil
}

// identifiesUser reports whether identifier names user, by case-insensitive name or numeric id
func identifiesUser(identifier string, user *models.User) bool {
	if strings.EqualFold(identifier, user.Name) {
		return true
	}
	if isAllDigits(identifier) {
		id, err := strconv.ParseInt(identifier, 10, 64)
		return err == nil && id == user.ID
	}
	return false
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
