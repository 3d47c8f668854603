package service

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a service error for the transport layer
type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindAuth
	KindNotFound
	KindConflict
	KindStorage
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "storage"
	}
}

// Error is a classified error with a stable code and a user-facing message.
// Err carries the internal cause and is never shown to callers.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors by code so wrapped copies still compare equal to the sentinels
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func newError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrMissingFields   = newError(KindValidation, "missing_fields", "name and password are required")
	ErrNameTooLong     = newError(KindValidation, "name_too_long", "name is too long")
	ErrDuplicateName   = newError(KindConflict, "duplicate_name", "name already exists, choose another")
	ErrUserNotFound    = newError(KindNotFound, "user_not_found", "account not found")
	ErrWrongPassword   = newError(KindAuth, "wrong_password", "wrong password")
	ErrUnauthorized    = newError(KindAuth, "unauthorized", "unauthorized")
	ErrSessionInvalid  = newError(KindAuth, "session_invalid", "invalid session")
	ErrInvalidAmount   = newError(KindValidation, "invalid_amount", "invalid amount")
	ErrLabelTooLong    = newError(KindValidation, "label_too_long", "game label is too long")
	ErrEmptyReceiver   = newError(KindValidation, "empty_receiver", "enter the receiver's name or ID")
	ErrInvalidKey      = newError(KindValidation, "invalid_idempotency_key", "idempotency key must be 1-64 characters")
	ErrSelfTransfer    = newError(KindConflict, "self_transfer", "cannot transfer to yourself")
	ErrReceiverMissing = newError(KindNotFound, "receiver_not_found", "receiver does not exist")

	// ErrInsufficientFunds is returned both by the advisory pre-check and by the
	// storage guard when a concurrent mutation drained the balance first
	ErrInsufficientFunds = newError(KindConflict, "insufficient_funds", "insufficient balance")

	ErrIdempotencyKeyReused = newError(KindConflict, "idempotency_key_reused", "idempotency key was already used for an expired transfer")

	ErrIdempotencyKeyMismatch = newError(KindConflict, "idempotency_key_mismatch", "idempotency key was already used for a different transfer")

	// ErrDuplicateIdempotencyKey signals a concurrent request won the race for the key
	ErrDuplicateIdempotencyKey = newError(KindConflict, "duplicate_idempotency_key", "transfer already in progress")

	ErrTransactionFailed = newError(KindStorage, "transaction_failed", "transaction failed")
)

// ErrTxCodeCollision is returned by the transfer repository when a generated code is taken
var ErrTxCodeCollision = errors.New("tx code already in use")

// storageError wraps an unexpected persistence failure as a generic transaction failure
func storageError(err error, logMessage string) *Error {
	return &Error{
		Kind:    KindStorage,
		Code:    ErrTransactionFailed.Code,
		Message: ErrTransactionFailed.Message,
		Err:     fmt.Errorf("%s: %w", logMessage, err),
	}
}

// classify passes classified errors through and wraps anything else as a storage error
func classify(err error, logMessage string) error {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return err
	}
	return storageError(err, logMessage)
}
