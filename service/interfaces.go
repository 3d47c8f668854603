package service

import (
	"context"
	"time"

	"arcade/events"
	"arcade/models"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// GetByID retrieves a user by id, returning nil when absent
	GetByID(ctx context.Context, id int64) (*models.User, error)

	// GetByName retrieves a user by exact name, returning nil when absent
	GetByName(ctx context.Context, name string) (*models.User, error)

	// Create inserts a new user with the initial balance.
	// Returns ErrDuplicateName when the name is taken.
	Create(ctx context.Context, name, passwordHash string, initialBalance int64) (*models.User, error)

	// ApplyDelta adds amount to the balance in a single conditional statement,
	// counting a win and raising the best win when amount is positive.
	// Returns ErrInsufficientFunds when the result would be negative.
	ApplyDelta(ctx context.Context, id int64, amount int64) (*models.User, error)

	// AddBalance credits a user's balance atomically
	AddBalance(ctx context.Context, id int64, amount int64) error

	// DeductBalance debits a user's balance only if it still covers amount.
	// Returns ErrInsufficientFunds otherwise.
	DeductBalance(ctx context.Context, id int64, amount int64) error

	// LockPair row-locks both users in ascending id order for the rest of the transaction
	LockPair(ctx context.Context, firstID, secondID int64) error

	// Touch refreshes last_active_at
	Touch(ctx context.Context, id int64) error
}

// SessionRepository defines the interface for session token storage
type SessionRepository interface {
	// Create stores a new session
	Create(ctx context.Context, session *models.Session) error

	// GetWithUser resolves a token to its session and current user row, nil when unknown
	GetWithUser(ctx context.Context, token string) (*models.Session, *models.User, error)
}

// HistoryRepository defines the interface for the per-user game ledger
type HistoryRepository interface {
	// Record appends a history entry, filling in its ID and CreatedAt
	Record(ctx context.Context, entry *models.HistoryEntry) error

	// GetRecentByUser returns the newest entries for a user, newest first
	GetRecentByUser(ctx context.Context, userID int64, limit int) ([]*models.HistoryEntry, error)
}

// TransferRepository defines the interface for transfer records
type TransferRepository interface {
	// Create inserts a transfer, filling in its ID and CreatedAt.
	// Returns ErrTxCodeCollision when the tx code is already used and
	// ErrDuplicateIdempotencyKey when the sender already used the idempotency key.
	Create(ctx context.Context, transfer *models.Transfer) error

	// GetByIdempotencyKey finds a sender's transfer by idempotency key, nil when absent
	GetByIdempotencyKey(ctx context.Context, senderID int64, key string) (*models.Transfer, error)

	// GetByUser returns the newest transfers the user sent or received
	GetByUser(ctx context.Context, userID int64, limit int) ([]*models.TransferView, error)

	// ClearIdempotencyKeys forgets idempotency keys of transfers created before cutoff
	ClearIdempotencyKeys(ctx context.Context, cutoff time.Time) (int64, error)
}

// LeaderboardRepository defines the read-only ranking queries
type LeaderboardRepository interface {
	// TopByBalance ranks users by current balance
	TopByBalance(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error)

	// TopByWinningsSince ranks users by the sum of history amounts since a point in time
	TopByWinningsSince(ctx context.Context, since time.Time, limit int) ([]*models.LeaderboardEntry, error)

	// RecentActivity returns the newest history rows across all users
	RecentActivity(ctx context.Context, limit int) ([]*models.ActivityEntry, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction and flushes pending events
	Commit() error

	// Rollback rolls back the transaction, a no-op after Commit
	Rollback() error

	// Repository getters
	UserRepository() UserRepository
	SessionRepository() SessionRepository
	HistoryRepository() HistoryRepository
	TransferRepository() TransferRepository
	LeaderboardRepository() LeaderboardRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// CredentialHasher turns passwords into stored digests and checks them
type CredentialHasher interface {
	Digest(password string) (string, error)
	Verify(password, digest string) bool
}

// UserService covers registration and login
type UserService interface {
	// Register creates an account and logs it in
	Register(ctx context.Context, name, password string) (*models.AuthResult, error)

	// Login verifies credentials and issues a new session
	Login(ctx context.Context, name, password string) (*models.AuthResult, error)
}

// SessionService issues and resolves bearer tokens
type SessionService interface {
	// Issue creates a new session for a user
	Issue(ctx context.Context, userID int64) (string, error)

	// Resolve maps a token to the current user snapshot
	Resolve(ctx context.Context, token string) (*models.User, error)
}

// LedgerService applies game results to balances
type LedgerService interface {
	// ApplyDelta records a game result for the user
	ApplyDelta(ctx context.Context, user *models.User, amount int64, label string) (*models.LedgerResult, error)
}

// TransferService moves points between users
type TransferService interface {
	// Transfer moves points from sender to the identified receiver
	Transfer(ctx context.Context, sender *models.User, req models.TransferRequest) (*models.TransferResult, error)

	// History returns the newest transfers involving the user
	History(ctx context.Context, userID int64) ([]*models.TransferView, error)

	// LookupReceiver resolves a receiver identifier without moving points
	LookupReceiver(ctx context.Context, identifier string) (*models.Receiver, error)
}

// LeaderboardService serves the public ranking views
type LeaderboardService interface {
	Global(ctx context.Context) ([]*models.LeaderboardEntry, error)
	Weekly(ctx context.Context) ([]*models.LeaderboardEntry, error)
	Streak(ctx context.Context) ([]*models.ActivityEntry, error)
}
