package service

import (
	"context"
	"slices"
	"strings"
	"unicode/utf8"

	"arcade/config"
	"arcade/events"
	"arcade/models"
)

// LoginHistoryLimit is how many history entries a login returns
const LoginHistoryLimit = 200

// userService implements the UserService interface
type userService struct {
	uowFactory      UnitOfWorkFactory
	hasher          CredentialHasher
	startingBalance int64
}

// NewUserService creates a new user service
func NewUserService(uowFactory UnitOfWorkFactory, hasher CredentialHasher, cfg *config.Config) UserService {
	return &userService{
		uowFactory:      uowFactory,
		hasher:          hasher,
		startingBalance: cfg.StartingBalance,
	}
}

// Register creates an account with the starting balance and logs it in
func (s *userService) Register(ctx context.Context, name, password string) (*models.AuthResult, error) {
	name = strings.TrimSpace(name)
	password = strings.TrimSpace(password)
	if name == "" || password == "" {
		return nil, ErrMissingFields
	}
	if utf8.RuneCountInString(name) > models.MaxNameLength {
		return nil, ErrNameTooLong
	}

	digest, err := s.hasher.Digest(password)
	if err != nil {
		return nil, storageError(err, "failed to hash password")
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storageError(err, "failed to begin transaction")
	}
	defer uow.Rollback()

	existing, err := uow.UserRepository().GetByName(ctx, name)
	if err != nil {
		return nil, storageError(err, "failed to check existing user")
	}
	if existing != nil {
		return nil, ErrDuplicateName
	}

	// The unique constraint still catches a concurrent registration of the same name
	user, err := uow.UserRepository().Create(ctx, name, digest, s.startingBalance)
	if err != nil {
		return nil, classify(err, "failed to create user")
	}

	token, err := issueSession(ctx, uow, user.ID)
	if err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.UserRegisteredEvent{
		UserID:         user.ID,
		Name:           user.Name,
		InitialBalance: user.Balance,
	})

	if err := uow.Commit(); err != nil {
		return nil, storageError(err, "failed to commit registration")
	}

	return &models.AuthResult{User: user, Token: token}, nil
}

// Login verifies credentials and returns the account with its recent history
func (s *userService) Login(ctx context.Context, name, password string) (*models.AuthResult, error) {
	name = strings.TrimSpace(name)
	password = strings.TrimSpace(password)
	if name == "" || password == "" {
		return nil, ErrMissingFields
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storageError(err, "failed to begin transaction")
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByName(ctx, name)
	if err != nil {
		return nil, storageError(err, "failed to get user")
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrWrongPassword
	}

	history, err := uow.HistoryRepository().GetRecentByUser(ctx, user.ID, LoginHistoryLimit)
	if err != nil {
		return nil, storageError(err, "failed to get history")
	}
	// Stored newest first, returned oldest first
	slices.Reverse(history)

	token, err := issueSession(ctx, uow, user.ID)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, storageError(err, "failed to commit login")
	}

	return &models.AuthResult{User: user, History: history, Token: token}, nil
}

