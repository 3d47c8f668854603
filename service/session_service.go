package service

import (
	"context"
	"time"

	"arcade/config"
	"arcade/models"
)

type sessionService struct {
	uowFactory UnitOfWorkFactory
	ttl        time.Duration
	now        func() time.Time
}

// NewSessionService creates a new session service
func NewSessionService(uowFactory UnitOfWorkFactory, cfg *config.Config) SessionService {
	return &sessionService{
		uowFactory: uowFactory,
		ttl:        cfg.SessionTTL,
		now:        time.Now,
	}
}

// Issue creates a new session for a user
func (s *sessionService) Issue(ctx context.Context, userID int64) (string, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return "", storageError(err, "failed to begin transaction")
	}
	defer uow.Rollback()

	token, err := issueSession(ctx, uow, userID)
	if err != nil {
		return "", err
	}

	if err := uow.Commit(); err != nil {
		return "", storageError(err, "failed to commit session")
	}
	return token, nil
}

// Resolve maps a token to the user's current row
func (s *sessionService) Resolve(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrSessionInvalid
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storageError(err, "failed to begin transaction")
	}
	defer uow.Rollback()

	session, user, err := uow.SessionRepository().GetWithUser(ctx, token)
	if err != nil {
		return nil, storageError(err, "failed to resolve session")
	}
	if session == nil || user == nil {
		return nil, ErrSessionInvalid
	}
	if s.ttl > 0 && s.now().Sub(session.CreatedAt) > s.ttl {
		return nil, ErrSessionInvalid
	}

	if err := uow.UserRepository().Touch(ctx, user.ID); err != nil {
		return nil, storageError(err, "failed to refresh last activity")
	}

	if err := uow.Commit(); err != nil {
		return nil, storageError(err, "failed to commit session lookup")
	}
	return user, nil
}

// issueSession creates a session row inside an open unit of work
func issueSession(ctx context.Context, uow UnitOfWork, userID int64) (string, error) {
	token, err := newSessionToken()
	if err != nil {
		return "", storageError(err, "failed to issue session")
	}

	session := &models.Session{Token: token, UserID: userID}
	if err := uow.SessionRepository().Create(ctx, session); err != nil {
		return "", storageError(err, "failed to store session")
	}
	return token, nil
}
