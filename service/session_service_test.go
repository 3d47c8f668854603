package service

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"arcade/config"
	"arcade/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSessionService_Issue(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	svc := NewSessionService(m.factory, config.NewTestConfig())

	var stored string
	m.sessions.On("Create", ctx, mock.AnythingOfType("*models.Session")).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*models.Session).Token
	}).Return(nil)
	m.expectCommit()

	token, err := svc.Issue(ctx, 5)
	require.NoError(t, err)

	assert.Equal(t, stored, token)
	assert.Len(t, token, 32)
	_, err = hex.DecodeString(token)
	assert.NoError(t, err)

	m.assertExpectations(t)
}

func TestSessionService_Resolve(t *testing.T) {
	ctx := context.Background()
	user := &models.User{ID: 5, Name: "eve", Balance: 300}

	t.Run("valid token", func(t *testing.T) {
		m := newServiceMocks()
		svc := NewSessionService(m.factory, config.NewTestConfig())

		m.sessions.On("GetWithUser", ctx, "tok").Return(&models.Session{Token: "tok", UserID: 5, CreatedAt: time.Now()}, user, nil)
		m.users.On("Touch", ctx, int64(5)).Return(nil)
		m.expectCommit()

		got, err := svc.Resolve(ctx, "tok")
		require.NoError(t, err)
		assert.Equal(t, user, got)
		m.assertExpectations(t)
	})

	t.Run("unknown token", func(t *testing.T) {
		m := newServiceMocks()
		svc := NewSessionService(m.factory, config.NewTestConfig())

		m.sessions.On("GetWithUser", ctx, "nope").Return(nil, nil, nil)

		_, err := svc.Resolve(ctx, "nope")
		assert.ErrorIs(t, err, ErrSessionInvalid)
		m.users.AssertNotCalled(t, "Touch", mock.Anything, mock.Anything)
	})

	t.Run("empty token", func(t *testing.T) {
		m := newServiceMocks()
		svc := NewSessionService(m.factory, config.NewTestConfig())

		_, err := svc.Resolve(ctx, "")
		assert.ErrorIs(t, err, ErrSessionInvalid)
		m.factory.AssertNotCalled(t, "Create")
	})

	t.Run("no expiry by default", func(t *testing.T) {
		m := newServiceMocks()
		svc := NewSessionService(m.factory, config.NewTestConfig())

		old := &models.Session{Token: "old", UserID: 5, CreatedAt: time.Now().Add(-365 * 24 * time.Hour)}
		m.sessions.On("GetWithUser", ctx, "old").Return(old, user, nil)
		m.users.On("Touch", ctx, int64(5)).Return(nil)
		m.expectCommit()

		_, err := svc.Resolve(ctx, "old")
		assert.NoError(t, err)
	})

	t.Run("expired with ttl", func(t *testing.T) {
		m := newServiceMocks()
		cfg := config.NewTestConfig()
		cfg.SessionTTL = time.Hour
		svc := NewSessionService(m.factory, cfg)

		stale := &models.Session{Token: "stale", UserID: 5, CreatedAt: time.Now().Add(-2 * time.Hour)}
		m.sessions.On("GetWithUser", ctx, "stale").Return(stale, user, nil)

		_, err := svc.Resolve(ctx, "stale")
		assert.ErrorIs(t, err, ErrSessionInvalid)
		m.uow.AssertNotCalled(t, "Commit")
	})
}
