package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"arcade/events"
	"arcade/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestLedgerService_ApplyDelta_Win(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	svc := NewLedgerService(m.factory)

	user := &models.User{ID: 1, Name: "alice", Balance: 1000, TotalWins: 2, BestWin: 100}
	updated := &models.User{ID: 1, Name: "alice", Balance: 1150, TotalWins: 3, BestWin: 150}
	createdAt := time.Now()

	m.users.On("ApplyDelta", ctx, int64(1), int64(150)).Return(updated, nil)
	m.history.On("Record", ctx, mock.MatchedBy(func(e *models.HistoryEntry) bool {
		return e.UserID == 1 && e.Game == "Blackjack" && e.Amount == 150
	})).Run(func(args mock.Arguments) {
		e := args.Get(1).(*models.HistoryEntry)
		e.ID = 99
		e.CreatedAt = createdAt
	}).Return(nil)
	m.events.On("Publish", events.LedgerEntryEvent{
		UserID:     1,
		EntryID:    99,
		Game:       "Blackjack",
		Amount:     150,
		NewBalance: 1150,
		CreatedAt:  createdAt,
	}).Return()
	m.expectCommit()

	result, err := svc.ApplyDelta(ctx, user, 150, "Blackjack")
	require.NoError(t, err)

	assert.Equal(t, int64(1150), result.Balance)
	assert.Equal(t, int64(3), result.TotalWins)
	assert.Equal(t, int64(150), result.BestWin)
	require.NotNil(t, result.Entry)
	assert.Equal(t, int64(99), result.Entry.ID)

	m.assertExpectations(t)
}

func TestLedgerService_ApplyDelta_DefaultLabel(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	svc := NewLedgerService(m.factory)

	user := &models.User{ID: 1, Balance: 500}

	m.users.On("ApplyDelta", ctx, int64(1), int64(-20)).Return(&models.User{ID: 1, Balance: 480}, nil)
	m.history.On("Record", ctx, mock.MatchedBy(func(e *models.HistoryEntry) bool {
		return e.Game == models.DefaultGameLabel && e.Amount == -20
	})).Return(nil)
	m.events.On("Publish", mock.AnythingOfType("events.LedgerEntryEvent")).Return()
	m.expectCommit()

	result, err := svc.ApplyDelta(ctx, user, -20, "   ")
	require.NoError(t, err)
	assert.Equal(t, int64(480), result.Balance)

	m.assertExpectations(t)
}

func TestLedgerService_ApplyDelta_SyncIsARead(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	svc := NewLedgerService(m.factory)

	user := &models.User{ID: 1, Balance: 1000}
	current := &models.User{ID: 1, Balance: 1234, TotalWins: 5, BestWin: 400}
	m.users.On("GetByID", ctx, int64(1)).Return(current, nil).Twice()

	first, err := svc.ApplyDelta(ctx, user, 0, "SYNC")
	require.NoError(t, err)
	second, err := svc.ApplyDelta(ctx, user, 0, " SYNC ")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1234), first.Balance)
	assert.Equal(t, int64(5), first.TotalWins)
	assert.Equal(t, int64(400), first.BestWin)
	assert.Nil(t, first.Entry)

	m.users.AssertNotCalled(t, "ApplyDelta", mock.Anything, mock.Anything, mock.Anything)
	m.history.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
	m.uow.AssertNotCalled(t, "Commit")
	m.assertExpectations(t)
}

func TestLedgerService_ApplyDelta_ZeroWithOtherLabelIsRecorded(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	svc := NewLedgerService(m.factory)

	user := &models.User{ID: 1, Balance: 100}
	m.users.On("ApplyDelta", ctx, int64(1), int64(0)).Return(user, nil)
	m.history.On("Record", ctx, mock.AnythingOfType("*models.HistoryEntry")).Return(nil)
	m.events.On("Publish", mock.Anything).Return()
	m.expectCommit()

	_, err := svc.ApplyDelta(ctx, user, 0, "Roulette")
	require.NoError(t, err)

	m.assertExpectations(t)
}

func TestLedgerService_ApplyDelta_LabelTooLong(t *testing.T) {
	m := newServiceMocks()
	svc := NewLedgerService(m.factory)

	_, err := svc.ApplyDelta(context.Background(), &models.User{ID: 1}, 10, strings.Repeat("x", models.MaxGameLabelLength+1))
	assert.ErrorIs(t, err, ErrLabelTooLong)

	m.factory.AssertNotCalled(t, "Create")
}

func TestLedgerService_ApplyDelta_BelowFloor(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	svc := NewLedgerService(m.factory)

	m.users.On("ApplyDelta", ctx, int64(1), int64(-500)).Return(nil, ErrInsufficientFunds)

	_, err := svc.ApplyDelta(ctx, &models.User{ID: 1, Balance: 100}, -500, "Poker")
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	m.uow.AssertNotCalled(t, "Commit")
	m.history.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
	m.assertExpectations(t)
}

func TestLedgerService_ApplyDelta_AmountOutOfRange(t *testing.T) {
	m := newServiceMocks()
	svc := NewLedgerService(m.factory)

	for _, amount := range []int64{models.MaxAmount + 1, -models.MaxAmount - 1} {
		_, err := svc.ApplyDelta(context.Background(), &models.User{ID: 1, Balance: 100}, amount, "Poker")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	}

	m.factory.AssertNotCalled(t, "Create")
	m.users.AssertNotCalled(t, "ApplyDelta", mock.Anything, mock.Anything, mock.Anything)
}

func TestLedgerService_ApplyDelta_HistoryFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	svc := NewLedgerService(m.factory)

	m.users.On("ApplyDelta", ctx, int64(1), int64(10)).Return(&models.User{ID: 1, Balance: 110}, nil)
	m.history.On("Record", ctx, mock.Anything).Return(errors.New("connection reset"))

	_, err := svc.ApplyDelta(ctx, &models.User{ID: 1, Balance: 100}, 10, "Dice")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransactionFailed)

	var svcErr *Error
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, KindStorage, svcErr.Kind)
	assert.NotContains(t, svcErr.Message, "connection reset")

	m.uow.AssertCalled(t, "Rollback")
	m.uow.AssertNotCalled(t, "Commit")
	m.events.AssertNotCalled(t, "Publish", mock.Anything)
}
