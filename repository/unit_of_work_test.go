package repository

import (
	"context"
	"testing"
	"time"

	"arcade/events"
	"arcade/models"
	"arcade/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitOfWork_CommitFlushesEvents(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	bus := events.NewBus()
	received := make(chan events.Event, 1)
	bus.Subscribe(events.EventTypeLedgerEntry, func(_ context.Context, e events.Event) {
		received <- e
	})

	factory := NewUnitOfWorkFactory(testDB.DB, bus)
	ctx := context.Background()
	user := testutil.InsertUser(t, testDB.DB, "committer", 100)

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	defer uow.Rollback()

	_, err := uow.UserRepository().ApplyDelta(ctx, user.ID, 50)
	require.NoError(t, err)
	require.NoError(t, uow.HistoryRepository().Record(ctx, &models.HistoryEntry{UserID: user.ID, Game: "Dice", Amount: 50}))
	uow.EventBus().Publish(events.LedgerEntryEvent{UserID: user.ID, Amount: 50})

	select {
	case <-received:
		t.Fatal("event delivered before commit")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, uow.Commit())

	select {
	case e := <-received:
		assert.Equal(t, user.ID, e.(events.LedgerEntryEvent).UserID)
	case <-time.After(time.Second):
		t.Fatal("event not delivered after commit")
	}

	current, err := NewUserRepository(testDB.DB).GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), current.Balance)
	assert.Equal(t, 1, testDB.CountRows(t, "history"))
}

func TestUnitOfWork_RollbackDiscardsChanges(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	factory := NewUnitOfWorkFactory(testDB.DB, events.NewBus())
	ctx := context.Background()
	user := testutil.InsertUser(t, testDB.DB, "rollback", 100)

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))

	_, err := uow.UserRepository().ApplyDelta(ctx, user.ID, 50)
	require.NoError(t, err)
	require.NoError(t, uow.HistoryRepository().Record(ctx, &models.HistoryEntry{UserID: user.ID, Game: "Dice", Amount: 50}))

	require.NoError(t, uow.Rollback())
	require.NoError(t, uow.Rollback(), "second rollback is a no-op")

	current, err := NewUserRepository(testDB.DB).GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), current.Balance)
	assert.Zero(t, testDB.CountRows(t, "history"))
}

func TestUnitOfWork_GettersRequireBegin(t *testing.T) {
	uow := NewUnitOfWorkFactory(nil, events.NewBus()).Create()
	assert.Panics(t, func() { uow.UserRepository() })
	assert.Panics(t, func() { uow.TransferRepository() })
	assert.Error(t, uow.Commit())
	assert.NoError(t, uow.Rollback())
}
