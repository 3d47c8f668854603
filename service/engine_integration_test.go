package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"arcade/config"
	"arcade/events"
	"arcade/models"
	"arcade/repository"
	"arcade/repository/testutil"
	"arcade/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type engine struct {
	db        *testutil.TestDatabase
	uow       service.UnitOfWorkFactory
	users     service.UserService
	sessions  service.SessionService
	ledger    service.LedgerService
	transfers service.TransferService
}

func setupEngine(t *testing.T) *engine {
	t.Helper()
	testDB := testutil.SetupTestDatabase(t)

	cfg := config.NewTestConfig()
	uowFactory := repository.NewUnitOfWorkFactory(testDB.DB, events.NewBus())
	hasher := service.NewBcryptHasher(cfg.BcryptCost)

	return &engine{
		db:        testDB,
		uow:       uowFactory,
		users:     service.NewUserService(uowFactory, hasher, cfg),
		sessions:  service.NewSessionService(uowFactory, cfg),
		ledger:    service.NewLedgerService(uowFactory),
		transfers: service.NewTransferService(uowFactory, cfg),
	}
}

func (e *engine) user(t *testing.T, id int64) *models.User {
	t.Helper()
	user, err := repository.NewUserRepository(e.db.DB).GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, user)
	return user
}

func TestEngine_RegisterLoginAndResolve(t *testing.T) {
	t.Parallel()
	e := setupEngine(t)
	ctx := context.Background()

	registered, err := e.users.Register(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), registered.User.Balance)

	resolved, err := e.sessions.Resolve(ctx, registered.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, resolved.ID)

	_, err = e.users.Register(ctx, "alice", "other")
	assert.ErrorIs(t, err, service.ErrDuplicateName)

	_, err = e.ledger.ApplyDelta(ctx, resolved, 150, "Blackjack")
	require.NoError(t, err)

	loggedIn, err := e.users.Login(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.NotEqual(t, registered.Token, loggedIn.Token)
	require.Len(t, loggedIn.History, 1)
	assert.Equal(t, "Blackjack", loggedIn.History[0].Game)

	// Both sessions stay valid
	_, err = e.sessions.Resolve(ctx, registered.Token)
	assert.NoError(t, err)

	_, err = e.users.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, service.ErrWrongPassword)
	_, err = e.users.Login(ctx, "nobody", "secret")
	assert.ErrorIs(t, err, service.ErrUserNotFound)
	_, err = e.sessions.Resolve(ctx, "deadbeef")
	assert.ErrorIs(t, err, service.ErrSessionInvalid)
}

func TestEngine_LedgerScenario(t *testing.T) {
	t.Parallel()
	e := setupEngine(t)
	ctx := context.Background()

	player := testutil.InsertUser(t, e.db.DB, "player", 1000)
	_, err := e.db.DB.Exec(ctx, `UPDATE users SET total_wins = 2, best_win = 100 WHERE id = $1`, player.ID)
	require.NoError(t, err)

	result, err := e.ledger.ApplyDelta(ctx, e.user(t, player.ID), 150, "Blackjack")
	require.NoError(t, err)
	assert.Equal(t, int64(1150), result.Balance)
	assert.Equal(t, int64(3), result.TotalWins)
	assert.Equal(t, int64(150), result.BestWin)
	assert.Equal(t, 1, e.db.CountRows(t, "history"))

	// SYNC is a pure read
	for range 2 {
		synced, err := e.ledger.ApplyDelta(ctx, e.user(t, player.ID), 0, "SYNC")
		require.NoError(t, err)
		assert.Equal(t, int64(1150), synced.Balance)
	}
	assert.Equal(t, 1, e.db.CountRows(t, "history"))

	_, err = e.ledger.ApplyDelta(ctx, e.user(t, player.ID), -2000, "Poker")
	assert.ErrorIs(t, err, service.ErrInsufficientFunds)
	assert.Equal(t, int64(1150), e.user(t, player.ID).Balance)
	assert.Equal(t, 1, e.db.CountRows(t, "history"))
}

func TestEngine_TransferScenario(t *testing.T) {
	t.Parallel()
	e := setupEngine(t)
	ctx := context.Background()

	alice := testutil.InsertUser(t, e.db.DB, "alice", 5000)
	bob := testutil.InsertUser(t, e.db.DB, "bob", 5000)
	total := e.db.SumBalances(t)

	result, err := e.transfers.Transfer(ctx, e.user(t, alice.ID), models.TransferRequest{Receiver: "bob", Amount: 2000})
	require.NoError(t, err)
	assert.Equal(t, int64(3000), result.NewSenderBalance)
	assert.Equal(t, int64(3000), e.user(t, alice.ID).Balance)
	assert.Equal(t, int64(7000), e.user(t, bob.ID).Balance)

	_, err = e.transfers.Transfer(ctx, e.user(t, alice.ID), models.TransferRequest{Receiver: "bob", Amount: 4000})
	assert.ErrorIs(t, err, service.ErrInsufficientFunds)

	assert.Equal(t, int64(3000), e.user(t, alice.ID).Balance)
	assert.Equal(t, total, e.db.SumBalances(t))
	assert.Equal(t, 1, e.db.CountRows(t, "transfers"))

	history, err := e.transfers.History(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, result.TxCode, history[0].TxCode)
	assert.Equal(t, "alice", history[0].SenderName)
	assert.Equal(t, "bob", history[0].ReceiverName)
}

func TestEngine_ConcurrentTransfersNeverOverdraw(t *testing.T) {
	t.Parallel()
	e := setupEngine(t)
	ctx := context.Background()

	const (
		balance = int64(1000)
		workers = 10
		amount  = balance/workers + 1
	)

	sender := testutil.InsertUser(t, e.db.DB, "sender", balance)
	testutil.InsertUser(t, e.db.DB, "receiver", 0)
	total := e.db.SumBalances(t)

	// Every request sees the same stale snapshot, so only the storage guard can stop an overdraw
	snapshot := e.user(t, sender.ID)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.transfers.Transfer(ctx, snapshot, models.TransferRequest{Receiver: "receiver", Amount: amount})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, service.ErrInsufficientFunds)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, int64(succeeded), balance/amount)
	assert.Equal(t, balance-int64(succeeded)*amount, e.user(t, sender.ID).Balance)
	assert.GreaterOrEqual(t, e.user(t, sender.ID).Balance, int64(0))
	assert.Equal(t, total, e.db.SumBalances(t))
	assert.Equal(t, succeeded, e.db.CountRows(t, "transfers"))
}

func TestEngine_IdempotentTransfer(t *testing.T) {
	t.Parallel()
	e := setupEngine(t)
	ctx := context.Background()

	alice := testutil.InsertUser(t, e.db.DB, "alice", 5000)
	testutil.InsertUser(t, e.db.DB, "bob", 5000)

	req := models.TransferRequest{Receiver: "bob", Amount: 500, IdempotencyKey: "retry-me"}
	first, err := e.transfers.Transfer(ctx, e.user(t, alice.ID), req)
	require.NoError(t, err)
	second, err := e.transfers.Transfer(ctx, e.user(t, alice.ID), req)
	require.NoError(t, err)

	assert.False(t, first.Replayed)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.TxCode, second.TxCode)
	assert.Equal(t, int64(4500), e.user(t, alice.ID).Balance)
	assert.Equal(t, 1, e.db.CountRows(t, "transfers"))
}

func TestEngine_FailedTransferLeavesNoTrace(t *testing.T) {
	t.Parallel()
	e := setupEngine(t)
	ctx := context.Background()

	alice := testutil.InsertUser(t, e.db.DB, "alice", 5000)
	bob := testutil.InsertUser(t, e.db.DB, "bob", 5000)

	failing := service.NewTransferService(&failingFactory{inner: e.uow, failTransfers: true}, config.NewTestConfig())

	_, err := failing.Transfer(ctx, e.user(t, alice.ID), models.TransferRequest{Receiver: "bob", Amount: 1000})
	assert.ErrorIs(t, err, service.ErrTransactionFailed)

	assert.Equal(t, int64(5000), e.user(t, alice.ID).Balance)
	assert.Equal(t, int64(5000), e.user(t, bob.ID).Balance)
	assert.Zero(t, e.db.CountRows(t, "transfers"))
}

func TestEngine_FailedLedgerEntryLeavesNoTrace(t *testing.T) {
	t.Parallel()
	e := setupEngine(t)
	ctx := context.Background()

	player := testutil.InsertUser(t, e.db.DB, "player", 1000)
	_, err := e.db.DB.Exec(ctx, `UPDATE users SET total_wins = 2, best_win = 100 WHERE id = $1`, player.ID)
	require.NoError(t, err)

	failing := service.NewLedgerService(&failingFactory{inner: e.uow, failHistory: true})

	_, err = failing.ApplyDelta(ctx, e.user(t, player.ID), 150, "Blackjack")
	assert.ErrorIs(t, err, service.ErrTransactionFailed)

	after := e.user(t, player.ID)
	assert.Equal(t, int64(1000), after.Balance)
	assert.Equal(t, int64(2), after.TotalWins)
	assert.Equal(t, int64(100), after.BestWin)
	assert.Zero(t, e.db.CountRows(t, "history"))
}

func TestEngine_SameKeyTransferWaitingOnOriginalReplays(t *testing.T) {
	t.Parallel()
	e := setupEngine(t)
	ctx := context.Background()

	alice := testutil.InsertUser(t, e.db.DB, "alice", 5000)
	bob := testutil.InsertUser(t, e.db.DB, "bob", 5000)
	key := "double-click"

	// The original request holds its locks and has written everything but not yet committed
	original := e.uow.Create()
	require.NoError(t, original.Begin(ctx))
	defer original.Rollback()
	require.NoError(t, original.UserRepository().LockPair(ctx, alice.ID, bob.ID))
	require.NoError(t, original.UserRepository().DeductBalance(ctx, alice.ID, 3000))
	require.NoError(t, original.UserRepository().AddBalance(ctx, bob.ID, 3000))
	require.NoError(t, original.TransferRepository().Create(ctx, &models.Transfer{
		TxCode:         "0A1B2C3D",
		SenderID:       alice.ID,
		ReceiverID:     bob.ID,
		Amount:         3000,
		IdempotencyKey: &key,
	}))

	type outcome struct {
		result *models.TransferResult
		err    error
	}
	done := make(chan outcome, 1)
	snapshot := e.user(t, alice.ID)
	go func() {
		result, err := e.transfers.Transfer(ctx, snapshot, models.TransferRequest{Receiver: "bob", Amount: 3000, IdempotencyKey: key})
		done <- outcome{result: result, err: err}
	}()

	time.Sleep(200 * time.Millisecond)
	require.NoError(t, original.Commit())

	var got outcome
	select {
	case got = <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("retried transfer never finished")
	}
	require.NoError(t, got.err)
	assert.True(t, got.result.Replayed)
	assert.Equal(t, "0A1B2C3D", got.result.TxCode)
	assert.Equal(t, int64(2000), got.result.NewSenderBalance)

	assert.Equal(t, int64(2000), e.user(t, alice.ID).Balance)
	assert.Equal(t, int64(8000), e.user(t, bob.ID).Balance)
	assert.Equal(t, 1, e.db.CountRows(t, "transfers"))
}

func TestEngine_OpposingTransfersDoNotDeadlock(t *testing.T) {
	t.Parallel()
	e := setupEngine(t)
	ctx := context.Background()

	const (
		workers = 20
		amount  = int64(10)
	)

	alice := testutil.InsertUser(t, e.db.DB, "alice", 1000)
	bob := testutil.InsertUser(t, e.db.DB, "bob", 1000)
	total := e.db.SumBalances(t)

	aliceSnapshot := e.user(t, alice.ID)
	bobSnapshot := e.user(t, bob.ID)

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sender, receiver := aliceSnapshot, "bob"
			if i%2 == 1 {
				sender, receiver = bobSnapshot, "alice"
			}
			_, err := e.transfers.Transfer(ctx, sender, models.TransferRequest{Receiver: receiver, Amount: amount})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1000), e.user(t, alice.ID).Balance)
	assert.Equal(t, int64(1000), e.user(t, bob.ID).Balance)
	assert.Equal(t, total, e.db.SumBalances(t))
	assert.Equal(t, workers, e.db.CountRows(t, "transfers"))
}

var errInjected = errors.New("injected failure")

// failingFactory hands out units of work whose selected writes always fail
type failingFactory struct {
	inner         service.UnitOfWorkFactory
	failTransfers bool
	failHistory   bool
}

func (f *failingFactory) Create() service.UnitOfWork {
	return &failingUnitOfWork{UnitOfWork: f.inner.Create(), factory: f}
}

type failingUnitOfWork struct {
	service.UnitOfWork
	factory *failingFactory
}

func (u *failingUnitOfWork) TransferRepository() service.TransferRepository {
	if !u.factory.failTransfers {
		return u.UnitOfWork.TransferRepository()
	}
	return &failingTransferRepository{TransferRepository: u.UnitOfWork.TransferRepository()}
}

func (u *failingUnitOfWork) HistoryRepository() service.HistoryRepository {
	if !u.factory.failHistory {
		return u.UnitOfWork.HistoryRepository()
	}
	return &failingHistoryRepository{HistoryRepository: u.UnitOfWork.HistoryRepository()}
}

type failingHistoryRepository struct {
	service.HistoryRepository
}

func (r *failingHistoryRepository) Record(context.Context, *models.HistoryEntry) error {
	return errInjected
}

type failingTransferRepository struct {
	service.TransferRepository
}

func (r *failingTransferRepository) Create(context.Context, *models.Transfer) error {
	return errInjected
}
