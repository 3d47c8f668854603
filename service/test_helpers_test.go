package service

import (
	"testing"

	"github.com/stretchr/testify/mock"
)

// serviceMocks bundles a mocked unit of work with all of its repositories
type serviceMocks struct {
	factory   *MockUnitOfWorkFactory
	uow       *MockUnitOfWork
	users     *MockUserRepository
	sessions  *MockSessionRepository
	history   *MockHistoryRepository
	transfers *MockTransferRepository
	boards    *MockLeaderboardRepository
	events    *MockEventPublisher
}

// newServiceMocks returns mocks whose unit of work may be created, begun and rolled back any number of times
func newServiceMocks() *serviceMocks {
	m := &serviceMocks{
		factory:   new(MockUnitOfWorkFactory),
		uow:       new(MockUnitOfWork),
		users:     new(MockUserRepository),
		sessions:  new(MockSessionRepository),
		history:   new(MockHistoryRepository),
		transfers: new(MockTransferRepository),
		boards:    new(MockLeaderboardRepository),
		events:    new(MockEventPublisher),
	}
	m.uow.SetRepositories(m.users, m.sessions, m.history, m.transfers, m.boards, m.events)

	m.factory.On("Create").Return(m.uow).Maybe()
	m.uow.On("Begin", mock.Anything).Return(nil).Maybe()
	m.uow.On("Rollback").Return(nil).Maybe()
	return m
}

func (m *serviceMocks) expectCommit() {
	m.uow.On("Commit").Return(nil).Once()
}

func (m *serviceMocks) assertExpectations(t *testing.T) {
	t.Helper()
	m.factory.AssertExpectations(t)
	m.uow.AssertExpectations(t)
	m.users.AssertExpectations(t)
	m.sessions.AssertExpectations(t)
	m.history.AssertExpectations(t)
	m.transfers.AssertExpectations(t)
	m.boards.AssertExpectations(t)
	m.events.AssertExpectations(t)
}
