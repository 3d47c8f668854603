package service

import (
	"context"
	"time"

	"arcade/config"
	"arcade/models"
)

// WeeklyWindow is the trailing period the weekly board sums over
const WeeklyWindow = 7 * 24 * time.Hour

type leaderboardService struct {
	uowFactory    UnitOfWorkFactory
	boardLimit    int
	activityLimit int
	now           func() time.Time
}

// NewLeaderboardService creates a new leaderboard service
func NewLeaderboardService(uowFactory UnitOfWorkFactory, cfg *config.Config) LeaderboardService {
	return &leaderboardService{
		uowFactory:    uowFactory,
		boardLimit:    cfg.LeaderboardLimit,
		activityLimit: cfg.ActivityLimit,
		now:           time.Now,
	}
}

func (s *leaderboardService) Global(ctx context.Context) ([]*models.LeaderboardEntry, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storageError(err, "failed to begin transaction")
	}
	defer uow.Rollback()

	entries, err := uow.LeaderboardRepository().TopByBalance(ctx, s.boardLimit)
	if err != nil {
		return nil, storageError(err, "failed to load global leaderboard")
	}
	return entries, nil
}

func (s *leaderboardService) Weekly(ctx context.Context) ([]*models.LeaderboardEntry, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storageError(err, "failed to begin transaction")
	}
	defer uow.Rollback()

	since := s.now().Add(-WeeklyWindow)
	entries, err := uow.LeaderboardRepository().TopByWinningsSince(ctx, since, s.boardLimit)
	if err != nil {
		return nil, storageError(err, "failed to load weekly leaderboard")
	}
	return entries, nil
}

func (s *leaderboardService) Streak(ctx context.Context) ([]*models.ActivityEntry, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storageError(err, "failed to begin transaction")
	}
	defer uow.Rollback()

	entries, err := uow.LeaderboardRepository().RecentActivity(ctx, s.activityLimit)
	if err != nil {
		return nil, storageError(err, "failed to load recent activity")
	}
	return entries, nil
}
