package models

import (
	"time"
)

// LeaderboardTab selects a leaderboard view
type LeaderboardTab string

const (
	LeaderboardTabGlobal LeaderboardTab = "global"
	LeaderboardTabWeekly LeaderboardTab = "weekly"
	LeaderboardTabStreak LeaderboardTab = "streak"
)

// ParseLeaderboardTab maps a query value to a tab, falling back to global
func ParseLeaderboardTab(s string) LeaderboardTab {
	switch LeaderboardTab(s) {
	case LeaderboardTabWeekly, LeaderboardTabStreak:
		return LeaderboardTab(s)
	default:
		return LeaderboardTabGlobal
	}
}

// LeaderboardEntry is one ranked row of the global or weekly board
type LeaderboardEntry struct {
	UserID int64
	Name   string
	Score  int64
}

// ActivityEntry is one recent history row with its owner's name
type ActivityEntry struct {
	ID        int64
	Name      string
	Game      string
	Amount    int64
	CreatedAt time.Time
}
