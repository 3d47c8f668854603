package models

import (
	"time"
)

// Session binds an opaque bearer token to a user
type Session struct {
	Token     string    `db:"token"`
	UserID    int64     `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
}

// AuthResult is returned by registration and login
type AuthResult struct {
	User    *User
	History []*HistoryEntry // oldest first
	Token   string
}
