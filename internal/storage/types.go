// Package storage persists user settings and bug reports.
//
// It supports:
//   - "sqlite": SQLite database file
//   - "file": dependency-free file backend (snapshot + jsonl)
//   - "none"/empty: in-memory settings only (nothing survives restart)
package storage

import (
	"context"
	"time"
)

// Config configures storage.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// UserSettings is a user's chosen group, the only durable per-user state.
type UserSettings struct {
	GroupID     int
	GroupTitle  string
	InstituteID int
	Course      int
}

// Report is a user-submitted problem report.
// Keep it compact and schema-stable.
type Report struct {
	At           time.Time
	UserID       int64
	Username     string
	GroupTitle   string
	Text         string
	PhotoFileID  string
	DeliveredOK  bool
}

// Store is the persistence API used by the bot.
type Store interface {
	GetUserSettings(ctx context.Context, userID int64) (UserSettings, bool, error)
	SetUserSettings(ctx context.Context, userID int64, s UserSettings) error
	AppendReport(ctx context.Context, r Report) error
	CountUsers(ctx context.Context) (int, error)
	Close() error
}
