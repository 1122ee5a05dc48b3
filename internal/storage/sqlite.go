package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "istubot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) GetUserSettings(ctx context.Context, userID int64) (UserSettings, bool, error) {
	var v UserSettings
	err := s.db.QueryRowContext(ctx,
		`SELECT group_id, group_title, institute_id, course FROM user_settings WHERE user_id = ?`,
		userID,
	).Scan(&v.GroupID, &v.GroupTitle, &v.InstituteID, &v.Course)
	if errors.Is(err, sql.ErrNoRows) {
		return UserSettings{}, false, nil
	}
	if err != nil {
		return UserSettings{}, false, err
	}
	return v, true, nil
}

func (s *sqliteStore) SetUserSettings(ctx context.Context, userID int64, v UserSettings) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_settings(user_id, group_id, group_title, institute_id, course, updated_at)
		 VALUES(?,?,?,?,?,?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   group_id=excluded.group_id,
		   group_title=excluded.group_title,
		   institute_id=excluded.institute_id,
		   course=excluded.course,
		   updated_at=excluded.updated_at`,
		userID, v.GroupID, v.GroupTitle, v.InstituteID, v.Course, time.Now().Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) AppendReport(ctx context.Context, r Report) error {
	if r.At.IsZero() {
		r.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reports(at, user_id, username, group_title, text, photo_file_id, delivered_ok)
		 VALUES(?,?,?,?,?,?,?)`,
		r.At.Format(time.RFC3339Nano), r.UserID, nullStr(r.Username), nullStr(r.GroupTitle),
		r.Text, nullStr(r.PhotoFileID), boolInt(r.DeliveredOK),
	)
	return err
}

func (s *sqliteStore) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_settings`).Scan(&n)
	return n, err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
