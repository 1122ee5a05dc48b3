package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "istubot/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.settings.jsonl (append-only journal; last record per user wins)
//   - <prefix>.reports.jsonl  (append-only JSON Lines)
//
// The settings journal is compacted on open.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	settingsPath string
	settingsFile *os.File
	settings     map[int64]UserSettings

	reportsFile *os.File

	settingsWrites int
}

type settingsRecord struct {
	UserID      int64  `json:"user_id"`
	GroupID     int    `json:"group_id"`
	GroupTitle  string `json:"group_title"`
	InstituteID int    `json:"institute_id"`
	Course      int    `json:"course"`
}

type reportRecord struct {
	At          string `json:"at"`
	UserID      int64  `json:"user_id"`
	Username    string `json:"username,omitempty"`
	GroupTitle  string `json:"group_title,omitempty"`
	Text        string `json:"text"`
	PhotoFileID string `json:"photo_file_id,omitempty"`
	DeliveredOK bool   `json:"delivered_ok"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(filepath.Base(path)))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	settingsPath := prefix + ".settings.jsonl"
	reportsPath := prefix + ".reports.jsonl"

	settings := map[int64]UserSettings{}
	if err := replaySettings(settingsPath, settings); err != nil {
		return nil, err
	}

	st := &fileStore{
		log:          log,
		settingsPath: settingsPath,
		settings:     settings,
	}

	// Compact the journal so it doesn't grow without bound across restarts.
	if err := st.compactLocked(); err != nil {
		return nil, err
	}

	sf, err := os.OpenFile(settingsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	rf, err := os.OpenFile(reportsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		_ = sf.Close()
		return nil, err
	}
	st.settingsFile = sf
	st.reportsFile = rf
	return st, nil
}

func replaySettings(path string, into map[int64]UserSettings) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var r settingsRecord
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			continue // skip corrupt lines; the journal is best-effort
		}
		into[r.UserID] = UserSettings{
			GroupID:     r.GroupID,
			GroupTitle:  r.GroupTitle,
			InstituteID: r.InstituteID,
			Course:      r.Course,
		}
	}
	return sc.Err()
}

// compactLocked rewrites the settings journal with one record per user.
func (s *fileStore) compactLocked() error {
	tmp := s.settingsPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for id, v := range s.settings {
		b, err := json.Marshal(settingsRecord{
			UserID:      id,
			GroupID:     v.GroupID,
			GroupTitle:  v.GroupTitle,
			InstituteID: v.InstituteID,
			Course:      v.Course,
		})
		if err != nil {
			continue
		}
		_, _ = w.Write(b)
		_ = w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.settingsPath)
}

func (s *fileStore) GetUserSettings(_ context.Context, userID int64) (UserSettings, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.settings[userID]
	return v, ok, nil
}

func (s *fileStore) SetUserSettings(_ context.Context, userID int64, v UserSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings[userID] = v
	b, err := json.Marshal(settingsRecord{
		UserID:      userID,
		GroupID:     v.GroupID,
		GroupTitle:  v.GroupTitle,
		InstituteID: v.InstituteID,
		Course:      v.Course,
	})
	if err != nil {
		return err
	}
	if _, err := s.settingsFile.Write(append(b, '\n')); err != nil {
		return err
	}

	// Periodic compaction keeps the journal roughly one record per user.
	s.settingsWrites++
	if s.settingsWrites >= 500 {
		s.settingsWrites = 0
		_ = s.settingsFile.Close()
		if err := s.compactLocked(); err != nil {
			s.log.Warn("settings journal compaction failed", logx.Err(err))
		}
		f, err := os.OpenFile(s.settingsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return err
		}
		s.settingsFile = f
	}
	return nil
}

func (s *fileStore) AppendReport(_ context.Context, r Report) error {
	if r.At.IsZero() {
		r.At = time.Now()
	}
	b, err := json.Marshal(reportRecord{
		At:          r.At.Format(time.RFC3339Nano),
		UserID:      r.UserID,
		Username:    r.Username,
		GroupTitle:  r.GroupTitle,
		Text:        r.Text,
		PhotoFileID: r.PhotoFileID,
		DeliveredOK: r.DeliveredOK,
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.reportsFile.Write(append(b, '\n'))
	return err
}

func (s *fileStore) CountUsers(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.settings), nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first error
	if s.settingsFile != nil {
		if err := s.settingsFile.Close(); err != nil {
			first = err
		}
		s.settingsFile = nil
	}
	if s.reportsFile != nil {
		if err := s.reportsFile.Close(); err != nil && first == nil {
			first = err
		}
		s.reportsFile = nil
	}
	return first
}
