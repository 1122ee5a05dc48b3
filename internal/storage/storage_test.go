package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	logx "istubot/pkg/logx"
)

func TestOpenDispatch(t *testing.T) {
	t.Parallel()

	for _, driver := range []string{"", "none", "memory", " MEMORY "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%q): %v", driver, err)
		}
		if _, ok := st.(*memStore); !ok {
			t.Fatalf("Open(%q) = %T, want memStore", driver, st)
		}
	}

	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("unknown driver must error")
	}
}

func TestMemStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newMemStore()

	if _, ok, err := st.GetUserSettings(ctx, 1); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}

	want := UserSettings{GroupID: 101, GroupTitle: "ЭВМб-24-1", InstituteID: 12, Course: 1}
	if err := st.SetUserSettings(ctx, 1, want); err != nil {
		t.Fatalf("SetUserSettings: %v", err)
	}
	got, ok, err := st.GetUserSettings(ctx, 1)
	if err != nil || !ok || got != want {
		t.Fatalf("got %+v, %v, %v", got, ok, err)
	}

	n, err := st.CountUsers(ctx)
	if err != nil || n != 1 {
		t.Fatalf("CountUsers = %d, %v", n, err)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "istubot.db")
	cfg := Config{Driver: "file", Path: path}

	st, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	first := UserSettings{GroupID: 101, GroupTitle: "ЭВМб-24-1", InstituteID: 12, Course: 1}
	second := UserSettings{GroupID: 202, GroupTitle: "авиаб-23-1", InstituteID: 3, Course: 2}
	if err := st.SetUserSettings(ctx, 1, first); err != nil {
		t.Fatalf("SetUserSettings: %v", err)
	}
	if err := st.SetUserSettings(ctx, 1, second); err != nil {
		t.Fatalf("SetUserSettings overwrite: %v", err)
	}
	if err := st.SetUserSettings(ctx, 2, first); err != nil {
		t.Fatalf("SetUserSettings: %v", err)
	}
	if err := st.AppendReport(ctx, Report{
		At:     time.Now(),
		UserID: 1,
		Text:   "что-то сломалось",
	}); err != nil {
		t.Fatalf("AppendReport: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen: the journal replays and compacts to the last write per user.
	st, err = Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()

	got, ok, err := st.GetUserSettings(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("GetUserSettings: %v, %v", ok, err)
	}
	if got != second {
		t.Fatalf("got %+v, want last write %+v", got, second)
	}
	if n, _ := st.CountUsers(ctx); n != 2 {
		t.Fatalf("CountUsers = %d, want 2", n)
	}

	data, err := os.ReadFile(strings.TrimSuffix(path, ".db") + ".settings.jsonl")
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}
	if n := strings.Count(string(data), "\n"); n != 2 {
		t.Fatalf("compacted journal has %d lines, want 2:\n%s", n, data)
	}
}

func TestFileStoreSkipsCorruptJournalLines(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "istubot.db")

	journal := `{"user_id":1,"group_id":101,"group_title":"ЭВМб-24-1","institute_id":12,"course":1}
not json at all
{"user_id":2,"group_id":202,"group_title":"авиаб-23-1","institute_id":3,"course":2}
`
	if err := os.WriteFile(filepath.Join(dir, "istubot.settings.jsonl"), []byte(journal), 0o600); err != nil {
		t.Fatalf("seed journal: %v", err)
	}

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	if n, _ := st.CountUsers(ctx); n != 2 {
		t.Fatalf("CountUsers = %d, want 2 (corrupt line skipped)", n)
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "istubot.db")}

	st, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	want := UserSettings{GroupID: 101, GroupTitle: "ЭВМб-24-1", InstituteID: 12, Course: 1}
	if err := st.SetUserSettings(ctx, 42, want); err != nil {
		t.Fatalf("SetUserSettings: %v", err)
	}

	// Upsert replaces the previous row.
	want.GroupID, want.GroupTitle = 202, "авиаб-23-1"
	if err := st.SetUserSettings(ctx, 42, want); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, ok, err := st.GetUserSettings(ctx, 42)
	if err != nil || !ok || got != want {
		t.Fatalf("got %+v, %v, %v; want %+v", got, ok, err, want)
	}

	if _, ok, err := st.GetUserSettings(ctx, 7); err != nil || ok {
		t.Fatalf("missing user: ok=%v err=%v", ok, err)
	}

	if err := st.AppendReport(ctx, Report{
		UserID:      42,
		Username:    "student",
		Text:        "страница не открылась",
		DeliveredOK: true,
	}); err != nil {
		t.Fatalf("AppendReport: %v", err)
	}

	if n, err := st.CountUsers(ctx); err != nil || n != 1 {
		t.Fatalf("CountUsers = %d, %v", n, err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Settings survive a reopen.
	st, err = Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	got, ok, err = st.GetUserSettings(ctx, 42)
	if err != nil || !ok || got != want {
		t.Fatalf("after reopen: %+v, %v, %v", got, ok, err)
	}
}
