package logx

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{" WARN ", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"ERROR", zerolog.ErrorLevel},
		{"trace", zerolog.TraceLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.in, zerolog.InfoLevel); got != tc.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := truncate("short", 100); got != "short" {
		t.Fatalf("got %q", got)
	}
	long := strings.Repeat("a", 100)
	got := truncate(long, 50)
	if len(got) != 50 || !strings.HasSuffix(got, "...") {
		t.Fatalf("got %q (len %d)", got, len(got))
	}
	if got := truncate("abcdef", 3); got != "abc" {
		t.Fatalf("tiny limit: got %q", got)
	}
}

func TestFormatTelegramJSON(t *testing.T) {
	t.Parallel()

	line := `{"level":"warn","time":"2026-01-01T00:00:00Z","message":"portal fetch retry","attempt":2}`
	got := formatTelegramJSON([]byte(line))
	if !strings.HasPrefix(got, "[WARN] portal fetch retry") {
		t.Fatalf("got %q", got)
	}
	if !strings.Contains(got, "attempt=2") {
		t.Fatalf("field missing: %q", got)
	}
	if strings.Contains(got, "time=") {
		t.Fatalf("time must be dropped: %q", got)
	}

	// Non-JSON input passes through.
	if got := formatTelegramJSON([]byte("plain text\n")); got != "plain text" {
		t.Fatalf("got %q", got)
	}
}

func TestZeroLoggerIsSafe(t *testing.T) {
	t.Parallel()

	var l Logger
	// Must not panic.
	l.Info("ignored")
	l.With(String("k", "v")).Error("ignored too")

	if !l.IsZero() {
		t.Fatal("zero logger must report IsZero")
	}
	if Nop().IsZero() {
		t.Fatal("nop logger is usable, not zero")
	}
}
