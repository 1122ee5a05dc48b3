package bot

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	"istubot/internal/schedule"
	"istubot/internal/storage"
	logx "istubot/pkg/logx"
)

// fakeAPI stands in for the Telegram Bot API: it records every call
// and answers with a minimal successful result.
type fakeAPI struct {
	srv *httptest.Server

	mu    sync.Mutex
	texts []string
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	a := &fakeAPI{}
	a.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Text    string `json:"text"`
			Caption string `json:"caption"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		a.mu.Lock()
		a.texts = append(a.texts, body.Text+body.Caption)
		a.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"chat":{"id":1,"type":"private"}}}`))
	}))
	t.Cleanup(a.srv.Close)
	return a
}

func (a *fakeAPI) sent() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.texts...)
}

// newTestBot builds a Bot against the fake API. portalURL may be empty
// when the test never touches the schedule client; store nil means the
// in-memory driver.
func newTestBot(t *testing.T, portalURL string, store storage.Store) (*Bot, *fakeAPI) {
	t.Helper()
	api := newFakeAPI(t)

	tb, err := tele.NewBot(tele.Settings{
		Token:   "42:test",
		URL:     api.srv.URL,
		Offline: true,
		Poller:  &tele.LongPoller{},
	})
	if err != nil {
		t.Fatalf("NewBot: %v", err)
	}

	if store == nil {
		store, err = storage.Open(storage.Config{}, logx.Nop())
		if err != nil {
			t.Fatalf("open store: %v", err)
		}
	}

	opt := schedule.Options{}
	if portalURL != "" {
		opt.Fetcher.BaseURL = portalURL + "/"
		opt.Fetcher.Retries = 1
	}

	b := &Bot{
		cfg:       Config{Token: "42:test", Location: time.UTC},
		tb:        tb,
		log:       logx.Nop(),
		schedules: schedule.NewClient(opt, logx.Nop()),
		store:     store,
		states:    newStateStore(),
	}
	return b, api
}

func textUpdate(b *Bot, userID int64, text string) tele.Context {
	return b.tb.NewContext(tele.Update{Message: &tele.Message{
		Sender: &tele.User{ID: userID, Username: "student"},
		Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
		Text:   text,
	}})
}

func photoUpdate(b *Bot, userID int64, fileID, caption string) tele.Context {
	return b.tb.NewContext(tele.Update{Message: &tele.Message{
		Sender:  &tele.User{ID: userID, Username: "student"},
		Chat:    &tele.Chat{ID: userID, Type: tele.ChatPrivate},
		Photo:   &tele.Photo{File: tele.File{FileID: fileID}},
		Caption: caption,
	}})
}

// Telegram delivers each update in its own goroutine, so two quick
// messages from one user dispatch concurrently. The shared dialog must
// survive that: paging both ways while the flow is mid-setup.
func TestOnTextSerializesDialog(t *testing.T) {
	t.Parallel()

	b, _ := newTestBot(t, "", nil)

	const userID = 7
	d := b.states.get(userID)
	for i := 0; i < 3*instPageSize; i++ {
		d.institutes = append(d.institutes, instOption{
			ID:    i + 1,
			Title: fmt.Sprintf("Институт %d", i+1),
			Label: fmt.Sprintf("Институт %d", i+1),
		})
	}
	d.step = stepInstitute

	texts := []string{btnPageNext, btnPageNext, btnPagePrev, btnPageNext, btnPagePrev, btnPageNext}
	var wg sync.WaitGroup
	for _, text := range texts {
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			if err := b.onText(textUpdate(b, userID, text)); err != nil {
				t.Errorf("onText(%q): %v", text, err)
			}
		}(text)
	}
	wg.Wait()

	d.mu.Lock()
	page, total := d.instPage, len(d.institutes)
	d.mu.Unlock()
	if page < 0 || page > maxPage(total, instPageSize) {
		t.Fatalf("instPage = %d, want within [0, %d]", page, maxPage(total, instPageSize))
	}
}

const botWeekFixture = `<html><body><div class="content">
<h2>Расписание занятий, неделя нечётная</h2>
<h3 class="day-heading">Понедельник, 3 сентября</h3>
<div class="class-lines">
	<div class="class-line-item">
		<div class="class-time">8:15</div>
		<div class="class-tail class-all-week">
			<div class="class-pred">Алгебра</div>
			<div class="class-info">Лекция</div>
		</div>
	</div>
</div>
<h3 class="day-heading">Среда, 5 сентября</h3>
<div class="class-lines"></div>
</div></body></html>`

// A day the portal lists with no lessons and a day the portal does not
// list at all are different answers.
func TestSendDayAbsentVersusEmpty(t *testing.T) {
	t.Parallel()

	portal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(botWeekFixture))
	}))
	t.Cleanup(portal.Close)

	b, api := newTestBot(t, portal.URL, nil)
	settings := storage.UserSettings{GroupID: 101, GroupTitle: "ЭВМб-24-1"}

	// Wednesday is listed with zero lessons.
	empty := time.Date(2024, time.September, 5, 12, 0, 0, 0, time.UTC)
	if err := b.sendDay(textUpdate(b, 7, btnToday), settings, empty); err != nil {
		t.Fatalf("sendDay(empty): %v", err)
	}
	// Tuesday has no heading on the page.
	absent := time.Date(2024, time.September, 4, 12, 0, 0, 0, time.UTC)
	if err := b.sendDay(textUpdate(b, 7, btnToday), settings, absent); err != nil {
		t.Fatalf("sendDay(absent): %v", err)
	}

	sent := api.sent()
	if len(sent) != 2 {
		t.Fatalf("sent %d messages, want 2: %q", len(sent), sent)
	}
	if !strings.Contains(sent[0], "нет занятий") {
		t.Fatalf("empty day message = %q, want the empty-day text", sent[0])
	}
	if want := "Нет расписания на этот день."; sent[1] != want {
		t.Fatalf("absent day message = %q, want %q", sent[1], want)
	}
	if sent[0] == sent[1] {
		t.Fatal("absent day must not read like an empty day")
	}
}

// A photo without text holds the report open and asks for a
// description; the follow-up text submits both together.
func TestReportPhotoThenText(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(dir, "bot.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	b, api := newTestBot(t, "", store)
	const userID = 9

	if err := b.onText(textUpdate(b, userID, btnReport)); err != nil {
		t.Fatalf("start report: %v", err)
	}
	if err := b.onPhoto(photoUpdate(b, userID, "photo-1", "")); err != nil {
		t.Fatalf("photo message: %v", err)
	}

	d := b.states.get(userID)
	d.mu.Lock()
	step, photo := d.step, d.reportPhoto
	d.mu.Unlock()
	if step != stepReport || photo != "photo-1" {
		t.Fatalf("after photo: step = %v, photo = %q", step, photo)
	}

	if err := b.onText(textUpdate(b, userID, "Не грузится расписание")); err != nil {
		t.Fatalf("text message: %v", err)
	}

	var found bool
	for _, msg := range api.sent() {
		if strings.Contains(msg, "опиши проблему текстом") {
			found = true
		}
	}
	if !found {
		t.Fatalf("no description prompt after a photo-only message: %q", api.sent())
	}

	f, err := os.Open(filepath.Join(dir, "bot.reports.jsonl"))
	if err != nil {
		t.Fatalf("open reports: %v", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if len(lines) != 1 {
		t.Fatalf("got %d report records, want 1: %q", len(lines), lines)
	}
	var rec struct {
		Text        string `json:"text"`
		PhotoFileID string `json:"photo_file_id"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if rec.Text != "Не грузится расписание" || rec.PhotoFileID != "photo-1" {
		t.Fatalf("report = %+v", rec)
	}

	// Submission ends the flow.
	fresh := b.states.get(userID)
	fresh.mu.Lock()
	step = fresh.step
	fresh.mu.Unlock()
	if step != stepNone {
		t.Fatalf("step after submit = %v, want stepNone", step)
	}
}
