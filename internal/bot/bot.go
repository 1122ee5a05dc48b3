// Package bot is the Telegram front end: the reply-keyboard menu, the
// multi-step group-selection flow, the bug-report flow and the
// schedule commands. All schedule access goes through the schedule
// client; all durable state goes through storage.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"istubot/internal/schedule"
	"istubot/internal/storage"
	logx "istubot/pkg/logx"
)

type Config struct {
	Token       string
	AdminChat   int64
	PollTimeout time.Duration
	Location    *time.Location
}

const (
	// requestTimeout bounds one user-visible schedule request,
	// including the fetcher's retries and backoff delays.
	requestTimeout = 45 * time.Second

	// sendLimit is the chunk size for long messages, in runes.
	sendLimit = 3800
)

const (
	msgUnavailable = "⚠️ Не удалось связаться с сервером ИРНИТУ. Попробуй позже."
	msgBadPage     = "⚠️ Не смог разобрать страницу с расписанием. Попробуй позже или сообщи о проблеме."
)

type Bot struct {
	cfg Config
	tb  *tele.Bot
	log logx.Logger

	schedules *schedule.Client
	store     storage.Store
	states    *stateStore
}

func New(cfg Config, schedules *schedule.Client, store storage.Store, log logx.Logger) (*Bot, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 10 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	tb, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: cfg.PollTimeout},
	})
	if err != nil {
		return nil, err
	}

	b := &Bot{
		cfg:       cfg,
		tb:        tb,
		log:       log,
		schedules: schedules,
		store:     store,
		states:    newStateStore(),
	}
	b.registerHandlers()
	return b, nil
}

func (b *Bot) registerHandlers() {
	b.tb.Handle("/start", b.onStart)
	b.tb.Handle("/stats", b.onStats)
	b.tb.Handle(tele.OnText, b.onText)
	b.tb.Handle(tele.OnPhoto, b.onPhoto)
}

// onStats answers only in the admin chat.
func (b *Bot) onStats(c tele.Context) error {
	if b.cfg.AdminChat == 0 || c.Chat() == nil || c.Chat().ID != b.cfg.AdminChat {
		return nil
	}
	ctx, cancel := dbCtx()
	defer cancel()
	n, err := b.store.CountUsers(ctx)
	if err != nil {
		b.log.Error("count users", logx.Err(err))
		return c.Send("⚠️ Не получилось посчитать пользователей.")
	}
	return c.Send(fmt.Sprintf("Пользователей с выбранной группой: %d", n))
}

// Start begins long polling. It blocks until Stop is called.
func (b *Bot) Start() {
	b.log.Info("polling started")
	b.tb.Start()
	b.log.Info("polling stopped")
}

func (b *Bot) Stop() { b.tb.Stop() }

// SendLog implements logx.Sender so warnings reach the admin chat.
func (b *Bot) SendLog(_ context.Context, chatID int64, text string) error {
	_, err := b.tb.Send(&tele.Chat{ID: chatID}, text)
	return err
}

func (b *Bot) onStart(c tele.Context) error {
	if c.Sender() == nil {
		return nil
	}
	d := b.states.get(c.Sender().ID)
	d.mu.Lock()
	defer d.mu.Unlock()
	return b.startSetup(c, d)
}

// onText routes every text update by the user's dialog step; outside a
// flow, menu buttons act and anything else is ignored. telebot runs
// handlers in separate goroutines, so the dialog is locked for the
// whole update and a user's messages are handled one at a time.
func (b *Bot) onText(c tele.Context) error {
	if c.Sender() == nil {
		return nil
	}
	d := b.states.get(c.Sender().ID)
	d.mu.Lock()
	defer d.mu.Unlock()

	text := c.Text()
	if text == "/start" || text == btnChangeGroup {
		return b.startSetup(c, d)
	}
	if text == btnReport {
		return b.startReport(c, d)
	}

	switch d.step {
	case stepInstitute:
		return b.onSetupInstitute(c, d)
	case stepCourse:
		return b.onSetupCourse(c, d)
	case stepGroup:
		return b.onSetupGroup(c, d)
	case stepReport:
		return b.onReportMessage(c, d)
	}

	switch text {
	case btnToday, btnTomorrow, btnThisWeek, btnNextWeek:
		return b.onMenu(c, d, text)
	}
	return nil
}

func (b *Bot) onPhoto(c tele.Context) error {
	if c.Sender() == nil {
		return nil
	}
	d := b.states.get(c.Sender().ID)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.step == stepReport {
		return b.onReportMessage(c, d)
	}
	return nil
}

// requestCtx bounds a user-visible portal request.
func requestCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}

// dbCtx bounds a storage call.
func dbCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// replyFetchError translates pipeline failures into the two distinct
// user-facing messages: unreachable server vs unreadable page.
func (b *Bot) replyFetchError(c tele.Context, err error) error {
	b.log.Error("schedule request failed", logx.Err(err), logx.Int64("user", c.Sender().ID))
	if errors.Is(err, schedule.ErrBadPage) {
		return c.Send(msgBadPage)
	}
	return c.Send(msgUnavailable)
}

// sendChunked splits long texts so they fit Telegram's message limit.
// Send options (parse mode, keyboard) ride on every chunk so the reply
// keyboard lands with the final message.
func (b *Bot) sendChunked(c tele.Context, text string, opts ...any) error {
	rs := []rune(text)
	if len(rs) == 0 {
		return nil
	}
	for len(rs) > 0 {
		n := len(rs)
		if n > sendLimit {
			n = sendLimit
		}
		if err := c.Send(string(rs[:n]), opts...); err != nil {
			return err
		}
		rs = rs[n:]
	}
	return nil
}
