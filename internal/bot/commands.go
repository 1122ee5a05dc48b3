package bot

import (
	"time"

	tele "gopkg.in/telebot.v4"

	"istubot/internal/format"
	"istubot/internal/storage"
	logx "istubot/pkg/logx"
)

// onMenu serves the four schedule buttons for a user with a saved
// group; without one it restarts the setup flow.
func (b *Bot) onMenu(c tele.Context, d *dialog, button string) error {
	ctx, cancel := dbCtx()
	defer cancel()
	settings, ok, err := b.store.GetUserSettings(ctx, c.Sender().ID)
	if err != nil {
		b.log.Error("load user settings", logx.Err(err), logx.Int64("user", c.Sender().ID))
		return c.Send("⚠️ Что-то пошло не так. Попробуй ещё раз.")
	}
	if !ok {
		if err := c.Send("Сначала выбери группу."); err != nil {
			return err
		}
		return b.startSetup(c, d)
	}

	now := time.Now().In(b.cfg.Location)
	switch button {
	case btnToday:
		return b.sendDay(c, settings, now)
	case btnTomorrow:
		return b.sendDay(c, settings, now.AddDate(0, 0, 1))
	case btnThisWeek:
		return b.sendWeek(c, settings, mondayOf(now))
	case btnNextWeek:
		return b.sendWeek(c, settings, mondayOf(now).AddDate(0, 0, 7))
	}
	return nil
}

// mondayOf returns the Monday of the week containing t, at t's clock.
func mondayOf(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}

func (b *Bot) sendDay(c tele.Context, settings storage.UserSettings, date time.Time) error {
	ctx, cancel := requestCtx()
	defer cancel()

	week, err := b.schedules.GetWeekSchedule(ctx, settings.GroupID, date)
	if err != nil {
		return b.replyFetchError(c, err)
	}

	day, ok := format.FindDay(week.Days, date)
	if !ok {
		// The portal has no heading for that date at all, which is a
		// different situation from a listed day with zero lessons.
		return c.Send("Нет расписания на этот день.", menuKeyboard())
	}
	msg := format.DayMessage(day.Heading, day.Lessons)
	return b.sendChunked(c, msg, tele.ModeHTML, menuKeyboard())
}

func (b *Bot) sendWeek(c tele.Context, settings storage.UserSettings, monday time.Time) error {
	ctx, cancel := requestCtx()
	defer cancel()

	week, err := b.schedules.GetWeekSchedule(ctx, settings.GroupID, monday)
	if err != nil {
		return b.replyFetchError(c, err)
	}

	days := format.PickWeek(week.Days, monday)
	if len(days) == 0 {
		return c.Send("На эту неделю занятий не нашлось.", menuKeyboard())
	}
	for i, day := range days {
		msg := format.DayMessage(day.Heading, day.Lessons)
		var err error
		if i == len(days)-1 {
			err = b.sendChunked(c, msg, tele.ModeHTML, menuKeyboard())
		} else {
			err = b.sendChunked(c, msg, tele.ModeHTML)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
