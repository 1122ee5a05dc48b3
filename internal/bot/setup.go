package bot

import (
	"fmt"
	"sort"
	"strings"

	tele "gopkg.in/telebot.v4"

	"istubot/internal/storage"
	logx "istubot/pkg/logx"
)

// Page geometry for the three selection keyboards.
const (
	instPageSize   = 12
	instRowSize    = 1
	coursePageSize = 12
	courseRowSize  = 3
	groupPageSize  = 10
	groupRowSize   = 2
)

// shortenInstitute compresses labels that would overflow a reply
// keyboard button.
func shortenInstitute(title string) string {
	if strings.Contains(strings.ToLower(title), "сибирская школа геонаук") {
		return "СШГ"
	}
	return title
}

func (b *Bot) startSetup(c tele.Context, d *dialog) error {
	ctx, cancel := requestCtx()
	defer cancel()

	institutes, err := b.schedules.ListInstitutes(ctx)
	if err != nil {
		return b.replyFetchError(c, err)
	}

	d.reset(stepInstitute)
	d.institutes = make([]instOption, 0, len(institutes))
	for _, inst := range institutes {
		d.institutes = append(d.institutes, instOption{
			ID:    inst.ID,
			Title: inst.Title,
			Label: shortenInstitute(inst.Title),
		})
	}
	return b.sendInstitutePage(c, d)
}

func (b *Bot) sendInstitutePage(c tele.Context, d *dialog) error {
	labels := make([]string, len(d.institutes))
	for i, opt := range d.institutes {
		labels[i] = opt.Label
	}
	kb := pagedKeyboard(labels, d.instPage, instPageSize, instRowSize, false)
	return c.Send("Выбери свой институт:", kb)
}

func (b *Bot) sendCoursePage(c tele.Context, d *dialog) error {
	labels := make([]string, len(d.courses))
	for i, course := range d.courses {
		labels[i] = fmt.Sprintf("Курс %d", course)
	}
	kb := pagedKeyboard(labels, d.coursePage, coursePageSize, courseRowSize, true)
	return c.Send("Выбери курс:", kb)
}

func (b *Bot) sendGroupPage(c tele.Context, d *dialog) error {
	labels := make([]string, len(d.groups))
	for i, g := range d.groups {
		labels[i] = g.Title
	}
	kb := pagedKeyboard(labels, d.groupPage, groupPageSize, groupRowSize, true)
	return c.Send("Выбери свою группу:", kb)
}

func (b *Bot) cancelDialog(c tele.Context) error {
	b.states.clear(c.Sender().ID)
	return c.Send("Ок, отменил.", menuKeyboard())
}

// handleNav processes the shared cancel and paging buttons. The second
// return value reports whether the update was consumed.
func (b *Bot) handleNav(c tele.Context, page *int, total, size int, rerender func() error) (bool, error) {
	switch c.Text() {
	case btnCancel:
		return true, b.cancelDialog(c)
	case btnPagePrev:
		if *page > 0 {
			*page--
		}
		return true, rerender()
	case btnPageNext:
		if *page < maxPage(total, size) {
			*page++
		}
		return true, rerender()
	}
	return false, nil
}

func (b *Bot) onSetupInstitute(c tele.Context, d *dialog) error {
	handled, err := b.handleNav(c, &d.instPage, len(d.institutes), instPageSize, func() error {
		return b.sendInstitutePage(c, d)
	})
	if handled {
		return err
	}

	text := c.Text()
	for _, opt := range d.institutes {
		if opt.Label != text {
			continue
		}
		ctx, cancel := requestCtx()
		defer cancel()

		byCourse, err := b.schedules.ListGroupsByCourse(ctx, opt.ID)
		if err != nil {
			return b.replyFetchError(c, err)
		}
		if len(byCourse) == 0 {
			return c.Send("Для этого института расписание не нашлось. Выбери другой.")
		}

		d.instituteID = opt.ID
		d.byCourse = byCourse
		d.courses = d.courses[:0]
		for course := range byCourse {
			d.courses = append(d.courses, course)
		}
		sort.Ints(d.courses)
		d.coursePage = 0
		d.step = stepCourse
		return b.sendCoursePage(c, d)
	}
	return c.Send("Такого института нет на клавиатуре. Выбери кнопкой.")
}

func (b *Bot) onSetupCourse(c tele.Context, d *dialog) error {
	handled, err := b.handleNav(c, &d.coursePage, len(d.courses), coursePageSize, func() error {
		return b.sendCoursePage(c, d)
	})
	if handled {
		return err
	}
	if c.Text() == btnBack {
		d.step = stepInstitute
		return b.sendInstitutePage(c, d)
	}

	for _, course := range d.courses {
		if c.Text() != fmt.Sprintf("Курс %d", course) {
			continue
		}
		d.course = course
		d.groups = d.byCourse[course]
		d.groupPage = 0
		d.step = stepGroup
		return b.sendGroupPage(c, d)
	}
	return c.Send("Такого курса нет на клавиатуре. Выбери кнопкой.")
}

func (b *Bot) onSetupGroup(c tele.Context, d *dialog) error {
	handled, err := b.handleNav(c, &d.groupPage, len(d.groups), groupPageSize, func() error {
		return b.sendGroupPage(c, d)
	})
	if handled {
		return err
	}
	if c.Text() == btnBack {
		d.step = stepCourse
		return b.sendCoursePage(c, d)
	}

	for _, g := range d.groups {
		if g.Title != c.Text() {
			continue
		}
		settings := storage.UserSettings{
			GroupID:     g.ID,
			GroupTitle:  g.Title,
			InstituteID: d.instituteID,
			Course:      d.course,
		}
		dctx, dcancel := dbCtx()
		defer dcancel()
		if err := b.store.SetUserSettings(dctx, c.Sender().ID, settings); err != nil {
			b.log.Error("save user settings", logx.Err(err), logx.Int64("user", c.Sender().ID))
			return c.Send("⚠️ Не получилось сохранить выбор. Попробуй ещё раз.")
		}
		b.states.clear(c.Sender().ID)
		b.log.Info("group selected",
			logx.Int64("user", c.Sender().ID),
			logx.Int("group", g.ID),
			logx.String("title", g.Title))
		return c.Send(fmt.Sprintf("Запомнил: %s. Теперь спрашивай расписание.", g.Title), menuKeyboard())
	}
	return c.Send("Такой группы нет на клавиатуре. Выбери кнопкой.")
}
