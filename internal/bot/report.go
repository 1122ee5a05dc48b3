package bot

import (
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"istubot/internal/storage"
	logx "istubot/pkg/logx"
)

func (b *Bot) startReport(c tele.Context, d *dialog) error {
	d.reset(stepReport)
	return c.Send("Опиши проблему одним сообщением. Можно приложить скриншот.", cancelKeyboard())
}

// onReportMessage collects the report across messages: text pieces are
// accumulated, and a photo without any text yet only stores the photo
// and asks for a description. Once there is text, the report is relayed
// to the admin chat and recorded.
func (b *Bot) onReportMessage(c tele.Context, d *dialog) error {
	if c.Text() == btnCancel {
		return b.cancelDialog(c)
	}

	text := strings.TrimSpace(c.Text())
	if msg := c.Message(); msg != nil {
		if text == "" {
			text = strings.TrimSpace(msg.Caption)
		}
		if msg.Photo != nil {
			d.reportPhoto = msg.Photo.FileID
		}
	}
	if text != "" {
		if d.reportText != "" {
			d.reportText += "\n"
		}
		d.reportText += text
	}
	if d.reportText == "" {
		if d.reportPhoto == "" {
			return c.Send("Нужен текст или скриншот. Опиши проблему одним сообщением.")
		}
		return c.Send("Скриншот получил. Теперь опиши проблему текстом.")
	}

	sender := c.Sender()
	ctx, cancel := dbCtx()
	defer cancel()
	settings, _, err := b.store.GetUserSettings(ctx, sender.ID)
	if err != nil {
		b.log.Error("load user settings", logx.Err(err), logx.Int64("user", sender.ID))
	}

	report := storage.Report{
		At:          time.Now().In(b.cfg.Location),
		UserID:      sender.ID,
		Username:    sender.Username,
		GroupTitle:  settings.GroupTitle,
		Text:        d.reportText,
		PhotoFileID: d.reportPhoto,
	}
	report.DeliveredOK = b.deliverReport(report)
	if err := b.store.AppendReport(ctx, report); err != nil {
		b.log.Error("append report", logx.Err(err), logx.Int64("user", sender.ID))
	}

	b.states.clear(sender.ID)
	if !report.DeliveredOK {
		return c.Send("Записал, но не смог переслать разработчику. Он всё равно увидит.", menuKeyboard())
	}
	return c.Send("Спасибо! Передал разработчику.", menuKeyboard())
}

func (b *Bot) deliverReport(r storage.Report) bool {
	if b.cfg.AdminChat == 0 {
		return false
	}
	chat := &tele.Chat{ID: b.cfg.AdminChat}

	var sb strings.Builder
	sb.WriteString("🐞 Новый отчёт о проблеме\n")
	if r.Username != "" {
		fmt.Fprintf(&sb, "От: @%s (%d)\n", r.Username, r.UserID)
	} else {
		fmt.Fprintf(&sb, "От: %d\n", r.UserID)
	}
	if r.GroupTitle != "" {
		fmt.Fprintf(&sb, "Группа: %s\n", r.GroupTitle)
	}
	if r.Text != "" {
		sb.WriteString("\n")
		sb.WriteString(r.Text)
	}

	var err error
	if r.PhotoFileID != "" {
		photo := &tele.Photo{File: tele.File{FileID: r.PhotoFileID}, Caption: sb.String()}
		_, err = b.tb.Send(chat, photo)
	} else {
		_, err = b.tb.Send(chat, sb.String())
	}
	if err != nil {
		b.log.Error("deliver report", logx.Err(err), logx.Int64("user", r.UserID))
		return false
	}
	return true
}
