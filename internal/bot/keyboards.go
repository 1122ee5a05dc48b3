package bot

import (
	tele "gopkg.in/telebot.v4"
)

// Button labels. Matching is by exact text, so these are constants.
const (
	btnToday       = "📆 На сегодня"
	btnTomorrow    = "⏭️ На завтра"
	btnThisWeek    = "📆 На текущую неделю"
	btnNextWeek    = "⏭️ На следующую неделю"
	btnChangeGroup = "🔁 Изменить группу"
	btnReport      = "🐞 Сообщить о проблеме"
	btnBack        = "⬅️ Назад"
	btnPagePrev    = "⬅️"
	btnPageNext    = "➡️"
	btnCancel      = "❌ Отмена"
)

var menuButtons = map[string]bool{
	btnToday: true, btnTomorrow: true, btnThisWeek: true, btnNextWeek: true,
	btnChangeGroup: true, btnReport: true, btnBack: true,
	btnPagePrev: true, btnPageNext: true, btnCancel: true,
}

func menuKeyboard() *tele.ReplyMarkup {
	kb := &tele.ReplyMarkup{ResizeKeyboard: true}
	kb.Reply(
		kb.Row(kb.Text(btnToday), kb.Text(btnTomorrow)),
		kb.Row(kb.Text(btnThisWeek), kb.Text(btnNextWeek)),
		kb.Row(kb.Text(btnChangeGroup), kb.Text(btnReport)),
	)
	return kb
}

func cancelKeyboard() *tele.ReplyMarkup {
	kb := &tele.ReplyMarkup{ResizeKeyboard: true}
	kb.Reply(kb.Row(kb.Text(btnCancel)))
	return kb
}

// paginate returns the window for a 0-based page plus paging flags.
func paginate(options []string, page, size int) (window []string, hasPrev, hasNext bool) {
	if size <= 0 {
		size = 10
	}
	if page < 0 {
		page = 0
	}
	total := len(options)
	start := page * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return options[start:end], start > 0, end < total
}

// maxPage returns the last valid 0-based page for the option count.
func maxPage(total, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return (total - 1) / size
}

// pagedKeyboard builds a reply keyboard for one page of options with
// paging controls, the report shortcut, optional back, and cancel.
func pagedKeyboard(options []string, page, pageSize, rowSize int, showBack bool) *tele.ReplyMarkup {
	kb := &tele.ReplyMarkup{ResizeKeyboard: true}
	window, hasPrev, hasNext := paginate(options, page, pageSize)

	var rows []tele.Row
	if rowSize <= 0 {
		rowSize = 1
	}
	for i := 0; i < len(window); i += rowSize {
		end := i + rowSize
		if end > len(window) {
			end = len(window)
		}
		row := make(tele.Row, 0, rowSize)
		for _, label := range window[i:end] {
			row = append(row, kb.Text(label))
		}
		rows = append(rows, row)
	}

	var controls tele.Row
	if hasPrev {
		controls = append(controls, kb.Text(btnPagePrev))
	}
	if hasNext {
		controls = append(controls, kb.Text(btnPageNext))
	}
	if len(controls) > 0 {
		rows = append(rows, controls)
	}

	rows = append(rows, kb.Row(kb.Text(btnReport)))
	if showBack {
		rows = append(rows, kb.Row(kb.Text(btnBack)))
	}
	rows = append(rows, kb.Row(kb.Text(btnCancel)))

	kb.Reply(rows...)
	return kb
}
