// Package format renders parsed schedules into Telegram HTML messages.
package format

import (
	"html"
	"sort"
	"strings"
	"time"

	"istubot/internal/schedule"
)

const separator = "-------------------------"

// blockLength is the fixed visual length of a lesson block. The portal
// does not publish end times, so every block ends 90 minutes after it
// starts regardless of the actual class length.
const blockLength = 90 * time.Minute

// DayMessage renders one day for Telegram HTML parse mode. Lessons
// sharing a start time are grouped into one visual block.
func DayMessage(heading string, lessons []schedule.Lesson) string {
	out := []string{"🍌" + html.EscapeString(heading), separator}

	if len(lessons) == 0 {
		out = append(out, "нет занятий")
		return strings.Join(out, "\n")
	}

	sorted := make([]schedule.Lesson, len(lessons))
	copy(sorted, lessons)
	schedule.SortLessons(sorted)

	blocks := map[schedule.Clock][]schedule.Lesson{}
	var order []schedule.Clock
	for _, l := range sorted {
		if _, ok := blocks[l.Start]; !ok {
			order = append(order, l.Start)
		}
		blocks[l.Start] = append(blocks[l.Start], l)
	}

	for i, start := range order {
		end := start.Add(blockLength)
		for j, l := range blocks[start] {
			if j > 0 {
				out = append(out, "===== ")
			}
			line := start.String() + " — " + end.String() + " " + html.EscapeString(l.Subject)
			if kind := l.Kind.Label(); kind != "" {
				line += " (" + html.EscapeString(kind) + ")"
			}
			out = append(out, line)

			var details []string
			if l.Subgroup != "" {
				details = append(details, html.EscapeString(l.Subgroup))
			}
			if l.Room != schedule.Placeholder {
				details = append(details, html.EscapeString(l.Room))
			}
			if l.Teacher != schedule.Placeholder {
				details = append(details, html.EscapeString(l.Teacher))
			}
			if len(details) > 0 {
				out = append(out, " • "+strings.Join(details, " | "))
			}
		}
		if i < len(order)-1 {
			out = append(out, separator)
		}
	}

	return strings.Join(out, "\n")
}

// FindDay picks the day whose heading resolves to the target date.
func FindDay(days []schedule.DaySchedule, target time.Time) (schedule.DaySchedule, bool) {
	for _, d := range days {
		if dd, ok := schedule.ResolveHeadingDate(d.Heading, target); ok && schedule.SameDate(dd, target) {
			return d, true
		}
	}
	return schedule.DaySchedule{}, false
}

// PickWeek selects the days resolving into [monday, monday+6] and
// returns them ordered by date.
func PickWeek(days []schedule.DaySchedule, monday time.Time) []schedule.DaySchedule {
	// Resolved dates are UTC midnights; normalize the window the same way.
	my, mm, md := monday.Date()
	start := time.Date(my, mm, md, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 6)

	type dated struct {
		date time.Time
		day  schedule.DaySchedule
	}
	var picked []dated
	for _, d := range days {
		dd, ok := schedule.ResolveHeadingDate(d.Heading, monday)
		if !ok {
			continue
		}
		if dd.Before(start) || dd.After(end) {
			continue
		}
		picked = append(picked, dated{date: dd, day: d})
	}

	sort.Slice(picked, func(i, j int) bool { return picked[i].date.Before(picked[j].date) })

	out := make([]schedule.DaySchedule, 0, len(picked))
	for _, p := range picked {
		out = append(out, p.day)
	}
	return out
}
