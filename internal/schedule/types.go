// Package schedule retrieves the university's published class-schedule
// pages and recovers a structured weekly timetable from them.
//
// The pipeline is: Fetcher (retrying HTTP GET) -> parsers (goquery over
// the portal's loosely-structured HTML) -> week cache -> Client facade.
// Only Client is meant to be called by other packages.
package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// ErrUnavailable marks a transient network failure after the retry
// budget is exhausted. Callers should tell the user to retry later.
var ErrUnavailable = errors.New("schedule portal unavailable")

// ErrBadPage marks a structural failure: the page is reachable but its
// expected top-level shape is missing, so retrying cannot help.
var ErrBadPage = errors.New("unexpected schedule page structure")

// Placeholder marks a room or teacher the portal left unspecified.
// Distinct from "": an empty Subgroup means the lesson applies to the
// whole group, while Placeholder means the field exists but is blank.
const Placeholder = "—"

// Institute is a top-level subdivision of the university.
type Institute struct {
	ID    int
	Title string
}

// Group is a student group, scoped under a course within an institute.
type Group struct {
	ID    int
	Title string
}

// Kind classifies a lesson.
type Kind int

const (
	KindUnknown Kind = iota
	KindLecture
	KindPractice
	KindLab
)

// Label returns the human-readable kind used in messages.
// KindUnknown renders as an empty string.
func (k Kind) Label() string {
	switch k {
	case KindLecture:
		return "лекция"
	case KindPractice:
		return "практика"
	case KindLab:
		return "лаба"
	default:
		return ""
	}
}

// Lesson is a single timetable entry within a day.
type Lesson struct {
	Start    Clock
	Subject  string
	Kind     Kind
	Subgroup string // "" = applies to all subgroups
	Room     string // Placeholder when unspecified
	Teacher  string // Placeholder when unspecified
}

// DaySchedule is the lessons of one day under its raw portal heading.
// The heading embeds a human-readable date; resolve it with
// ResolveHeadingDate. An empty Lessons slice is a valid "no classes"
// day, distinct from the day being absent from the week entirely.
type DaySchedule struct {
	Heading string
	Lessons []Lesson
}

// WeekResult is one parsed weekly page, the unit of caching.
type WeekResult struct {
	OddWeek bool
	Days    []DaySchedule
}

// Clock is a time of day with minute precision.
type Clock struct {
	Hour   int
	Minute int
}

var reClock = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// ParseClock parses a strict HH:MM value with range validation.
func ParseClock(s string) (Clock, bool) {
	m := reClock.FindStringSubmatch(s)
	if m == nil {
		return Clock{}, false
	}
	h := atoi(m[1])
	mm := atoi(m[2])
	if h < 0 || h > 23 || mm < 0 || mm > 59 {
		return Clock{}, false
	}
	return Clock{Hour: h, Minute: mm}, true
}

// Minutes returns the minute of day, for ordering.
func (c Clock) Minutes() int { return c.Hour*60 + c.Minute }

// Add returns the clock shifted by d, wrapping past midnight.
func (c Clock) Add(d time.Duration) Clock {
	total := (c.Minutes() + int(d/time.Minute)) % (24 * 60)
	if total < 0 {
		total += 24 * 60
	}
	return Clock{Hour: total / 60, Minute: total % 60}
}

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// ISOWeekKey returns the ISO-8601 week-numbering pair for d.
func ISOWeekKey(d time.Time) (year, week int) { return d.ISOWeek() }

// IsOddISOWeek reports whether d falls on an odd ISO week number.
func IsOddISOWeek(d time.Time) bool {
	_, w := d.ISOWeek()
	return w%2 == 1
}

// atoi converts an already regex-validated decimal string.
func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
