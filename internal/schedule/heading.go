package schedule

import (
	"regexp"
	"strings"
	"time"
)

var reDayMonth = regexp.MustCompile(`,\s*(\d{1,2})\s+([а-яё]+)`)

// genitiveMonths maps the genitive month names the portal embeds in day
// headings ("понедельник, 3 сентября") to month numbers.
var genitiveMonths = map[string]time.Month{
	"января":   time.January,
	"февраля":  time.February,
	"марта":    time.March,
	"апреля":   time.April,
	"мая":      time.May,
	"июня":     time.June,
	"июля":     time.July,
	"августа":  time.August,
	"сентября": time.September,
	"октября":  time.October,
	"ноября":   time.November,
	"декабря":  time.December,
}

// ResolveHeadingDate turns a free-text day heading into a calendar date
// near the reference date. The year is taken from the reference, with
// the December/January boundary resolved toward the adjacent year.
// Unrecognized month names and calendrically impossible dates yield
// ok=false; this never panics past the caller.
func ResolveHeadingDate(heading string, ref time.Time) (time.Time, bool) {
	m := reDayMonth.FindStringSubmatch(strings.ToLower(heading))
	if m == nil {
		return time.Time{}, false
	}
	day := atoi(m[1])
	month, ok := genitiveMonths[m[2]]
	if !ok {
		return time.Time{}, false
	}

	year := ref.Year()
	switch {
	case ref.Month() == time.December && month == time.January:
		year++
	case ref.Month() == time.January && month == time.December:
		year--
	}

	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes out-of-range days (Feb 30 -> Mar 2); treat
	// any normalization as "no such date".
	if d.Day() != day || d.Month() != month || d.Year() != year {
		return time.Time{}, false
	}
	return d, true
}

// SameDate reports whether two times fall on the same calendar date,
// ignoring location-specific clock times.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
