package schedule

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const freeMarker = "свободно"

var reSubgroup = regexp.MustCompile(`(?i)подгруппа\s*(\d+)`)

// ParseWeek turns one weekly schedule page into a WeekResult.
//
// Week parity is taken from the page's own banner when it states one;
// the published page occasionally disagrees with the machine-computed
// calendar parity, and the page is ground truth for what it renders.
// Only when the banner is absent or ambiguous does the ISO week number
// of the requested date decide.
func ParseWeek(page string, requested time.Time) (WeekResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return WeekResult{}, err
	}
	content := doc.Find("div.content").First()
	if content.Length() == 0 {
		return WeekResult{}, fmt.Errorf("%w: missing content container", ErrBadPage)
	}

	odd := resolveParity(content, requested)

	var days []DaySchedule
	content.Find("h3.day-heading").Each(func(_ int, h *goquery.Selection) {
		lines := attachedLines(h)
		if lines == nil {
			return
		}
		day := DaySchedule{Heading: squashText(h)}
		lines.Find("div.class-line-item").Each(func(_ int, item *goquery.Selection) {
			day.Lessons = append(day.Lessons, parseLineItem(item, odd)...)
		})
		SortLessons(day.Lessons)
		days = append(days, day)
	})

	return WeekResult{OddWeek: odd, Days: days}, nil
}

// resolveParity reads the page's week banner; falls back to ISO parity.
// "нечет" must be checked before "чет" since it contains it.
func resolveParity(content *goquery.Selection, requested time.Time) bool {
	decided := false
	odd := false
	content.Find("h1, h2, .week-label").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.ReplaceAll(strings.ToLower(squashText(s)), "ё", "е")
		if !strings.Contains(text, "недел") {
			return true
		}
		switch {
		case strings.Contains(text, "нечет"):
			odd, decided = true, true
		case strings.Contains(text, "чет"):
			odd, decided = false, true
		}
		return !decided
	})
	if decided {
		return odd
	}
	return IsOddISOWeek(requested)
}

// attachedLines finds the lesson-line container belonging to a day
// heading: the next sibling class-lines block, stopping at the next
// day heading so a day without lessons never borrows a later day's.
func attachedLines(h *goquery.Selection) *goquery.Selection {
	for sib := h.Next(); sib.Length() > 0; sib = sib.Next() {
		if sib.HasClass("class-lines") {
			return sib
		}
		if sib.HasClass("day-heading") {
			return nil
		}
	}
	return nil
}

// parseLineItem extracts the lessons of one time slot. A slot carries
// one or more tail variants (all-week / odd-week / even-week); every
// all-week tail applies plus the single tail matching the resolved
// parity.
func parseLineItem(item *goquery.Selection, odd bool) []Lesson {
	start, ok := ParseClock(squashText(item.Find("div.class-time").First()))
	if !ok {
		return nil
	}

	parityClass := "class-even-week"
	if odd {
		parityClass = "class-odd-week"
	}

	var lessons []Lesson
	collect := func(_ int, tail *goquery.Selection) {
		if strings.EqualFold(squashText(tail), freeMarker) {
			return
		}
		tail.Find("div.class-pred").Each(func(_ int, subj *goquery.Selection) {
			if l, ok := parseSubject(subj); ok {
				l.Start = start
				lessons = append(lessons, l)
			}
		})
	}
	item.Find("div.class-tail.class-all-week").Each(collect)
	item.Find("div.class-tail." + parityClass).Each(collect)
	return lessons
}

// parseSubject extracts one lesson from a subject marker and the run of
// sibling nodes up to the next marker (its metadata segment).
func parseSubject(subj *goquery.Selection) (Lesson, bool) {
	subject := squashText(subj)
	if subject == "" {
		return Lesson{}, false
	}

	var segment []*goquery.Selection
	for sib := subj.Next(); sib.Length() > 0; sib = sib.Next() {
		if sib.HasClass("class-pred") {
			break
		}
		segment = append(segment, sib)
	}

	segmentInfo := func() *goquery.Selection {
		for _, n := range segment {
			if n.HasClass("class-info") {
				return n
			}
		}
		return nil
	}

	// Kind comes from the nearest preceding info sibling; parallel
	// streams reuse the same info node for the whole line.
	kindInfo := subj.PrevAllFiltered("div.class-info").First()
	var kindInfoSel *goquery.Selection
	if kindInfo.Length() > 0 {
		kindInfoSel = kindInfo
	} else {
		kindInfoSel = segmentInfo()
	}

	kind := KindUnknown
	if kindInfoSel != nil {
		kind = extractKind(squashText(kindInfoSel))
	}

	detailsInfo := segmentInfo()
	if detailsInfo == nil {
		detailsInfo = kindInfoSel
	}

	subgroupSource := ""
	if detailsInfo != nil {
		subgroupSource = squashText(detailsInfo)
	} else {
		parts := make([]string, 0, len(segment))
		for _, n := range segment {
			parts = append(parts, squashText(n))
		}
		subgroupSource = strings.Join(parts, " ")
	}
	subgroup := ""
	if m := reSubgroup.FindStringSubmatch(subgroupSource); m != nil {
		subgroup = "подгруппа " + m[1]
	}

	teacher := extractTeachers(kindInfoSel, segment)

	room := Placeholder
	var audSel *goquery.Selection
	for _, n := range segment {
		if n.HasClass("class-aud") {
			audSel = n
			break
		}
	}
	if audSel == nil && detailsInfo != nil {
		if next := detailsInfo.NextAllFiltered("div.class-aud").First(); next.Length() > 0 {
			audSel = next
		}
	}
	if audSel != nil {
		if r := squashText(audSel); r != "" {
			room = r
		}
	}

	return Lesson{
		Subject:  subject,
		Kind:     kind,
		Subgroup: subgroup,
		Room:     room,
		Teacher:  teacher,
	}, true
}

// extractKind matches the inflected lesson-kind prefixes; first match
// wins, no match is KindUnknown.
func extractKind(text string) Kind {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "лекц"):
		return KindLecture
	case strings.Contains(t, "практ"):
		return KindPractice
	case strings.Contains(t, "лаб"):
		return KindLab
	default:
		return KindUnknown
	}
}

// extractTeachers collects teacher links from the info node, or from
// anywhere in the segment when the info node has none. Names are
// de-duplicated preserving first-seen order.
func extractTeachers(info *goquery.Selection, segment []*goquery.Selection) string {
	var links *goquery.Selection
	if info != nil {
		links = info.Find(`a[href^="?prep="]`)
	}
	if links == nil || links.Length() == 0 {
		for _, n := range segment {
			found := n.Find(`a[href^="?prep="]`)
			if found.Length() == 0 {
				continue
			}
			if links == nil || links.Length() == 0 {
				links = found
			} else {
				links = links.AddSelection(found)
			}
		}
	}
	if links == nil || links.Length() == 0 {
		return Placeholder
	}

	seen := map[string]bool{}
	var names []string
	links.Each(func(_ int, a *goquery.Selection) {
		name := squashText(a)
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		names = append(names, name)
	})
	if len(names) == 0 {
		return Placeholder
	}
	return strings.Join(names, ", ")
}
