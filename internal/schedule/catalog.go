package schedule

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	reSubdivHref = regexp.MustCompile(`^\?subdiv=(\d+)$`)
	reGroupHref  = regexp.MustCompile(`^\?group=(\d+)$`)
	reCourseItem = regexp.MustCompile(`(?i)^курс\s*(\d+)\b`)
)

// ParseInstitutes extracts the institute catalog from the portal's root
// page. Entries are de-duplicated by id (last-seen title wins) and
// sorted case-insensitively by title.
func ParseInstitutes(page string) ([]Institute, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, err
	}
	content := doc.Find("div.content").First()
	if content.Length() == 0 {
		return nil, fmt.Errorf("%w: missing content container", ErrBadPage)
	}

	byID := map[int]string{}
	content.Find(`a[href^="?subdiv="]`).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		m := reSubdivHref.FindStringSubmatch(href)
		if m == nil {
			return
		}
		id, _ := strconv.Atoi(m[1])
		if title := squashText(a); title != "" {
			byID[id] = title
		}
	})

	out := make([]Institute, 0, len(byID))
	for id, title := range byID {
		out = append(out, Institute{ID: id, Title: title})
	}
	sortByTitle(out, func(i Institute) string { return i.Title })
	return out, nil
}

// ParseGroupsByCourse extracts the course->groups mapping from an
// institute page. Outer items that do not look like a course, and
// courses with zero groups, are silently omitted.
func ParseGroupsByCourse(page string) (map[int][]Group, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, err
	}
	kursList := doc.Find("ul.kurs-list").First()
	if kursList.Length() == 0 {
		return nil, fmt.Errorf("%w: missing course list", ErrBadPage)
	}

	byCourse := map[int][]Group{}
	kursList.Find("li").Each(func(_ int, li *goquery.Selection) {
		inner := li.ChildrenFiltered("ul").First()
		if inner.Length() == 0 {
			return
		}
		m := reCourseItem.FindStringSubmatch(squashText(li))
		if m == nil {
			return
		}
		course, _ := strconv.Atoi(m[1])

		byID := map[int]string{}
		inner.Find(`a[href^="?group="]`).Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			gm := reGroupHref.FindStringSubmatch(href)
			if gm == nil {
				return
			}
			id, _ := strconv.Atoi(gm[1])
			if title := squashText(a); title != "" {
				byID[id] = title
			}
		})
		if len(byID) == 0 {
			return
		}

		groups := make([]Group, 0, len(byID))
		for id, title := range byID {
			groups = append(groups, Group{ID: id, Title: title})
		}
		sortByTitle(groups, func(g Group) string { return g.Title })
		byCourse[course] = groups
	})

	return byCourse, nil
}

// squashText renders a selection's text with runs of whitespace
// collapsed to single spaces, like the portal shows it.
func squashText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

func sortByTitle[T any](items []T, title func(T) string) {
	sort.Slice(items, func(i, j int) bool {
		return strings.ToLower(title(items[i])) < strings.ToLower(title(items[j]))
	})
}
