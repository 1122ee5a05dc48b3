package schedule

import (
	"sort"
	"strings"
)

// SortLessons orders a day's lessons the way they are rendered: start
// time, then subgroup (numbered subgroups ascending before the
// applies-to-all case), then subject (case-insensitive), kind, room,
// teacher. The sort is stable so equal lessons keep document order.
func SortLessons(lessons []Lesson) {
	sort.SliceStable(lessons, func(i, j int) bool {
		a, b := lessons[i], lessons[j]
		if a.Start != b.Start {
			return a.Start.Minutes() < b.Start.Minutes()
		}
		ac, an := subgroupKey(a.Subgroup)
		bc, bn := subgroupKey(b.Subgroup)
		if ac != bc {
			return ac < bc
		}
		if an != bn {
			return an < bn
		}
		if as, bs := strings.ToLower(a.Subject), strings.ToLower(b.Subject); as != bs {
			return as < bs
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Room != b.Room {
			return a.Room < b.Room
		}
		return a.Teacher < b.Teacher
	})
}

// subgroupKey ranks numbered subgroups before the unlabeled case.
func subgroupKey(subgroup string) (class, num int) {
	if subgroup == "" {
		return 1, 0
	}
	m := reSubgroup.FindStringSubmatch(subgroup)
	if m == nil {
		return 1, 0
	}
	return 0, atoi(m[1])
}
