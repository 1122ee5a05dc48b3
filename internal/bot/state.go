package bot

import (
	"sync"

	"istubot/internal/schedule"
)

type step int

const (
	stepNone step = iota
	stepInstitute
	stepCourse
	stepGroup
	stepReport
)

// instOption is an institute with its keyboard label. Labels can be
// shortened (СШГ) so the reply keyboard stays usable.
type instOption struct {
	ID    int
	Title string
	Label string
}

// dialog is the per-user multi-step conversation state. It lives in
// memory for the duration of the setup or report flow; the durable
// outcome (the chosen group) goes through storage.
//
// telebot runs every handler in its own goroutine, so two quick
// messages from one user hit the same dialog concurrently. mu
// serializes them; handlers hold it for the whole update.
type dialog struct {
	mu sync.Mutex

	step step

	institutes []instOption
	instPage   int

	instituteID int
	courses     []int
	byCourse    map[int][]schedule.Group
	coursePage  int

	course    int
	groups    []schedule.Group
	groupPage int

	reportText  string
	reportPhoto string
}

// reset clears the flow state in place. The mutex must be held; a
// whole-struct assignment would copy it.
func (d *dialog) reset(s step) {
	d.step = s
	d.institutes = nil
	d.instPage = 0
	d.instituteID = 0
	d.courses = nil
	d.byCourse = nil
	d.coursePage = 0
	d.course = 0
	d.groups = nil
	d.groupPage = 0
	d.reportText = ""
	d.reportPhoto = ""
}

type stateStore struct {
	mu sync.Mutex
	m  map[int64]*dialog
}

func newStateStore() *stateStore {
	return &stateStore{m: map[int64]*dialog{}}
}

// get returns the user's dialog, creating it on first use.
func (s *stateStore) get(userID int64) *dialog {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.m[userID]
	if !ok {
		d = &dialog{}
		s.m[userID] = d
	}
	return d
}

func (s *stateStore) clear(userID int64) {
	s.mu.Lock()
	delete(s.m, userID)
	s.mu.Unlock()
}
