package schedule

import (
	"errors"
	"testing"
	"time"
)

const weekPageFixture = `<html><body><div class="content">
<h2>Расписание занятий, неделя нечётная</h2>

<h3 class="day-heading">Понедельник, 3 сентября</h3>
<div class="class-lines">
	<div class="class-line-item">
		<div class="class-time">8:15</div>
		<div class="class-tail class-all-week">
			<div class="class-pred">Алгебра</div>
			<div class="class-info">Лекция, <a href="?prep=100">Иванов И.И.</a></div>
			<div class="class-aud">204</div>
		</div>
	</div>
	<div class="class-line-item">
		<div class="class-time">10:00</div>
		<div class="class-tail class-all-week">
			<div class="class-pred">Физкультура</div>
			<div class="class-info">Практика</div>
		</div>
		<div class="class-tail class-odd-week">
			<div class="class-pred">Химия</div>
			<div class="class-info">Лаб. работа, подгруппа 2 <a href="?prep=7">Сидорова А.А.</a> <a href="?prep=7">Сидорова А.А.</a></div>
			<div class="class-aud">В-112</div>
		</div>
		<div class="class-tail class-even-week">
			<div class="class-pred">История</div>
			<div class="class-info">Лекция</div>
		</div>
	</div>
	<div class="class-line-item">
		<div class="class-time">13:45</div>
		<div class="class-tail class-odd-week">свободно</div>
	</div>
	<div class="class-line-item">
		<div class="class-time"></div>
		<div class="class-tail class-all-week">
			<div class="class-pred">Без времени</div>
		</div>
	</div>
</div>

<h3 class="day-heading">Вторник, 4 сентября</h3>
<h3 class="day-heading">Среда, 5 сентября</h3>
<div class="class-lines"></div>
</div></body></html>`

func TestParseWeek(t *testing.T) {
	t.Parallel()

	res, err := ParseWeek(weekPageFixture, date(2024, time.September, 2))
	if err != nil {
		t.Fatalf("ParseWeek: %v", err)
	}
	if !res.OddWeek {
		t.Fatal("banner says odd week, parity resolved even")
	}

	if len(res.Days) != 2 {
		t.Fatalf("got %d days, want 2 (day without lines is dropped): %+v", len(res.Days), res.Days)
	}

	mon := res.Days[0]
	if mon.Heading != "Понедельник, 3 сентября" {
		t.Fatalf("heading = %q", mon.Heading)
	}
	if len(mon.Lessons) != 3 {
		t.Fatalf("got %d lessons, want 3: %+v", len(mon.Lessons), mon.Lessons)
	}

	algebra := mon.Lessons[0]
	want := Lesson{
		Start:   Clock{8, 15},
		Subject: "Алгебра",
		Kind:    KindLecture,
		Room:    "204",
		Teacher: "Иванов И.И.",
	}
	if algebra != want {
		t.Fatalf("lesson[0] = %+v, want %+v", algebra, want)
	}

	// 10:00 carries the all-week lesson plus the odd-week one; the
	// even-week lesson must not leak in. The numbered subgroup sorts
	// ahead of the applies-to-all lesson.
	chem := mon.Lessons[1]
	if chem.Subject != "Химия" || chem.Kind != KindLab {
		t.Fatalf("lesson[1] = %+v, want the odd-week lab", chem)
	}
	if chem.Subgroup != "подгруппа 2" {
		t.Fatalf("subgroup = %q", chem.Subgroup)
	}
	if chem.Teacher != "Сидорова А.А." {
		t.Fatalf("duplicate teacher links must collapse, got %q", chem.Teacher)
	}
	if chem.Room != "В-112" {
		t.Fatalf("room = %q", chem.Room)
	}

	pe := mon.Lessons[2]
	if pe.Subject != "Физкультура" || pe.Kind != KindPractice {
		t.Fatalf("lesson[2] = %+v, want the all-week practice", pe)
	}
	if pe.Room != Placeholder || pe.Teacher != Placeholder {
		t.Fatalf("missing room/teacher must render as placeholder: %+v", pe)
	}
	for _, l := range mon.Lessons {
		if l.Subject == "История" {
			t.Fatal("even-week lesson leaked into an odd week")
		}
		if l.Subject == "Без времени" {
			t.Fatal("slot without a parsable time must be skipped")
		}
	}

	wed := res.Days[1]
	if wed.Heading != "Среда, 5 сентября" {
		t.Fatalf("heading = %q", wed.Heading)
	}
	if len(wed.Lessons) != 0 {
		t.Fatalf("empty lines block must yield a zero-lesson day, got %+v", wed.Lessons)
	}
}

func TestParseWeekParityFallsBackToISO(t *testing.T) {
	t.Parallel()

	page := `<html><body><div class="content">
		<h3 class="day-heading">Понедельник, 2 сентября</h3>
		<div class="class-lines"></div>
	</div></body></html>`

	// 2024-09-02 is ISO week 36, even.
	res, err := ParseWeek(page, date(2024, time.September, 2))
	if err != nil {
		t.Fatalf("ParseWeek: %v", err)
	}
	if res.OddWeek {
		t.Fatal("no banner: parity must follow the ISO week number")
	}

	// 2024-09-09 is ISO week 37, odd.
	res, err = ParseWeek(page, date(2024, time.September, 9))
	if err != nil {
		t.Fatalf("ParseWeek: %v", err)
	}
	if !res.OddWeek {
		t.Fatal("ISO week 37 must resolve odd")
	}
}

func TestParseWeekBannerBeatsISO(t *testing.T) {
	t.Parallel()

	page := `<html><body><div class="content">
		<h2>Идёт нечетная неделя</h2>
	</div></body></html>`

	// The page says odd even though the requested date is an even ISO
	// week; the page wins.
	res, err := ParseWeek(page, date(2024, time.September, 2))
	if err != nil {
		t.Fatalf("ParseWeek: %v", err)
	}
	if !res.OddWeek {
		t.Fatal("explicit banner parity must override ISO parity")
	}
}

func TestParseWeekSharedInfoNode(t *testing.T) {
	t.Parallel()

	// Two parallel subjects: the second has no info of its own and
	// inherits kind and teacher from the nearest preceding info node.
	page := `<html><body><div class="content">
	<h3 class="day-heading">Понедельник, 3 сентября</h3>
	<div class="class-lines">
		<div class="class-line-item">
			<div class="class-time">11:45</div>
			<div class="class-tail class-all-week">
				<div class="class-pred">Матанализ</div>
				<div class="class-info">Практика <a href="?prep=9">Петров П.П.</a></div>
				<div class="class-aud">301</div>
				<div class="class-pred">Матанализ (доп.)</div>
				<div class="class-aud">302</div>
			</div>
		</div>
	</div>
	</div></body></html>`

	res, err := ParseWeek(page, date(2024, time.September, 2))
	if err != nil {
		t.Fatalf("ParseWeek: %v", err)
	}
	if len(res.Days) != 1 || len(res.Days[0].Lessons) != 2 {
		t.Fatalf("unexpected shape: %+v", res.Days)
	}

	second := res.Days[0].Lessons[1]
	if second.Subject != "Матанализ (доп.)" {
		t.Fatalf("lesson order changed: %+v", res.Days[0].Lessons)
	}
	if second.Kind != KindPractice {
		t.Fatalf("second stream must inherit kind, got %v", second.Kind)
	}
	if second.Teacher != "Петров П.П." {
		t.Fatalf("second stream must inherit teacher, got %q", second.Teacher)
	}
	if second.Room != "302" {
		t.Fatalf("second stream keeps its own room, got %q", second.Room)
	}
}

func TestParseWeekMissingContent(t *testing.T) {
	t.Parallel()

	_, err := ParseWeek(`<html><body><p>maintenance</p></body></html>`, date(2024, time.September, 2))
	if !errors.Is(err, ErrBadPage) {
		t.Fatalf("err = %v, want ErrBadPage", err)
	}
}
