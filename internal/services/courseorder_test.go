package services

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

func TestFlattenCourseOrderSortsByChapterThenLesson(t *testing.T) {
	course, lessonIDs := threeLessonCourse(1000)

	order := FlattenCourseOrder(course)
	if len(order.Lessons) != 3 {
		t.Fatalf("expected 3 lessons, got %d", len(order.Lessons))
	}
	want := []uuid.UUID{lessonIDs[0], lessonIDs[1], lessonIDs[2]}
	for i, id := range want {
		if order.Lessons[i].LessonID != id {
			t.Fatalf("position %d: got %s, want %s", i, order.Lessons[i].LessonID, id)
		}
	}
	if order.Lessons[0].ChapterTitle != "Chapter One" {
		t.Fatalf("first lesson chapter: got %q", order.Lessons[0].ChapterTitle)
	}
	if order.Version != course.StructureVersion {
		t.Fatalf("order version %d, want %d", order.Version, course.StructureVersion)
	}
}

func TestFlattenCourseOrderNilCourse(t *testing.T) {
	order := FlattenCourseOrder(nil)
	if len(order.Lessons) != 0 {
		t.Fatalf("expected empty order, got %d lessons", len(order.Lessons))
	}
	if order.IndexOf(uuid.New()) != -1 {
		t.Fatal("IndexOf on empty order should be -1")
	}
}

func TestIndexOf(t *testing.T) {
	course, lessonIDs := threeLessonCourse(1000)
	order := FlattenCourseOrder(course)

	for i, id := range lessonIDs {
		if got := order.IndexOf(id); got != i {
			t.Fatalf("IndexOf(%s)=%d, want %d", id, got, i)
		}
	}
	if got := order.IndexOf(uuid.New()); got != -1 {
		t.Fatalf("IndexOf(unknown)=%d, want -1", got)
	}
}

func TestNextAndPrevious(t *testing.T) {
	course, lessonIDs := threeLessonCourse(1000)
	order := FlattenCourseOrder(course)
	a, b, c := lessonIDs[0], lessonIDs[1], lessonIDs[2]

	cases := []struct {
		name     string
		from     uuid.UUID
		wantNext *uuid.UUID
		wantPrev *uuid.UUID
	}{
		{"first", a, &b, nil},
		{"middle", b, &c, &a},
		{"last", c, nil, &b},
		{"unknown", uuid.New(), nil, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next := order.Next(tc.from)
			prev := order.Previous(tc.from)
			if (next == nil) != (tc.wantNext == nil) {
				t.Fatalf("Next nil-ness mismatch: got %v", next)
			}
			if next != nil && next.LessonID != *tc.wantNext {
				t.Fatalf("Next=%s, want %s", next.LessonID, *tc.wantNext)
			}
			if (prev == nil) != (tc.wantPrev == nil) {
				t.Fatalf("Previous nil-ness mismatch: got %v", prev)
			}
			if prev != nil && prev.LessonID != *tc.wantPrev {
				t.Fatalf("Previous=%s, want %s", prev.LessonID, *tc.wantPrev)
			}
		})
	}
}

func TestCourseOrderSurvivesJSONRoundTrip(t *testing.T) {
	// Cache entries are stored serialized; IndexOf must keep working on a
	// deserialized order whose lazy index has not been built yet.
	course, lessonIDs := threeLessonCourse(1000)
	payload, err := json.Marshal(FlattenCourseOrder(course))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var restored CourseOrder
	if err := json.Unmarshal(payload, &restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := restored.IndexOf(lessonIDs[2]); got != 2 {
		t.Fatalf("IndexOf after round trip=%d, want 2", got)
	}
	if next := restored.Next(lessonIDs[0]); next == nil || next.LessonID != lessonIDs[1] {
		t.Fatal("Next after round trip broken")
	}
}
