package services

import (
	"sort"

	"github.com/google/uuid"

	"github.com/franciosse/piscine-organique-backend/internal/types"
)

// OrderedLesson is one entry in a course's total lesson order. It carries
// enough titling to name a blocking lesson without a second lookup.
type OrderedLesson struct {
	LessonID        uuid.UUID `json:"lesson_id"`
	LessonTitle     string    `json:"lesson_title"`
	LessonPosition  int       `json:"lesson_position"`
	ChapterID       uuid.UUID `json:"chapter_id"`
	ChapterTitle    string    `json:"chapter_title"`
	ChapterPosition int       `json:"chapter_position"`
	HasQuiz         bool      `json:"has_quiz"`
}

// CourseOrder is the derived read model of a course's lessons, flattened and
// sorted by (chapter position, lesson position). It is immutable once built
// and safe for concurrent reads.
type CourseOrder struct {
	CourseID uuid.UUID       `json:"course_id"`
	Version  int             `json:"version"`
	Lessons  []OrderedLesson `json:"lessons"`

	index map[uuid.UUID]int
}

// FlattenCourseOrder builds the total order for a course. Chapters and
// lessons are re-sorted here rather than trusted, so callers may pass a
// course loaded without ordered preloads.
func FlattenCourseOrder(course *types.Course) *CourseOrder {
	order := &CourseOrder{Lessons: []OrderedLesson{}}
	if course == nil {
		return order
	}
	order.CourseID = course.ID
	order.Version = course.StructureVersion

	chapters := make([]types.Chapter, len(course.Chapters))
	copy(chapters, course.Chapters)
	sort.SliceStable(chapters, func(i, j int) bool {
		return chapters[i].Position < chapters[j].Position
	})

	for _, chapter := range chapters {
		lessons := make([]types.Lesson, len(chapter.Lessons))
		copy(lessons, chapter.Lessons)
		sort.SliceStable(lessons, func(i, j int) bool {
			return lessons[i].Position < lessons[j].Position
		})
		for _, lesson := range lessons {
			order.Lessons = append(order.Lessons, OrderedLesson{
				LessonID:        lesson.ID,
				LessonTitle:     lesson.Title,
				LessonPosition:  lesson.Position,
				ChapterID:       chapter.ID,
				ChapterTitle:    chapter.Title,
				ChapterPosition: chapter.Position,
				HasQuiz:         lesson.HasQuiz,
			})
		}
	}
	order.buildIndex()
	return order
}

func (o *CourseOrder) buildIndex() {
	o.index = make(map[uuid.UUID]int, len(o.Lessons))
	for i, l := range o.Lessons {
		o.index[l.LessonID] = i
	}
}

// IndexOf returns the lesson's position in the total order, or -1 when the
// lesson does not belong to the course.
func (o *CourseOrder) IndexOf(lessonID uuid.UUID) int {
	if o.index == nil {
		o.buildIndex()
	}
	if i, ok := o.index[lessonID]; ok {
		return i
	}
	return -1
}

// Next returns the lesson after lessonID in the total order, or nil at the
// end of the course or for an unknown lesson.
func (o *CourseOrder) Next(lessonID uuid.UUID) *OrderedLesson {
	i := o.IndexOf(lessonID)
	if i < 0 || i+1 >= len(o.Lessons) {
		return nil
	}
	next := o.Lessons[i+1]
	return &next
}

// Previous returns the lesson before lessonID in the total order, or nil at
// the start of the course or for an unknown lesson.
func (o *CourseOrder) Previous(lessonID uuid.UUID) *OrderedLesson {
	i := o.IndexOf(lessonID)
	if i <= 0 {
		return nil
	}
	prev := o.Lessons[i-1]
	return &prev
}
