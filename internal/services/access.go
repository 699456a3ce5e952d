package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	redisclient "github.com/franciosse/piscine-organique-backend/internal/clients/redis"
	"github.com/franciosse/piscine-organique-backend/internal/logger"
	"github.com/franciosse/piscine-organique-backend/internal/types"
)

const (
	ReasonAccessible         = "accessible"
	ReasonNotPurchased       = "not_purchased"
	ReasonPreviousIncomplete = "previous_incomplete"

	// ReasonUnknownLesson never surfaces through the API; handlers 404 on
	// unknown lessons before evaluating. It exists so a missed check fails
	// closed instead of granting access.
	ReasonUnknownLesson = "unknown_lesson"
)

// BlockingLesson names the earliest incomplete prerequisite of a lesson.
type BlockingLesson struct {
	LessonID     uuid.UUID `json:"lesson_id"`
	LessonTitle  string    `json:"lesson_title"`
	ChapterTitle string    `json:"chapter_title"`
}

type LessonAccess struct {
	Accessible     bool            `json:"accessible"`
	Reason         string          `json:"reason"`
	BlockingLesson *BlockingLesson `json:"blocking_lesson,omitempty"`
}

type AccessService interface {
	// OrderFor returns the flattened total lesson order for a course,
	// served from the versioned cache when possible.
	OrderFor(ctx context.Context, course *types.Course) *CourseOrder

	// EvaluateLessonAccess decides whether lessonID is viewable given the
	// user's completion state and course entitlement. Denial is an expected
	// outcome, reported in the result rather than as an error. Lessons not
	// in order fail closed.
	EvaluateLessonAccess(order *CourseOrder, lessonID uuid.UUID, completed map[uuid.UUID]bool, hasCourseAccess bool) LessonAccess
}

type accessService struct {
	log   *logger.Logger
	cache redisclient.OrderCache
}

func NewAccessService(log *logger.Logger, cache redisclient.OrderCache) AccessService {
	if cache == nil {
		cache = redisclient.NewNoopCache()
	}
	return &accessService{log: log.With("service", "AccessService"), cache: cache}
}

func (s *accessService) OrderFor(ctx context.Context, course *types.Course) *CourseOrder {
	if course == nil {
		return FlattenCourseOrder(nil)
	}

	key := course.ID.String()
	if payload, ok, err := s.cache.Get(ctx, key, course.StructureVersion); err == nil && ok {
		var cached CourseOrder
		if uErr := json.Unmarshal(payload, &cached); uErr == nil {
			return &cached
		}
	} else if err != nil {
		s.log.Warn("Order cache read failed, recomputing", "course_id", key, "error", err)
	}

	order := FlattenCourseOrder(course)
	if payload, err := json.Marshal(order); err == nil {
		if sErr := s.cache.Set(ctx, key, course.StructureVersion, payload); sErr != nil {
			s.log.Warn("Order cache write failed", "course_id", key, "error", sErr)
		}
	}
	return order
}

func (s *accessService) EvaluateLessonAccess(order *CourseOrder, lessonID uuid.UUID, completed map[uuid.UUID]bool, hasCourseAccess bool) LessonAccess {
	if !hasCourseAccess {
		return LessonAccess{Accessible: false, Reason: ReasonNotPurchased}
	}

	i := order.IndexOf(lessonID)
	if i < 0 {
		return LessonAccess{Accessible: false, Reason: ReasonUnknownLesson}
	}
	if i == 0 {
		// The first lesson of a course is always open to entitled users.
		return LessonAccess{Accessible: true, Reason: ReasonAccessible}
	}

	// Walk predecessors in order and report the EARLIEST incomplete one, so
	// the blocking reason is deterministic regardless of evaluation order.
	// Completed quiz lessons satisfy the prerequisite the same as any other
	// completed lesson; there is no separate quiz-pass gate.
	for j := 0; j < i; j++ {
		prior := order.Lessons[j]
		if !completed[prior.LessonID] {
			return LessonAccess{
				Accessible: false,
				Reason:     ReasonPreviousIncomplete,
				BlockingLesson: &BlockingLesson{
					LessonID:     prior.LessonID,
					LessonTitle:  prior.LessonTitle,
					ChapterTitle: prior.ChapterTitle,
				},
			}
		}
	}
	return LessonAccess{Accessible: true, Reason: ReasonAccessible}
}

// CompletionSet reduces progress rows to the completion lookup the evaluator
// consumes. Missing rows count as not completed.
func CompletionSet(rows []*types.ProgressRecord) map[uuid.UUID]bool {
	out := make(map[uuid.UUID]bool, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		if row.Completed {
			out[row.LessonID] = true
		}
	}
	return out
}
