package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/franciosse/piscine-organique-backend/internal/apierr"
	"github.com/franciosse/piscine-organique-backend/internal/logger"
	"github.com/franciosse/piscine-organique-backend/internal/repos"
	"github.com/franciosse/piscine-organique-backend/internal/types"
)

// LessonView is everything the lesson page needs: the access verdict and
// linear navigation over the course's total lesson order.
type LessonView struct {
	Lesson           *OrderedLesson `json:"lesson"`
	Access           LessonAccess   `json:"access"`
	NextLessonID     *uuid.UUID     `json:"next_lesson_id,omitempty"`
	PreviousLessonID *uuid.UUID     `json:"previous_lesson_id,omitempty"`
}

// CourseView is the course page projection: structure plus a per-lesson
// accessibility map for the requesting user.
type CourseView struct {
	Course       *types.Course           `json:"course"`
	HasAccess    bool                    `json:"has_access"`
	LessonAccess map[string]LessonAccess `json:"lesson_access"`
}

type CourseService interface {
	ListPublished(ctx context.Context) ([]*types.Course, error)
	GetCourseView(ctx context.Context, userID, courseID uuid.UUID) (*CourseView, error)
	GetLessonView(ctx context.Context, userID, courseID, lessonID uuid.UUID) (*LessonView, error)
	// BumpStructureVersion is called after admin edits to chapters or
	// lessons so cached lesson orders stop being served.
	BumpStructureVersion(ctx context.Context, courseID uuid.UUID) error
}

type courseService struct {
	db           *gorm.DB
	log          *logger.Logger
	courseRepo   repos.CourseRepo
	purchaseRepo repos.PurchaseRepo
	progressRepo repos.ProgressRepo
	entitlement  EntitlementService
	access       AccessService
}

func NewCourseService(
	db *gorm.DB,
	log *logger.Logger,
	courseRepo repos.CourseRepo,
	purchaseRepo repos.PurchaseRepo,
	progressRepo repos.ProgressRepo,
	entitlement EntitlementService,
	access AccessService,
) CourseService {
	return &courseService{
		db:           db,
		log:          log.With("service", "CourseService"),
		courseRepo:   courseRepo,
		purchaseRepo: purchaseRepo,
		progressRepo: progressRepo,
		entitlement:  entitlement,
		access:       access,
	}
}

func (s *courseService) ListPublished(ctx context.Context) ([]*types.Course, error) {
	courses, err := s.courseRepo.ListPublished(ctx, nil)
	if err != nil {
		return nil, apierr.Transient(fmt.Errorf("list published courses: %w", err))
	}
	return courses, nil
}

func (s *courseService) GetCourseView(ctx context.Context, userID, courseID uuid.UUID) (*CourseView, error) {
	course, order, completed, hasAccess, err := s.loadEvaluationState(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}

	view := &CourseView{
		Course:       course,
		HasAccess:    hasAccess,
		LessonAccess: make(map[string]LessonAccess, len(order.Lessons)),
	}
	for _, l := range order.Lessons {
		view.LessonAccess[l.LessonID.String()] = s.access.EvaluateLessonAccess(order, l.LessonID, completed, hasAccess)
	}
	return view, nil
}

func (s *courseService) GetLessonView(ctx context.Context, userID, courseID, lessonID uuid.UUID) (*LessonView, error) {
	_, order, completed, hasAccess, err := s.loadEvaluationState(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}

	i := order.IndexOf(lessonID)
	if i < 0 {
		return nil, apierr.NotFound(fmt.Errorf("lesson %s not found in course %s", lessonID, courseID))
	}
	lesson := order.Lessons[i]

	view := &LessonView{
		Lesson: &lesson,
		Access: s.access.EvaluateLessonAccess(order, lessonID, completed, hasAccess),
	}
	if next := order.Next(lessonID); next != nil {
		id := next.LessonID
		view.NextLessonID = &id
	}
	if prev := order.Previous(lessonID); prev != nil {
		id := prev.LessonID
		view.PreviousLessonID = &id
	}
	return view, nil
}

func (s *courseService) BumpStructureVersion(ctx context.Context, courseID uuid.UUID) error {
	if err := s.courseRepo.BumpStructureVersion(ctx, nil, courseID); err != nil {
		return apierr.Transient(fmt.Errorf("bump structure version: %w", err))
	}
	return nil
}

// loadEvaluationState gathers the three inputs every access decision needs:
// the ordered course structure, the user's completion set, and entitlement.
// The three loads are independent, so they run concurrently.
func (s *courseService) loadEvaluationState(ctx context.Context, userID, courseID uuid.UUID) (*types.Course, *CourseOrder, map[uuid.UUID]bool, bool, error) {
	var (
		course    *types.Course
		purchases []*types.Purchase
		progress  []*types.ProgressRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		course, err = s.courseRepo.GetWithStructure(gctx, nil, courseID)
		if err != nil {
			return apierr.Transient(fmt.Errorf("load course: %w", err))
		}
		return nil
	})
	g.Go(func() error {
		var err error
		purchases, err = s.purchaseRepo.ListByUserAndCourse(gctx, nil, userID, courseID)
		if err != nil {
			return apierr.Transient(fmt.Errorf("load purchases: %w", err))
		}
		return nil
	})
	g.Go(func() error {
		var err error
		progress, err = s.progressRepo.GetByUserAndCourse(gctx, nil, userID, courseID)
		if err != nil {
			return apierr.Transient(fmt.Errorf("load progress: %w", err))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, nil, false, err
	}
	if course == nil {
		return nil, nil, nil, false, apierr.NotFound(fmt.Errorf("course %s not found", courseID))
	}

	order := s.access.OrderFor(ctx, course)
	hasAccess := s.entitlement.HasAccess(course, purchases)
	return course, order, CompletionSet(progress), hasAccess, nil
}
