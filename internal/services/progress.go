package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/franciosse/piscine-organique-backend/internal/apierr"
	"github.com/franciosse/piscine-organique-backend/internal/logger"
	"github.com/franciosse/piscine-organique-backend/internal/repos"
	"github.com/franciosse/piscine-organique-backend/internal/types"
)

type ProgressInput struct {
	UserID   uuid.UUID
	CourseID uuid.UUID
	LessonID uuid.UUID

	// Nil fields are left unchanged: the update is partial.
	Completed        *bool
	WatchTimeSeconds *int
}

type ProgressService interface {
	// RecordLessonProgress upserts the (user, lesson) progress row.
	// Entitlement is the caller's concern; this layer only records.
	RecordLessonProgress(ctx context.Context, in ProgressInput) (*types.ProgressRecord, error)
	ListForUserAndCourse(ctx context.Context, userID, courseID uuid.UUID) ([]*types.ProgressRecord, error)
}

type progressService struct {
	db           *gorm.DB
	log          *logger.Logger
	progressRepo repos.ProgressRepo
	now          func() time.Time
}

func NewProgressService(db *gorm.DB, log *logger.Logger, progressRepo repos.ProgressRepo) ProgressService {
	return &progressService{
		db:           db,
		log:          log.With("service", "ProgressService"),
		progressRepo: progressRepo,
		now:          time.Now,
	}
}

func (s *progressService) RecordLessonProgress(ctx context.Context, in ProgressInput) (*types.ProgressRecord, error) {
	if in.UserID == uuid.Nil || in.CourseID == uuid.Nil || in.LessonID == uuid.Nil {
		return nil, apierr.Invalid(errors.New("user id, course id and lesson id are required"))
	}
	if in.WatchTimeSeconds != nil && *in.WatchTimeSeconds < 0 {
		return nil, apierr.Invalid(fmt.Errorf("negative watch time: %d", *in.WatchTimeSeconds))
	}

	var row *types.ProgressRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.progressRepo.GetByUserAndLesson(ctx, tx, in.UserID, in.LessonID)
		if err != nil {
			return apierr.Transient(fmt.Errorf("load progress: %w", err))
		}
		if existing == nil {
			existing = &types.ProgressRecord{
				ID:       uuid.New(),
				UserID:   in.UserID,
				CourseID: in.CourseID,
				LessonID: in.LessonID,
			}
			// Savepoint keeps the transaction usable for the re-lookup when
			// the insert takes a unique violation on postgres.
			if err := tx.SavePoint("progress_insert").Error; err != nil {
				return apierr.Transient(fmt.Errorf("savepoint: %w", err))
			}
			if err := s.progressRepo.Create(ctx, tx, existing); err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					if rbErr := tx.RollbackTo("progress_insert").Error; rbErr != nil {
						return apierr.Transient(fmt.Errorf("rollback to savepoint: %w", rbErr))
					}
					// Concurrent first interaction with the same lesson.
					existing, err = s.progressRepo.GetByUserAndLesson(ctx, tx, in.UserID, in.LessonID)
					if err != nil || existing == nil {
						return apierr.Transient(fmt.Errorf("re-lookup progress after duplicate key: %w", err))
					}
				} else {
					return apierr.Transient(fmt.Errorf("create progress: %w", err))
				}
			}
		}

		if in.Completed != nil {
			// CompletedAt marks the first not-completed -> completed
			// transition only; re-completing is a timestamp no-op.
			if *in.Completed && !existing.Completed {
				now := s.now()
				existing.CompletedAt = &now
			}
			existing.Completed = *in.Completed
		}
		if in.WatchTimeSeconds != nil {
			// Accepted as sent. Monotonicity is not enforced at this layer.
			existing.WatchTimeSeconds = *in.WatchTimeSeconds
		}

		if err := s.progressRepo.Save(ctx, tx, existing); err != nil {
			return apierr.Transient(fmt.Errorf("save progress: %w", err))
		}
		row = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (s *progressService) ListForUserAndCourse(ctx context.Context, userID, courseID uuid.UUID) ([]*types.ProgressRecord, error) {
	rows, err := s.progressRepo.GetByUserAndCourse(ctx, nil, userID, courseID)
	if err != nil {
		return nil, apierr.Transient(fmt.Errorf("list progress: %w", err))
	}
	return rows, nil
}
