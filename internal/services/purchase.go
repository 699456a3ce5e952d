package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/franciosse/piscine-organique-backend/internal/apierr"
	"github.com/franciosse/piscine-organique-backend/internal/logger"
	"github.com/franciosse/piscine-organique-backend/internal/repos"
	"github.com/franciosse/piscine-organique-backend/internal/types"
)

type ReconcileInput struct {
	UserID   uuid.UUID
	CourseID uuid.UUID

	// SessionID is the external checkout session reference and the
	// idempotency key: N deliveries with the same SessionID must produce
	// exactly one purchase.
	SessionID string
	PaymentID *string

	AmountCents int

	// PaymentFinalized reports whether the upstream event carries a settled
	// payment. False records the purchase as pending.
	PaymentFinalized bool

	Metadata datatypes.JSON
}

type ReconcileResult struct {
	PurchaseID    uuid.UUID
	IsNewPurchase bool
	UserEmail     string
}

type PurchaseService interface {
	// ReconcilePurchase records an external payment confirmation exactly
	// once. Safe under duplicate, out-of-order, and concurrent delivery of
	// the same session reference.
	ReconcilePurchase(ctx context.Context, in ReconcileInput) (*ReconcileResult, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*types.Purchase, error)
	ListForUserAndCourse(ctx context.Context, userID, courseID uuid.UUID) ([]*types.Purchase, error)
}

type purchaseService struct {
	db           *gorm.DB
	log          *logger.Logger
	userRepo     repos.UserRepo
	courseRepo   repos.CourseRepo
	purchaseRepo repos.PurchaseRepo
	now          func() time.Time
}

func NewPurchaseService(db *gorm.DB, log *logger.Logger, userRepo repos.UserRepo, courseRepo repos.CourseRepo, purchaseRepo repos.PurchaseRepo) PurchaseService {
	return &purchaseService{
		db:           db,
		log:          log.With("service", "PurchaseService"),
		userRepo:     userRepo,
		courseRepo:   courseRepo,
		purchaseRepo: purchaseRepo,
		now:          time.Now,
	}
}

func (s *purchaseService) ReconcilePurchase(ctx context.Context, in ReconcileInput) (*ReconcileResult, error) {
	if in.SessionID == "" {
		return nil, apierr.Invalid(errors.New("external session reference is required"))
	}
	if in.AmountCents < 0 {
		return nil, apierr.Invalid(fmt.Errorf("negative amount: %d", in.AmountCents))
	}
	if in.UserID == uuid.Nil || in.CourseID == uuid.Nil {
		return nil, apierr.Invalid(errors.New("user id and course id are required"))
	}

	var result *ReconcileResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.userRepo.GetByID(ctx, tx, in.UserID)
		if err != nil {
			return apierr.Transient(fmt.Errorf("load user: %w", err))
		}
		if user == nil {
			// User creation may race with webhook delivery; NotFound makes
			// the webhook handler answer non-2xx so the sender redelivers.
			return apierr.NotFound(fmt.Errorf("user %s not found", in.UserID))
		}
		course, err := s.courseRepo.GetByID(ctx, tx, in.CourseID)
		if err != nil {
			return apierr.Transient(fmt.Errorf("load course: %w", err))
		}
		if course == nil {
			return apierr.NotFound(fmt.Errorf("course %s not found", in.CourseID))
		}

		// Step 1: same session already reconciled. Return it unchanged —
		// redelivered events never overwrite amounts or references.
		existing, err := s.purchaseRepo.GetBySessionID(ctx, tx, in.SessionID)
		if err != nil {
			return apierr.Transient(fmt.Errorf("lookup by session: %w", err))
		}
		if existing != nil {
			result = &ReconcileResult{PurchaseID: existing.ID, IsNewPurchase: false, UserEmail: user.Email}
			return nil
		}

		// Step 2: a local enrollment placeholder for the pair pre-dates the
		// external confirmation. Attach the external references to it.
		existing, err = s.purchaseRepo.GetByUserAndCourse(ctx, tx, in.UserID, in.CourseID)
		if err != nil {
			return apierr.Transient(fmt.Errorf("lookup by user and course: %w", err))
		}
		if existing != nil {
			existing.StripeSessionID = in.SessionID
			existing.StripePaymentID = in.PaymentID
			existing.AmountCents = in.AmountCents
			existing.Status = statusFor(in.PaymentFinalized)
			if len(in.Metadata) > 0 {
				existing.Metadata = in.Metadata
			}
			if err := s.purchaseRepo.Save(ctx, tx, existing); err != nil {
				return apierr.Transient(fmt.Errorf("update placeholder purchase: %w", err))
			}
			result = &ReconcileResult{PurchaseID: existing.ID, IsNewPurchase: false, UserEmail: user.Email}
			return nil
		}

		// Step 3: first sight of this session, insert.
		purchase := &types.Purchase{
			ID:              uuid.New(),
			UserID:          in.UserID,
			CourseID:        in.CourseID,
			StripeSessionID: in.SessionID,
			StripePaymentID: in.PaymentID,
			AmountCents:     in.AmountCents,
			Status:          statusFor(in.PaymentFinalized),
			PurchasedAt:     s.now(),
			Metadata:        in.Metadata,
		}
		// Postgres aborts the whole transaction on a unique violation, so
		// the insert runs under a savepoint; otherwise the recovery lookups
		// below would fail on the poisoned transaction.
		if err := tx.SavePoint("purchase_insert").Error; err != nil {
			return apierr.Transient(fmt.Errorf("savepoint: %w", err))
		}
		if err := s.purchaseRepo.Create(ctx, tx, purchase); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				if rbErr := tx.RollbackTo("purchase_insert").Error; rbErr != nil {
					return apierr.Transient(fmt.Errorf("rollback to savepoint: %w", rbErr))
				}
				// A concurrent delivery won the insert race. The unique
				// constraint is the last line of defense: treat it as
				// already reconciled and re-read the winner.
				return s.resolveInsertRace(ctx, tx, in, user.Email, &result)
			}
			return apierr.Transient(fmt.Errorf("insert purchase: %w", err))
		}
		result = &ReconcileResult{PurchaseID: purchase.ID, IsNewPurchase: true, UserEmail: user.Email}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Purchase reconciled",
		"purchase_id", result.PurchaseID,
		"course_id", in.CourseID,
		"user_id", in.UserID,
		"new", result.IsNewPurchase,
	)
	return result, nil
}

// resolveInsertRace re-runs the lookups after a unique-constraint violation
// on insert. Either the session key or the (user, course) key collided; both
// mean another delivery already reconciled this purchase.
func (s *purchaseService) resolveInsertRace(ctx context.Context, tx *gorm.DB, in ReconcileInput, userEmail string, out **ReconcileResult) error {
	winner, err := s.purchaseRepo.GetBySessionID(ctx, tx, in.SessionID)
	if err != nil {
		return apierr.Transient(fmt.Errorf("re-lookup by session after duplicate key: %w", err))
	}
	if winner == nil {
		winner, err = s.purchaseRepo.GetByUserAndCourse(ctx, tx, in.UserID, in.CourseID)
		if err != nil {
			return apierr.Transient(fmt.Errorf("re-lookup by user and course after duplicate key: %w", err))
		}
	}
	if winner == nil {
		// The row that caused the violation is invisible to us (e.g. the
		// competing transaction has not committed). Retryable.
		return apierr.Transient(errors.New("duplicate key on insert but no visible purchase row"))
	}
	*out = &ReconcileResult{PurchaseID: winner.ID, IsNewPurchase: false, UserEmail: userEmail}
	return nil
}

func statusFor(finalized bool) string {
	if finalized {
		return types.PurchaseStatusCompleted
	}
	return types.PurchaseStatusPending
}

func (s *purchaseService) ListForUser(ctx context.Context, userID uuid.UUID) ([]*types.Purchase, error) {
	rows, err := s.purchaseRepo.ListByUser(ctx, nil, userID)
	if err != nil {
		return nil, apierr.Transient(fmt.Errorf("list purchases: %w", err))
	}
	return rows, nil
}

func (s *purchaseService) ListForUserAndCourse(ctx context.Context, userID, courseID uuid.UUID) ([]*types.Purchase, error) {
	rows, err := s.purchaseRepo.ListByUserAndCourse(ctx, nil, userID, courseID)
	if err != nil {
		return nil, apierr.Transient(fmt.Errorf("list purchases for course: %w", err))
	}
	return rows, nil
}
