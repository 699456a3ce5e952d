package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/franciosse/piscine-organique-backend/internal/logger"
	"github.com/franciosse/piscine-organique-backend/internal/types"
)

type PurchaseRepo interface {
	Create(ctx context.Context, tx *gorm.DB, purchase *types.Purchase) error
	Save(ctx context.Context, tx *gorm.DB, purchase *types.Purchase) error
	GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID string) (*types.Purchase, error)
	// GetByUserAndCourse returns the non-failed purchase for the pair, if
	// any. Failed purchases do not block a fresh attempt.
	GetByUserAndCourse(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) (*types.Purchase, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Purchase, error)
	ListByUserAndCourse(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) ([]*types.Purchase, error)
}

type purchaseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPurchaseRepo(db *gorm.DB, baseLog *logger.Logger) PurchaseRepo {
	return &purchaseRepo{db: db, log: baseLog.With("repo", "PurchaseRepo")}
}

func (r *purchaseRepo) Create(ctx context.Context, tx *gorm.DB, purchase *types.Purchase) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if purchase == nil {
		return nil
	}
	return transaction.WithContext(ctx).Create(purchase).Error
}

func (r *purchaseRepo) Save(ctx context.Context, tx *gorm.DB, purchase *types.Purchase) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if purchase == nil {
		return nil
	}
	return transaction.WithContext(ctx).Save(purchase).Error
}

func (r *purchaseRepo) GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID string) (*types.Purchase, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if sessionID == "" {
		return nil, nil
	}

	var purchase types.Purchase
	err := transaction.WithContext(ctx).
		Where("stripe_session_id = ?", sessionID).
		First(&purchase).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *purchaseRepo) GetByUserAndCourse(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) (*types.Purchase, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil || courseID == uuid.Nil {
		return nil, nil
	}

	var purchase types.Purchase
	err := transaction.WithContext(ctx).
		Where("user_id = ? AND course_id = ? AND status <> ?", userID, courseID, types.PurchaseStatusFailed).
		First(&purchase).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *purchaseRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Purchase, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Purchase
	if userID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *purchaseRepo) ListByUserAndCourse(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) ([]*types.Purchase, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Purchase
	if userID == uuid.Nil || courseID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
