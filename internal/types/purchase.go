package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	PurchaseStatusPending   = "pending"
	PurchaseStatusCompleted = "completed"
	PurchaseStatusPaid      = "paid"
	PurchaseStatusFailed    = "failed"
)

type Purchase struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;index:idx_user_course" json:"user_id"`
	User     *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	// The (user, course) pair is deliberately NOT database-unique: a failed
	// purchase must not block a later successful one. The at-most-one
	// non-failed invariant is enforced by the reconciliation logic.
	CourseID uuid.UUID `gorm:"type:uuid;not null;index:idx_user_course" json:"course_id"`
	Course   *Course   `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID;references:ID" json:"course,omitempty"`

	// StripeSessionID is the idempotency key for webhook reconciliation.
	StripeSessionID string  `gorm:"uniqueIndex;not null;column:stripe_session_id" json:"stripe_session_id"`
	StripePaymentID *string `gorm:"column:stripe_payment_id" json:"stripe_payment_id,omitempty"`

	AmountCents int    `gorm:"not null;default:0;column:amount_cents" json:"amount_cents"`
	Status      string `gorm:"not null;default:'pending';column:status" json:"status"`

	PurchasedAt time.Time      `gorm:"not null;column:purchased_at" json:"purchased_at"`
	Metadata    datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata,omitempty"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Purchase) TableName() string { return "purchase" }

// Settled reports whether the payment is confirmed. Pending purchases are
// handled separately via the grace window.
func (p *Purchase) Settled() bool {
	return p.Status == PurchaseStatusCompleted || p.Status == PurchaseStatusPaid
}
