package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
	RoleTeacher = "teacher"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null;column:email" json:"email"`
	DisplayName  string    `gorm:"column:display_name" json:"display_name"`
	PasswordHash string    `gorm:"not null;column:password_hash" json:"-"`
	Role         string    `gorm:"not null;default:'student';column:role" json:"role"`

	EmailVerified bool `gorm:"not null;default:false;column:email_verified" json:"email_verified"`

	// ProvisionedViaPayment marks accounts created by the checkout flow
	// rather than by a sign-up form.
	ProvisionedViaPayment bool `gorm:"not null;default:false;column:provisioned_via_payment" json:"provisioned_via_payment"`
	MustResetPassword     bool `gorm:"not null;default:false;column:must_reset_password" json:"must_reset_password"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string { return "user" }
