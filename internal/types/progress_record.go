package types

import (
	"time"

	"github.com/google/uuid"
)

type ProgressRecord struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;index:idx_user_lesson,unique" json:"user_id"`
	User     *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	CourseID uuid.UUID `gorm:"type:uuid;not null;index" json:"course_id"`
	LessonID uuid.UUID `gorm:"type:uuid;not null;index:idx_user_lesson,unique" json:"lesson_id"`
	Lesson   *Lesson   `gorm:"constraint:OnDelete:CASCADE;foreignKey:LessonID;references:ID" json:"lesson,omitempty"`

	Completed bool `gorm:"not null;default:false;column:completed" json:"completed"`

	// CompletedAt is set once, on the transition from not-completed to
	// completed. Re-completing a lesson does not move it.
	CompletedAt      *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	WatchTimeSeconds int        `gorm:"not null;default:0;column:watch_time_seconds" json:"watch_time_seconds"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ProgressRecord) TableName() string { return "progress_record" }
