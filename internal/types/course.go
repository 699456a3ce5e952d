package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Course struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string    `gorm:"not null;column:title" json:"title"`
	Description string    `gorm:"column:description" json:"description"`

	// PriceCents of zero means the course is free: no purchase record is
	// required for access.
	PriceCents int  `gorm:"not null;default:0;column:price_cents" json:"price_cents"`
	Published  bool `gorm:"not null;default:false;column:published" json:"published"`

	// StructureVersion increments on every chapter/lesson edit and keys the
	// flattened lesson-order cache.
	StructureVersion int `gorm:"not null;default:1;column:structure_version" json:"structure_version"`

	Chapters []Chapter `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID;references:ID" json:"chapters,omitempty"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Course) TableName() string { return "course" }

func (c *Course) IsFree() bool { return c.PriceCents == 0 }

type Chapter struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CourseID uuid.UUID `gorm:"type:uuid;not null;index:idx_course_position,unique" json:"course_id"`
	Title    string    `gorm:"not null;column:title" json:"title"`

	// Position is 1-based and unique within the course.
	Position int `gorm:"not null;column:position;index:idx_course_position,unique" json:"position"`

	Lessons []Lesson `gorm:"constraint:OnDelete:CASCADE;foreignKey:ChapterID;references:ID" json:"lessons,omitempty"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Chapter) TableName() string { return "chapter" }

type Lesson struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ChapterID uuid.UUID `gorm:"type:uuid;not null;index:idx_chapter_position,unique" json:"chapter_id"`
	Title     string    `gorm:"not null;column:title" json:"title"`

	// Position is 1-based and unique within the chapter.
	Position int  `gorm:"not null;column:position;index:idx_chapter_position,unique" json:"position"`
	HasQuiz  bool `gorm:"not null;default:false;column:has_quiz" json:"has_quiz"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Lesson) TableName() string { return "lesson" }
