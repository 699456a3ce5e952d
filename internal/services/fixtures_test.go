package services

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/franciosse/piscine-organique-backend/internal/types"
)

// threeLessonCourse builds the canonical fixture: two chapters, lessons
// A(1), B(2) in chapter one and C(1) in chapter two. Total order [A, B, C].
// Chapters arrive deliberately out of order to prove flattening re-sorts.
func threeLessonCourse(priceCents int) (*types.Course, [3]uuid.UUID) {
	lessonA := types.Lesson{ID: uuid.New(), Title: "Lesson A", Position: 1}
	lessonB := types.Lesson{ID: uuid.New(), Title: "Lesson B", Position: 2}
	lessonC := types.Lesson{ID: uuid.New(), Title: "Lesson C", Position: 1}

	course := &types.Course{
		ID:               uuid.New(),
		Title:            "Organic Gardening",
		PriceCents:       priceCents,
		Published:        true,
		StructureVersion: 1,
		Chapters: []types.Chapter{
			{ID: uuid.New(), Title: "Chapter Two", Position: 2, Lessons: []types.Lesson{lessonC}},
			{ID: uuid.New(), Title: "Chapter One", Position: 1, Lessons: []types.Lesson{lessonB, lessonA}},
		},
	}
	for i := range course.Chapters {
		course.Chapters[i].CourseID = course.ID
		for j := range course.Chapters[i].Lessons {
			course.Chapters[i].Lessons[j].ChapterID = course.Chapters[i].ID
		}
	}
	return course, [3]uuid.UUID{lessonA.ID, lessonB.ID, lessonC.ID}
}

func seedCourse(t *testing.T, db *gorm.DB, priceCents int) (*types.Course, [3]uuid.UUID) {
	t.Helper()
	course, lessonIDs := threeLessonCourse(priceCents)
	if err := db.Create(course).Error; err != nil {
		t.Fatalf("seed course: %v", err)
	}
	return course, lessonIDs
}

func seedUser(t *testing.T, db *gorm.DB, email string) *types.User {
	t.Helper()
	user := &types.User{
		ID:           uuid.New(),
		Email:        email,
		DisplayName:  "Test User",
		PasswordHash: "x",
		Role:         types.RoleStudent,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func completedMap(ids ...uuid.UUID) map[uuid.UUID]bool {
	out := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}
