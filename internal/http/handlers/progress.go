package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/franciosse/piscine-organique-backend/internal/apierr"
	"github.com/franciosse/piscine-organique-backend/internal/http/response"
	"github.com/franciosse/piscine-organique-backend/internal/logger"
	"github.com/franciosse/piscine-organique-backend/internal/requestdata"
	"github.com/franciosse/piscine-organique-backend/internal/services"
)

type ProgressHandler struct {
	log     *logger.Logger
	svc     services.ProgressService
	courses services.CourseService
}

func NewProgressHandler(log *logger.Logger, svc services.ProgressService, courses services.CourseService) *ProgressHandler {
	return &ProgressHandler{
		log:     log.With("handler", "ProgressHandler"),
		svc:     svc,
		courses: courses,
	}
}

type progressBody struct {
	CourseID         uuid.UUID `json:"course_id" binding:"required"`
	ChapterID        uuid.UUID `json:"chapter_id"`
	LessonID         uuid.UUID `json:"lesson_id" binding:"required"`
	Completed        *bool     `json:"completed"`
	WatchTimeSeconds *int      `json:"watch_time_seconds"`
}

// PATCH /api/progress
//
// Entitlement is verified here, at the calling layer; the progress service
// itself only records.
func (h *ProgressHandler) Record(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		response.RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, errors.New("no authenticated caller"))
		return
	}

	var body progressBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalid, err)
		return
	}

	// Validates the lesson belongs to the course (404 otherwise) and
	// resolves course entitlement for the caller.
	view, err := h.courses.GetLessonView(c.Request.Context(), rd.UserID, body.CourseID, body.LessonID)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	if view.Access.Reason == services.ReasonNotPurchased {
		response.RespondError(c, http.StatusForbidden, apierr.CodeForbidden, errors.New("course not purchased"))
		return
	}

	row, err := h.svc.RecordLessonProgress(c.Request.Context(), services.ProgressInput{
		UserID:           rd.UserID,
		CourseID:         body.CourseID,
		LessonID:         body.LessonID,
		Completed:        body.Completed,
		WatchTimeSeconds: body.WatchTimeSeconds,
	})
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"progress": row})
}
