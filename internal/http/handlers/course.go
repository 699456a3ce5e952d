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

type CourseHandler struct {
	log *logger.Logger
	svc services.CourseService
}

func NewCourseHandler(log *logger.Logger, svc services.CourseService) *CourseHandler {
	return &CourseHandler{log: log.With("handler", "CourseHandler"), svc: svc}
}

// GET /api/courses
func (h *CourseHandler) ListPublished(c *gin.Context) {
	courses, err := h.svc.ListPublished(c.Request.Context())
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"courses": courses})
}

// GET /api/courses/:id
func (h *CourseHandler) GetCourse(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		response.RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, errors.New("no authenticated caller"))
		return
	}
	courseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalid, errors.New("invalid course id"))
		return
	}

	view, err := h.svc.GetCourseView(c.Request.Context(), rd.UserID, courseID)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, view)
}

// GET /api/courses/:id/lessons/:lessonId
//
// Entitlement denial is a structured verdict in the body, not an error: the
// client routes it to the purchase prompt, not an error page.
func (h *CourseHandler) GetLesson(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		response.RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, errors.New("no authenticated caller"))
		return
	}
	courseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalid, errors.New("invalid course id"))
		return
	}
	lessonID, err := uuid.Parse(c.Param("lessonId"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalid, errors.New("invalid lesson id"))
		return
	}

	view, err := h.svc.GetLessonView(c.Request.Context(), rd.UserID, courseID, lessonID)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, view)
}
