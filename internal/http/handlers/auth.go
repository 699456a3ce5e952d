package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/franciosse/piscine-organique-backend/internal/apierr"
	"github.com/franciosse/piscine-organique-backend/internal/http/response"
	"github.com/franciosse/piscine-organique-backend/internal/logger"
	"github.com/franciosse/piscine-organique-backend/internal/requestdata"
	"github.com/franciosse/piscine-organique-backend/internal/services"
)

type AuthHandler struct {
	log *logger.Logger
	svc services.AuthService
}

func NewAuthHandler(log *logger.Logger, svc services.AuthService) *AuthHandler {
	return &AuthHandler{log: log.With("handler", "AuthHandler"), svc: svc}
}

type loginBody struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalid, err)
		return
	}

	result, err := h.svc.Login(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, result)
}

type resetPasswordBody struct {
	NewPassword string `json:"new_password" binding:"required"`
}

// POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		response.RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, errors.New("no authenticated caller"))
		return
	}

	var body resetPasswordBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalid, err)
		return
	}

	if err := h.svc.ResetPassword(c.Request.Context(), rd.UserID, body.NewPassword); err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"reset": true})
}
