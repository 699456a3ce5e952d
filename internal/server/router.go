package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/franciosse/piscine-organique-backend/internal/http/handlers"
	"github.com/franciosse/piscine-organique-backend/internal/http/middleware"
	"github.com/franciosse/piscine-organique-backend/internal/logger"
)

type RouterConfig struct {
	Log             *logger.Logger
	AuthMiddleware  *middleware.AuthMiddleware
	AuthHandler     *handlers.AuthHandler
	WebhookHandler  *handlers.WebhookHandler
	CourseHandler   *handlers.CourseHandler
	ProgressHandler *handlers.ProgressHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(cfg.Log))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		api.POST("/auth/login", cfg.AuthHandler.Login)
		// Webhook authentication is the shared secret header, not a session.
		api.POST("/webhooks/payment", cfg.WebhookHandler.PaymentConfirmed)
		api.GET("/courses", cfg.CourseHandler.ListPublished)
	}

	protected := router.Group("/api")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	{
		protected.POST("/auth/reset-password", cfg.AuthHandler.ResetPassword)
		protected.GET("/courses/:id", cfg.CourseHandler.GetCourse)
		protected.GET("/courses/:id/lessons/:lessonId", cfg.CourseHandler.GetLesson)
		protected.PATCH("/progress", cfg.ProgressHandler.Record)
	}

	return router
}
