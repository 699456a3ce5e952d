package main

import (
	"fmt"
	"os"

	redisclient "github.com/franciosse/piscine-organique-backend/internal/clients/redis"
	"github.com/franciosse/piscine-organique-backend/internal/config"
	"github.com/franciosse/piscine-organique-backend/internal/db"
	"github.com/franciosse/piscine-organique-backend/internal/http/handlers"
	"github.com/franciosse/piscine-organique-backend/internal/http/middleware"
	"github.com/franciosse/piscine-organique-backend/internal/logger"
	"github.com/franciosse/piscine-organique-backend/internal/repos"
	"github.com/franciosse/piscine-organique-backend/internal/server"
	"github.com/franciosse/piscine-organique-backend/internal/services"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Config
	cfg := config.Load(log)

	// Postgres
	postgresService, err := db.NewPostgresService(cfg, log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Order cache: redis when configured, otherwise recompute per request.
	var orderCache redisclient.OrderCache
	if cfg.RedisAddr != "" {
		orderCache, err = redisclient.NewOrderCache(cfg.RedisAddr, log)
		if err != nil {
			log.Warn("Redis init failed, falling back to uncached lesson orders", "error", err)
			orderCache = redisclient.NewNoopCache()
		}
	} else {
		orderCache = redisclient.NewNoopCache()
	}

	// Repos
	userRepo := repos.NewUserRepo(thePG, log)
	courseRepo := repos.NewCourseRepo(thePG, log)
	purchaseRepo := repos.NewPurchaseRepo(thePG, log)
	progressRepo := repos.NewProgressRepo(thePG, log)

	// Services
	entitlementService := services.NewEntitlementService(log, cfg.PendingGraceWindow)
	accessService := services.NewAccessService(log, orderCache)
	accountService := services.NewAccountService(thePG, log, userRepo)
	purchaseService := services.NewPurchaseService(thePG, log, userRepo, courseRepo, purchaseRepo)
	progressService := services.NewProgressService(thePG, log, progressRepo)
	checkoutService := services.NewCheckoutService(log, accountService, purchaseService)
	courseService := services.NewCourseService(thePG, log, courseRepo, purchaseRepo, progressRepo, entitlementService, accessService)
	authService := services.NewAuthService(thePG, log, userRepo, cfg.JWTSecretKey, cfg.AccessTokenTTL)

	// Handlers
	authHandler := handlers.NewAuthHandler(log, authService)
	webhookHandler := handlers.NewWebhookHandler(log, checkoutService, cfg.WebhookSecret)
	courseHandler := handlers.NewCourseHandler(log, courseService)
	progressHandler := handlers.NewProgressHandler(log, progressService, courseService)

	router := server.NewRouter(server.RouterConfig{
		Log:             log,
		AuthMiddleware:  middleware.NewAuthMiddleware(log, authService),
		AuthHandler:     authHandler,
		WebhookHandler:  webhookHandler,
		CourseHandler:   courseHandler,
		ProgressHandler: progressHandler,
	})

	log.Info("Starting HTTP server", "addr", cfg.HTTPAddr)
	if err := router.Run(cfg.HTTPAddr); err != nil {
		log.Error("HTTP server exited", "error", err)
		os.Exit(1)
	}
}
