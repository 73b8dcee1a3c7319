package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/campus-clearance-api/api/swagger"
	"github.com/noah-isme/campus-clearance-api/internal/handler"
	"github.com/noah-isme/campus-clearance-api/internal/middleware"
	"github.com/noah-isme/campus-clearance-api/internal/models"
	"github.com/noah-isme/campus-clearance-api/internal/repository"
	"github.com/noah-isme/campus-clearance-api/internal/service"
	"github.com/noah-isme/campus-clearance-api/pkg/cache"
	"github.com/noah-isme/campus-clearance-api/pkg/config"
	"github.com/noah-isme/campus-clearance-api/pkg/database"
	"github.com/noah-isme/campus-clearance-api/pkg/jobs"
	"github.com/noah-isme/campus-clearance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/campus-clearance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/campus-clearance-api/pkg/middleware/requestid"
	"github.com/noah-isme/campus-clearance-api/pkg/storage"
)

// @title Campus Clearance API
// @version 1.0.0
// @description Student clearance workflow engine
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	var cacheRepo *repository.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, running without cache", zap.Error(err))
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}

	evidenceStore, err := storage.NewLocalStorage(cfg.Evidence.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare evidence storage", zap.Error(err))
	}
	evidenceSigner := storage.NewSignedURLSigner(cfg.Evidence.SignedURLSecret, cfg.Evidence.SignedURLTTL)

	userRepo := repository.NewUserRepository(db)
	requestRepo := repository.NewClearanceRequestRepository(db)
	caseRepo := repository.NewReviewCaseRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	unitRepo := repository.NewUnitRepository(db)

	metricsService := service.NewMetricsService()

	authService := service.NewAuthService(userRepo, validator.New(), logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "campus-clearance-api",
		SingleSession:      true,
	})

	unitService := service.NewUnitService(unitRepo, cacheOrNil(cacheRepo), cfg.Cache, logr)
	unitService.SetMetrics(metricsService)

	clearanceService := service.NewClearanceService(requestRepo, caseRepo, unitRepo, unitService, historyRepo, userRepo, logr)
	reviewService := service.NewReviewService(caseRepo, submissionRepo, unitRepo, historyRepo, userRepo, logr)
	submissionService := service.NewSubmissionService(submissionRepo, caseRepo, unitRepo, evidenceStore, evidenceSigner, cfg.Evidence, userRepo, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var certificateService *service.CertificateService
	var certificateQueue *jobs.Queue
	if cfg.Certificates.Enabled {
		certificateStore, err := storage.NewLocalStorage(cfg.Certificates.StorageDir)
		if err != nil {
			logr.Fatal("failed to prepare certificate storage", zap.Error(err))
		}
		certificateSigner := storage.NewSignedURLSigner(cfg.Certificates.SignedURLSecret, cfg.Certificates.SignedURLTTL)
		certificateRepo := repository.NewCertificateRepository(db)

		certificateService = service.NewCertificateService(
			certificateRepo, requestRepo, caseRepo, unitRepo, userRepo,
			certificateStore, certificateSigner, logr,
		)
		certificateService.SetMetrics(metricsService)

		certificateQueue = jobs.NewQueue("certificates", certificateService.Process, jobs.QueueConfig{
			Workers:    cfg.Certificates.WorkerConcurrency,
			MaxRetries: cfg.Certificates.WorkerRetries,
			Logger:     logr,
		})
		certificateQueue.Start(ctx)
		certificateService.SetQueue(certificateQueue)

		if err := certificateService.RecoverQueued(ctx, 100); err != nil {
			logr.Warn("failed to recover queued certificate jobs", zap.Error(err))
		}
	}

	authHandler := handler.NewAuthHandler(authService)
	clearanceHandler := handler.NewClearanceHandler(clearanceService, metricsService)
	caseHandler := handler.NewCaseHandler(reviewService, submissionService, metricsService)
	unitHandler := handler.NewUnitHandler(unitService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	authed := auth.Group("", middleware.JWT(authService))
	authed.POST("/logout", authHandler.Logout)
	authed.GET("/me", authHandler.Me)

	protected := api.Group("", middleware.JWT(authService))

	requests := protected.Group("/clearance/requests")
	requests.POST("", middleware.RequireRoles(models.RoleStudent), clearanceHandler.Create)
	requests.GET("", clearanceHandler.List)
	requests.GET("/:id", clearanceHandler.Get)
	requests.POST("/:id/withdraw", clearanceHandler.Withdraw)
	requests.GET("/:id/history", clearanceHandler.History)
	requests.POST("/:id/recompute", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin), clearanceHandler.Recompute)

	cases := protected.Group("/clearance/cases")
	cases.GET("/queue", middleware.RequireRoles(models.RoleReviewer, models.RoleAdmin, models.RoleSuperAdmin), caseHandler.Queue)
	cases.GET("/:id", caseHandler.Get)
	cases.POST("/:id/submit", middleware.RequireRoles(models.RoleStudent), caseHandler.Submit)
	cases.POST("/:id/decision", middleware.RequireRoles(models.RoleReviewer, models.RoleAdmin, models.RoleSuperAdmin), caseHandler.Decide)
	cases.GET("/:id/history", caseHandler.History)
	cases.GET("/:id/requirements/:requirementId/evidence", caseHandler.EvidenceURL)
	cases.PUT("/:id/requirements/:requirementId/evidence", middleware.RequireRoles(models.RoleStudent), caseHandler.UploadEvidence)
	cases.DELETE("/:id/requirements/:requirementId/evidence", middleware.RequireRoles(models.RoleStudent), caseHandler.ClearEvidence)
	cases.PUT("/:id/requirements/:requirementId/acknowledgment", middleware.RequireRoles(models.RoleStudent), caseHandler.Acknowledge)

	protected.GET("/units", unitHandler.List)
	protected.GET("/units/:type/:id/requirements", unitHandler.Requirements)
	protected.GET("/settings/period", unitHandler.PeriodSettings)
	protected.DELETE("/settings/cache",
		middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin),
		middleware.Audit(userRepo, "SETTINGS_CACHE_INVALIDATE", "settings"),
		unitHandler.InvalidateCaches,
	)

	if certificateService != nil {
		certificateHandler := handler.NewCertificateHandler(certificateService)
		protected.POST("/certificates", certificateHandler.Create)
		protected.GET("/certificates/:id", certificateHandler.Status)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
	if certificateQueue != nil {
		certificateQueue.Stop()
	}
}

// cacheOrNil keeps the service's cache interface nil when redis is absent so
// a typed nil pointer never masquerades as a live cache.
func cacheOrNil(repo *repository.CacheRepository) service.CacheStore {
	if repo == nil {
		return nil
	}
	return repo
}
