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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/thesis-workflow-api/api/swagger"
	"github.com/noah-isme/thesis-workflow-api/internal/handler"
	internalmiddleware "github.com/noah-isme/thesis-workflow-api/internal/middleware"
	"github.com/noah-isme/thesis-workflow-api/internal/models"
	"github.com/noah-isme/thesis-workflow-api/internal/repository"
	"github.com/noah-isme/thesis-workflow-api/internal/service"
	"github.com/noah-isme/thesis-workflow-api/pkg/cache"
	"github.com/noah-isme/thesis-workflow-api/pkg/config"
	"github.com/noah-isme/thesis-workflow-api/pkg/database"
	"github.com/noah-isme/thesis-workflow-api/pkg/export"
	"github.com/noah-isme/thesis-workflow-api/pkg/jobs"
	"github.com/noah-isme/thesis-workflow-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/thesis-workflow-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/thesis-workflow-api/pkg/middleware/requestid"
)

// @title Thesis Workflow API
// @version 1.0.0
// @description Role resolution, access control and the assignment / topic registration workflow.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	switch {
	case errors.Is(err, cache.ErrDisabled):
		logr.Info("redis disabled, running without cache and token revocation")
		redisClient = nil
	case err != nil:
		logr.Warn("redis unavailable, running without cache and token revocation", zap.Error(err))
		redisClient = nil
	default:
		defer redisClient.Close() //nolint:errcheck
	}

	validate := validator.New()

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}

	documentRepo := repository.NewDocumentRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	accessRepo := repository.NewTemporaryAccessRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	roleAssignmentRepo := repository.NewRoleAssignmentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr, "thesis")
	tokenRepo := repository.NewSessionTokenRepository(redisClient)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Session.DepartmentHeadCacheTTL, logr, redisClient != nil)
	authSvc := service.NewAuthService(tokenRepo, logr, service.AuthConfig{
		TokenSecret: cfg.Session.TokenSecret,
		TokenTTL:    cfg.Session.TokenTTL,
	})
	auditSvc := service.NewAuditService(auditRepo, logr)
	auditWriter := service.NewAuditDispatcher(auditRepo, logr, jobs.Config{
		Workers:    cfg.Audit.Workers,
		BufferSize: cfg.Audit.BufferSize,
		MaxRetries: cfg.Audit.MaxRetries,
	})
	auditWriter.Start(context.Background())
	headSvc := service.NewDepartmentHeadService(departmentRepo, cacheSvc, cfg.Session.DepartmentHeadCacheTTL, logr)
	accessSvc := service.NewTemporaryAccessService(accessRepo, auditWriter, validate, logr, cfg.Access.CodeTTL)
	roleAssignmentSvc := service.NewRoleAssignmentService(roleAssignmentRepo, auditWriter, validate, logr)
	sessions := service.NewSessionManager(
		service.NewRoleResolver(cfg.Roles),
		headSvc,
		accessSvc,
		logr,
		service.WithRoleAssignments(roleAssignmentSvc),
		service.WithSessionMetrics(metricsSvc),
		service.WithInitTimeout(cfg.Session.InitTimeout),
	)
	workflowSvc := service.NewWorkflowService(
		documentRepo,
		commentRepo,
		headSvc,
		validate,
		logr,
		service.WithWorkflowMetrics(metricsSvc),
		service.WithWorkflowAudit(auditWriter),
	)
	exportSvc := service.NewExportService(workflowSvc, logr, export.NewCSVExporter(export.WithBOM()), nil)

	guard := internalmiddleware.NewAccessGuard(headSvc, metricsSvc, logr, cfg.Access)

	documentHandler := handler.NewDocumentHandler(workflowSvc, exportSvc)
	commentHandler := handler.NewCommentHandler(workflowSvc)
	authHandler := handler.NewAuthHandler(cfg.Session.CookieName)
	accessCodeHandler := handler.NewAccessCodeHandler(accessSvc)
	adminHandler := handler.NewAdminHandler(roleAssignmentSvc, auditSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, readinessChecks(db.PingContext, redisClient))

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	if metricsSvc != nil {
		r.Use(internalmiddleware.Metrics(metricsSvc))
	}

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if metricsSvc != nil {
		r.GET("/metrics", metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.WithResponseMeta())
	api.Use(internalmiddleware.Session(sessions, authSvc, cfg.Session.CookieName))

	authGroup := api.Group("/auth", guard.RequireAccess(internalmiddleware.ClassAuthenticated))
	authGroup.GET("/me", authHandler.Me)
	authGroup.POST("/logout", internalmiddleware.Audit(auditWriter, models.AuditActionLogout, "session"), authHandler.Logout)

	// Commission members with an access code read documents through the same routes.
	readers := api.Group("", guard.RequireAccess(internalmiddleware.ClassParticipant))
	readers.GET("/documents", documentHandler.List)
	readers.GET("/documents/:id", documentHandler.Get)
	readers.GET("/documents/:id/versions", documentHandler.ListVersions)
	readers.GET("/documents/:id/versions/latest", documentHandler.LatestVersion)
	readers.GET("/documents/:id/comments", commentHandler.List)
	readers.GET("/documents/:id/history.csv", documentHandler.ExportCSV)
	readers.GET("/documents/:id/history.pdf", documentHandler.ExportPDF)

	writers := api.Group("", guard.RequireAccess(internalmiddleware.ClassAuthenticated))
	writers.POST("/documents", documentHandler.Create)
	writers.POST("/documents/:id/transitions", documentHandler.Transition)
	writers.POST("/documents/:id/versions", documentHandler.SaveVersion)
	writers.POST("/documents/:id/comments", commentHandler.Add)
	writers.POST("/comments/:id/read", commentHandler.MarkRead)

	api.GET("/teacher/documents", guard.RequireAccess(internalmiddleware.ClassTeacher), documentHandler.ListSupervised)
	api.GET("/reviewer/documents", guard.RequireAccess(internalmiddleware.ClassReviewer), documentHandler.ListReviewing)
	api.GET("/department/documents", guard.RequireAccess(internalmiddleware.ClassDepartmentHead), documentHandler.ListDepartment)
	api.GET("/commission/documents", guard.RequireAccess(internalmiddleware.ClassCommission), documentHandler.ListCommission)

	admin := api.Group("/admin", guard.RequireAccess(internalmiddleware.ClassAdmin))
	admin.POST("/access-codes", accessCodeHandler.Create)
	admin.GET("/access-codes", accessCodeHandler.List)
	admin.DELETE("/access-codes/:id", accessCodeHandler.Deactivate)
	admin.PUT("/role-assignments", adminHandler.AssignRole)
	admin.GET("/audit-logs", adminHandler.AuditLogs)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	auditWriter.Stop()
}

func readinessChecks(dbPing handler.ReadinessCheck, redisClient *redis.Client) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{"database": dbPing}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	return checks
}
