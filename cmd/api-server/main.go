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

	_ "github.com/vuledev/sams-api/api/swagger"
	"github.com/vuledev/sams-api/internal/handler"
	"github.com/vuledev/sams-api/internal/middleware"
	"github.com/vuledev/sams-api/internal/models"
	"github.com/vuledev/sams-api/internal/repository"
	"github.com/vuledev/sams-api/internal/service"
	"github.com/vuledev/sams-api/pkg/cache"
	"github.com/vuledev/sams-api/pkg/config"
	"github.com/vuledev/sams-api/pkg/database"
	"github.com/vuledev/sams-api/pkg/jobs"
	"github.com/vuledev/sams-api/pkg/logger"
	corsmiddleware "github.com/vuledev/sams-api/pkg/middleware/cors"
	reqidmiddleware "github.com/vuledev/sams-api/pkg/middleware/requestid"
	"github.com/vuledev/sams-api/pkg/storage"
)

// @title SAMS API
// @version 1.0.0
// @description Student administration and season-scoped document service
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, listing cache disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	exportStore, err := storage.NewLocalStorage(cfg.Export.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)

	documentRepo := repository.NewDocumentRepository(db)
	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	seasonRepo := repository.NewSeasonRepository(db)
	absenceRepo := repository.NewAbsenceRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)

	validate := validator.New()

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.DefaultTTL, logr, cfg.Cache.Enabled && redisClient != nil)
	seasonSvc := service.NewSeasonService(seasonRepo, logr, cfg.Season.CacheTTL)
	auditSvc := service.NewAuditService(auditRepo, logr, jobs.QueueConfig{
		Workers:    cfg.Audit.Workers,
		BufferSize: cfg.Audit.BufferSize,
		MaxRetries: cfg.Audit.MaxRetries,
		RetryDelay: cfg.Audit.RetryDelay,
	})
	auditSvc.Start(ctx)
	defer auditSvc.Stop()

	documentSvc := service.NewDocumentService(documentRepo, userRepo, seasonSvc, auditSvc, cacheSvc, metricsSvc, logr)
	userSvc := service.NewUserService(userRepo, auditSvc, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, seasonSvc, auditSvc, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, seasonSvc, auditSvc, validate, logr)
	absenceSvc := service.NewAbsenceService(absenceRepo, subjectRepo, seasonSvc, auditSvc, validate, logr)
	exportSvc := service.NewExportService(studentRepo, absenceRepo, seasonSvc, auditSvc, exportStore, signer, logr)
	authSvc := service.NewAuthService(userRepo, studentRepo, tokenRepo, auditSvc, validate, logr, service.AuthConfig{
		Secret:          cfg.JWT.Secret,
		AccessTokenTTL:  cfg.JWT.Expiration,
		RefreshTokenTTL: cfg.JWT.RefreshExpiration,
		Issuer:          cfg.JWT.Issuer,
		SingleSession:   cfg.JWT.SingleSession,
	})

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metricsSvc.SetAuditQueueDepth(auditSvc.QueueDepth())
				if removed, err := tokenRepo.DeleteExpired(ctx, time.Now().UTC()); err != nil {
					logr.Sugar().Warnw("token cleanup failed", "error", err)
				} else if removed > 0 {
					logr.Sugar().Infow("expired tokens removed", "count", removed)
				}
				if cfg.Audit.Retention > 0 {
					auditSvc.Prune(ctx, cfg.Audit.Retention)
				}
			}
		}
	}()

	if cfg.Export.Enabled && cfg.Export.CleanupInterval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.Export.CleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					exportSvc.Cleanup(cfg.Export.ResultTTL)
				}
			}
		}()
	}

	authHandler := handler.NewAuthHandler(authSvc)
	documentHandler := handler.NewDocumentHandler(documentSvc)
	userHandler := handler.NewUserHandler(userSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	subjectHandler := handler.NewSubjectHandler(subjectSvc)
	seasonHandler := handler.NewSeasonHandler(seasonSvc)
	absenceHandler := handler.NewAbsenceHandler(absenceSvc, studentSvc)
	auditHandler := handler.NewAuditHandler(auditSvc)
	exportHandler := handler.NewExportHandler(exportSvc, exportStore, signer)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.LoginAdmin)
	auth.POST("/student/login", authHandler.LoginStudent)
	auth.POST("/refresh", authHandler.Refresh)

	api.GET("/exports/download/:token", exportHandler.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	authed.Use(middleware.ActorLoader(userSvc, studentSvc))
	authed.POST("/auth/logout", authHandler.Logout)
	authed.PUT("/auth/password", authHandler.ChangePassword)
	authed.GET("/auth/me", authHandler.Me)

	admin := authed.Group("")
	admin.Use(middleware.RequireAdmin())
	{
		admin.GET("/documents", documentHandler.List)
		admin.POST("/documents", documentHandler.Create)
		admin.GET("/documents/:id", documentHandler.Get)
		admin.PUT("/documents/:id", documentHandler.Update)
		admin.DELETE("/documents/:id", documentHandler.Delete)

		admin.GET("/subjects", subjectHandler.List)
		admin.POST("/subjects", subjectHandler.Create)
		admin.GET("/subjects/:id", subjectHandler.Get)
		admin.PUT("/subjects/:id", subjectHandler.Update)
		admin.DELETE("/subjects/:id", subjectHandler.Delete)
		admin.GET("/subjects/:id/absences", absenceHandler.ListBySubject)

		admin.GET("/students", studentHandler.List)
		admin.POST("/students", studentHandler.Create)
		admin.GET("/students/:id", studentHandler.Get)
		admin.PUT("/students/:id", studentHandler.Update)
		admin.DELETE("/students/:id", studentHandler.Delete)
		admin.POST("/students/:id/seasons", studentHandler.Enroll)
		admin.POST("/students/:id/absences", absenceHandler.SubmitFor)

		admin.GET("/users", userHandler.List)
		admin.POST("/users", userHandler.Create)
		admin.GET("/users/:id", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, "SELF"), userHandler.Get)
		admin.PUT("/users/:id", userHandler.Update)
		admin.DELETE("/users/:id", userHandler.Delete)

		admin.GET("/seasons", seasonHandler.List)
		admin.GET("/seasons/current", seasonHandler.Current)
		admin.POST("/seasons", seasonHandler.Create)
		admin.PUT("/seasons/:number/current", seasonHandler.SetCurrent)

		admin.GET("/absences/form", absenceHandler.Form)
		admin.PUT("/absences/form", absenceHandler.SetForm)
		admin.DELETE("/absences/:id", absenceHandler.Delete)

		admin.GET("/audit", middleware.RequirePrivileged(), auditHandler.List)

		admin.GET("/exports/roster", exportHandler.Roster)
		admin.GET("/exports/absences/:id", exportHandler.Absences)
	}

	student := authed.Group("/student")
	student.Use(middleware.RequireStudent())
	{
		student.GET("/subjects", subjectHandler.ListMine)
		student.GET("/absences", absenceHandler.Mine)
		student.GET("/absences/history", absenceHandler.History)
		student.POST("/absences", absenceHandler.Submit)
	}

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
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
