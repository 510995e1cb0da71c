package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/docuflow/intake-api/api/swagger"
	"github.com/docuflow/intake-api/internal/handler"
	"github.com/docuflow/intake-api/internal/middleware"
	"github.com/docuflow/intake-api/internal/provider"
	"github.com/docuflow/intake-api/internal/repository"
	"github.com/docuflow/intake-api/internal/service"
	"github.com/docuflow/intake-api/pkg/cache"
	"github.com/docuflow/intake-api/pkg/config"
	"github.com/docuflow/intake-api/pkg/database"
	"github.com/docuflow/intake-api/pkg/export"
	"github.com/docuflow/intake-api/pkg/jobs"
	"github.com/docuflow/intake-api/pkg/logger"
	corsmiddleware "github.com/docuflow/intake-api/pkg/middleware/cors"
	reqidmiddleware "github.com/docuflow/intake-api/pkg/middleware/requestid"
	"github.com/docuflow/intake-api/pkg/storage"
)

// @title DocuFlow Intake API
// @version 1.0.0
// @description Document collection and processing pipeline for client intake
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, continuing without cache", "error", err)
		redisClient = nil
	}

	documentStorage, err := storage.NewLocalStorage(cfg.Storage.DocumentDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init document storage", "error", err)
	}
	artifactStorage, err := storage.NewLocalStorage(cfg.Storage.ArtifactDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init artifact storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)

	documentRepo := repository.NewDocumentRepository(db)
	checklistRepo := repository.NewChecklistRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	resultRepo := repository.NewProcessingResultRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()

	sessionSvc := service.NewSessionService(sessionRepo, checklistRepo, cacheRepo, logr, service.SessionServiceConfig{
		CacheTTL: cfg.Alerts.CacheTTL,
	})

	checklistSvc := service.NewChecklistService(checklistRepo, documentRepo, sessionSvc, logr, service.ChecklistServiceConfig{
		ReminderWindow: cfg.Checklist.ReminderWindow,
	})

	alertSvc := service.NewAlertService(alertRepo, checklistRepo, documentRepo, cacheRepo, logr, service.AlertServiceConfig{
		DeadlineHorizon:           cfg.Alerts.DeadlineHorizon,
		ReviewConfidenceThreshold: cfg.Alerts.ReviewConfidenceThreshold,
		CacheTTL:                  cfg.Alerts.CacheTTL,
	})
	alertSvc.SetGauge(metricsSvc)
	checklistSvc.SetReminderAlertRecorder(alertSvc)

	documentSvc := service.NewDocumentService(documentRepo, documentStorage, signer, checklistSvc, logr, service.DocumentServiceConfig{
		MaxFileSizeBytes: cfg.Storage.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Storage.AllowedMIMEs,
	})

	processingSvc := service.NewProcessingService(
		documentRepo,
		resultRepo,
		documentStorage,
		artifactStorage,
		provider.NewHTTPOCRClient(cfg.Processing.OCRServiceURL),
		provider.NewHTTPAnalysisClient(cfg.Processing.AnalysisServiceURL),
		export.NewFormRenderer(),
		logr,
		service.ProcessingServiceConfig{
			StageTimeout: cfg.Processing.StageTimeout,
			Retry: service.RetryPolicy{
				MaxAttempts: cfg.Processing.ProviderRetries,
				Backoff:     cfg.Processing.RetryBackoff,
			},
			ClaimStaleness: cfg.Processing.ClaimStaleness,
		},
	)
	processingSvc.SetCompletionHook(checklistSvc)
	processingSvc.SetAlertRecorder(alertSvc)
	processingSvc.SetStageObserver(metricsSvc)

	// Background alert sweep: a ticker fans per-client evaluation jobs out to
	// the worker pool.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()

	sweepQueue := jobs.NewQueue("alert-sweep", func(ctx context.Context, job jobs.Job) error {
		clientID, _ := job.Payload.(string)
		return alertSvc.Evaluate(ctx, clientID)
	}, jobs.QueueConfig{
		Workers: cfg.Alerts.SweepWorkers,
		Logger:  logr,
	})
	sweepQueue.Start(sweepCtx)
	defer sweepQueue.Stop()

	go func() {
		ticker := time.NewTicker(cfg.Alerts.EvaluateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				clients, err := checklistRepo.DistinctClients(sweepCtx)
				if err != nil {
					logr.Sugar().Errorw("alert sweep enumeration failed", "error", err)
					continue
				}
				for _, clientID := range clients {
					if err := sweepQueue.Enqueue(jobs.Job{Type: "evaluate", Payload: clientID}); err != nil {
						logr.Sugar().Warnw("alert sweep queue full", "client_id", clientID, "error", err)
					}
				}
			}
		}
	}()

	documentHandler := handler.NewDocumentHandler(documentSvc)
	processingHandler := handler.NewProcessingHandler(processingSvc)
	checklistHandler := handler.NewChecklistHandler(checklistSvc, sessionSvc)
	alertHandler := handler.NewAlertHandler(alertSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/documents", documentHandler.Upload)
		api.GET("/documents/download/:token", documentHandler.Download)
		api.GET("/documents/:id", documentHandler.Get)
		api.DELETE("/documents/:id", documentHandler.Delete)
		api.POST("/documents/:id/review", documentHandler.Review)
		api.GET("/documents/:id/download-url", documentHandler.DownloadURL)

		api.POST("/documents/:id/process", processingHandler.Process)
		api.POST("/documents/:id/reprocess", processingHandler.Reprocess)
		api.GET("/documents/:id/status", processingHandler.Status)
		api.GET("/documents/:id/results", processingHandler.Results)

		api.GET("/clients/:clientId/documents", documentHandler.ListByClient)
		api.GET("/clients/:clientId/checklist", checklistHandler.Get)
		api.POST("/clients/:clientId/checklist", checklistHandler.Seed)
		api.POST("/clients/:clientId/reminders", checklistHandler.SendReminders)
		api.GET("/clients/:clientId/session", checklistHandler.GetSession)

		api.PUT("/checklist/:id", checklistHandler.UpdateItem)

		api.GET("/alerts", alertHandler.List)
		api.POST("/alerts/:id/acknowledge", alertHandler.Acknowledge)
		api.POST("/alerts/:id/resolve", alertHandler.Resolve)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
