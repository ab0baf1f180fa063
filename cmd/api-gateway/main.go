package main

import (
	"context"
	"fmt"
	"log"
	"net/http/pprof"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-adp-api/api/swagger"
	internalhandler "github.com/noah-isme/sma-adp-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-adp-api/internal/middleware"
	"github.com/noah-isme/sma-adp-api/internal/models"
	"github.com/noah-isme/sma-adp-api/internal/repository"
	"github.com/noah-isme/sma-adp-api/internal/service"
	"github.com/noah-isme/sma-adp-api/pkg/cache"
	"github.com/noah-isme/sma-adp-api/pkg/config"
	"github.com/noah-isme/sma-adp-api/pkg/database"
	"github.com/noah-isme/sma-adp-api/pkg/export"
	"github.com/noah-isme/sma-adp-api/pkg/jobs"
	"github.com/noah-isme/sma-adp-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-adp-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-adp-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-adp-api/pkg/storage"
)

// @title Clinical Scheduling API
// @version 1.0.0
// @description CP-SAT backed clinical shift scheduling, export, and publication service
// @BasePath /
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

	metricsSvc := service.NewMetricsService()
	metricsHandler := internalhandler.NewMetricsHandler(metricsSvc)

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to initialise database", "error", err)
	}
	defer db.Close()

	var cacheRepo service.CacheRepository
	if client, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Sugar().Warnw("redis cache disabled", "error", err)
	} else {
		cacheRepo = repository.NewStateCacheRepository(client)
		defer client.Close()
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, 5*time.Minute, logr, cacheRepo != nil)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
		registerPprof(r)
	}

	api := r.Group(cfg.APIPrefix)

	userRepo := repository.NewUserRepository(db)
	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "clinical-scheduling-api",
		Audience:           []string{"clinical-scheduling-clients"},
	})
	authHandler := internalhandler.NewAuthHandler(authSvc)

	authRoutes := api.Group("/auth")
	authRoutes.POST("/login", authHandler.Login)
	authRoutes.POST("/refresh", authHandler.Refresh)
	authRoutes.POST("/forgot-password", authHandler.ForgotPassword)
	authRoutes.POST("/reset-password", authHandler.ResetPassword)
	protectedAuth := authRoutes.Group("")
	protectedAuth.Use(internalmiddleware.JWT(authSvc))
	protectedAuth.GET("/me", authHandler.Me)
	protectedAuth.POST("/logout", authHandler.Logout)
	protectedAuth.POST("/change-password", authHandler.ChangePassword)

	userSvc := service.NewUserService(userRepo, nil, logr)
	userHandler := internalhandler.NewUserHandler(userSvc)

	appStateRepo := repository.NewAppStateRepository(db)
	stateSvc := service.NewStateService(appStateRepo, cacheSvc, logr)
	stateHandler := internalhandler.NewStateHandler(stateSvc)

	schedulerSvc := service.NewSchedulerService(stateSvc, logr)
	solveHandler := internalhandler.NewSolveHandler(schedulerSvc)

	exportStore, err := storage.NewLocalStorage(cfg.Export.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	exportSigner := storage.NewSignedURLSigner(cfg.Export.SignedURLSecret, cfg.Export.SignedURLTTL)
	exportJobRepo := repository.NewExportJobRepository(db)
	exportSvc := service.NewExportService(
		stateSvc,
		exportJobRepo,
		exportStore,
		exportSigner,
		service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Export.SignedURLTTL},
		logr,
		export.NewCSVExporter(),
		export.NewPDFExporter(),
		export.NewICalExporter(""),
	)

	exportWorkers := cfg.Export.WorkerConcurrency
	if exportWorkers <= 0 {
		exportWorkers = 1
	}
	exportQueue := jobs.NewQueue("exports", func(ctx context.Context, job jobs.Job) error {
		jobID, _ := job.Payload.(string)
		return exportSvc.Handle(ctx, jobID)
	}, jobs.QueueConfig{
		Workers:    exportWorkers,
		BufferSize: exportWorkers * 4,
		MaxRetries: cfg.Export.WorkerRetries,
		RetryDelay: 5 * time.Second,
		Logger:     logr,
	})
	queueCtx, cancelQueue := context.WithCancel(context.Background())
	exportQueue.Start(queueCtx)
	defer func() {
		cancelQueue()
		exportQueue.Stop()
	}()
	startExportCleanup(queueCtx, exportSvc, cfg.Export.CleanupInterval, logr)

	exportHandler := internalhandler.NewExportHandler(exportJobRepo, exportQueue, exportSvc)

	publicationRepo := repository.NewPublicationRepository(db)
	publicationHandler := internalhandler.NewPublicationHandler(publicationRepo, exportSvc)

	r.GET("/ical/:token", publicationHandler.Feed)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(authSvc))

	usersGroup := secured.Group("/users")
	usersGroup.Use(internalmiddleware.RBAC(string(models.RoleAdmin)))
	usersGroup.GET("", userHandler.List)
	usersGroup.POST("", userHandler.Create)
	usersGroup.GET("/:id", userHandler.Get)
	usersGroup.PUT("/:id", userHandler.Update)
	usersGroup.DELETE("/:id", userHandler.Delete)

	stateGroup := secured.Group("/state")
	stateGroup.GET("", stateHandler.Get)
	stateGroup.PUT("", stateHandler.Put)
	stateGroup.GET("/export", stateHandler.Export)
	stateGroup.POST("/import", stateHandler.Import)

	solveGroup := secured.Group("/solve")
	solveGroup.POST("/day", solveHandler.Day)
	solveGroup.POST("/range", solveHandler.Range)

	exportsGroup := secured.Group("/exports")
	exportsGroup.POST("", exportHandler.Create)
	exportsGroup.GET("", exportHandler.List)
	secured.GET("/exports/download/:token", exportHandler.Download)

	publicationsGroup := secured.Group("/publications")
	publicationsGroup.Use(internalmiddleware.RBAC(string(models.RoleAdmin)))
	publicationsGroup.POST("", publicationHandler.Create)
	publicationsGroup.GET("", publicationHandler.List)
	publicationsGroup.DELETE("/:id", publicationHandler.Revoke)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func startExportCleanup(ctx context.Context, exportSvc *service.ExportService, interval time.Duration, logr *zap.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := exportSvc.Cleanup(0)
				if err != nil {
					logr.Warn("export cleanup failed", zap.Error(err))
					continue
				}
				if len(removed) > 0 {
					logr.Info("export cleanup removed stale files", zap.Int("count", len(removed)))
				}
			}
		}
	}()
}

func registerPprof(r *gin.Engine) {
	group := r.Group("/debug/pprof")
	group.GET("/", gin.WrapF(pprof.Index))
	group.GET("/cmdline", gin.WrapF(pprof.Cmdline))
	group.GET("/profile", gin.WrapF(pprof.Profile))
	group.POST("/symbol", gin.WrapF(pprof.Symbol))
	group.GET("/symbol", gin.WrapF(pprof.Symbol))
	group.GET("/trace", gin.WrapF(pprof.Trace))
	group.GET("/allocs", gin.WrapH(pprof.Handler("allocs")))
	group.GET("/block", gin.WrapH(pprof.Handler("block")))
	group.GET("/goroutine", gin.WrapH(pprof.Handler("goroutine")))
	group.GET("/heap", gin.WrapH(pprof.Handler("heap")))
	group.GET("/mutex", gin.WrapH(pprof.Handler("mutex")))
	group.GET("/threadcreate", gin.WrapH(pprof.Handler("threadcreate")))
}
