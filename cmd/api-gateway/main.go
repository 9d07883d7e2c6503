package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-billing-api/api/swagger"
	"github.com/noah-isme/sma-billing-api/internal/handler"
	"github.com/noah-isme/sma-billing-api/internal/middleware"
	"github.com/noah-isme/sma-billing-api/internal/repository"
	"github.com/noah-isme/sma-billing-api/internal/service"
	"github.com/noah-isme/sma-billing-api/pkg/cache"
	"github.com/noah-isme/sma-billing-api/pkg/clock"
	"github.com/noah-isme/sma-billing-api/pkg/config"
	"github.com/noah-isme/sma-billing-api/pkg/database"
	"github.com/noah-isme/sma-billing-api/pkg/jobs"
	"github.com/noah-isme/sma-billing-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-billing-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-billing-api/pkg/middleware/requestid"
)

// @title SMA Billing API
// @version 1.0.0
// @description Student billing ledger: discounts, waivers, installment plans, payments and arrears reporting.
// @BasePath /api/v1
// @schemes http
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

	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := database.NewPostgres(connectCtx, cfg.Database, logr)
	cancelConnect()
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	metrics := service.NewMetricsService()
	ready := map[string]handler.Pinger{"postgres": handler.PingerFunc(db.PingContext)}

	var cacheStore service.CacheRepository
	if cfg.Reports.CacheEnabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, report caching disabled", zap.Error(err))
		} else {
			cacheRepo := repository.NewCacheRepository(client, logr)
			defer cacheRepo.Close() //nolint:errcheck
			cacheStore = cacheRepo
			ready["redis"] = cacheRepo
		}
	}
	cacheSvc := service.NewCacheService(cacheStore, metrics, cfg.Reports.CacheTTL, logr, cacheStore != nil)

	clk := clock.NewSystem(cfg.Billing.Location())
	validate := validator.New()

	billingRepo := repository.NewBillingRepository(db)
	reportSvc := service.NewBillingReportService(service.BillingReportServiceParams{
		Store:   repository.NewReportRepository(db),
		Cache:   cacheSvc,
		Metrics: metrics,
		Clock:   clk,
		TTL:     cfg.Reports.CacheTTL,
		Logger:  logr,
	})

	observers := []service.LedgerObserver{reportSvc}
	var notifications *service.BillingNotificationService
	if cfg.Notifications.Enabled {
		notifications = service.NewBillingNotificationService(service.NewLogNotifier(logr), jobs.QueueConfig{
			Workers:    cfg.Notifications.Workers,
			BufferSize: cfg.Notifications.BufferSize,
			MaxRetries: cfg.Notifications.MaxRetries,
			RetryDelay: cfg.Notifications.RetryDelay,
		}, metrics, logr)
		observers = append(observers, notifications)
	}

	ledgerOpts := []service.LedgerOption{
		service.WithLedgerClock(clk),
		service.WithLedgerObservers(observers...),
		service.WithLedgerMetrics(metrics),
		service.WithMaxInstallments(cfg.Billing.MaxInstallments),
		service.WithBillNumberPrefix(cfg.Billing.NumberPrefix),
	}
	billingSvc := service.NewBillingService(billingRepo, repository.NewStudentRepository(db), repository.NewAcademicYearRepository(db), validate, logr, ledgerOpts...)
	exceptionSvc := service.NewBillingExceptionService(billingRepo, validate, logr, ledgerOpts...)
	authSvc := service.NewAuthService(logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready"))
	r.Use(corsmiddleware.New(corsmiddleware.Options{AllowedOrigins: cfg.CORS.AllowedOrigins}))
	r.Use(middleware.Metrics(metrics, "/metrics", "/health", "/ready"))

	handler.RegisterOps(r, handler.NewMetricsHandler(metrics, ready))
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	handler.RegisterRoutes(r.Group(cfg.APIPrefix), authSvc, handler.Handlers{
		Billings:     handler.NewBillingHandler(billingSvc, exceptionSvc),
		Reports:      handler.NewReportHandler(reportSvc, service.NewExportService(reportSvc, logr)),
		ActivityLogs: handler.NewActivityLogHandler(service.NewActivityLogService(repository.NewActivityLogRepository(db), logr)),
		LedgerCheck:  handler.NewLedgerCheckHandler(service.NewLedgerCheckService(billingRepo, metrics, clk, logr)),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if notifications != nil {
		notifications.Start(ctx)
		defer notifications.Stop()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}
