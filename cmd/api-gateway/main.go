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
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/coop-dashboard-api/api/swagger"
	"github.com/noah-isme/coop-dashboard-api/internal/handler"
	"github.com/noah-isme/coop-dashboard-api/internal/middleware"
	"github.com/noah-isme/coop-dashboard-api/internal/repository"
	"github.com/noah-isme/coop-dashboard-api/internal/service"
	"github.com/noah-isme/coop-dashboard-api/pkg/cache"
	"github.com/noah-isme/coop-dashboard-api/pkg/config"
	"github.com/noah-isme/coop-dashboard-api/pkg/coop"
	"github.com/noah-isme/coop-dashboard-api/pkg/database"
	"github.com/noah-isme/coop-dashboard-api/pkg/logger"
	"github.com/noah-isme/coop-dashboard-api/pkg/signing"
	"github.com/noah-isme/coop-dashboard-api/pkg/worker"
)

// @title Coop Dashboard API
// @version 0.1.0
// @description Dashboard backend for a data cooperative datasite: datasets with usage metrics, job review and the auto-approval allowlist.
// @BasePath /api/v1
// @schemes http

const (
	connectTimeout  = 5 * time.Second
	shutdownTimeout = 15 * time.Second
)

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	coopClient := coop.New(coop.Options{
		BaseURL:  cfg.Coop.BaseURL,
		Timeout:  cfg.Coop.Timeout,
		Token:    cfg.Coop.Token,
		Logger:   logr,
		Observer: metrics,
	})

	var checks []handler.ReadinessCheck

	var cacheRepo service.CacheRepository
	if cfg.Dashboard.CacheEnabled {
		client, err := connectRedis(ctx, cfg)
		if err != nil {
			logr.Warn("redis unavailable, dashboard cache disabled", zap.Error(err))
		} else {
			repo := repository.NewCacheRepository(client, logr)
			defer repo.Close() //nolint:errcheck
			cacheRepo = repo
			checks = append(checks, handler.ReadinessCheck{Name: "redis", Ping: repo.Ping})
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.CacheEnabled)

	var auditRecorder middleware.AuditRecorder
	var auditRepo *repository.AuditRepository
	if cfg.Audit.Enabled {
		db, err := connectPostgres(ctx, cfg)
		if err != nil {
			return fmt.Errorf("audit database: %w", err)
		}
		defer db.Close() //nolint:errcheck
		auditRepo = repository.NewAuditRepository(db, metrics)
		if err := auditRepo.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("audit schema: %w", err)
		}
		auditRecorder = auditRepo
		checks = append(checks, handler.ReadinessCheck{Name: "postgres", Ping: auditRepo.Ping})
	}

	var datasetSvc *service.DatasetService
	refreshQueue := worker.NewQueue("dashboard-refresh", func(ctx context.Context, task worker.Task) error {
		return datasetSvc.HandleRefresh(ctx, task)
	}, worker.Config{
		Workers:    cfg.Refresh.Workers,
		MaxRetries: cfg.Refresh.Retries,
		RetryDelay: cfg.Refresh.RetryDelay,
		Logger:     logr,
		OnDone: func(_ worker.Task, err error) {
			metrics.RecordRefresh(err == nil)
		},
	})

	datasetSvc = service.NewDatasetService(service.DatasetServiceParams{
		Upstream:  coopClient,
		Projector: service.NewDatasetMetricsProjector(logr),
		Cache:     cacheSvc,
		Refresh:   refreshQueue,
		Signer:    signing.NewDownloadSigner(cfg.Downloads.TokenSecret, cfg.Downloads.TokenTTL),
		Validator: validate,
		Logger:    logr,
		Config: service.DatasetServiceConfig{
			CacheTTL:         cfg.Dashboard.CacheTTL,
			MaxUploadBytes:   cfg.Uploads.MaxBytes,
			DownloadLinkBase: cfg.APIPrefix + "/downloads",
		},
	})
	jobSvc := service.NewJobService(coopClient, cacheSvc, refreshQueue, validate, logr)
	autoApprovalSvc := service.NewAutoApprovalService(coopClient, logr)

	auditHandler := handler.NewAuditHandler(nil, cfg.Audit.Limit)
	if auditRepo != nil {
		auditHandler = handler.NewAuditHandler(auditRepo, cfg.Audit.Limit)
	}

	router := newRouter(cfg, logr, routes{
		datasets:     handler.NewDatasetHandler(datasetSvc, cfg.Uploads.MaxBytes),
		jobs:         handler.NewJobHandler(jobSvc),
		autoApproval: handler.NewAutoApprovalHandler(autoApprovalSvc),
		audit:        auditHandler,
		metrics:      handler.NewMetricsHandler(metrics, checks...),
		auditor:      middleware.NewAuditor(auditRecorder, logr),
		observer:     metrics,
	})

	refreshQueue.Start(ctx)
	defer refreshQueue.Stop()
	if cacheSvc.Enabled() {
		if _, err := refreshQueue.Enqueue(worker.Task{Key: "dash:datasets", Kind: service.RefreshTaskKind}); err != nil {
			logr.Warn("initial dashboard refresh not queued", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("coop", cfg.Coop.BaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func connectRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	return cache.NewRedis(ctx, cfg.Redis)
}

func connectPostgres(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	return database.NewPostgres(ctx, cfg.Database)
}
