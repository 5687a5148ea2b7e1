package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/coop-dashboard-api/internal/handler"
	"github.com/noah-isme/coop-dashboard-api/internal/middleware"
	"github.com/noah-isme/coop-dashboard-api/internal/models"
	"github.com/noah-isme/coop-dashboard-api/pkg/config"
	"github.com/noah-isme/coop-dashboard-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/coop-dashboard-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/coop-dashboard-api/pkg/middleware/requestid"
)

type routes struct {
	datasets     *handler.DatasetHandler
	jobs         *handler.JobHandler
	autoApproval *handler.AutoApprovalHandler
	audit        *handler.AuditHandler
	metrics      *handler.MetricsHandler
	auditor      *middleware.Auditor
	observer     middleware.HTTPObserver
}

func newRouter(cfg *config.Config, logr *zap.Logger, h routes) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(h.observer))

	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix, middleware.WithResponseMeta())
	api.GET("/metrics/summary", h.metrics.Summary)

	dashboard := api.Group("/dashboard")
	dashboard.GET("/datasets", h.datasets.List)
	dashboard.GET("/datasets/export", h.datasets.Export)

	datasets := api.Group("/datasets")
	datasets.POST("", h.auditor.Record(models.AuditActionDatasetCreate, "dataset", ""), h.datasets.Create)
	datasets.POST("/shopify", h.auditor.Record(models.AuditActionShopifyImport, "dataset", ""), h.datasets.AddFromShopify)
	datasets.PUT("/:name", h.auditor.Record(models.AuditActionDatasetUpdate, "dataset", "name"), h.datasets.Update)
	datasets.DELETE("/:name", h.auditor.Record(models.AuditActionDatasetDelete, "dataset", "name"), h.datasets.Delete)
	datasets.POST("/:uid/sync", h.auditor.Record(models.AuditActionShopifySync, "dataset", "uid"), h.datasets.SyncShopify)
	datasets.GET("/:uid/private", h.auditor.Record(models.AuditActionDatasetDownload, "dataset", "uid"), h.datasets.Download)
	datasets.POST("/:uid/download-link", h.datasets.IssueDownloadLink)
	api.GET("/downloads/:token", h.datasets.DownloadByToken)

	jobs := api.Group("/jobs")
	jobs.GET("", h.jobs.List)
	jobs.POST("/:uid/review", h.auditor.Record(models.AuditActionJobReview, "job", "uid"), h.jobs.Review)
	jobs.POST("/:uid/open-code", h.jobs.OpenCode)

	api.GET("/auto-approval", h.autoApproval.Get)
	api.PUT("/auto-approval", h.auditor.Record(models.AuditActionAutoApprovalWrite, "auto_approval", ""), h.autoApproval.Set)

	api.GET("/audit-logs", h.audit.List)

	return r
}
