package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/coop-dashboard-api/internal/models"
	"github.com/noah-isme/coop-dashboard-api/pkg/middleware/requestid"
)

const auditWriteTimeout = 3 * time.Second

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Create(ctx context.Context, entry *models.AuditLog) error
}

// Auditor builds per-route audit middleware sharing one recorder.
type Auditor struct {
	recorder AuditRecorder
	logger   *zap.Logger
}

// NewAuditor constructs an Auditor. A nil recorder disables auditing.
func NewAuditor(recorder AuditRecorder, logger *zap.Logger) *Auditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Auditor{recorder: recorder, logger: logger}
}

// Record returns middleware that stores an audit entry for every completed
// request, failed ones included. idParam names the route parameter holding
// the resource identifier, if any.
func (a *Auditor) Record(action, resource, idParam string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a == nil || a.recorder == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		details := map[string]interface{}{
			"path":       c.FullPath(),
			"method":     c.Request.Method,
			"latency_ms": time.Since(start).Milliseconds(),
		}
		if len(c.Errors) > 0 {
			details["error"] = c.Errors.Last().Error()
		}
		payload, err := json.Marshal(details)
		if err != nil {
			payload = []byte("{}")
		}

		entry := &models.AuditLog{
			Action:    action,
			Resource:  resource,
			Details:   types.JSONText(payload),
			Status:    c.Writer.Status(),
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		}
		if id := requestid.FromContext(c.Request.Context()); id != "" {
			entry.RequestID = &id
		}
		if idParam != "" {
			if value := c.Param(idParam); value != "" {
				entry.ResourceID = &value
			}
		}

		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), auditWriteTimeout)
		defer cancel()
		if err := a.recorder.Create(ctx, entry); err != nil {
			a.logger.Warn("audit write failed", zap.String("action", action), zap.Error(err))
		}
	}
}
