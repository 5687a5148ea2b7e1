package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coop-dashboard-api/internal/models"
	appErrors "github.com/noah-isme/coop-dashboard-api/pkg/errors"
	"github.com/noah-isme/coop-dashboard-api/pkg/response"
)

const maxAuditLimit = 500

type auditLister interface {
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, error)
}

// AuditHandler serves the action audit trail.
type AuditHandler struct {
	repo         auditLister
	defaultLimit int
}

// NewAuditHandler constructs the handler. A nil repo means auditing is off.
func NewAuditHandler(repo auditLister, defaultLimit int) *AuditHandler {
	if defaultLimit <= 0 {
		defaultLimit = 100
	}
	return &AuditHandler{repo: repo, defaultLimit: defaultLimit}
}

// List godoc
// @Summary Audit trail
// @Tags Audit
// @Produce json
// @Param action query string false "Action filter, e.g. DATASET_DELETE"
// @Param resource query string false "Resource filter, e.g. dataset"
// @Param limit query int false "Max entries (default 100, max 500)"
// @Success 200 {object} response.Envelope{data=[]models.AuditLog}
// @Failure 503 {object} response.Envelope
// @Router /audit-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	if h.repo == nil {
		response.Error(c, appErrors.New("AUDIT_DISABLED", http.StatusServiceUnavailable, "audit trail is not enabled"))
		return
	}

	filter := models.AuditFilter{
		Action:   strings.ToUpper(strings.TrimSpace(c.Query("action"))),
		Resource: strings.TrimSpace(c.Query("resource")),
		Limit:    h.defaultLimit,
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be a positive integer"))
			return
		}
		if limit > maxAuditLimit {
			limit = maxAuditLimit
		}
		filter.Limit = limit
	}

	entries, err := h.repo.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit trail"))
		return
	}
	if entries == nil {
		entries = []models.AuditLog{}
	}
	response.JSON(c, http.StatusOK, entries, map[string]interface{}{"total": len(entries), "limit": filter.Limit})
}
