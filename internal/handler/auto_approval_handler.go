package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coop-dashboard-api/internal/dto"
	appErrors "github.com/noah-isme/coop-dashboard-api/pkg/errors"
	"github.com/noah-isme/coop-dashboard-api/pkg/response"
)

type autoApprovalService interface {
	Get(ctx context.Context) (*dto.AutoApprovalResponse, error)
	Set(ctx context.Context, req dto.AutoApprovalRequest) (*dto.AutoApprovalResponse, error)
}

// AutoApprovalHandler manages the datasite allowlist.
type AutoApprovalHandler struct {
	service autoApprovalService
}

// NewAutoApprovalHandler constructs the handler.
func NewAutoApprovalHandler(service autoApprovalService) *AutoApprovalHandler {
	return &AutoApprovalHandler{service: service}
}

// Get godoc
// @Summary Auto-approved datasites
// @Tags Auto Approval
// @Produce json
// @Success 200 {object} response.Envelope{data=dto.AutoApprovalResponse}
// @Router /auto-approval [get]
func (h *AutoApprovalHandler) Get(c *gin.Context) {
	result, err := h.service.Get(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Set godoc
// @Summary Replace the auto-approved datasites
// @Description Entries are emails or domains. They are trimmed, lower-cased and de-duplicated before being stored.
// @Tags Auto Approval
// @Accept json
// @Produce json
// @Param payload body dto.AutoApprovalRequest true "Allowlist"
// @Success 200 {object} response.Envelope{data=dto.AutoApprovalResponse}
// @Failure 400 {object} response.Envelope
// @Router /auto-approval [put]
func (h *AutoApprovalHandler) Set(c *gin.Context) {
	var req dto.AutoApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid JSON body"))
		return
	}
	result, err := h.service.Set(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
