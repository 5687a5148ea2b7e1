package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coop-dashboard-api/internal/dto"
	appErrors "github.com/noah-isme/coop-dashboard-api/pkg/errors"
	"github.com/noah-isme/coop-dashboard-api/pkg/response"
)

type jobService interface {
	List(ctx context.Context) ([]dto.JobView, error)
	Grouped(ctx context.Context) (*dto.GroupedJobsResponse, error)
	Review(ctx context.Context, uid string, req dto.ReviewJobRequest) (*dto.MessageResponse, error)
	OpenCode(ctx context.Context, uid string) (*dto.MessageResponse, error)
}

// JobHandler exposes job review endpoints.
type JobHandler struct {
	service jobService
}

// NewJobHandler constructs the handler.
func NewJobHandler(service jobService) *JobHandler {
	return &JobHandler{service: service}
}

// List godoc
// @Summary List jobs
// @Description Jobs with their status bucket. grouped=true splits them into pending, approved and denied.
// @Tags Jobs
// @Produce json
// @Param grouped query bool false "Group by status bucket"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /jobs [get]
func (h *JobHandler) List(c *gin.Context) {
	grouped, err := parseBoolQuery(c, "grouped")
	if err != nil {
		response.Error(c, err)
		return
	}
	if grouped {
		result, err := h.service.Grouped(c.Request.Context())
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, result)
		return
	}

	jobs, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, jobs, map[string]interface{}{"total": len(jobs)})
}

// Review godoc
// @Summary Approve or deny a job
// @Tags Jobs
// @Accept json
// @Produce json
// @Param uid path string true "Job UID"
// @Param payload body dto.ReviewJobRequest true "Decision"
// @Success 200 {object} response.Envelope{data=dto.MessageResponse}
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /jobs/{uid}/review [post]
func (h *JobHandler) Review(c *gin.Context) {
	var req dto.ReviewJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid JSON body"))
		return
	}
	msg, err := h.service.Review(c.Request.Context(), c.Param("uid"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, msg)
}

// OpenCode godoc
// @Summary Open the code of a job on the datasite host
// @Tags Jobs
// @Produce json
// @Param uid path string true "Job UID"
// @Success 200 {object} response.Envelope{data=dto.MessageResponse}
// @Router /jobs/{uid}/open-code [post]
func (h *JobHandler) OpenCode(c *gin.Context) {
	msg, err := h.service.OpenCode(c.Request.Context(), c.Param("uid"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, msg)
}

func parseBoolQuery(c *gin.Context, key string) (bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, appErrors.Clone(appErrors.ErrValidation, key+" must be a boolean")
	}
	return value, nil
}
