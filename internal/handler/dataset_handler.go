package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/noah-isme/coop-dashboard-api/internal/dto"
	"github.com/noah-isme/coop-dashboard-api/internal/middleware"
	"github.com/noah-isme/coop-dashboard-api/internal/service"
	"github.com/noah-isme/coop-dashboard-api/pkg/coop"
	appErrors "github.com/noah-isme/coop-dashboard-api/pkg/errors"
	"github.com/noah-isme/coop-dashboard-api/pkg/export"
	"github.com/noah-isme/coop-dashboard-api/pkg/response"
)

const (
	datasetFileField = "dataset"
	// multipartOverhead leaves room for form fields and boundaries on top of
	// the file itself.
	multipartOverhead = 1 << 20
)

type datasetService interface {
	List(ctx context.Context) (*dto.DatasetDashboardResponse, bool, error)
	Export(ctx context.Context, format export.Format) ([]byte, error)
	Create(ctx context.Context, req dto.CreateDatasetRequest, file *service.UploadFile) (*dto.DatasetView, error)
	Update(ctx context.Context, name string, req dto.UpdateDatasetRequest, file *service.UploadFile) (*dto.DatasetView, error)
	Delete(ctx context.Context, name string) (*dto.MessageResponse, error)
	AddFromShopify(ctx context.Context, req dto.ShopifyDatasetRequest) (*dto.DatasetView, error)
	SyncShopify(ctx context.Context, uid string) error
	Download(ctx context.Context, uid string) (*coop.Download, error)
	IssueDownloadLink(uid string) (*dto.DownloadLinkResponse, error)
	DownloadByToken(ctx context.Context, token string) (*coop.Download, error)
}

// DatasetHandler wires dataset service to HTTP endpoints.
type DatasetHandler struct {
	service        datasetService
	maxUploadBytes int64
}

// NewDatasetHandler constructs the handler. maxUploadBytes <= 0 disables the
// request body limit.
func NewDatasetHandler(service datasetService, maxUploadBytes int64) *DatasetHandler {
	return &DatasetHandler{service: service, maxUploadBytes: maxUploadBytes}
}

// List godoc
// @Summary Datasets with usage metrics
// @Description Every dataset with its distinct requesters, request count and a 12-week activity histogram (oldest week first).
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope{data=dto.DatasetDashboardResponse}
// @Failure 422 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /dashboard/datasets [get]
func (h *DatasetHandler) List(c *gin.Context) {
	summary, cacheHit, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, summary, middleware.ExtractMeta(c))
}

// Export godoc
// @Summary Export datasets
// @Tags Dashboard
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /dashboard/datasets/export [get]
func (h *DatasetHandler) Export(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	out, err := h.service.Export(c.Request.Context(), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("datasets-%s.%s", time.Now().UTC().Format("20060102"), format)
	response.Attachment(c, filename, format.ContentType(), int64(len(out)), bytes.NewReader(out))
}

// Create godoc
// @Summary Upload a dataset
// @Tags Datasets
// @Accept multipart/form-data
// @Produce json
// @Param name formData string true "Dataset name"
// @Param description formData string false "Description (max 350 characters)"
// @Param dataset formData file true "Dataset file"
// @Success 201 {object} response.Envelope{data=dto.DatasetView}
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /datasets [post]
func (h *DatasetHandler) Create(c *gin.Context) {
	var req dto.CreateDatasetRequest
	file, cleanup, err := h.bindUpload(c, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer cleanup()

	view, err := h.service.Create(c.Request.Context(), req, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// Update godoc
// @Summary Update a dataset
// @Tags Datasets
// @Accept multipart/form-data
// @Produce json
// @Param name path string true "Current dataset name"
// @Param name formData string true "New dataset name"
// @Param description formData string false "Description (max 350 characters)"
// @Param dataset formData file false "Replacement file"
// @Success 200 {object} response.Envelope{data=dto.DatasetView}
// @Failure 400 {object} response.Envelope
// @Router /datasets/{name} [put]
func (h *DatasetHandler) Update(c *gin.Context) {
	var req dto.UpdateDatasetRequest
	file, cleanup, err := h.bindUpload(c, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer cleanup()

	view, err := h.service.Update(c.Request.Context(), c.Param("name"), req, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// Delete godoc
// @Summary Delete a dataset
// @Tags Datasets
// @Produce json
// @Param name path string true "Dataset name"
// @Success 200 {object} response.Envelope{data=dto.MessageResponse}
// @Failure 404 {object} response.Envelope
// @Router /datasets/{name} [delete]
func (h *DatasetHandler) Delete(c *gin.Context) {
	msg, err := h.service.Delete(c.Request.Context(), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, msg)
}

// AddFromShopify godoc
// @Summary Link a Shopify store as a dataset
// @Tags Datasets
// @Accept json
// @Produce json
// @Param payload body dto.ShopifyDatasetRequest true "Shopify store"
// @Success 201 {object} response.Envelope{data=dto.DatasetView}
// @Failure 400 {object} response.Envelope
// @Router /datasets/shopify [post]
func (h *DatasetHandler) AddFromShopify(c *gin.Context) {
	var req dto.ShopifyDatasetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid JSON body"))
		return
	}
	view, err := h.service.AddFromShopify(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// SyncShopify godoc
// @Summary Re-import a Shopify dataset
// @Tags Datasets
// @Produce json
// @Param uid path string true "Dataset UID"
// @Success 202 {object} response.Envelope
// @Router /datasets/{uid}/sync [post]
func (h *DatasetHandler) SyncShopify(c *gin.Context) {
	if err := h.service.SyncShopify(c.Request.Context(), c.Param("uid")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"uid": c.Param("uid"), "status": "syncing"})
}

// Download godoc
// @Summary Download the private file of a dataset
// @Tags Datasets
// @Produce octet-stream
// @Param uid path string true "Dataset UID"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /datasets/{uid}/private [get]
func (h *DatasetHandler) Download(c *gin.Context) {
	dl, err := h.service.Download(c.Request.Context(), c.Param("uid"))
	if err != nil {
		response.Error(c, err)
		return
	}
	streamDownload(c, dl)
}

// IssueDownloadLink godoc
// @Summary Issue a short-lived download link
// @Tags Datasets
// @Produce json
// @Param uid path string true "Dataset UID"
// @Success 201 {object} response.Envelope{data=dto.DownloadLinkResponse}
// @Router /datasets/{uid}/download-link [post]
func (h *DatasetHandler) IssueDownloadLink(c *gin.Context) {
	link, err := h.service.IssueDownloadLink(c.Param("uid"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, link)
}

// DownloadByToken godoc
// @Summary Download a private file through a signed link
// @Tags Datasets
// @Produce octet-stream
// @Param token path string true "Download token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /downloads/{token} [get]
func (h *DatasetHandler) DownloadByToken(c *gin.Context) {
	dl, err := h.service.DownloadByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	streamDownload(c, dl)
}

func streamDownload(c *gin.Context, dl *coop.Download) {
	defer dl.Close() //nolint:errcheck
	size := dl.Size
	if size <= 0 {
		size = -1
	}
	response.Attachment(c, dl.Filename, dl.ContentType, size, dl.Body)
}

// bindUpload parses the multipart form into req and opens the dataset file
// part when present. The returned cleanup must always be called.
func (h *DatasetHandler) bindUpload(c *gin.Context, req interface{}) (*service.UploadFile, func(), error) {
	noop := func() {}
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)
	}
	if err := c.ShouldBindWith(req, binding.FormMultipart); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return nil, noop, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("upload exceeds %s", service.FormatBytes(h.maxUploadBytes)))
		}
		return nil, noop, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid multipart form")
	}

	header, err := c.FormFile(datasetFileField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid dataset file")
	}
	return openUpload(header)
}

func openUpload(header *multipart.FileHeader) (*service.UploadFile, func(), error) {
	f, err := header.Open()
	if err != nil {
		return nil, func() {}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "cannot read dataset file")
	}
	return &service.UploadFile{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Content:     f,
	}, func() { _ = f.Close() }, nil
}
