package dto

import (
	"time"

	"github.com/noah-isme/coop-dashboard-api/internal/models"
)

// DatasetView is a dataset enriched with its access-request usage.
type DatasetView struct {
	UID           string                `json:"uid"`
	Name          string                `json:"name"`
	Description   string                `json:"description"`
	SizeBytes     int64                 `json:"sizeBytes"`
	Size          string                `json:"size"`
	Type          string                `json:"type"`
	CreatedAt     time.Time             `json:"createdAt"`
	LastUpdated   time.Time             `json:"lastUpdated"`
	Source        *models.DatasetSource `json:"source,omitempty"`
	UsersCount    int                   `json:"usersCount"`
	RequestsCount int                   `json:"requestsCount"`
	ActivityData  []int                 `json:"activityData"`
}

// DatasetDashboardResponse is the payload behind the datasets view.
type DatasetDashboardResponse struct {
	Datasets    []DatasetView `json:"datasets"`
	GeneratedAt time.Time     `json:"generatedAt"`
}

// CreateDatasetRequest carries the form fields of a dataset upload.
type CreateDatasetRequest struct {
	Name        string `form:"name" validate:"required,min=1,max=100"`
	Description string `form:"description" validate:"max=350"`
}

// UpdateDatasetRequest carries the form fields of a dataset update. The file
// part is optional.
type UpdateDatasetRequest struct {
	Name        string `form:"name" validate:"required,min=1,max=100"`
	Description string `form:"description" validate:"max=350"`
}

// ShopifyDatasetRequest links a Shopify store as a new dataset.
type ShopifyDatasetRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=100"`
	URL         string  `json:"url" validate:"required,http_url"`
	PAT         string  `json:"pat" validate:"required"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=350"`
}

// DownloadLinkResponse is a short-lived link to a private dataset file.
type DownloadLinkResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// MessageResponse acknowledges an action with an upstream message.
type MessageResponse struct {
	Message string `json:"message"`
}
