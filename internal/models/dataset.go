package models

import "time"

// DatasetSourceType identifies where an imported dataset came from.
type DatasetSourceType string

const (
	DatasetSourceShopify DatasetSourceType = "shopify"
)

// DatasetSource describes the external origin of a dataset, when it has one.
type DatasetSource struct {
	Type     DatasetSourceType `json:"type"`
	StoreURL string            `json:"storeUrl,omitempty"`
}

// DatasetRecord is an immutable snapshot of a dataset listed by the coop API.
type DatasetRecord struct {
	UID           string         `json:"uid"`
	Name          string         `json:"name"`
	Summary       string         `json:"summary"`
	PrivatePath   string         `json:"privatePath"`
	SizeBytes     int64          `json:"sizeBytes"`
	MockSizeBytes int64          `json:"mockSizeBytes"`
	Extension     string         `json:"extension"`
	Tags          []string       `json:"tags,omitempty"`
	AutoApproval  []string       `json:"autoApproval,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	Source        *DatasetSource `json:"source,omitempty"`
}
