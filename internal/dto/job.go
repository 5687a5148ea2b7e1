package dto

import (
	"time"

	"github.com/noah-isme/coop-dashboard-api/internal/models"
)

// JobView is an access-request job as rendered in the jobs view.
type JobView struct {
	UID            string           `json:"uid"`
	DatasetName    string           `json:"datasetName"`
	ProjectName    string           `json:"projectName"`
	Description    string           `json:"description"`
	RequestedTime  time.Time        `json:"requestedTime"`
	RequestedAgo   string           `json:"requestedAgo"`
	RequesterEmail string           `json:"requesterEmail"`
	Status         models.JobBucket `json:"status"`
	RawStatus      models.JobStatus `json:"rawStatus"`
	ErrorMessage   string           `json:"errorMessage,omitempty"`
}

// GroupedJobsResponse partitions jobs by review bucket.
type GroupedJobsResponse struct {
	Pending  []JobView `json:"pending"`
	Approved []JobView `json:"approved"`
	Denied   []JobView `json:"denied"`
}

// ReviewJobRequest approves or denies a pending job.
type ReviewJobRequest struct {
	Action string `json:"action" validate:"required,oneof=approve deny"`
}

// AutoApprovalRequest replaces the trusted datasite allowlist.
type AutoApprovalRequest struct {
	Datasites []string `json:"datasites"`
}

// AutoApprovalResponse is the current trusted datasite allowlist.
type AutoApprovalResponse struct {
	Datasites []string `json:"datasites"`
}
