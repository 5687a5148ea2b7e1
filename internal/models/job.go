package models

import "time"

// JobStatus is the raw lifecycle state reported by the coop API.
type JobStatus string

const (
	JobStatusPendingCodeReview JobStatus = "pending_code_review"
	JobStatusRunFailed         JobStatus = "job_run_failed"
	JobStatusRunFinished       JobStatus = "job_run_finished"
	JobStatusRejected          JobStatus = "rejected"
	JobStatusShared            JobStatus = "shared"
	JobStatusApproved          JobStatus = "approved"
)

// JobBucket is the coarse review state shown on the dashboard.
type JobBucket string

const (
	JobBucketPending  JobBucket = "pending"
	JobBucketApproved JobBucket = "approved"
	JobBucketDenied   JobBucket = "denied"
)

// Bucket maps a raw status onto its review bucket. ok is false for statuses
// the dashboard does not know; callers must not guess a bucket for those.
func (s JobStatus) Bucket() (bucket JobBucket, ok bool) {
	switch s {
	case JobStatusPendingCodeReview, JobStatusRunFailed:
		return JobBucketPending, true
	case JobStatusShared, JobStatusApproved, JobStatusRunFinished:
		return JobBucketApproved, true
	case JobStatusRejected:
		return JobBucketDenied, true
	default:
		return "", false
	}
}

// JobRecord is an immutable snapshot of an access-request job.
type JobRecord struct {
	UID            string    `json:"uid"`
	DatasetUID     string    `json:"datasetUid,omitempty"`
	DatasetName    string    `json:"datasetName"`
	ProjectName    string    `json:"projectName"`
	Description    string    `json:"description"`
	RequesterEmail string    `json:"requesterEmail"`
	RequestedAt    time.Time `json:"requestedAt"`
	Status         JobStatus `json:"status"`
	ErrorMessage   string    `json:"errorMessage,omitempty"`
	OutputURL      string    `json:"outputUrl,omitempty"`
	Enclave        string    `json:"enclave,omitempty"`
}

// ReviewAction is a reviewer's decision on a pending job.
type ReviewAction string

const (
	ReviewApprove ReviewAction = "approve"
	ReviewDeny    ReviewAction = "deny"
)
