package service

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/noah-isme/coop-dashboard-api/internal/dto"
	"github.com/noah-isme/coop-dashboard-api/internal/models"
	"github.com/noah-isme/coop-dashboard-api/pkg/coop"
)

// ProjectUpstream projects datasets and jobs exactly as returned by the
// cooperative API.
func (p *DatasetMetricsProjector) ProjectUpstream(datasets []coop.Dataset, jobs []coop.Job, now time.Time) ([]dto.DatasetView, error) {
	return p.Project(toDatasetRecords(datasets), toJobRecords(jobs), now)
}

func toDatasetRecord(ds coop.Dataset) models.DatasetRecord {
	record := models.DatasetRecord{
		UID:           ds.UID,
		Name:          ds.Name,
		Summary:       ds.Summary,
		PrivatePath:   ds.Private,
		SizeBytes:     int64(ds.PrivateSize),
		MockSizeBytes: int64(ds.MockSize),
		Extension:     strings.TrimPrefix(path.Ext(ds.Private), "."),
		Tags:          ds.Tags,
		AutoApproval:  ds.AutoApproval,
		CreatedAt:     ds.CreatedAt.Time,
		UpdatedAt:     ds.UpdatedAt.Time,
	}
	if ds.Source != nil && ds.Source.Type != "" {
		record.Source = &models.DatasetSource{
			Type:     models.DatasetSourceType(ds.Source.Type),
			StoreURL: ds.Source.StoreURL,
		}
	}
	return record
}

func toDatasetRecords(in []coop.Dataset) []models.DatasetRecord {
	out := make([]models.DatasetRecord, 0, len(in))
	for _, ds := range in {
		out = append(out, toDatasetRecord(ds))
	}
	return out
}

func toJobRecord(job coop.Job) models.JobRecord {
	record := models.JobRecord{
		UID:            job.UID,
		DatasetUID:     job.DatasetUID,
		DatasetName:    job.DatasetName,
		ProjectName:    job.Name,
		Description:    job.Description,
		RequesterEmail: job.CreatedBy,
		RequestedAt:    job.CreatedAt.Time,
		Status:         models.JobStatus(job.Status),
		OutputURL:      job.OutputURL,
		Enclave:        job.Enclave,
	}
	if job.ErrorMessage != nil {
		record.ErrorMessage = *job.ErrorMessage
	}
	return record
}

func toJobRecords(in []coop.Job) []models.JobRecord {
	out := make([]models.JobRecord, 0, len(in))
	for _, job := range in {
		out = append(out, toJobRecord(job))
	}
	return out
}

// toJobView assumes the status has already been checked by the caller.
func toJobView(job models.JobRecord, bucket models.JobBucket, now time.Time) dto.JobView {
	return dto.JobView{
		UID:            job.UID,
		DatasetName:    job.DatasetName,
		ProjectName:    job.ProjectName,
		Description:    job.Description,
		RequestedTime:  job.RequestedAt,
		RequestedAgo:   TimeAgo(job.RequestedAt, now),
		RequesterEmail: job.RequesterEmail,
		Status:         bucket,
		RawStatus:      job.Status,
		ErrorMessage:   job.ErrorMessage,
	}
}

// TimeAgo renders the distance from then to now in the largest whole unit
// up to days, e.g. "3 hours ago". Future instants read as "0 seconds ago".
func TimeAgo(then, now time.Time) string {
	elapsed := now.Sub(then)
	if elapsed < 0 {
		elapsed = 0
	}
	switch {
	case elapsed < time.Minute:
		return plural(int(elapsed/time.Second), "second")
	case elapsed < time.Hour:
		return plural(int(elapsed/time.Minute), "minute")
	case elapsed < 24*time.Hour:
		return plural(int(elapsed/time.Hour), "hour")
	default:
		return plural(int(elapsed/(24*time.Hour)), "day")
	}
}

func plural(n int, unit string) string {
	if n != 1 {
		unit += "s"
	}
	return fmt.Sprintf("%d %s ago", n, unit)
}
