package service

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/coop-dashboard-api/internal/dto"
	"github.com/noah-isme/coop-dashboard-api/internal/models"
	appErrors "github.com/noah-isme/coop-dashboard-api/pkg/errors"
)

const (
	// ActivityWeeks is the length of the per-dataset activity histogram.
	ActivityWeeks = 12
	activityWeek  = 7 * 24 * time.Hour
)

var sizeUnits = []string{"Bytes", "KB", "MB", "GB", "TB"}

// DatasetMetricsProjector derives per-dataset usage metrics from the job list.
// It holds no state besides its logger and is safe for concurrent use.
type DatasetMetricsProjector struct {
	logger *zap.Logger
}

// NewDatasetMetricsProjector constructs a projector.
func NewDatasetMetricsProjector(logger *zap.Logger) *DatasetMetricsProjector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DatasetMetricsProjector{logger: logger}
}

type datasetUsage struct {
	requests   int
	requesters map[string]struct{}
	activity   []int
}

// Project merges usage counts and the weekly activity histogram into each
// dataset. The result has the same length and order as datasets. A job with
// an unrecognised status aborts the projection.
func (p *DatasetMetricsProjector) Project(datasets []models.DatasetRecord, jobs []models.JobRecord, now time.Time) ([]dto.DatasetView, error) {
	for _, job := range jobs {
		if _, ok := job.Status.Bucket(); !ok {
			return nil, appErrors.Clone(appErrors.ErrUnknownJobStatus,
				fmt.Sprintf("job %s has unrecognised status %q", job.UID, job.Status))
		}
	}

	byUID := make(map[string]int, len(datasets))
	byName := make(map[string]int, len(datasets))
	for i, ds := range datasets {
		if _, exists := byUID[ds.UID]; !exists {
			byUID[ds.UID] = i
		}
		if _, exists := byName[ds.Name]; !exists {
			byName[ds.Name] = i
		}
	}

	usage := make([]datasetUsage, len(datasets))
	dropped := 0
	for _, job := range jobs {
		idx, ok := matchDataset(job, byUID, byName)
		if !ok {
			dropped++
			continue
		}
		u := &usage[idx]
		if u.requesters == nil {
			u.requesters = make(map[string]struct{})
			u.activity = make([]int, ActivityWeeks)
		}
		u.requests++
		u.requesters[job.RequesterEmail] = struct{}{}
		if week, ok := weeksAgo(job.RequestedAt, now); ok {
			u.activity[ActivityWeeks-1-week]++
		}
	}
	if dropped > 0 {
		p.logger.Debug("jobs without a matching dataset", zap.Int("count", dropped))
	}

	views := make([]dto.DatasetView, len(datasets))
	for i, ds := range datasets {
		view := dto.DatasetView{
			UID:          ds.UID,
			Name:         ds.Name,
			Description:  ds.Summary,
			SizeBytes:    ds.SizeBytes,
			Size:         FormatBytes(ds.SizeBytes),
			Type:         datasetType(ds.Extension),
			CreatedAt:    ds.CreatedAt,
			LastUpdated:  ds.UpdatedAt,
			Source:       ds.Source,
			ActivityData: make([]int, ActivityWeeks),
		}
		if u := usage[i]; u.requesters != nil {
			view.RequestsCount = u.requests
			view.UsersCount = len(u.requesters)
			copy(view.ActivityData, u.activity)
		}
		views[i] = view
	}
	return views, nil
}

// matchDataset joins on uid when the job carries one and on name otherwise.
func matchDataset(job models.JobRecord, byUID, byName map[string]int) (int, bool) {
	if job.DatasetUID != "" {
		idx, ok := byUID[job.DatasetUID]
		return idx, ok
	}
	idx, ok := byName[job.DatasetName]
	return idx, ok
}

// weeksAgo returns the whole number of weeks between requestedAt and now when
// that falls inside the activity window.
func weeksAgo(requestedAt, now time.Time) (int, bool) {
	elapsed := now.Sub(requestedAt)
	if elapsed < 0 {
		return 0, false
	}
	week := int(elapsed / activityWeek)
	if week >= ActivityWeeks {
		return 0, false
	}
	return week, true
}

func datasetType(ext string) string {
	if ext == "" {
		return "unknown"
	}
	return ext
}

// FormatBytes renders a byte count with 1024-based units and at most two
// decimals, e.g. "1.5 KB".
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}
	exp := 0
	for v := n; v >= 1024 && exp < len(sizeUnits)-1; v /= 1024 {
		exp++
	}
	value := float64(n) / math.Pow(1024, float64(exp))
	value = math.Round(value*100) / 100
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + sizeUnits[exp]
}
