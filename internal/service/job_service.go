package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/coop-dashboard-api/internal/dto"
	"github.com/noah-isme/coop-dashboard-api/internal/models"
	"github.com/noah-isme/coop-dashboard-api/pkg/coop"
	appErrors "github.com/noah-isme/coop-dashboard-api/pkg/errors"
)

type jobUpstream interface {
	ListJobs(ctx context.Context) ([]coop.Job, error)
	ReviewJob(ctx context.Context, uid string, decision coop.ReviewDecision) (*coop.Message, error)
	OpenJobCode(ctx context.Context, uid string) (*coop.Message, error)
}

// JobService lists access-request jobs and applies review decisions.
type JobService struct {
	upstream  jobUpstream
	cache     *CacheService
	refresh   refreshQueue
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewJobService constructs a JobService.
func NewJobService(upstream jobUpstream, cache *CacheService, refresh refreshQueue, validate *validator.Validate, logger *zap.Logger) *JobService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobService{
		upstream:  upstream,
		cache:     cache,
		refresh:   refresh,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// List returns every job in upstream order.
func (s *JobService) List(ctx context.Context) ([]dto.JobView, error) {
	raw, err := s.upstream.ListJobs(ctx)
	if err != nil {
		return nil, upstreamError(err)
	}
	now := s.now().UTC()
	views := make([]dto.JobView, 0, len(raw))
	for _, job := range toJobRecords(raw) {
		bucket, ok := job.Status.Bucket()
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrUnknownJobStatus,
				fmt.Sprintf("job %s has unrecognised status %q", job.UID, job.Status))
		}
		views = append(views, toJobView(job, bucket, now))
	}
	return views, nil
}

// Grouped partitions jobs into pending, approved and denied buckets.
func (s *JobService) Grouped(ctx context.Context) (*dto.GroupedJobsResponse, error) {
	views, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	grouped := &dto.GroupedJobsResponse{
		Pending:  []dto.JobView{},
		Approved: []dto.JobView{},
		Denied:   []dto.JobView{},
	}
	for _, view := range views {
		switch view.Status {
		case models.JobBucketPending:
			grouped.Pending = append(grouped.Pending, view)
		case models.JobBucketApproved:
			grouped.Approved = append(grouped.Approved, view)
		case models.JobBucketDenied:
			grouped.Denied = append(grouped.Denied, view)
		}
	}
	return grouped, nil
}

// Review approves or denies job uid.
func (s *JobService) Review(ctx context.Context, uid string, req dto.ReviewJobRequest) (*dto.MessageResponse, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "job uid is required")
	}
	req.Action = strings.ToLower(strings.TrimSpace(req.Action))
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid review payload")
	}

	decision := coop.DecisionApprove
	if models.ReviewAction(req.Action) == models.ReviewDeny {
		decision = coop.DecisionReject
	}
	msg, err := s.upstream.ReviewJob(ctx, uid, decision)
	if err != nil {
		return nil, upstreamError(err)
	}
	invalidateAndRefresh(ctx, s.cache, s.refresh, s.logger)
	s.logger.Info("job reviewed", zap.String("job", uid), zap.String("action", req.Action))
	return &dto.MessageResponse{Message: msg.Message}, nil
}

// OpenCode asks the datasite to open the code of job uid for inspection.
func (s *JobService) OpenCode(ctx context.Context, uid string) (*dto.MessageResponse, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "job uid is required")
	}
	msg, err := s.upstream.OpenJobCode(ctx, uid)
	if err != nil {
		return nil, upstreamError(err)
	}
	return &dto.MessageResponse{Message: msg.Message}, nil
}
