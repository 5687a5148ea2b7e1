package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/coop-dashboard-api/internal/dto"
	"github.com/noah-isme/coop-dashboard-api/internal/models"
	"github.com/noah-isme/coop-dashboard-api/pkg/coop"
	appErrors "github.com/noah-isme/coop-dashboard-api/pkg/errors"
	"github.com/noah-isme/coop-dashboard-api/pkg/export"
	"github.com/noah-isme/coop-dashboard-api/pkg/worker"
)

const (
	datasetsCacheKey      = "dash:datasets"
	dashboardCachePattern = "dash:*"
	// RefreshTaskKind tags background projection refreshes.
	RefreshTaskKind = "dataset_projection"
)

type datasetUpstream interface {
	ListDatasets(ctx context.Context) ([]coop.Dataset, error)
	ListJobs(ctx context.Context) ([]coop.Job, error)
	CreateDataset(ctx context.Context, upload coop.DatasetUpload) (*coop.Dataset, error)
	UpdateDataset(ctx context.Context, name string, upload coop.DatasetUpload) (*coop.Dataset, error)
	DeleteDataset(ctx context.Context, name string) (*coop.Message, error)
	AddFromShopify(ctx context.Context, in coop.ShopifyImport) (*coop.Dataset, error)
	SyncShopify(ctx context.Context, uid string) error
	DownloadPrivate(ctx context.Context, uid string) (*coop.Download, error)
}

type refreshQueue interface {
	Enqueue(task worker.Task) (bool, error)
}

type downloadSigner interface {
	Issue(datasetUID string) (string, time.Time, error)
	Parse(token string) (string, error)
}

// UploadFile is a dataset file received from the dashboard.
type UploadFile struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// DatasetServiceConfig tunes dataset behaviour.
type DatasetServiceConfig struct {
	CacheTTL       time.Duration
	MaxUploadBytes int64
	// DownloadLinkBase prefixes issued download tokens, e.g. "/api/v1/downloads".
	DownloadLinkBase string
}

// DatasetServiceParams groups constructor dependencies.
type DatasetServiceParams struct {
	Upstream  datasetUpstream
	Projector *DatasetMetricsProjector
	Cache     *CacheService
	Refresh   refreshQueue
	Signer    downloadSigner
	Validator *validator.Validate
	Logger    *zap.Logger
	Config    DatasetServiceConfig
}

// DatasetService composes the dataset view and forwards dataset actions to
// the cooperative API.
type DatasetService struct {
	upstream  datasetUpstream
	projector *DatasetMetricsProjector
	cache     *CacheService
	refresh   refreshQueue
	signer    downloadSigner
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
	cfg       DatasetServiceConfig
}

// NewDatasetService constructs a DatasetService with sane defaults.
func NewDatasetService(params DatasetServiceParams) *DatasetService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	cfg.DownloadLinkBase = strings.TrimRight(cfg.DownloadLinkBase, "/")
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	projector := params.Projector
	if projector == nil {
		projector = NewDatasetMetricsProjector(logger)
	}
	return &DatasetService{
		upstream:  params.Upstream,
		projector: projector,
		cache:     params.Cache,
		refresh:   params.Refresh,
		signer:    params.Signer,
		validator: validate,
		logger:    logger,
		now:       time.Now,
		cfg:       cfg,
	}
}

// List returns every dataset with its usage metrics and indicates cache
// utilisation.
func (s *DatasetService) List(ctx context.Context) (*dto.DatasetDashboardResponse, bool, error) {
	var cached dto.DatasetDashboardResponse
	if s.cache.Get(ctx, datasetsCacheKey, &cached) {
		return &cached, true, nil
	}
	summary, err := s.compose(ctx)
	if err != nil {
		return nil, false, err
	}
	s.persistCache(ctx, summary)
	return summary, false, nil
}

// Refresh recomputes the dataset view and stores it in the cache.
func (s *DatasetService) Refresh(ctx context.Context) error {
	summary, err := s.compose(ctx)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, datasetsCacheKey, summary, s.cfg.CacheTTL)
}

// HandleRefresh adapts Refresh to the background worker.
func (s *DatasetService) HandleRefresh(ctx context.Context, task worker.Task) error {
	if task.Kind != RefreshTaskKind {
		return fmt.Errorf("unexpected task kind %q", task.Kind)
	}
	return s.Refresh(ctx)
}

func (s *DatasetService) compose(ctx context.Context) (*dto.DatasetDashboardResponse, error) {
	var (
		datasets []coop.Dataset
		jobs     []coop.Job
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		datasets, err = s.upstream.ListDatasets(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		jobs, err = s.upstream.ListJobs(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrCanceled.Code, appErrors.ErrCanceled.Status, appErrors.ErrCanceled.Message)
		}
		return nil, upstreamError(err)
	}

	now := s.now().UTC()
	views, err := s.projector.ProjectUpstream(datasets, jobs, now)
	if err != nil {
		return nil, err
	}
	return &dto.DatasetDashboardResponse{Datasets: views, GeneratedAt: now}, nil
}

func (s *DatasetService) persistCache(ctx context.Context, summary *dto.DatasetDashboardResponse) {
	if err := s.cache.Set(ctx, datasetsCacheKey, summary, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("dataset cache write failed", zap.Error(err))
	}
}

// Create uploads a new dataset file.
func (s *DatasetService) Create(ctx context.Context, req dto.CreateDatasetRequest, file *UploadFile) (*dto.DatasetView, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid dataset payload")
	}
	if file == nil || file.Content == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid dataset payload: dataset file is required")
	}
	if err := s.checkSize(file); err != nil {
		return nil, err
	}

	created, err := s.upstream.CreateDataset(ctx, toUpload(req.Name, req.Description, file))
	if err != nil {
		return nil, upstreamError(err)
	}
	s.afterMutation(ctx, "create", created.Name)
	return s.singleView(*created)
}

// Update replaces the metadata, and the file when one is given, of the
// dataset called name.
func (s *DatasetService) Update(ctx context.Context, name string, req dto.UpdateDatasetRequest, file *UploadFile) (*dto.DatasetView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dataset name is required")
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid dataset payload")
	}
	if file != nil {
		if err := s.checkSize(file); err != nil {
			return nil, err
		}
	}

	updated, err := s.upstream.UpdateDataset(ctx, name, toUpload(req.Name, req.Description, file))
	if err != nil {
		return nil, upstreamError(err)
	}
	s.afterMutation(ctx, "update", name)
	return s.singleView(*updated)
}

// Delete removes the dataset called name.
func (s *DatasetService) Delete(ctx context.Context, name string) (*dto.MessageResponse, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dataset name is required")
	}
	msg, err := s.upstream.DeleteDataset(ctx, name)
	if err != nil {
		return nil, upstreamError(err)
	}
	s.afterMutation(ctx, "delete", name)
	return &dto.MessageResponse{Message: msg.Message}, nil
}

// AddFromShopify links a Shopify store as a new dataset.
func (s *DatasetService) AddFromShopify(ctx context.Context, req dto.ShopifyDatasetRequest) (*dto.DatasetView, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.URL = strings.TrimSpace(req.URL)
	req.PAT = strings.TrimSpace(req.PAT)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid shopify payload")
	}

	created, err := s.upstream.AddFromShopify(ctx, coop.ShopifyImport{
		Name:        req.Name,
		URL:         req.URL,
		PAT:         req.PAT,
		Description: req.Description,
	})
	if err != nil {
		return nil, upstreamError(err)
	}
	s.afterMutation(ctx, "shopify_import", created.Name)
	return s.singleView(*created)
}

// SyncShopify re-imports a Shopify-backed dataset.
func (s *DatasetService) SyncShopify(ctx context.Context, uid string) error {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return appErrors.Clone(appErrors.ErrValidation, "dataset uid is required")
	}
	if err := s.upstream.SyncShopify(ctx, uid); err != nil {
		return upstreamError(err)
	}
	s.afterMutation(ctx, "shopify_sync", uid)
	return nil
}

// Download opens the private file of dataset uid. Callers must close it.
func (s *DatasetService) Download(ctx context.Context, uid string) (*coop.Download, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dataset uid is required")
	}
	dl, err := s.upstream.DownloadPrivate(ctx, uid)
	if err != nil {
		return nil, upstreamError(err)
	}
	return dl, nil
}

// IssueDownloadLink returns a short-lived link to the private file of uid.
func (s *DatasetService) IssueDownloadLink(uid string) (*dto.DownloadLinkResponse, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dataset uid is required")
	}
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download links are not configured")
	}
	token, expiresAt, err := s.signer.Issue(uid)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue download link")
	}
	return &dto.DownloadLinkResponse{URL: s.cfg.DownloadLinkBase + "/" + token, ExpiresAt: expiresAt}, nil
}

// DownloadByToken opens the file a download link was issued for.
func (s *DatasetService) DownloadByToken(ctx context.Context, token string) (*coop.Download, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download links are not configured")
	}
	uid, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidDownloadLink.Code, appErrors.ErrInvalidDownloadLink.Status, appErrors.ErrInvalidDownloadLink.Message)
	}
	return s.Download(ctx, uid)
}

var exportHeaders = []string{"UID", "Name", "Type", "Size", "Users", "Requests", "Last 12 weeks", "Created", "Last updated"}

// Export renders the current dataset view as a document in format.
func (s *DatasetService) Export(ctx context.Context, format export.Format) ([]byte, error) {
	summary, _, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	table := export.Table{
		Title:       "Datasets",
		Headers:     exportHeaders,
		Rows:        make([][]string, 0, len(summary.Datasets)),
		GeneratedAt: summary.GeneratedAt,
		Widths:      []float64{2.4, 2.4, 0.8, 1, 0.8, 0.9, 2.4, 1.3, 1.3},
	}
	for _, ds := range summary.Datasets {
		table.Rows = append(table.Rows, []string{
			ds.UID,
			ds.Name,
			ds.Type,
			ds.Size,
			strconv.Itoa(ds.UsersCount),
			strconv.Itoa(ds.RequestsCount),
			joinInts(ds.ActivityData),
			formatDate(ds.CreatedAt),
			formatDate(ds.LastUpdated),
		})
	}
	out, err := export.RendererFor(format).Render(table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return out, nil
}

func (s *DatasetService) checkSize(file *UploadFile) error {
	if s.cfg.MaxUploadBytes > 0 && file.Size > s.cfg.MaxUploadBytes {
		return appErrors.Clone(appErrors.ErrPayloadTooLarge,
			fmt.Sprintf("dataset file exceeds %s", FormatBytes(s.cfg.MaxUploadBytes)))
	}
	return nil
}

// singleView renders a freshly written dataset. Its usage counts are zero
// until the next projection picks up its jobs.
func (s *DatasetService) singleView(ds coop.Dataset) (*dto.DatasetView, error) {
	views, err := s.projector.Project([]models.DatasetRecord{toDatasetRecord(ds)}, nil, s.now().UTC())
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// afterMutation drops cached views and schedules a rebuild. Failures here
// never fail the mutation itself.
func (s *DatasetService) afterMutation(ctx context.Context, action, target string) {
	invalidateAndRefresh(ctx, s.cache, s.refresh, s.logger)
	s.logger.Info("dataset changed", zap.String("action", action), zap.String("dataset", target))
}

func invalidateAndRefresh(ctx context.Context, cache *CacheService, refresh refreshQueue, logger *zap.Logger) {
	if err := cache.Invalidate(ctx, dashboardCachePattern); err != nil {
		logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
	if refresh == nil || !cache.Enabled() {
		return
	}
	if _, err := refresh.Enqueue(worker.Task{Key: datasetsCacheKey, Kind: RefreshTaskKind}); err != nil && !errors.Is(err, worker.ErrNotStarted) {
		logger.Warn("dashboard refresh not scheduled", zap.Error(err))
	}
}

func toUpload(name, description string, file *UploadFile) coop.DatasetUpload {
	upload := coop.DatasetUpload{Name: name, Description: description}
	if file != nil && file.Content != nil {
		upload.Filename = file.Filename
		upload.ContentType = file.ContentType
		upload.File = file.Content
	}
	return upload
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, " ")
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
