package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/coop-dashboard-api/internal/dto"
	"github.com/noah-isme/coop-dashboard-api/pkg/coop"
	appErrors "github.com/noah-isme/coop-dashboard-api/pkg/errors"
	"github.com/noah-isme/coop-dashboard-api/pkg/export"
	"github.com/noah-isme/coop-dashboard-api/pkg/signing"
)

var serviceNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type datasetFixture struct {
	svc      *DatasetService
	upstream *fakeCoop
	cache    *stubCacheRepo
	queue    *queueStub
}

func newDatasetFixture(upstream *fakeCoop) datasetFixture {
	cacheRepo := &stubCacheRepo{}
	queue := &queueStub{}
	svc := NewDatasetService(DatasetServiceParams{
		Upstream: upstream,
		Cache:    NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true),
		Refresh:  queue,
		Signer:   signing.NewDownloadSigner("secret", time.Minute),
		Logger:   zap.NewNop(),
		Config:   DatasetServiceConfig{MaxUploadBytes: 16, DownloadLinkBase: "/api/v1/downloads/"},
	})
	svc.now = func() time.Time { return serviceNow }
	return datasetFixture{svc: svc, upstream: upstream, cache: cacheRepo, queue: queue}
}

func salesUpstream() *fakeCoop {
	return &fakeCoop{
		datasets: []coop.Dataset{
			{UID: "d-sales", Name: "sales.csv", Private: "syft://o@coop.org/private/sales.csv", PrivateSize: 2048, Summary: "Weekly sales",
				CreatedAt: mustTimestamp("2024-05-01T00:00:00Z"), UpdatedAt: mustTimestamp("2024-05-20T00:00:00Z")},
			{UID: "d-crops", Name: "crops", Private: "syft://o@coop.org/private/crops"},
		},
		jobs: []coop.Job{
			{UID: "j1", DatasetName: "sales.csv", CreatedBy: "a@x.org", Status: "pending_code_review", CreatedAt: mustTimestamp("2024-05-29T12:00:00Z")},
			{UID: "j2", DatasetName: "sales.csv", CreatedBy: "b@x.org", Status: "approved", CreatedAt: mustTimestamp("2024-05-22T12:00:00")},
			{UID: "j3", DatasetName: "sales.csv", CreatedBy: "a@x.org", Status: "rejected", CreatedAt: mustTimestamp("2024-02-22T12:00:00Z")},
		},
	}
}

func TestDatasetServiceListComposesAndCaches(t *testing.T) {
	f := newDatasetFixture(salesUpstream())

	summary, hit, err := f.svc.List(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, summary.Datasets, 2)
	assert.Equal(t, serviceNow, summary.GeneratedAt)

	sales := summary.Datasets[0]
	assert.Equal(t, "sales.csv", sales.Name)
	assert.Equal(t, "2 KB", sales.Size)
	assert.Equal(t, "csv", sales.Type)
	assert.Equal(t, 2, sales.UsersCount)
	assert.Equal(t, 3, sales.RequestsCount)
	assert.Equal(t, []int{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 1}, sales.ActivityData)
	assert.Equal(t, "unknown", summary.Datasets[1].Type)

	cached, hit, err := f.svc.List(context.Background())
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, summary.Datasets[0].ActivityData, cached.Datasets[0].ActivityData)
	assert.Equal(t, 1, f.upstream.listDatasetCalls)
	assert.Equal(t, 1, f.upstream.listJobCalls)
}

func TestDatasetServiceListSurfacesUpstreamFailure(t *testing.T) {
	upstream := salesUpstream()
	upstream.jobsErr = &coop.Error{Op: "list_jobs", Kind: coop.KindAPI, StatusCode: http.StatusInternalServerError, Detail: "syftbox client not running"}
	f := newDatasetFixture(upstream)

	_, _, err := f.svc.List(context.Background())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUpstream.Code, appErr.Code)
	assert.Equal(t, http.StatusBadGateway, appErr.Status)
	assert.Equal(t, "syftbox client not running", appErr.Message)
}

func TestDatasetServiceListCanceled(t *testing.T) {
	f := newDatasetFixture(salesUpstream())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := f.svc.List(ctx)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrCanceled))
}

func TestDatasetServiceListUnknownStatus(t *testing.T) {
	upstream := salesUpstream()
	upstream.jobs = append(upstream.jobs, coop.Job{UID: "j9", DatasetName: "sales.csv", Status: "archived"})
	f := newDatasetFixture(upstream)

	_, _, err := f.svc.List(context.Background())
	assert.True(t, appErrors.Is(err, appErrors.ErrUnknownJobStatus))
	_, cached := f.cache.store[datasetsCacheKey]
	assert.False(t, cached)
}

func TestDatasetServiceCreateValidatesBeforeUpstream(t *testing.T) {
	f := newDatasetFixture(&fakeCoop{})

	_, err := f.svc.Create(context.Background(), dto.CreateDatasetRequest{Name: "  "}, &UploadFile{Content: strings.NewReader("x")})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Contains(t, err.Error(), "name is required")

	_, err = f.svc.Create(context.Background(), dto.CreateDatasetRequest{Name: strings.Repeat("n", 101)}, &UploadFile{Content: strings.NewReader("x")})
	assert.Contains(t, appErrors.FromError(err).Message, "at most 100")

	_, err = f.svc.Create(context.Background(), dto.CreateDatasetRequest{Name: "ok", Description: strings.Repeat("d", 351)}, &UploadFile{Content: strings.NewReader("x")})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.Create(context.Background(), dto.CreateDatasetRequest{Name: "ok"}, nil)
	assert.Contains(t, appErrors.FromError(err).Message, "file is required")

	_, err = f.svc.Create(context.Background(), dto.CreateDatasetRequest{Name: "ok"}, &UploadFile{Size: 17, Content: strings.NewReader("x")})
	assert.True(t, appErrors.Is(err, appErrors.ErrPayloadTooLarge))

	assert.Empty(t, f.upstream.uploads)
}

func TestDatasetServiceCreateInvalidatesAndRefreshes(t *testing.T) {
	f := newDatasetFixture(salesUpstream())
	_, _, err := f.svc.List(context.Background())
	require.NoError(t, err)

	view, err := f.svc.Create(context.Background(), dto.CreateDatasetRequest{Name: " yields ", Description: "Crop yields"},
		&UploadFile{Filename: "yields.csv", ContentType: "text/csv", Size: 4, Content: strings.NewReader("a,b\n")})
	require.NoError(t, err)
	assert.Equal(t, "yields", view.Name)
	assert.Equal(t, "csv", view.Type)
	assert.Equal(t, make([]int, ActivityWeeks), view.ActivityData)

	require.Len(t, f.upstream.uploads, 1)
	assert.Equal(t, "yields.csv", f.upstream.uploads[0].Filename)
	assert.Equal(t, []string{"a,b\n"}, f.upstream.uploadBodies)
	assert.Equal(t, []string{dashboardCachePattern}, f.cache.invalidated)
	require.Len(t, f.queue.tasks, 1)
	assert.Equal(t, RefreshTaskKind, f.queue.tasks[0].Kind)
}

func TestDatasetServiceUpdateWithoutFile(t *testing.T) {
	f := newDatasetFixture(&fakeCoop{})

	view, err := f.svc.Update(context.Background(), "sales.csv", dto.UpdateDatasetRequest{Name: "sales-2024.csv", Description: "renamed"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "sales-2024.csv", view.Name)
	assert.Equal(t, "sales.csv", f.upstream.updatedName)
	require.Len(t, f.upstream.uploads, 1)
	assert.Nil(t, f.upstream.uploads[0].File)
}

func TestDatasetServiceDeleteKeepsUpstreamClientError(t *testing.T) {
	upstream := &fakeCoop{err: &coop.Error{Op: "delete_dataset", Kind: coop.KindAPI, StatusCode: http.StatusNotFound, Detail: "Dataset not found"}}
	f := newDatasetFixture(upstream)

	_, err := f.svc.Delete(context.Background(), "missing")
	appErr := appErrors.FromError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	assert.Equal(t, "Dataset not found", appErr.Message)
	assert.Empty(t, f.cache.invalidated)
}

func TestDatasetServiceAddFromShopify(t *testing.T) {
	f := newDatasetFixture(&fakeCoop{})

	_, err := f.svc.AddFromShopify(context.Background(), dto.ShopifyDatasetRequest{Name: "shop", URL: "not a url", PAT: "shpat"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url must be a valid http(s) URL")
	assert.Nil(t, f.upstream.shopify)

	_, err = f.svc.AddFromShopify(context.Background(), dto.ShopifyDatasetRequest{Name: "shop", URL: "ftp://shop.example", PAT: "shpat"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	view, err := f.svc.AddFromShopify(context.Background(), dto.ShopifyDatasetRequest{Name: "shop", URL: "https://shop.example", PAT: " shpat "})
	require.NoError(t, err)
	require.NotNil(t, view.Source)
	assert.Equal(t, "https://shop.example", view.Source.StoreURL)
	assert.Equal(t, "shpat", f.upstream.shopify.PAT)
	assert.Nil(t, f.upstream.shopify.Description)
}

func TestDatasetServiceSyncShopify(t *testing.T) {
	f := newDatasetFixture(&fakeCoop{})
	require.NoError(t, f.svc.SyncShopify(context.Background(), "d-shop"))
	assert.Equal(t, "d-shop", f.upstream.syncedUID)
	assert.Len(t, f.queue.tasks, 1)

	assert.True(t, appErrors.Is(f.svc.SyncShopify(context.Background(), ""), appErrors.ErrValidation))
}

func TestDatasetServiceDownloadLinkRoundTrip(t *testing.T) {
	f := newDatasetFixture(&fakeCoop{})
	f.svc.signer = signing.NewDownloadSigner("secret", time.Minute)

	link, err := f.svc.IssueDownloadLink("d-sales")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(link.URL, "/api/v1/downloads/"))

	token := strings.TrimPrefix(link.URL, "/api/v1/downloads/")
	dl, err := f.svc.DownloadByToken(context.Background(), token)
	require.NoError(t, err)
	defer dl.Close()
	body, _ := io.ReadAll(dl.Body)
	assert.Equal(t, "a,b\n", string(body))
	assert.Equal(t, "d-sales", f.upstream.downloadedUID)

	_, err = f.svc.DownloadByToken(context.Background(), token+"x")
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidDownloadLink))
}

func TestDatasetServiceExportCSV(t *testing.T) {
	f := newDatasetFixture(salesUpstream())

	out, err := f.svc.Export(context.Background(), export.FormatCSV)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "UID,Name,Type,Size,Users,Requests,Last 12 weeks,Created,Last updated", lines[0])
	assert.Equal(t, "d-sales,sales.csv,csv,2 KB,2,3,0 0 0 0 0 0 0 0 0 0 1 1,2024-05-01,2024-05-20", lines[1])
}

func TestDatasetServiceHandleRefresh(t *testing.T) {
	f := newDatasetFixture(salesUpstream())

	require.NoError(t, f.svc.HandleRefresh(context.Background(), workerTask(RefreshTaskKind)))
	_, cached := f.cache.store[datasetsCacheKey]
	assert.True(t, cached)

	assert.Error(t, f.svc.HandleRefresh(context.Background(), workerTask("other")))
}

func TestDatasetServiceRefreshNotScheduledWithoutCache(t *testing.T) {
	upstream := &fakeCoop{}
	queue := &queueStub{}
	svc := NewDatasetService(DatasetServiceParams{Upstream: upstream, Refresh: queue})

	_, err := svc.Delete(context.Background(), "sales.csv")
	require.NoError(t, err)
	assert.Empty(t, queue.tasks)
}

func TestDatasetServiceTransportFailure(t *testing.T) {
	upstream := salesUpstream()
	upstream.datasetsErr = &coop.Error{Op: "list_datasets", Kind: coop.KindTransport, Err: errors.New("connection refused")}
	f := newDatasetFixture(upstream)

	_, _, err := f.svc.List(context.Background())
	assert.True(t, appErrors.Is(err, appErrors.ErrUpstreamUnavailable))
}
