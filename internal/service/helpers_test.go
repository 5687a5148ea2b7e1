package service

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/coop-dashboard-api/pkg/coop"
	appErrors "github.com/noah-isme/coop-dashboard-api/pkg/errors"
	"github.com/noah-isme/coop-dashboard-api/pkg/worker"
)

type stubCacheRepo struct {
	mu          sync.Mutex
	store       map[string][]byte
	invalidated []string
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = append(s.invalidated, pattern)
	s.store = nil
	return nil
}

type queueStub struct {
	tasks []worker.Task
}

func (q *queueStub) Enqueue(task worker.Task) (bool, error) {
	q.tasks = append(q.tasks, task)
	return true, nil
}

// fakeCoop is an in-memory stand-in for the cooperative API client.
type fakeCoop struct {
	mu sync.Mutex

	datasets    []coop.Dataset
	jobs        []coop.Job
	datasites   []string
	datasetsErr error
	jobsErr     error
	err         error

	listDatasetCalls int
	listJobCalls     int
	uploads          []coop.DatasetUpload
	uploadBodies     []string
	updatedName      string
	deletedName      string
	shopify          *coop.ShopifyImport
	syncedUID        string
	reviews          map[string]coop.ReviewDecision
	openedUID        string
	downloadedUID    string
	savedDatasites   []string
}

func (f *fakeCoop) ListDatasets(ctx context.Context) ([]coop.Dataset, error) {
	f.mu.Lock()
	f.listDatasetCalls++
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, &coop.Error{Op: "list_datasets", Kind: coop.KindCanceled, Err: err}
	}
	return f.datasets, f.datasetsErr
}

func (f *fakeCoop) ListJobs(ctx context.Context) ([]coop.Job, error) {
	f.mu.Lock()
	f.listJobCalls++
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, &coop.Error{Op: "list_jobs", Kind: coop.KindCanceled, Err: err}
	}
	return f.jobs, f.jobsErr
}

func (f *fakeCoop) record(upload coop.DatasetUpload) {
	f.uploads = append(f.uploads, upload)
	if upload.File != nil {
		body, _ := io.ReadAll(upload.File)
		f.uploadBodies = append(f.uploadBodies, string(body))
	}
}

func (f *fakeCoop) CreateDataset(_ context.Context, upload coop.DatasetUpload) (*coop.Dataset, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.record(upload)
	return &coop.Dataset{UID: "d-new", Name: upload.Name, Summary: upload.Description, Private: "syft://o@coop.org/private/" + upload.Filename}, nil
}

func (f *fakeCoop) UpdateDataset(_ context.Context, name string, upload coop.DatasetUpload) (*coop.Dataset, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.updatedName = name
	f.record(upload)
	return &coop.Dataset{UID: "d-upd", Name: upload.Name, Summary: upload.Description}, nil
}

func (f *fakeCoop) DeleteDataset(_ context.Context, name string) (*coop.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deletedName = name
	return &coop.Message{Message: "Dataset deleted"}, nil
}

func (f *fakeCoop) AddFromShopify(_ context.Context, in coop.ShopifyImport) (*coop.Dataset, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.shopify = &in
	return &coop.Dataset{UID: "d-shop", Name: in.Name, Source: &coop.Source{Type: "shopify", StoreURL: in.URL}}, nil
}

func (f *fakeCoop) SyncShopify(_ context.Context, uid string) error {
	if f.err != nil {
		return f.err
	}
	f.syncedUID = uid
	return nil
}

func (f *fakeCoop) DownloadPrivate(_ context.Context, uid string) (*coop.Download, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.downloadedUID = uid
	return &coop.Download{Filename: "sales.csv", ContentType: "text/csv", Size: 4, Body: io.NopCloser(strings.NewReader("a,b\n"))}, nil
}

func (f *fakeCoop) ReviewJob(_ context.Context, uid string, decision coop.ReviewDecision) (*coop.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.reviews == nil {
		f.reviews = make(map[string]coop.ReviewDecision)
	}
	f.reviews[uid] = decision
	return &coop.Message{Message: "Job " + string(decision)}, nil
}

func (f *fakeCoop) OpenJobCode(_ context.Context, uid string) (*coop.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.openedUID = uid
	return &coop.Message{Message: "opened"}, nil
}

func (f *fakeCoop) AutoApproved(context.Context) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.datasites, nil
}

func (f *fakeCoop) SetAutoApproved(_ context.Context, datasites []string) error {
	if f.err != nil {
		return f.err
	}
	f.savedDatasites = datasites
	return nil
}

func mustTimestamp(raw string) coop.Timestamp {
	t, err := coop.ParseTimestamp(raw)
	if err != nil {
		panic(err)
	}
	return coop.Timestamp{Time: t}
}

func workerTask(kind string) worker.Task {
	return worker.Task{Key: datasetsCacheKey, Kind: kind}
}
