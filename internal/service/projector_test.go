package service

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coop-dashboard-api/internal/dto"
	"github.com/noah-isme/coop-dashboard-api/internal/models"
	appErrors "github.com/noah-isme/coop-dashboard-api/pkg/errors"
)

var projectorNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func daysAgo(days float64) time.Time {
	return projectorNow.Add(-time.Duration(days * float64(24*time.Hour)))
}

func salesDataset() models.DatasetRecord {
	return models.DatasetRecord{
		UID:         "d-sales",
		Name:        "sales.csv",
		Summary:     "Weekly sales",
		PrivatePath: "syft://owner@coop.org/private/sales.csv",
		SizeBytes:   1536,
		Extension:   "csv",
		CreatedAt:   daysAgo(30),
		UpdatedAt:   daysAgo(2),
	}
}

func activity(pairs map[int]int) []int {
	out := make([]int, ActivityWeeks)
	for idx, count := range pairs {
		out[idx] = count
	}
	return out
}

func TestProjectSalesScenario(t *testing.T) {
	projector := NewDatasetMetricsProjector(nil)
	jobs := []models.JobRecord{
		{UID: "j1", DatasetName: "sales.csv", RequesterEmail: "a@x.org", RequestedAt: daysAgo(3), Status: models.JobStatusPendingCodeReview},
		{UID: "j2", DatasetName: "sales.csv", RequesterEmail: "b@x.org", RequestedAt: daysAgo(10), Status: models.JobStatusApproved},
		{UID: "j3", DatasetName: "sales.csv", RequesterEmail: "a@x.org", RequestedAt: daysAgo(100), Status: models.JobStatusRejected},
	}

	views, err := projector.Project([]models.DatasetRecord{salesDataset()}, jobs, projectorNow)
	require.NoError(t, err)

	want := []dto.DatasetView{{
		UID:           "d-sales",
		Name:          "sales.csv",
		Description:   "Weekly sales",
		SizeBytes:     1536,
		Size:          "1.5 KB",
		Type:          "csv",
		CreatedAt:     daysAgo(30),
		LastUpdated:   daysAgo(2),
		UsersCount:    2,
		RequestsCount: 3,
		ActivityData:  activity(map[int]int{11: 1, 10: 1}),
	}}
	if diff := cmp.Diff(want, views); diff != "" {
		t.Fatalf("projection mismatch (-want +got):\n%s", diff)
	}
}

func TestProjectWindowBoundaries(t *testing.T) {
	projector := NewDatasetMetricsProjector(nil)
	jobs := []models.JobRecord{
		{UID: "oldest-in", DatasetName: "sales.csv", RequesterEmail: "a@x.org", RequestedAt: projectorNow.Add(-12*activityWeek + time.Second), Status: models.JobStatusShared},
		{UID: "edge-out", DatasetName: "sales.csv", RequesterEmail: "a@x.org", RequestedAt: projectorNow.Add(-12 * activityWeek), Status: models.JobStatusShared},
		{UID: "future", DatasetName: "sales.csv", RequesterEmail: "c@x.org", RequestedAt: projectorNow.Add(time.Hour), Status: models.JobStatusRunFinished},
		{UID: "now", DatasetName: "sales.csv", RequesterEmail: "c@x.org", RequestedAt: projectorNow, Status: models.JobStatusRunFailed},
	}

	views, err := projector.Project([]models.DatasetRecord{salesDataset()}, jobs, projectorNow)
	require.NoError(t, err)
	require.Len(t, views, 1)

	assert.Equal(t, activity(map[int]int{0: 1, 11: 1}), views[0].ActivityData)
	assert.Equal(t, 4, views[0].RequestsCount)
	assert.Equal(t, 2, views[0].UsersCount)
}

func TestProjectDefaultsAndOrder(t *testing.T) {
	projector := NewDatasetMetricsProjector(nil)
	datasets := []models.DatasetRecord{
		{UID: "d2", Name: "zeta"},
		salesDataset(),
		{UID: "d1", Name: "alpha", PrivatePath: "syft://owner@coop.org/private/alpha"},
	}

	views, err := projector.Project(datasets, nil, projectorNow)
	require.NoError(t, err)
	require.Len(t, views, 3)

	names := []string{views[0].Name, views[1].Name, views[2].Name}
	assert.Equal(t, []string{"zeta", "sales.csv", "alpha"}, names)
	for _, view := range views {
		assert.Zero(t, view.UsersCount)
		assert.Zero(t, view.RequestsCount)
		assert.Equal(t, make([]int, ActivityWeeks), view.ActivityData)
	}
	assert.Equal(t, "unknown", views[2].Type)
	assert.Equal(t, "0 Bytes", views[0].Size)
}

func TestProjectEmptyDatasets(t *testing.T) {
	projector := NewDatasetMetricsProjector(nil)
	jobs := []models.JobRecord{{UID: "j1", DatasetName: "gone", RequesterEmail: "a@x.org", RequestedAt: projectorNow, Status: models.JobStatusShared}}

	views, err := projector.Project(nil, jobs, projectorNow)
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestProjectUnknownStatusAborts(t *testing.T) {
	projector := NewDatasetMetricsProjector(nil)
	jobs := []models.JobRecord{
		{UID: "j1", DatasetName: "sales.csv", RequesterEmail: "a@x.org", RequestedAt: projectorNow, Status: models.JobStatusShared},
		{UID: "j2", DatasetName: "sales.csv", RequesterEmail: "a@x.org", RequestedAt: projectorNow, Status: "queued"},
	}

	views, err := projector.Project([]models.DatasetRecord{salesDataset()}, jobs, projectorNow)
	require.Error(t, err)
	assert.Nil(t, views)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnknownJobStatus))
	assert.Contains(t, err.Error(), "queued")
}

func TestProjectJoinsOnUIDBeforeName(t *testing.T) {
	projector := NewDatasetMetricsProjector(nil)
	datasets := []models.DatasetRecord{
		salesDataset(),
		{UID: "d-renamed", Name: "sales-2024.csv"},
	}
	jobs := []models.JobRecord{
		// carries the old name but the uid of the renamed dataset
		{UID: "j1", DatasetUID: "d-renamed", DatasetName: "sales.csv", RequesterEmail: "a@x.org", RequestedAt: daysAgo(1), Status: models.JobStatusShared},
		{UID: "j2", DatasetUID: "d-deleted", DatasetName: "sales.csv", RequesterEmail: "b@x.org", RequestedAt: daysAgo(1), Status: models.JobStatusShared},
		{UID: "j3", DatasetName: "sales.csv", RequesterEmail: "c@x.org", RequestedAt: daysAgo(1), Status: models.JobStatusShared},
		{UID: "j4", DatasetName: "nobody", RequesterEmail: "d@x.org", RequestedAt: daysAgo(1), Status: models.JobStatusShared},
	}

	views, err := projector.Project(datasets, jobs, projectorNow)
	require.NoError(t, err)

	assert.Equal(t, 1, views[0].RequestsCount)
	assert.Equal(t, 1, views[1].RequestsCount)
}

func TestProjectIsDeterministic(t *testing.T) {
	projector := NewDatasetMetricsProjector(nil)
	jobs := []models.JobRecord{
		{UID: "j1", DatasetName: "sales.csv", RequesterEmail: "a@x.org", RequestedAt: daysAgo(8), Status: models.JobStatusShared},
		{UID: "j2", DatasetName: "sales.csv", RequesterEmail: "b@x.org", RequestedAt: daysAgo(50), Status: models.JobStatusRejected},
	}
	datasets := []models.DatasetRecord{salesDataset()}

	first, err := projector.Project(datasets, jobs, projectorNow)
	require.NoError(t, err)
	second, err := projector.Project(datasets, jobs, projectorNow)
	require.NoError(t, err)

	assert.Empty(t, cmp.Diff(first, second))
	total := 0
	for _, n := range first[0].ActivityData {
		total += n
	}
	assert.LessOrEqual(t, total, first[0].RequestsCount)
	assert.LessOrEqual(t, first[0].UsersCount, first[0].RequestsCount)
}

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0 Bytes"},
		{512, "512 Bytes"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{1048576, "1 MB"},
		{5 * 1 << 30, "5 GB"},
		{1234567, "1.18 MB"},
		{3 << 40, "3 TB"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatBytes(tc.in), tc.in)
	}
}
