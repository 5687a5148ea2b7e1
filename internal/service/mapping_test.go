package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/coop-dashboard-api/internal/models"
	"github.com/noah-isme/coop-dashboard-api/pkg/coop"
)

func TestTimeAgo(t *testing.T) {
	now := serviceNow
	cases := map[time.Duration]string{
		0:                   "0 seconds ago",
		time.Second:         "1 second ago",
		59 * time.Second:    "59 seconds ago",
		time.Minute:         "1 minute ago",
		2 * time.Hour:       "2 hours ago",
		25 * time.Hour:      "1 day ago",
		10 * 24 * time.Hour: "10 days ago",
		-5 * time.Minute:    "0 seconds ago",
	}
	for ago, want := range cases {
		assert.Equal(t, want, TimeAgo(now.Add(-ago), now), ago.String())
	}
}

func TestToDatasetRecord(t *testing.T) {
	errMsg := "boom"
	record := toDatasetRecord(coop.Dataset{
		UID:         "d1",
		Name:        "sales",
		Private:     "syft://o@coop.org/private/sales.parquet",
		PrivateSize: 10,
		MockSize:    2,
		Source:      &coop.Source{Type: "shopify", StoreURL: "https://shop.example"},
	})
	assert.Equal(t, "parquet", record.Extension)
	assert.Equal(t, int64(10), record.SizeBytes)
	assert.Equal(t, &models.DatasetSource{Type: models.DatasetSourceShopify, StoreURL: "https://shop.example"}, record.Source)

	assert.Nil(t, toDatasetRecord(coop.Dataset{Source: &coop.Source{}}).Source)
	assert.Empty(t, toDatasetRecord(coop.Dataset{Private: "syft://o@coop.org/private/README"}).Extension)

	job := toJobRecord(coop.Job{UID: "j1", Name: "Yield study", CreatedBy: "a@x.org", Status: "shared", ErrorMessage: &errMsg, DatasetUID: "d1"})
	assert.Equal(t, "Yield study", job.ProjectName)
	assert.Equal(t, "a@x.org", job.RequesterEmail)
	assert.Equal(t, "boom", job.ErrorMessage)
	assert.Equal(t, "d1", job.DatasetUID)
}
