package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coop-dashboard-api/internal/dto"
)

func TestCompareFlagsMissingUnexpectedAndDrift(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	expected := []dto.DatasetView{
		{UID: "d1", Name: "sales.csv", RequestsCount: 3, CreatedAt: created},
		{UID: "d2", Name: "crops.csv"},
	}
	served := []dto.DatasetView{
		{UID: "d1", Name: "sales.csv", RequestsCount: 2, CreatedAt: created.Add(200 * time.Millisecond)},
		{UID: "d3", Name: "stale.csv"},
	}

	results := compare(expected, served)
	require.Len(t, results, 3)

	assert.Equal(t, "d1", results[0].Name)
	assert.Contains(t, results[0].Diff, "RequestsCount")
	assert.NotContains(t, results[0].Diff, "CreatedAt")
	assert.True(t, results[1].Missing)
	assert.True(t, results[2].Unexpected)
}

func TestCompareIdentical(t *testing.T) {
	views := []dto.DatasetView{{UID: "d1", ActivityData: make([]int, 12)}}
	results := compare(views, views)
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Diff)
}
