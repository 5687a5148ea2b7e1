package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coop-dashboard-api/internal/dto"
	"github.com/noah-isme/coop-dashboard-api/pkg/coop"
	appErrors "github.com/noah-isme/coop-dashboard-api/pkg/errors"
)

func TestNormalizeDatasites(t *testing.T) {
	out, err := NormalizeDatasites([]string{" Alice@Uni.EDU ", "openmined.org", "@OpenMined.org", "", "alice@uni.edu", "sub.domain.co.uk"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice@uni.edu", "openmined.org", "sub.domain.co.uk"}, out)
}

func TestNormalizeDatasitesReportsEveryInvalidEntry(t *testing.T) {
	_, err := NormalizeDatasites([]string{"ok.org", "not an email", "a@b", "@", "bob@@x.org"})
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `entry 2 ("not an email")`)
	assert.Contains(t, msg, `entry 3 ("a@b")`)
	assert.Contains(t, msg, `entry 4 ("@")`)
	assert.Contains(t, msg, `entry 5 ("bob@@x.org")`)
	assert.NotContains(t, msg, "ok.org")
}

func TestNormalizeDatasitesEmpty(t *testing.T) {
	out, err := NormalizeDatasites(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NotNil(t, out)
}

func TestAutoApprovalServiceSet(t *testing.T) {
	upstream := &fakeCoop{}
	svc := NewAutoApprovalService(upstream, nil)

	resp, err := svc.Set(context.Background(), dto.AutoApprovalRequest{Datasites: []string{"B@x.org", "b@x.org"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"b@x.org"}, resp.Datasites)
	assert.Equal(t, []string{"b@x.org"}, upstream.savedDatasites)
}

func TestAutoApprovalServiceSetInvalidSkipsUpstream(t *testing.T) {
	upstream := &fakeCoop{}
	svc := NewAutoApprovalService(upstream, nil)

	_, err := svc.Set(context.Background(), dto.AutoApprovalRequest{Datasites: []string{"nope"}})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Nil(t, upstream.savedDatasites)
}

func TestAutoApprovalServiceGet(t *testing.T) {
	upstream := &fakeCoop{datasites: []string{"openmined.org"}}
	svc := NewAutoApprovalService(upstream, nil)

	resp, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"openmined.org"}, resp.Datasites)

	upstream.err = &coop.Error{Op: "get_auto_approved", Kind: coop.KindTimeout, Err: errors.New("deadline")}
	_, err = svc.Get(context.Background())
	assert.Equal(t, http.StatusGatewayTimeout, appErrors.FromError(err).Status)
}
