package coop

import (
	"context"
	"fmt"
	"net/http"
)

// ReviewDecision is the upstream action applied to a pending job.
type ReviewDecision string

const (
	DecisionApprove ReviewDecision = "approve"
	DecisionReject  ReviewDecision = "reject"
)

// ListJobs returns every access-request job known to the datasite.
func (c *Client) ListJobs(ctx context.Context) ([]Job, error) {
	var out jobList
	if err := c.execute(ctx, "list_jobs", c.request(ctx), http.MethodGet, "/jobs", &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// ReviewJob approves or rejects job uid.
func (c *Client) ReviewJob(ctx context.Context, uid string, decision ReviewDecision) (*Message, error) {
	switch decision {
	case DecisionApprove, DecisionReject:
	default:
		return nil, fmt.Errorf("coop review_job: unsupported decision %q", decision)
	}
	var out Message
	req := c.request(ctx).
		SetPathParam("uid", uid).
		SetPathParam("decision", string(decision))
	if err := c.execute(ctx, "review_job", req, http.MethodPost, "/jobs/{uid}/{decision}", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OpenJobCode asks the datasite to open the code directory of job uid.
func (c *Client) OpenJobCode(ctx context.Context, uid string) (*Message, error) {
	var out Message
	req := c.request(ctx).SetPathParam("uid", uid)
	if err := c.execute(ctx, "open_job_code", req, http.MethodGet, "/jobs/open-code/{uid}", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
