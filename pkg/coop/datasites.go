package coop

import (
	"context"
	"net/http"
)

// AutoApproved returns the trusted datasites whose jobs are approved
// without review.
func (c *Client) AutoApproved(ctx context.Context) ([]string, error) {
	var out datasiteList
	if err := c.execute(ctx, "get_auto_approved", c.request(ctx), http.MethodGet, "/auto-approved-datasites", &out); err != nil {
		return nil, err
	}
	if out.Datasites == nil {
		return []string{}, nil
	}
	return out.Datasites, nil
}

// SetAutoApproved replaces the trusted datasite list.
func (c *Client) SetAutoApproved(ctx context.Context, datasites []string) error {
	if datasites == nil {
		datasites = []string{}
	}
	req := c.request(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(datasiteList{Datasites: datasites})
	return c.execute(ctx, "set_auto_approved", req, http.MethodPost, "/auto-approved-datasites", nil)
}
