// Package coop is a REST client for the data cooperative API that owns
// datasets, access-request jobs and the trusted datasite allowlist.
package coop

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/noah-isme/coop-dashboard-api/pkg/middleware/requestid"
)

const apiPrefix = "/api/v1"

// Observer receives one observation per upstream call. status is 0 when no
// response was received.
type Observer interface {
	ObserveUpstream(operation string, status int, duration time.Duration)
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	Token      string
	Logger     *zap.Logger
	Observer   Observer
	HTTPClient *http.Client
}

// Client talks to the coop API. It is safe for concurrent use.
type Client struct {
	rest     *resty.Client
	logger   *zap.Logger
	observer Observer
}

// New builds a Client for the API rooted at opts.BaseURL.
func New(opts Options) *Client {
	var rc *resty.Client
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(strings.TrimRight(opts.BaseURL, "/") + apiPrefix)
	if opts.Timeout > 0 {
		rc.SetTimeout(opts.Timeout)
	}
	rc.SetHeader("Accept", "application/json")
	if opts.Token != "" {
		rc.SetAuthToken(opts.Token)
	}
	rc.JSONMarshal = json.Marshal
	rc.JSONUnmarshal = json.Unmarshal

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{rest: rc, logger: logger, observer: opts.Observer}
}

func (c *Client) request(ctx context.Context) *resty.Request {
	req := c.rest.R().SetContext(ctx)
	if id := requestid.FromContext(ctx); id != "" {
		req.SetHeader(requestid.HeaderKey, id)
	}
	return req
}

// execute sends req and decodes a successful JSON body into out when out is
// non-nil.
func (c *Client) execute(ctx context.Context, op string, req *resty.Request, method, path string, out interface{}) error {
	start := time.Now()
	resp, err := req.Execute(method, path)
	status := 0
	if resp != nil {
		status = resp.StatusCode()
	}
	c.observe(op, status, time.Since(start))

	if err != nil {
		cerr := transportError(ctx, op, err)
		c.logger.Warn("coop request failed",
			zap.String("op", op),
			zap.String("kind", string(cerr.Kind)),
			zap.Error(err))
		return cerr
	}
	if resp.IsError() {
		cerr := statusError(op, status, resp.Body())
		c.logger.Debug("coop request rejected",
			zap.String("op", op),
			zap.Int("status", status),
			zap.String("detail", cerr.Detail))
		return cerr
	}
	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &Error{Op: op, Kind: KindDecode, StatusCode: status, Err: err}
	}
	return nil
}

func (c *Client) observe(op string, status int, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveUpstream(op, status, d)
	}
}
