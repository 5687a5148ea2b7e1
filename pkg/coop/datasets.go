package coop

import (
	"context"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// ListDatasets returns every dataset published by the datasite.
func (c *Client) ListDatasets(ctx context.Context) ([]Dataset, error) {
	var out datasetList
	if err := c.execute(ctx, "list_datasets", c.request(ctx), http.MethodGet, "/datasets", &out); err != nil {
		return nil, err
	}
	return out.Datasets, nil
}

// CreateDataset uploads a new dataset file.
func (c *Client) CreateDataset(ctx context.Context, upload DatasetUpload) (*Dataset, error) {
	var out Dataset
	req := c.multipart(ctx, upload)
	if err := c.execute(ctx, "create_dataset", req, http.MethodPost, "/datasets", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateDataset replaces the metadata, and the file when one is given, of the
// dataset called name.
func (c *Client) UpdateDataset(ctx context.Context, name string, upload DatasetUpload) (*Dataset, error) {
	var out Dataset
	req := c.multipart(ctx, upload).SetPathParam("name", name)
	if err := c.execute(ctx, "update_dataset", req, http.MethodPut, "/datasets/{name}", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteDataset removes the dataset called name.
func (c *Client) DeleteDataset(ctx context.Context, name string) (*Message, error) {
	var out Message
	req := c.request(ctx).SetPathParam("name", name)
	if err := c.execute(ctx, "delete_dataset", req, http.MethodDelete, "/datasets/{name}", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddFromShopify creates a dataset from a Shopify store export.
func (c *Client) AddFromShopify(ctx context.Context, in ShopifyImport) (*Dataset, error) {
	var out Dataset
	req := c.request(ctx).SetHeader("Content-Type", "application/json").SetBody(in)
	if err := c.execute(ctx, "add_from_shopify", req, http.MethodPost, "/datasets/add-from-shopify", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SyncShopify re-imports a Shopify-backed dataset from its store.
func (c *Client) SyncShopify(ctx context.Context, uid string) error {
	req := c.request(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"uid": uid})
	return c.execute(ctx, "sync_shopify", req, http.MethodPost, "/datasets/sync-shopify", nil)
}

// DownloadPrivate opens the private file of dataset uid. The returned stream
// must be closed by the caller.
func (c *Client) DownloadPrivate(ctx context.Context, uid string) (*Download, error) {
	const op = "download_private"
	start := time.Now()
	resp, err := c.request(ctx).
		SetDoNotParseResponse(true).
		SetPathParam("uid", uid).
		SetHeader("Accept", "*/*").
		Get("/datasets/{uid}/private")
	status := 0
	if resp != nil {
		status = resp.StatusCode()
	}
	c.observe(op, status, time.Since(start))
	if err != nil {
		return nil, transportError(ctx, op, err)
	}

	body := resp.RawBody()
	if resp.IsError() {
		defer body.Close() //nolint:errcheck
		raw, _ := io.ReadAll(io.LimitReader(body, 64<<10))
		return nil, statusError(op, status, raw)
	}

	return &Download{
		Filename:    filenameFromDisposition(resp.Header().Get("Content-Disposition"), uid),
		ContentType: resp.Header().Get("Content-Type"),
		Size:        resp.RawResponse.ContentLength,
		Body:        body,
	}, nil
}

func (c *Client) multipart(ctx context.Context, upload DatasetUpload) *resty.Request {
	req := c.request(ctx).SetMultipartFormData(map[string]string{
		"name":        upload.Name,
		"description": upload.Description,
	})
	if upload.File != nil {
		contentType := upload.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		req.SetMultipartField("dataset", upload.Filename, contentType, upload.File)
	}
	return req
}

func filenameFromDisposition(header, fallback string) string {
	if header == "" {
		return fallback
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return fallback
	}
	if name := params["filename"]; name != "" {
		return name
	}
	return fallback
}
