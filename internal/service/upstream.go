package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/noah-isme/coop-dashboard-api/pkg/coop"
	appErrors "github.com/noah-isme/coop-dashboard-api/pkg/errors"
)

// upstreamError translates a coop client failure into an API error. Client
// errors keep the upstream status and detail so the caller sees why the
// cooperative refused the request; server errors become a bad gateway.
func upstreamError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	var coopErr *coop.Error
	if !errors.As(err, &coopErr) {
		if errors.Is(err, context.Canceled) {
			return appErrors.Wrap(err, appErrors.ErrCanceled.Code, appErrors.ErrCanceled.Status, appErrors.ErrCanceled.Message)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return appErrors.Wrap(err, appErrors.ErrUpstreamTimeout.Code, appErrors.ErrUpstreamTimeout.Status, appErrors.ErrUpstreamTimeout.Message)
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, appErrors.ErrInternal.Message)
	}

	switch coopErr.Kind {
	case coop.KindCanceled:
		return appErrors.Wrap(err, appErrors.ErrCanceled.Code, appErrors.ErrCanceled.Status, appErrors.ErrCanceled.Message)
	case coop.KindTimeout:
		return appErrors.Wrap(err, appErrors.ErrUpstreamTimeout.Code, appErrors.ErrUpstreamTimeout.Status, appErrors.ErrUpstreamTimeout.Message)
	case coop.KindTransport:
		return appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, appErrors.ErrUpstreamUnavailable.Message)
	case coop.KindAPI:
		if coopErr.StatusCode >= http.StatusBadRequest && coopErr.StatusCode < http.StatusInternalServerError {
			return appErrors.Wrap(err, upstreamClientCode(coopErr.StatusCode), coopErr.StatusCode, coopErr.Detail)
		}
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, coopErr.Detail)
	default:
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "upstream returned an unreadable response")
	}
}

func upstreamClientCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return appErrors.ErrNotFound.Code
	case http.StatusConflict:
		return appErrors.ErrConflict.Code
	case http.StatusUnauthorized, http.StatusForbidden:
		return appErrors.ErrUnauthorized.Code
	case http.StatusRequestEntityTooLarge:
		return appErrors.ErrPayloadTooLarge.Code
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return appErrors.ErrValidation.Code
	default:
		return appErrors.ErrUpstream.Code
	}
}
