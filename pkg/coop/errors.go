package coop

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
)

// Kind classifies a failed upstream call.
type Kind string

const (
	KindTransport Kind = "transport"
	KindAPI       Kind = "api"
	KindCanceled  Kind = "canceled"
	KindTimeout   Kind = "timeout"
	// KindDecode means a 2xx response whose body could not be parsed.
	KindDecode Kind = "decode"
)

// Error is returned by every Client method that fails.
type Error struct {
	Op         string
	Kind       Kind
	StatusCode int
	// Detail is the upstream `detail` message for KindAPI errors, or the
	// HTTP status text when the body carried none.
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindAPI:
		return fmt.Sprintf("coop %s: %d %s", e.Op, e.StatusCode, e.Detail)
	default:
		if e.Err != nil {
			return fmt.Sprintf("coop %s: %s: %v", e.Op, e.Kind, e.Err)
		}
		return fmt.Sprintf("coop %s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a coop *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// apiError mirrors the FastAPI error body. detail is either a string or a
// list of validation issues.
type apiError struct {
	Detail json.RawMessage `json:"detail"`
}

type validationIssue struct {
	Loc []interface{} `json:"loc"`
	Msg string        `json:"msg"`
}

func (a *apiError) message() string {
	if a == nil || len(a.Detail) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(a.Detail, &text); err == nil {
		return text
	}
	var issues []validationIssue
	if err := json.Unmarshal(a.Detail, &issues); err == nil && len(issues) > 0 {
		msgs := make([]string, 0, len(issues))
		for _, issue := range issues {
			field := ""
			if n := len(issue.Loc); n > 0 {
				field = fmt.Sprint(issue.Loc[n-1])
			}
			if field != "" {
				msgs = append(msgs, field+": "+issue.Msg)
			} else {
				msgs = append(msgs, issue.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return strings.Trim(string(a.Detail), `"`)
}

func detailFromBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var parsed apiError
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	return parsed.message()
}

func transportError(ctx context.Context, op string, err error) *Error {
	kind := KindTransport
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		kind = KindCanceled
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		kind = KindTimeout
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			kind = KindTimeout
		}
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

func statusError(op string, status int, body []byte) *Error {
	detail := detailFromBody(body)
	if detail == "" {
		detail = http.StatusText(status)
	}
	return &Error{Op: op, Kind: KindAPI, StatusCode: status, Detail: detail}
}
