package backend

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

var (
	ErrNotAuthenticated = errors.New("backend: not authenticated")
	ErrForbidden        = errors.New("backend: forbidden")
	ErrNotFound         = errors.New("backend: not found")
	ErrNoSessionCookie  = errors.New("backend: session response carried no session cookie")
)

// APIError is any non-2xx answer from the backend.
type APIError struct {
	Method string
	Path   string
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend %s %s: http %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("backend %s %s: http %d: %s", e.Method, e.Path, e.Status, e.Detail)
}

// Is maps well-known statuses onto the sentinel errors so callers can use errors.Is.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotAuthenticated:
		return e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// FailureKind classifies why a backend call failed.
type FailureKind string

const (
	FailureUnauthenticated FailureKind = "unauthenticated"
	FailureNetwork         FailureKind = "network"
	FailureServer          FailureKind = "server"
)

// Classify tells apart "not authenticated", "network down" and "server error".
func Classify(err error) FailureKind {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNotAuthenticated) {
		return FailureUnauthenticated
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return FailureServer
	}
	return FailureNetwork
}

// parseAPIError builds an APIError from a non-2xx response. The backend answers
// {"detail": "..."}; anything else is kept verbatim.
func parseAPIError(resp *resty.Response) error {
	e := &APIError{Status: resp.StatusCode()}
	if resp.Request != nil {
		e.Method = resp.Request.Method
		if resp.Request.RawRequest != nil && resp.Request.RawRequest.URL != nil {
			e.Path = resp.Request.RawRequest.URL.Path
		} else {
			e.Path = resp.Request.URL
		}
	}
	body := resp.Body()
	var detail struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(body, &detail); err == nil && detail.Detail != nil {
		e.Detail = fmt.Sprint(detail.Detail)
	} else if len(body) > 0 {
		e.Detail = string(body)
	}
	return e
}
