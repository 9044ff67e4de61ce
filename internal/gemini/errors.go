package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// APIError is a failed Gemini call. It implements creative.TransientError so
// the step retry loops can tell rate limits and server errors from bad requests.
type APIError struct {
	Model      string
	StatusCode int
	Status     string
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("gemini %s: status %d", e.Model, e.StatusCode)
	if e.Status != "" {
		msg += " " + e.Status
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.StatusCode == 0 && e.Err != nil {
		msg = fmt.Sprintf("gemini %s: %v", e.Model, e.Err)
	}
	return msg
}

func (e *APIError) Unwrap() error { return e.Err }

// Transient reports whether retrying the call can succeed.
func (e *APIError) Transient() bool {
	if e.StatusCode == 0 {
		return isNetworkError(e.Err)
	}
	return retryableStatus(e.StatusCode)
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func isNetworkError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "unexpected eof")
}

// wrapSDKError converts an SDK error into *APIError, keeping the status code
// of genai.APIError when present.
func wrapSDKError(model string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	out := &APIError{Model: model, Err: err}
	var ptr *genai.APIError
	var val genai.APIError
	switch {
	case errors.As(err, &ptr):
		out.StatusCode, out.Status, out.Message = ptr.Code, ptr.Status, ptr.Message
	case errors.As(err, &val):
		out.StatusCode, out.Status, out.Message = val.Code, val.Status, val.Message
	}
	return out
}

// IsRetryable reports whether err, returned by this package, is worth retrying.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	return isNetworkError(err)
}
