package creative

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrEmptyResult is wrapped in a GenerationError when an image call returns
// no image payload.
var ErrEmptyResult = errors.New("model returned no image")

// SchemaValidationError is an extraction attempt whose output did not match
// the descriptor schema. Extract recovers from it and never returns it.
type SchemaValidationError struct {
	Attempt int
	Err     error
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("extraction attempt %d: schema validation failed: %v", e.Attempt, e.Err)
}

func (e *SchemaValidationError) Unwrap() error {
	return e.Err
}

// GenerationError is a step that exhausted its retry budget or received
// output it could not use.
type GenerationError struct {
	Step     string
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("%s failed after %d attempts: %v", e.Step, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// ContentFilterError is a model refusal on safety grounds. It is never retried.
type ContentFilterError struct {
	Step   string
	Reason string // finish or block reason reported by the model
	Text   string // any text the model returned alongside the refusal
}

func (e *ContentFilterError) Error() string {
	msg := fmt.Sprintf("%s blocked by content filter", e.Step)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

// UserMessage is a caller-facing explanation of the refusal.
func (e *ContentFilterError) UserMessage() string {
	return "The image model declined this request on safety grounds. Try a different product image or description."
}

// TransientError is implemented by model adapter errors that know whether a
// retry can succeed (rate limits, 5xx).
type TransientError interface {
	error
	Transient() bool
}

// IsTransient reports whether err is worth retrying. Context errors and
// content-filter refusals never are.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var cf *ContentFilterError
	if errors.As(err, &cf) {
		return false
	}
	if errors.Is(err, ErrEmptyResult) {
		return false
	}
	var te TransientError
	if errors.As(err, &te) {
		return te.Transient()
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
