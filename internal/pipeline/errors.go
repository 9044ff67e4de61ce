package pipeline

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest is wrapped by errors about the request itself (no product
// images, no template ID). Nothing was sent to a model.
var ErrInvalidRequest = errors.New("invalid generation request")

// PipelineError identifies the pipeline and step that failed. Unwrap exposes
// the step error, so errors.As still finds *creative.ContentFilterError,
// *creative.GenerationError and *MissingTemplateDataError.
type PipelineError struct {
	Pipeline string
	Step     string
	Err      error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Pipeline, e.Step, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// MissingTemplateDataError is a template without a stored descriptor or
// image. It is returned before any model call.
type MissingTemplateDataError struct {
	TemplateID string
	Missing    string // "descriptor" or "image"
	Err        error
}

func (e *MissingTemplateDataError) Error() string {
	return fmt.Sprintf("template %s has no stored %s", e.TemplateID, e.Missing)
}

func (e *MissingTemplateDataError) Unwrap() error {
	return e.Err
}
