package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/berthelol/reference-images/internal/creative"
	"github.com/berthelol/reference-images/internal/ingest"
	"github.com/berthelol/reference-images/internal/pipeline"
	"github.com/berthelol/reference-images/internal/store"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
	Step   string `json:"step,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("Failed to write response body")
	}
}

func httpError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorBody{Error: message})
}

// writeError maps a service error to a status code and a caller-safe body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		missing  *pipeline.MissingTemplateDataError
		filtered *creative.ContentFilterError
		perr     *pipeline.PipelineError
		badBody  *requestError
	)
	body := errorBody{}
	if errors.As(err, &perr) {
		body.Step = perr.Step
	}

	status := http.StatusBadGateway
	switch {
	case errors.As(err, &badBody):
		status, body.Error, body.Code = http.StatusBadRequest, badBody.Error(), "invalid_request"
	case errors.As(err, &missing):
		status, body.Error, body.Code = http.StatusNotFound, missing.Error(), "template_not_found"
	case errors.As(err, &filtered):
		status, body.Error, body.Code, body.Reason = http.StatusUnprocessableEntity, filtered.UserMessage(), "content_filtered", filtered.Reason
	case errors.Is(err, pipeline.ErrInvalidRequest):
		status, body.Error, body.Code = http.StatusBadRequest, err.Error(), "invalid_request"
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		status, body.Error, body.Code = http.StatusBadRequest, err.Error(), "unsupported_format"
	case store.IsNotFound(err):
		status, body.Error, body.Code = http.StatusNotFound, "template not found", "template_not_found"
	case errors.Is(err, context.DeadlineExceeded):
		status, body.Error, body.Code = http.StatusGatewayTimeout, "generation timed out", "timeout"
	default:
		body.Error, body.Code = "generation failed", "upstream_error"
	}

	evt := log.Warn()
	if status >= http.StatusInternalServerError {
		evt = log.Error()
	}
	evt.Err(err).Str("path", r.URL.Path).Int("status", status).Msg("Request failed")
	respondJSON(w, status, body)
}

// requestError is a malformed or invalid request body.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		})
		validate = v
	})
	return validate
}

// decode reads a JSON body into dst and validates it.
func decode(w http.ResponseWriter, r *http.Request, maxBytes int64, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &requestError{msg: "request body too large"}
		}
		return &requestError{msg: "invalid JSON body: " + err.Error()}
	}
	if err := validatorInstance().Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field()+" ("+fe.Tag()+")")
			}
			return &requestError{msg: "invalid fields: " + strings.Join(fields, ", ")}
		}
		return &requestError{msg: err.Error()}
	}
	return nil
}
