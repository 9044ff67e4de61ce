// Package pipeline runs the fixed generation sequences that turn a stored
// reference template and product images into a new ad image.
//
//	method-1: fill(FULL) -> composite
//	method-2: fill(PRODUCT_ONLY) -> composite -> fill(TEXT_AND_COLOR_ONLY, step-1 image) -> composite
//	method-3: composite(fixed placement) -> fill(FULL, JSON only) -> diff -> composite(instructions)
//
// Steps run strictly in order. The first failing step aborts the run with a
// *PipelineError; there are no partial results and no cross-step retries.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/berthelol/reference-images/internal/creative"
	"github.com/berthelol/reference-images/internal/descriptor"
	"github.com/berthelol/reference-images/internal/filehandler"
	"github.com/berthelol/reference-images/internal/jobs"
	"github.com/berthelol/reference-images/internal/metrics"
	"github.com/berthelol/reference-images/internal/store"
)

// Pipeline names, used in errors, logs and metric dimensions.
const (
	Method1 = "method-1"
	Method2 = "method-2"
	Method3 = "method-3"
)

// Fill temperatures per pipeline step.
const (
	method1FillTemperature      = 0.3
	method2Step1FillTemperature = 0.2
	method2Step2FillTemperature = 0.4
	method3FillTemperature      = 0.4
)

// Runner holds the collaborators shared by every run. It is safe for
// concurrent use: runs share no mutable state.
type Runner struct {
	Store      store.TemplateStore
	Filler     *creative.Filler
	Differ     *creative.Differ
	Compositor *creative.Compositor
	Describer  *creative.Describer
}

// NewRunner wires the steps to one text model and one image model.
func NewRunner(templates store.TemplateStore, text creative.StructuredModel, image creative.ImageModel) *Runner {
	return &Runner{
		Store:      templates,
		Filler:     creative.NewFiller(text),
		Differ:     creative.NewDiffer(text),
		Compositor: creative.NewCompositor(image),
		Describer:  creative.NewDescriber(text),
	}
}

// Request is one generation request. ProductDescription is derived from the
// product images when empty.
type Request struct {
	TemplateID         string
	ProductImages      []filehandler.Image
	ProductDescription string
}

// StepArtifacts is the output of a fill + composite pair.
type StepArtifacts struct {
	Prompt string
	Filled *descriptor.Descriptor
	Image  filehandler.Image
}

// run is the state of one pipeline execution.
type run struct {
	id       string
	pipeline string
	start    time.Time
	logger   zerolog.Logger
}

func newRun(pipeline, templateID string) *run {
	id := jobs.NewRunID()
	return &run{
		id:       id,
		pipeline: pipeline,
		start:    time.Now(),
		logger:   log.With().Str("runId", id).Str("pipeline", pipeline).Str("templateId", templateID).Logger(),
	}
}

// step runs fn as the named step: it times and logs it, emits the step
// latency metric and wraps a failure in a *PipelineError.
func step[T any](ctx context.Context, r *run, name string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	r.logger.Debug().Str("step", name).Msg("Step started")

	out, err := fn(ctx)
	elapsed := time.Since(start)

	metrics.New(metrics.Namespace).
		Dimension("Pipeline", r.pipeline).
		Dimension("Step", name).
		Duration("StepLatencyMs", elapsed).
		Property("runId", r.id).
		Property("success", err == nil).
		Flush()

	if err != nil {
		r.logger.Error().Err(err).Str("step", name).Dur("duration", elapsed).Msg("Step failed")
		var zero T
		return zero, &PipelineError{Pipeline: r.pipeline, Step: name, Err: err}
	}
	r.logger.Info().Str("step", name).Dur("duration", elapsed).Msg("Step completed")
	return out, nil
}

// finish logs the outcome of the run and emits the run counters.
func (r *run) finish(err error) {
	elapsed := time.Since(r.start)
	m := metrics.New(metrics.Namespace).
		Dimension("Pipeline", r.pipeline).
		Duration("PipelineLatencyMs", elapsed).
		Property("runId", r.id)
	if err != nil {
		m.Count("PipelineFailures")
		var cf *creative.ContentFilterError
		if errors.As(err, &cf) {
			m.Count("PipelineContentFiltered")
		}
	} else {
		m.Count("PipelineSuccesses")
	}
	m.Flush()

	if err != nil {
		r.logger.Warn().Err(err).Dur("duration", elapsed).Msg("Pipeline failed")
		return
	}
	r.logger.Info().Dur("duration", elapsed).Msg("Pipeline completed")
}

// inputs are the stored template data a run starts from.
type inputs struct {
	descriptor  *descriptor.Descriptor
	reference   filehandler.Image
	products    []filehandler.Image
	description string
}

// prepare validates the request and loads the template before any model
// call. An empty product description is derived with the describe step.
func (rn *Runner) prepare(ctx context.Context, r *run, req Request) (*inputs, error) {
	if req.TemplateID == "" {
		return nil, &PipelineError{Pipeline: r.pipeline, Step: "load", Err: fmt.Errorf("%w: template ID is required", ErrInvalidRequest)}
	}
	if len(req.ProductImages) == 0 {
		return nil, &PipelineError{Pipeline: r.pipeline, Step: "load", Err: fmt.Errorf("%w: at least one product image is required", ErrInvalidRequest)}
	}
	for i, img := range req.ProductImages {
		if img.IsZero() {
			return nil, &PipelineError{Pipeline: r.pipeline, Step: "load", Err: fmt.Errorf("%w: product image %d is empty", ErrInvalidRequest, i)}
		}
	}

	in, err := step(ctx, r, "load", func(ctx context.Context) (*inputs, error) {
		d, err := rn.Store.GetReferenceDescriptor(ctx, req.TemplateID)
		if err != nil {
			if store.IsNotFound(err) {
				return nil, &MissingTemplateDataError{TemplateID: req.TemplateID, Missing: "descriptor", Err: err}
			}
			return nil, fmt.Errorf("load descriptor: %w", err)
		}
		ref, err := rn.Store.GetTemplateImage(ctx, req.TemplateID)
		if err != nil {
			if store.IsNotFound(err) {
				return nil, &MissingTemplateDataError{TemplateID: req.TemplateID, Missing: "image", Err: err}
			}
			return nil, fmt.Errorf("load template image: %w", err)
		}
		return &inputs{descriptor: d, reference: ref, products: req.ProductImages}, nil
	})
	if err != nil {
		return nil, err
	}

	in.description = req.ProductDescription
	if in.description == "" {
		in.description, err = step(ctx, r, "describe", func(ctx context.Context) (string, error) {
			return rn.Describer.Describe(ctx, req.ProductImages...)
		})
		if err != nil {
			return nil, err
		}
		r.logger.Info().Str("productDescription", in.description).Msg("Product description derived")
	}
	return in, nil
}

// indentedJSON renders d for inclusion in a compositing instruction.
func indentedJSON(d *descriptor.Descriptor) string {
	data, err := d.MarshalIndent()
	if err != nil {
		return "{}"
	}
	return string(data)
}

// withImages returns a new slice of images followed by extra.
func withImages(images []filehandler.Image, extra ...filehandler.Image) []filehandler.Image {
	out := make([]filehandler.Image, 0, len(images)+len(extra))
	out = append(out, images...)
	return append(out, extra...)
}
