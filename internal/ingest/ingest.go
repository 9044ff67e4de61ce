// Package ingest adds images to the template library: it tags them against
// the taxonomy, extracts their reference descriptor and stores the result.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/berthelol/reference-images/internal/creative"
	"github.com/berthelol/reference-images/internal/descriptor"
	"github.com/berthelol/reference-images/internal/filehandler"
	"github.com/berthelol/reference-images/internal/jobs"
	"github.com/berthelol/reference-images/internal/metrics"
	"github.com/berthelol/reference-images/internal/store"
	"github.com/berthelol/reference-images/internal/taxonomy"
)

// ErrUnsupportedFormat is returned for SVG and GIF templates.
var ErrUnsupportedFormat = errors.New("unsupported template format")

// MaxModelDimension bounds the longest side of the copy sent to the model.
// The stored template keeps the original bytes.
const MaxModelDimension = 1536

// Input is one image to ingest. An empty ID is assigned a new UUID.
type Input struct {
	ID     string
	Image  filehandler.Image
	Source string
}

// Result summarizes one ingested template.
type Result struct {
	TemplateID         string       `json:"templateId"`
	Width              int          `json:"width"`
	Height             int          `json:"height"`
	AspectRatio        string       `json:"aspectRatio"`
	Description        string       `json:"description,omitempty"`
	TagIDs             []string     `json:"tagIds"`
	ProposedTags       int          `json:"proposedTags"`
	FallbackDescriptor bool         `json:"fallbackDescriptor"`
	Cost               CostEstimate `json:"cost"`
	Duration           string       `json:"duration"`
}

// Service ingests templates into a library.
type Service struct {
	Store store.Library
	Model creative.StructuredModel
	// ModelName prices the token usage.
	ModelName string
	// Publisher is optional.
	Publisher Publisher

	TagRetry     creative.RetryPolicy
	ExtractRetry creative.RetryPolicy
}

// New returns a Service with the default retry budgets.
func New(lib store.Library, model creative.StructuredModel, modelName string) *Service {
	return &Service{
		Store:        lib,
		Model:        model,
		ModelName:    modelName,
		TagRetry:     creative.TagRetry,
		ExtractRetry: creative.ExtractRetry,
	}
}

// Ingest tags and describes one image and stores it. Tagging and extraction
// run concurrently. A tagging failure leaves the template untagged; an
// extraction failure yields the fallback descriptor. Only unsupported input,
// storage failures and cancellation fail the call.
func (s *Service) Ingest(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()
	if in.Image.IsZero() {
		return nil, errors.New("ingest: empty image")
	}
	mimeType := filehandler.DetectMIMEType(in.Image.Data)
	if mimeType == filehandler.MIMESVG || mimeType == filehandler.MIMEGIF {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mimeType)
	}
	img := filehandler.Image{Data: in.Image.Data, MIMEType: mimeType}

	id := in.ID
	if id == "" {
		id = jobs.NewTemplateID()
	}
	logger := log.With().Str("templateId", id).Logger()

	width, height, err := img.Dimensions()
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", id, err)
	}
	aspect := descriptor.ClosestAspectRatio(width, height)

	modelImg, err := img.Resize(MaxModelDimension)
	if err != nil {
		logger.Warn().Err(err).Msg("Resize for model input failed, sending original")
		modelImg = img
	}

	tax, err := s.Store.ListTags(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to load taxonomy, skipping tagging")
		tax = taxonomy.Taxonomy{}
	}

	meter := &creative.UsageMeter{}
	model := meter.Structured(s.Model)
	tagger := &creative.Tagger{Model: model, Retry: s.TagRetry}
	extractor := &creative.Extractor{Model: model, Retry: s.ExtractRetry}

	var (
		tags *creative.TagResult
		desc *descriptor.Descriptor
	)
	g, gctx := errgroup.WithContext(ctx)
	if !tax.IsEmpty() {
		g.Go(func() error {
			res, err := tagger.Tag(gctx, modelImg, tax)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				logger.Warn().Err(err).Msg("Tagging failed, template stays untagged")
				return nil
			}
			tags = res
			return nil
		})
	}
	g.Go(func() error {
		d, err := extractor.Extract(gctx, modelImg, aspect)
		if err != nil {
			return err
		}
		desc = d
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ingest %s: %w", id, err)
	}
	if tags == nil {
		tags = &creative.TagResult{}
	}

	tpl := &store.Template{
		ID:          id,
		Source:      in.Source,
		Width:       width,
		Height:      height,
		AspectRatio: aspect,
		Description: tags.Description,
		Descriptor:  desc,
		Image:       img,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.Store.PutTemplate(ctx, tpl); err != nil {
		return nil, fmt.Errorf("ingest %s: %w", id, err)
	}

	if len(tags.TagIDs) > 0 {
		assigned := make([]store.ImageTag, 0, len(tags.TagIDs))
		for _, tagID := range tags.TagIDs {
			assigned = append(assigned, store.ImageTag{TagID: tagID, Confidence: tags.Confidences[tagID]})
		}
		if err := s.Store.PutImageTags(ctx, id, assigned); err != nil {
			logger.Error().Err(err).Msg("Failed to associate tags with template")
		}
	}
	if len(tags.Proposed) > 0 {
		proposed := make([]store.ProposedTag, 0, len(tags.Proposed))
		for _, p := range tags.Proposed {
			proposed = append(proposed, store.ProposedTag(p))
		}
		if err := s.Store.PutProposedTags(ctx, id, proposed); err != nil {
			logger.Error().Err(err).Msg("Failed to store proposed tags")
		}
	}

	usage, calls := meter.Total()
	cost := EstimateCost(s.ModelName, usage, calls)
	res := &Result{
		TemplateID:         id,
		Width:              width,
		Height:             height,
		AspectRatio:        aspect,
		Description:        tags.Description,
		TagIDs:             tags.TagIDs,
		ProposedTags:       len(tags.Proposed),
		FallbackDescriptor: desc.IsFallback(),
		Cost:               cost,
		Duration:           time.Since(start).Round(time.Millisecond).String(),
	}
	if res.TagIDs == nil {
		res.TagIDs = []string{}
	}

	m := metrics.New(metrics.Namespace).
		Dimension("Operation", "ingest").
		Duration("IngestLatencyMs", time.Since(start)).
		Metric("IngestModelCalls", float64(calls), metrics.UnitCount).
		Metric("IngestCostMicroUsd", cost.USD*1e6, metrics.UnitNone).
		Property("templateId", id)
	if res.FallbackDescriptor {
		m.Count("FallbackDescriptors")
	}
	m.Flush()

	if s.Publisher != nil {
		event := TemplateIngested{
			TemplateID:         id,
			Source:             in.Source,
			AspectRatio:        aspect,
			TagIDs:             res.TagIDs,
			ProposedTags:       res.ProposedTags,
			FallbackDescriptor: res.FallbackDescriptor,
			CostUSD:            cost.USD,
			IngestedAt:         tpl.CreatedAt,
		}
		if err := s.Publisher.Publish(ctx, event); err != nil {
			logger.Warn().Err(err).Msg("Failed to publish TemplateIngested")
		}
	}

	logger.Info().
		Str("aspectRatio", aspect).
		Int("tags", len(res.TagIDs)).
		Int("proposedTags", res.ProposedTags).
		Bool("fallbackDescriptor", res.FallbackDescriptor).
		Float64("costUsd", cost.USD).
		Dur("duration", time.Since(start)).
		Msg("Template ingested")
	return res, nil
}
