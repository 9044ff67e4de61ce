package creative

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/berthelol/reference-images/internal/assets"
	"github.com/berthelol/reference-images/internal/descriptor"
	"github.com/berthelol/reference-images/internal/filehandler"
	"github.com/berthelol/reference-images/internal/jsonutil"
)

// ExtractTemperature is the sampling temperature of extraction calls.
const ExtractTemperature = 0.2

// Extractor turns a template image into a reference descriptor.
type Extractor struct {
	Model StructuredModel
	Retry RetryPolicy
}

// NewExtractor returns an Extractor with the default retry budget.
func NewExtractor(model StructuredModel) *Extractor {
	return &Extractor{Model: model, Retry: ExtractRetry}
}

// Extract asks the model for a descriptor of img. Output that fails schema
// validation is retried within the budget; once the budget is spent, or the
// model fails outright, the deterministic fallback descriptor is returned.
// Only context cancellation is reported as an error.
func (e *Extractor) Extract(ctx context.Context, img filehandler.Image, targetAspectRatio string) (*descriptor.Descriptor, error) {
	if targetAspectRatio == "" {
		targetAspectRatio = descriptor.DefaultAspectRatio
	}
	start := time.Now()

	req := StructuredRequest{
		Name:   "extract",
		System: assets.ExtractSystemPrompt,
		Parts: []Part{
			TextPart(assets.RenderExtractPrompt(targetAspectRatio)),
			ImagePart(img),
		},
		Temperature: ExtractTemperature,
	}

	var result *descriptor.Descriptor
	attempts, err := e.Retry.run(ctx, func(attempt int) error {
		resp, err := e.Model.GenerateJSON(ctx, req)
		if err != nil {
			return modelErr(err)
		}
		d, err := decodeExtracted(resp.Text, targetAspectRatio)
		if err != nil {
			verr := &SchemaValidationError{Attempt: attempt, Err: err}
			log.Warn().Err(verr).Int("attempt", attempt).Msg("Extracted descriptor rejected")
			return verr
		}
		result = d
		return nil
	})

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var verr *SchemaValidationError
		log.Warn().
			Err(err).
			Int("attempts", attempts).
			Bool("schemaFailure", errors.As(err, &verr)).
			Str("aspectRatio", targetAspectRatio).
			Dur("duration", time.Since(start)).
			Msg("Descriptor extraction failed, using fallback descriptor")
		return descriptor.Fallback(targetAspectRatio), nil
	}

	log.Info().
		Int("attempts", attempts).
		Int("textVariables", len(result.Variables.TextVariables)).
		Int("subjects", len(result.Subjects)).
		Float64("confidence", result.Meta.Confidence).
		Dur("duration", time.Since(start)).
		Msg("Descriptor extracted")
	return result, nil
}

// decodeExtracted parses model text into a descriptor, pins the aspect ratio
// to the requested target, applies defaults and validates.
func decodeExtracted(text, targetAspectRatio string) (*descriptor.Descriptor, error) {
	d, err := jsonutil.ParseJSON[descriptor.Descriptor](text)
	if err != nil {
		return nil, err
	}
	d.Meta.AspectRatio = targetAspectRatio
	d.ApplyDefaults()
	if err := descriptor.Validate(&d); err != nil {
		return nil, err
	}
	return &d, nil
}
