package creative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/berthelol/reference-images/internal/assets"
	"github.com/berthelol/reference-images/internal/descriptor"
	"github.com/berthelol/reference-images/internal/filehandler"
	"github.com/berthelol/reference-images/internal/jsonutil"
)

// FillMode limits which descriptor sections a fill call may change.
type FillMode string

const (
	// FillFull updates product elements, subjects, text and colors in one pass.
	FillFull FillMode = "FULL"
	// FillProductOnly updates subjects and product elements; variables are kept.
	FillProductOnly FillMode = "PRODUCT_ONLY"
	// FillTextAndColorOnly updates text and color variables; everything else is kept.
	FillTextAndColorOnly FillMode = "TEXT_AND_COLOR_ONLY"
)

// Valid reports whether m is a known mode.
func (m FillMode) Valid() bool {
	switch m {
	case FillFull, FillProductOnly, FillTextAndColorOnly:
		return true
	}
	return false
}

// FillRequest is the input of one fill call. ProductImages are attached
// before ReferenceImage.
type FillRequest struct {
	ProductImages      []filehandler.Image
	ReferenceImage     filehandler.Image
	ProductDescription string
	Descriptor         *descriptor.Descriptor
	Mode               FillMode
	Temperature        float32
	// JSONOnly asks only for the filled descriptor; no prompt is required.
	JSONOnly bool
}

// FillResult is the model-authored prompt and the reconciled descriptor.
type FillResult struct {
	Prompt string
	Filled *descriptor.Descriptor
}

// Filler adapts a template descriptor to a new product.
type Filler struct {
	Model StructuredModel
	Retry RetryPolicy
}

// NewFiller returns a Filler with the default retry budget.
func NewFiller(model StructuredModel) *Filler {
	return &Filler{Model: model, Retry: FillRetry}
}

type fillResponse struct {
	Prompt     string          `json:"prompt"`
	FilledJSON json.RawMessage `json:"filled_json"`
}

// Fill asks the model for a prompt and a filled descriptor, then reconciles
// the model's descriptor against req.Descriptor so only the sections the mode
// allows can change. The input descriptor is never modified.
func (f *Filler) Fill(ctx context.Context, req FillRequest) (*FillResult, error) {
	if req.Descriptor == nil {
		return nil, &GenerationError{Step: "fill", Err: errors.New("no reference descriptor")}
	}
	if !req.Mode.Valid() {
		return nil, &GenerationError{Step: "fill", Err: fmt.Errorf("unknown fill mode %q", req.Mode)}
	}

	indented, err := req.Descriptor.MarshalIndent()
	if err != nil {
		return nil, &GenerationError{Step: "fill", Err: fmt.Errorf("failed to encode descriptor: %w", err)}
	}

	parts := []Part{TextPart(assets.RenderFillPrompt(fillTemplate(req), assets.FillPromptData{
		ProductDescription: req.ProductDescription,
		Descriptor:         string(indented),
	}))}
	for _, img := range req.ProductImages {
		parts = append(parts, ImagePart(img))
	}
	if !req.ReferenceImage.IsZero() {
		parts = append(parts, ImagePart(req.ReferenceImage))
	}

	modelReq := StructuredRequest{
		Name:        "fill",
		System:      assets.FillSystemPrompt,
		Parts:       parts,
		Temperature: req.Temperature,
	}

	start := time.Now()
	var result *FillResult
	attempts, err := f.Retry.run(ctx, func(attempt int) error {
		resp, err := f.Model.GenerateJSON(ctx, modelReq)
		if err != nil {
			return modelErr(err)
		}
		out, err := decodeFill(resp.Text, req)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Str("mode", string(req.Mode)).Msg("Fill output rejected")
			return err
		}
		result = out
		return nil
	})
	if err != nil {
		return nil, &GenerationError{Step: "fill", Attempts: attempts, Err: err}
	}

	log.Debug().
		Str("mode", string(req.Mode)).
		Bool("jsonOnly", req.JSONOnly).
		Int("attempts", attempts).
		Int("promptLength", len(result.Prompt)).
		Dur("duration", time.Since(start)).
		Msg("Fill complete")
	return result, nil
}

func fillTemplate(req FillRequest) assets.FillTemplate {
	switch {
	case req.JSONOnly:
		return assets.FillJSONOnly
	case req.Mode == FillProductOnly:
		return assets.FillProductOnly
	case req.Mode == FillTextAndColorOnly:
		return assets.FillTextAndColor
	default:
		return assets.FillFull
	}
}

// decodeFill parses and reconciles one model response. Any error means the
// output is unusable and the attempt should be retried.
func decodeFill(text string, req FillRequest) (*FillResult, error) {
	resp, err := jsonutil.ParseJSON[fillResponse](text)
	if err != nil {
		return nil, err
	}
	prompt := strings.TrimSpace(resp.Prompt)
	if prompt == "" && !req.JSONOnly {
		return nil, errors.New("model returned an empty prompt")
	}
	if len(resp.FilledJSON) == 0 || string(resp.FilledJSON) == "null" {
		return nil, errors.New("model returned no filled_json")
	}
	filled, err := Reconcile(req.Descriptor, resp.FilledJSON, req.Mode)
	if err != nil {
		return nil, err
	}
	return &FillResult{Prompt: prompt, Filled: filled}, nil
}
