// Package creative implements the model-backed steps of ad generation:
// descriptor extraction, template filling, descriptor diffing, image
// compositing, taxonomy tagging and product description.
//
// Steps depend only on the StructuredModel and ImageModel interfaces defined
// here; internal/gemini provides the production implementations.
package creative

import (
	"context"

	"github.com/berthelol/reference-images/internal/filehandler"
)

// Part is one piece of multimodal user content: text or an image.
type Part struct {
	Text  string
	Image *filehandler.Image
}

// TextPart returns a text part.
func TextPart(s string) Part { return Part{Text: s} }

// ImagePart returns an image part.
func ImagePart(img filehandler.Image) Part { return Part{Image: &img} }

// Usage is the token accounting reported by a model call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Add returns the sum of two usages.
func (u Usage) Add(o Usage) Usage {
	return Usage{InputTokens: u.InputTokens + o.InputTokens, OutputTokens: u.OutputTokens + o.OutputTokens}
}

// StructuredRequest is one call to a vision-language model.
type StructuredRequest struct {
	// Name identifies the call in logs and metrics (e.g. "fill", "diff").
	Name        string
	System      string
	Parts       []Part
	Temperature float32
	// PlainText requests free text instead of a JSON object.
	PlainText bool
}

// StructuredResponse carries the raw model text; the calling step decodes
// and validates it.
type StructuredResponse struct {
	Text  string
	Usage Usage
}

// StructuredModel produces JSON (or plain text) from multimodal content.
type StructuredModel interface {
	GenerateJSON(ctx context.Context, req StructuredRequest) (*StructuredResponse, error)
}

// ImageRequest is one call to an image-generation model. Images are attached
// in order after the instruction.
type ImageRequest struct {
	Name        string
	Instruction string
	Images      []filehandler.Image
}

// ImageResponse is the outcome of an image-generation call. Filtered is set
// when the model declined on safety grounds; Image is empty in that case.
type ImageResponse struct {
	Image        filehandler.Image
	FinishReason string
	Filtered     bool
	Text         string
	Usage        Usage
}

// ImageModel renders an image from an instruction and context images.
type ImageModel interface {
	GenerateImage(ctx context.Context, req ImageRequest) (*ImageResponse, error)
}
