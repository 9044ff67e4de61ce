package creative

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/berthelol/reference-images/internal/assets"
	"github.com/berthelol/reference-images/internal/filehandler"
	"github.com/berthelol/reference-images/internal/jsonutil"
)

// Compositor renders ad images with an image-generation model.
type Compositor struct {
	Model ImageModel
	Retry RetryPolicy
}

// NewCompositor returns a Compositor with the default retry budget.
func NewCompositor(model ImageModel) *Compositor {
	return &Compositor{Model: model, Retry: CompositeRetry}
}

// Composite renders instruction against images, in order. A safety refusal
// is returned as *ContentFilterError; a response without an image is a
// *GenerationError wrapping ErrEmptyResult. Neither is retried.
func (c *Compositor) Composite(ctx context.Context, instruction string, images ...filehandler.Image) (filehandler.Image, error) {
	return c.generate(ctx, "composite", instruction, images)
}

// CleanProduct removes overlaid text, logos and watermarks from a product
// photo, leaving the product on a plain background.
func (c *Compositor) CleanProduct(ctx context.Context, productDescription string, images ...filehandler.Image) (filehandler.Image, error) {
	return c.generate(ctx, "clean", assets.RenderCleanProductPrompt(productDescription), images)
}

func (c *Compositor) generate(ctx context.Context, step, instruction string, images []filehandler.Image) (filehandler.Image, error) {
	if len(images) == 0 {
		return filehandler.Image{}, &GenerationError{Step: step, Err: errors.New("no input images")}
	}

	req := ImageRequest{Name: step, Instruction: instruction, Images: images}
	start := time.Now()

	var out filehandler.Image
	attempts, err := c.Retry.run(ctx, func(attempt int) error {
		resp, err := c.Model.GenerateImage(ctx, req)
		if err != nil {
			if IsTransient(err) {
				log.Warn().Err(err).Str("step", step).Int("attempt", attempt).Msg("Image generation failed, retrying")
			}
			return modelErr(err)
		}
		if resp.Filtered {
			return permanent(&ContentFilterError{Step: step, Reason: resp.FinishReason, Text: resp.Text})
		}
		if resp.Image.IsZero() {
			empty := ErrEmptyResult
			if resp.Text != "" {
				empty = fmt.Errorf("%w (text: %s)", ErrEmptyResult, jsonutil.Truncate(resp.Text, 200))
			}
			return permanent(empty)
		}
		out = resp.Image
		return nil
	})
	if err != nil {
		var cf *ContentFilterError
		if errors.As(err, &cf) {
			log.Warn().Str("step", step).Str("reason", cf.Reason).Msg("Image generation blocked by content filter")
			return filehandler.Image{}, cf
		}
		return filehandler.Image{}, &GenerationError{Step: step, Attempts: attempts, Err: err}
	}

	log.Info().
		Str("step", step).
		Int("inputImages", len(images)).
		Int("outputBytes", len(out.Data)).
		Str("mimeType", out.MIMEType).
		Int("attempts", attempts).
		Dur("duration", time.Since(start)).
		Msg("Image generated")
	return out, nil
}
