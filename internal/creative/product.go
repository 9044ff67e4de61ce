package creative

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/berthelol/reference-images/internal/assets"
	"github.com/berthelol/reference-images/internal/filehandler"
)

const (
	// DescribeTemperature is the sampling temperature of description calls.
	DescribeTemperature = 0.3
	// MaxDescriptionWords caps generated product descriptions.
	MaxDescriptionWords = 50
)

// Describer writes a short product description from product photos.
type Describer struct {
	Model StructuredModel
	Retry RetryPolicy
}

// NewDescriber returns a Describer with the default retry budget.
func NewDescriber(model StructuredModel) *Describer {
	return &Describer{Model: model, Retry: DescribeRetry}
}

// Describe returns a plain-text description of at most MaxDescriptionWords
// words.
func (d *Describer) Describe(ctx context.Context, images ...filehandler.Image) (string, error) {
	if len(images) == 0 {
		return "", &GenerationError{Step: "describe", Err: errors.New("no product images")}
	}
	parts := []Part{TextPart("Describe this product briefly:")}
	for _, img := range images {
		parts = append(parts, ImagePart(img))
	}
	req := StructuredRequest{
		Name:        "describe",
		System:      assets.DescribeSystemPrompt,
		Parts:       parts,
		Temperature: DescribeTemperature,
		PlainText:   true,
	}

	var desc string
	attempts, err := d.Retry.run(ctx, func(attempt int) error {
		resp, err := d.Model.GenerateJSON(ctx, req)
		if err != nil {
			return modelErr(err)
		}
		desc = capWords(strings.TrimSpace(resp.Text), MaxDescriptionWords)
		if desc == "" {
			return errors.New("model returned an empty description")
		}
		return nil
	})
	if err != nil {
		return "", &GenerationError{Step: "describe", Attempts: attempts, Err: err}
	}
	log.Debug().Str("description", desc).Msg("Product described")
	return desc, nil
}

func capWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ")
}
