package gemini

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/berthelol/reference-images/internal/creative"
)

// Limited wraps model adapters so every call first waits on a shared limiter.
type Limited struct {
	limiter *rate.Limiter
}

// NewLimited allows rps calls per second with a burst of burst. rps <= 0
// disables limiting.
func NewLimited(rps float64, burst int) *Limited {
	if rps <= 0 {
		return &Limited{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst < 1 {
		burst = 1
	}
	return &Limited{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Structured returns model gated by the shared limiter.
func (l *Limited) Structured(model creative.StructuredModel) creative.StructuredModel {
	return &limitedStructured{next: model, limiter: l.limiter}
}

// Image returns model gated by the shared limiter.
func (l *Limited) Image(model creative.ImageModel) creative.ImageModel {
	return &limitedImage{next: model, limiter: l.limiter}
}

type limitedStructured struct {
	next    creative.StructuredModel
	limiter *rate.Limiter
}

func (s *limitedStructured) GenerateJSON(ctx context.Context, req creative.StructuredRequest) (*creative.StructuredResponse, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return s.next.GenerateJSON(ctx, req)
}

type limitedImage struct {
	next    creative.ImageModel
	limiter *rate.Limiter
}

func (s *limitedImage) GenerateImage(ctx context.Context, req creative.ImageRequest) (*creative.ImageResponse, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return s.next.GenerateImage(ctx, req)
}
