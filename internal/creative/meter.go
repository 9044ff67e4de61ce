package creative

import (
	"context"
	"sync"
)

// UsageMeter sums the token usage of every call made through its wrappers.
// It is safe for concurrent use.
type UsageMeter struct {
	mu    sync.Mutex
	usage Usage
	calls int
}

// Total returns the accumulated usage and call count.
func (m *UsageMeter) Total() (Usage, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage, m.calls
}

func (m *UsageMeter) record(u Usage) {
	m.mu.Lock()
	m.usage = m.usage.Add(u)
	m.calls++
	m.mu.Unlock()
}

// Structured wraps model so its usage is recorded on m.
func (m *UsageMeter) Structured(model StructuredModel) StructuredModel {
	return &meteredStructured{next: model, meter: m}
}

// Image wraps model so its usage is recorded on m.
func (m *UsageMeter) Image(model ImageModel) ImageModel {
	return &meteredImage{next: model, meter: m}
}

type meteredStructured struct {
	next  StructuredModel
	meter *UsageMeter
}

func (s *meteredStructured) GenerateJSON(ctx context.Context, req StructuredRequest) (*StructuredResponse, error) {
	resp, err := s.next.GenerateJSON(ctx, req)
	if resp != nil {
		s.meter.record(resp.Usage)
	}
	return resp, err
}

type meteredImage struct {
	next  ImageModel
	meter *UsageMeter
}

func (s *meteredImage) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResponse, error) {
	resp, err := s.next.GenerateImage(ctx, req)
	if resp != nil {
		s.meter.record(resp.Usage)
	}
	return resp, err
}
