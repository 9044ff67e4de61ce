// Package creativetest provides scripted model fakes for tests.
package creativetest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/berthelol/reference-images/internal/creative"
	"github.com/berthelol/reference-images/internal/filehandler"
)

// FastRetry is a retry policy with millisecond waits.
func FastRetry(maxRetries int) creative.RetryPolicy {
	return creative.RetryPolicy{MaxRetries: maxRetries, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

// StructuredReply is one scripted structured response. Err takes precedence.
type StructuredReply struct {
	Text string
	Err  error
}

// Structured replays scripted replies in order and records every request.
// When the script runs out the last reply repeats.
type Structured struct {
	mu       sync.Mutex
	Replies  []StructuredReply
	Requests []creative.StructuredRequest
}

// NewStructured returns a fake that answers with texts in order.
func NewStructured(texts ...string) *Structured {
	s := &Structured{}
	for _, t := range texts {
		s.Replies = append(s.Replies, StructuredReply{Text: t})
	}
	return s
}

func (s *Structured) GenerateJSON(ctx context.Context, req creative.StructuredRequest) (*creative.StructuredResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Requests = append(s.Requests, req)
	if len(s.Replies) == 0 {
		return nil, errors.New("creativetest: no scripted reply")
	}
	i := len(s.Requests) - 1
	if i >= len(s.Replies) {
		i = len(s.Replies) - 1
	}
	r := s.Replies[i]
	if r.Err != nil {
		return nil, r.Err
	}
	return &creative.StructuredResponse{Text: r.Text, Usage: creative.Usage{InputTokens: 100, OutputTokens: 10}}, nil
}

// Calls returns the number of requests seen.
func (s *Structured) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Requests)
}

// ImageReply is one scripted image response. Err takes precedence.
type ImageReply struct {
	Response creative.ImageResponse
	Err      error
}

// Image replays scripted image replies in order and records every request.
type Image struct {
	mu       sync.Mutex
	Replies  []ImageReply
	Requests []creative.ImageRequest
}

// NewImage returns a fake that always succeeds with the given payloads in order.
func NewImage(payloads ...[]byte) *Image {
	m := &Image{}
	for _, p := range payloads {
		m.Replies = append(m.Replies, ImageReply{Response: creative.ImageResponse{
			Image:        filehandler.Image{Data: p, MIMEType: filehandler.MIMEPNG},
			FinishReason: "STOP",
		}})
	}
	return m
}

func (m *Image) GenerateImage(ctx context.Context, req creative.ImageRequest) (*creative.ImageResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	if len(m.Replies) == 0 {
		return nil, errors.New("creativetest: no scripted image")
	}
	i := len(m.Requests) - 1
	if i >= len(m.Replies) {
		i = len(m.Replies) - 1
	}
	r := m.Replies[i]
	if r.Err != nil {
		return nil, r.Err
	}
	resp := r.Response
	resp.Usage = creative.Usage{InputTokens: 500, OutputTokens: 1290}
	return &resp, nil
}

// Calls returns the number of requests seen.
func (m *Image) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// TransientErr is a retryable model error.
type TransientErr struct{ Msg string }

func (e TransientErr) Error() string   { return e.Msg }
func (e TransientErr) Transient() bool { return true }
