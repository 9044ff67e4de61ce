package gemini

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"google.golang.org/genai"

	"github.com/berthelol/reference-images/internal/creative"
)

func TestWrapSDKError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  int
		retryable bool
	}{
		{"rate limited", genai.APIError{Code: 429, Message: "quota", Status: "RESOURCE_EXHAUSTED"}, 429, true},
		{"server error wrapped", fmt.Errorf("call: %w", genai.APIError{Code: 503}), 503, true},
		{"bad request", &genai.APIError{Code: 400, Message: "bad"}, 400, false},
		{"unknown", errors.New("boom"), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrapSDKError("m", tt.err)
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %T", err)
			}
			if apiErr.StatusCode != tt.wantCode {
				t.Errorf("code = %d, want %d", apiErr.StatusCode, tt.wantCode)
			}
			if IsRetryable(err) != tt.retryable || creative.IsTransient(err) != tt.retryable {
				t.Errorf("retryable = %v, want %v", IsRetryable(err), tt.retryable)
			}
		})
	}
}

func TestWrapSDKError_KeepsContextErrors(t *testing.T) {
	if err := wrapSDKError("m", context.Canceled); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
	if creative.IsTransient(wrapSDKError("m", context.DeadlineExceeded)) {
		t.Error("deadline must not be transient")
	}
}

func TestModelNames(t *testing.T) {
	t.Setenv("REFIMG_TEXT_MODEL", "")
	t.Setenv("REFIMG_IMAGE_MODEL", "")
	if TextModelName() != DefaultTextModel || ImageModelName() != DefaultImageModel {
		t.Errorf("defaults = %s, %s", TextModelName(), ImageModelName())
	}
	t.Setenv("REFIMG_TEXT_MODEL", ModelGemini25Pro)
	t.Setenv("REFIMG_IMAGE_MODEL", ModelGemini3ProImage)
	if TextModelName() != ModelGemini25Pro || ImageModelName() != ModelGemini3ProImage {
		t.Errorf("overrides = %s, %s", TextModelName(), ImageModelName())
	}
}

type countingModel struct{ calls int }

func (c *countingModel) GenerateJSON(ctx context.Context, req creative.StructuredRequest) (*creative.StructuredResponse, error) {
	c.calls++
	return &creative.StructuredResponse{Text: "{}"}, nil
}

func TestLimited(t *testing.T) {
	inner := &countingModel{}
	model := NewLimited(1000, 1).Structured(inner)
	for i := 0; i < 3; i++ {
		if _, err := model.GenerateJSON(context.Background(), creative.StructuredRequest{}); err != nil {
			t.Fatal(err)
		}
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d", inner.calls)
	}

	slow := NewLimited(0.001, 1).Structured(inner)
	_, _ = slow.GenerateJSON(context.Background(), creative.StructuredRequest{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := slow.GenerateJSON(ctx, creative.StructuredRequest{}); err == nil {
		t.Error("second call should wait past the deadline and fail")
	}
}
