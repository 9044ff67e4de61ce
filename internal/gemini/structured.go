package gemini

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/berthelol/reference-images/internal/creative"
	"github.com/berthelol/reference-images/internal/metrics"
)

// StructuredClient implements creative.StructuredModel with the genai SDK.
type StructuredClient struct {
	client *genai.Client
	model  string
}

// NewStructuredClient returns a client bound to model; empty means TextModelName().
func NewStructuredClient(client *genai.Client, model string) *StructuredClient {
	if model == "" {
		model = TextModelName()
	}
	return &StructuredClient{client: client, model: model}
}

// Model returns the model ID in use.
func (c *StructuredClient) Model() string { return c.model }

var _ creative.StructuredModel = (*StructuredClient)(nil)

// GenerateJSON sends one multimodal request. Unless req.PlainText is set the
// response MIME type is application/json.
func (c *StructuredClient) GenerateJSON(ctx context.Context, req creative.StructuredRequest) (*creative.StructuredResponse, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if !req.PlainText {
		config.ResponseMIMEType = "application/json"
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}

	contents := []*genai.Content{{Role: "user", Parts: toSDKParts(req.Parts)}}

	log.Debug().
		Str("model", c.model).
		Str("call", req.Name).
		Int("parts", len(req.Parts)).
		Msg("Starting Gemini API call")

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	elapsed := time.Since(start)

	m := metrics.New(metrics.Namespace).
		Dimension("Operation", req.Name).
		Metric("GeminiApiLatencyMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Count("GeminiApiCalls").
		Property("model", c.model)
	if resp != nil && resp.UsageMetadata != nil {
		m.Metric("GeminiInputTokens", float64(resp.UsageMetadata.PromptTokenCount), metrics.UnitCount)
		m.Metric("GeminiOutputTokens", float64(resp.UsageMetadata.CandidatesTokenCount), metrics.UnitCount)
	}
	if err != nil {
		m.Count("GeminiApiErrors")
	}
	m.Flush()

	if err != nil {
		log.Error().Err(err).Str("call", req.Name).Dur("duration", elapsed).Msg("Gemini API call failed")
		return nil, wrapSDKError(c.model, err)
	}
	if resp == nil {
		return nil, &APIError{Model: c.model, Err: errors.New("empty response")}
	}

	out := &creative.StructuredResponse{Text: resp.Text()}
	if resp.UsageMetadata != nil {
		out.Usage = creative.Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}

	log.Debug().
		Str("call", req.Name).
		Int("responseLength", len(out.Text)).
		Int("inputTokens", out.Usage.InputTokens).
		Int("outputTokens", out.Usage.OutputTokens).
		Dur("duration", elapsed).
		Msg("Gemini API response received")
	return out, nil
}

func toSDKParts(parts []creative.Part) []*genai.Part {
	out := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.Image != nil {
			out = append(out, &genai.Part{InlineData: &genai.Blob{MIMEType: p.Image.MIMEType, Data: p.Image.Data}})
			continue
		}
		if p.Text != "" {
			out = append(out, &genai.Part{Text: p.Text})
		}
	}
	return out
}
