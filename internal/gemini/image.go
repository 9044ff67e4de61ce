package gemini

// image.go calls Gemini image generation over REST. Image output with
// multiple inline input images maps directly onto generateContent, so the
// request body is built by hand.

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/berthelol/reference-images/internal/creative"
	"github.com/berthelol/reference-images/internal/filehandler"
	"github.com/berthelol/reference-images/internal/jsonutil"
	"github.com/berthelol/reference-images/internal/metrics"
)

// DefaultBaseURL is the Gemini REST API base URL.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// ImageClient implements creative.ImageModel over the Gemini REST API.
type ImageClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewImageClient returns a client bound to model; empty means ImageModelName().
func NewImageClient(apiKey, model string) *ImageClient {
	if model == "" {
		model = ImageModelName()
	}
	return &ImageClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // image generation takes 10-40s
		},
	}
}

// WithBaseURL points the client at another endpoint (tests, proxies).
func (c *ImageClient) WithBaseURL(u string) *ImageClient {
	c.baseURL = strings.TrimRight(u, "/")
	return c
}

// Model returns the model ID in use.
func (c *ImageClient) Model() string { return c.model }

var _ creative.ImageModel = (*ImageClient)(nil)

// --- REST API request/response types ---

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *geminiBlobData `json:"inlineData,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiBlobData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64 encoded
}

type geminiResponse struct {
	Candidates     []geminiCandidate     `json:"candidates"`
	PromptFeedback *geminiPromptFeedback `json:"promptFeedback,omitempty"`
	UsageMetadata  *geminiUsage          `json:"usageMetadata,omitempty"`
	Error          *geminiError          `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiPromptFeedback struct {
	BlockReason string `json:"blockReason"`
}

type geminiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// IsFilterReason reports whether a finish or block reason marks a safety
// refusal.
func IsFilterReason(reason string) bool {
	switch strings.ToUpper(reason) {
	case "SAFETY", "OTHER_SAFETY", "PROHIBITED_CONTENT", "BLOCKLIST", "SPII",
		"IMAGE_SAFETY", "IMAGE_PROHIBITED_CONTENT":
		return true
	}
	return false
}

// GenerateImage sends the instruction followed by every image and returns the
// first image in the response. Safety refusals come back as a response with
// Filtered set, not as an error.
func (c *ImageClient) GenerateImage(ctx context.Context, req creative.ImageRequest) (*creative.ImageResponse, error) {
	start := time.Now()
	totalBytes := 0
	for _, img := range req.Images {
		totalBytes += len(img.Data)
	}
	log.Info().
		Str("model", c.model).
		Str("call", req.Name).
		Int("images", len(req.Images)).
		Int("imageBytes", totalBytes).
		Msg("Sending images to Gemini for generation")

	parts := []geminiPart{{Text: req.Instruction}}
	for _, img := range req.Images {
		parts = append(parts, geminiPart{InlineData: &geminiBlobData{
			MIMEType: img.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(img.Data),
		}})
	}
	body, err := json.Marshal(geminiRequest{
		Contents:         []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: &geminiGenerationConfig{ResponseModalities: []string{"TEXT", "IMAGE"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.record(req.Name, start, nil, "transport")
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &APIError{Model: c.model, Err: fmt.Errorf("HTTP request failed: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Model: c.model, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		c.record(req.Name, start, nil, "status")
		log.Error().
			Int("status", resp.StatusCode).
			Str("body", jsonutil.Truncate(string(respBody), 500)).
			Msg("Gemini image API returned error")
		apiErr := &APIError{Model: c.model, StatusCode: resp.StatusCode, Message: jsonutil.Truncate(string(respBody), 200)}
		var parsed geminiResponse
		if json.Unmarshal(respBody, &parsed) == nil && parsed.Error != nil {
			apiErr.Status, apiErr.Message = parsed.Error.Status, parsed.Error.Message
		}
		return nil, apiErr
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(respBody, &geminiResp); err != nil {
		return nil, &APIError{Model: c.model, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if geminiResp.Error != nil {
		return nil, &APIError{Model: c.model, StatusCode: geminiResp.Error.Code, Status: geminiResp.Error.Status, Message: geminiResp.Error.Message}
	}

	out, err := decodeImageResponse(&geminiResp)
	if err != nil {
		return nil, &APIError{Model: c.model, StatusCode: resp.StatusCode, Err: err}
	}
	c.record(req.Name, start, out, "")

	log.Info().
		Str("call", req.Name).
		Int("outputBytes", len(out.Image.Data)).
		Str("outputMime", out.Image.MIMEType).
		Str("finishReason", out.FinishReason).
		Bool("filtered", out.Filtered).
		Dur("duration", time.Since(start)).
		Msg("Gemini image generation complete")
	return out, nil
}

// decodeImageResponse picks the first inline image and concatenates text.
func decodeImageResponse(r *geminiResponse) (*creative.ImageResponse, error) {
	out := &creative.ImageResponse{}
	if r.UsageMetadata != nil {
		out.Usage = creative.Usage{InputTokens: r.UsageMetadata.PromptTokenCount, OutputTokens: r.UsageMetadata.CandidatesTokenCount}
	}
	if r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "" {
		out.FinishReason = r.PromptFeedback.BlockReason
		out.Filtered = IsFilterReason(r.PromptFeedback.BlockReason) || len(r.Candidates) == 0
	}

	var text strings.Builder
	for _, candidate := range r.Candidates {
		if out.FinishReason == "" {
			out.FinishReason = candidate.FinishReason
		}
		if IsFilterReason(candidate.FinishReason) {
			out.Filtered = true
			out.FinishReason = candidate.FinishReason
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && out.Image.IsZero() {
				decoded, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
				if err != nil {
					return nil, fmt.Errorf("failed to decode image data: %w", err)
				}
				mime := part.InlineData.MIMEType
				if mime == "" {
					mime = filehandler.DetectMIMEType(decoded)
				}
				out.Image = filehandler.Image{Data: decoded, MIMEType: mime}
			}
			if part.Text != "" {
				text.WriteString(part.Text)
			}
		}
	}
	out.Text = text.String()
	if out.Filtered {
		out.Image = filehandler.Image{}
	}
	return out, nil
}

func (c *ImageClient) record(call string, start time.Time, out *creative.ImageResponse, failure string) {
	m := metrics.New(metrics.Namespace).
		Dimension("Operation", call).
		Metric("GeminiApiLatencyMs", float64(time.Since(start).Milliseconds()), metrics.UnitMilliseconds).
		Count("GeminiApiCalls").
		Property("model", c.model)
	if out != nil {
		m.Metric("GeminiInputTokens", float64(out.Usage.InputTokens), metrics.UnitCount)
		m.Metric("GeminiOutputTokens", float64(out.Usage.OutputTokens), metrics.UnitCount)
		if out.Filtered {
			m.Count("GeminiContentFiltered")
		}
	}
	if failure != "" {
		m.Count("GeminiApiErrors").Property("failure", failure)
	}
	m.Flush()
}
