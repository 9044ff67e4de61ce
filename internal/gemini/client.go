// Package gemini implements the creative model interfaces against Google
// Gemini: structured calls through the genai SDK and image generation through
// the REST API.
package gemini

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// NewClient creates a genai client for the Gemini API backend.
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: empty API key")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	log.Debug().Msg("Gemini client initialized")
	return client, nil
}

// Models bundles the two model adapters used by the pipelines.
type Models struct {
	Structured *StructuredClient
	Image      *ImageClient
}

// NewModels builds both adapters from one API key. Empty model names fall
// back to the environment overrides and then the defaults.
func NewModels(ctx context.Context, apiKey, textModel, imageModel string) (*Models, error) {
	client, err := NewClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return &Models{
		Structured: NewStructuredClient(client, textModel),
		Image:      NewImageClient(apiKey, imageModel),
	}, nil
}
