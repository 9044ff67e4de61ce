package cli

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/berthelol/reference-images/internal/app"
	"github.com/berthelol/reference-images/internal/auth"
	"github.com/berthelol/reference-images/internal/config"
	"github.com/berthelol/reference-images/internal/gemini"
)

// InitModels resolves and validates the Gemini API key, then returns the
// rate-limited model adapters. Exits fatally on failure.
func InitModels(ctx context.Context, cfg *config.Config) app.Models {
	if cfg.GeminiAPIKey == "" {
		key, err := auth.GetAPIKey()
		if err != nil {
			log.Fatal().Err(err).Msg("No API key configured")
		}
		cfg.GeminiAPIKey = key
	}

	client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Gemini client")
	}

	model := cfg.TextModel
	if model == "" {
		model = gemini.TextModelName()
	}
	if err := auth.ValidateAPIKey(ctx, client.Models, model); err != nil {
		HandleValidationError(err)
	}
	log.Info().Str("model", model).Msg("API key validation complete")

	models, err := app.NewGeminiModels(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create model adapters")
	}
	return models
}
