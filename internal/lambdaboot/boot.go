// Package lambdaboot holds the cold-start helpers shared by the Lambda entry
// points: AWS config, SSM secrets and startup logging.
package lambdaboot

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/berthelol/reference-images/internal/config"
	"github.com/berthelol/reference-images/internal/logging"
)

// AWSClients holds the AWS config and the SSM client.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// InitAWS loads the default AWS config. Fatals on error.
func InitAWS() AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

// SSMAPI is the subset of the SSM client used here.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ResolveGeminiKey returns cfg.GeminiAPIKey when set, else reads the
// SecureString parameter cfg.SSMKeyParam. The key is written back to cfg.
func ResolveGeminiKey(ctx context.Context, client SSMAPI, cfg *config.Config) (string, error) {
	if cfg.GeminiAPIKey != "" {
		return cfg.GeminiAPIKey, nil
	}
	paramName := cfg.SSMKeyParam
	if paramName == "" {
		paramName = config.DefaultSSMKeyParam
	}
	start := time.Now()
	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(paramName),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("read API key from SSM %s: %w", paramName, err)
	}
	if result.Parameter == nil || aws.ToString(result.Parameter.Value) == "" {
		return "", fmt.Errorf("SSM parameter %s is empty", paramName)
	}
	cfg.GeminiAPIKey = aws.ToString(result.Parameter.Value)
	log.Debug().Str("param", paramName).Dur("elapsed", time.Since(start)).Msg("Gemini API key loaded from SSM")
	return cfg.GeminiAPIKey, nil
}

// LoadGeminiKey is ResolveGeminiKey for init(): it fatals on error and also
// exports GEMINI_API_KEY for code that reads the environment.
func LoadGeminiKey(client SSMAPI, cfg *config.Config) {
	key, err := ResolveGeminiKey(context.Background(), client, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to resolve Gemini API key")
	}
	os.Setenv("GEMINI_API_KEY", key)
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
