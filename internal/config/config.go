// Package config resolves runtime settings from the environment. A .env file
// in the working directory is loaded first when present; variables already
// set in the process win.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Store backends.
const (
	StoreLocal    = "local"
	StoreDynamo   = "dynamo"
	StorePostgres = "postgres"
)

// DefaultSSMKeyParam is the SSM parameter holding the Gemini API key.
const DefaultSSMKeyParam = "/reference-images/prod/gemini-api-key"

// Config is the resolved configuration of one process.
type Config struct {
	GeminiAPIKey string
	SSMKeyParam  string
	TextModel    string
	ImageModel   string

	Store         string
	LocalDir      string
	TemplateTable string
	ImageBucket   string
	DatabaseURL   string
	CacheTTL      time.Duration

	IngestWorkerARN string
	EventBusName    string

	OriginVerifySecret string
	Port               string
	RPS                float64
}

// Load reads .env (optional) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Failed to parse .env, ignoring it")
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	c := &Config{
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		SSMKeyParam:        getenv("SSM_API_KEY_PARAM", DefaultSSMKeyParam),
		TextModel:          os.Getenv("REFIMG_TEXT_MODEL"),
		ImageModel:         os.Getenv("REFIMG_IMAGE_MODEL"),
		Store:              strings.ToLower(getenv("REFIMG_STORE", StoreLocal)),
		LocalDir:           getenv("REFIMG_LOCAL_DIR", "templates"),
		TemplateTable:      os.Getenv("TEMPLATE_TABLE_NAME"),
		ImageBucket:        os.Getenv("TEMPLATE_BUCKET_NAME"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		IngestWorkerARN:    os.Getenv("INGEST_WORKER_ARN"),
		EventBusName:       os.Getenv("EVENT_BUS_NAME"),
		OriginVerifySecret: os.Getenv("ORIGIN_VERIFY_SECRET"),
		Port:               getenv("PORT", "8080"),
	}

	var err error
	if c.RPS, err = floatEnv("REFIMG_RPS", 2); err != nil {
		return nil, err
	}
	if c.CacheTTL, err = durationEnv("REFIMG_CACHE_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks that the selected store has what it needs.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreLocal:
		if c.LocalDir == "" {
			return fmt.Errorf("REFIMG_LOCAL_DIR is required for the local store")
		}
	case StoreDynamo:
		if c.TemplateTable == "" || c.ImageBucket == "" {
			return fmt.Errorf("TEMPLATE_TABLE_NAME and TEMPLATE_BUCKET_NAME are required for the dynamo store")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("REFIMG_STORE %q: expected local, dynamo or postgres", c.Store)
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func floatEnv(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
