// Command api-server serves the HTTP API locally.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/rs/zerolog/log"

	"github.com/berthelol/reference-images/internal/api"
	"github.com/berthelol/reference-images/internal/app"
	"github.com/berthelol/reference-images/internal/cli"
	"github.com/berthelol/reference-images/internal/config"
	"github.com/berthelol/reference-images/internal/logging"
)

func main() {
	logging.Init(logging.FormatConsole)
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	models := cli.InitModels(ctx, cfg)

	opts := app.Options{}
	if cfg.Store == config.StoreDynamo || cfg.EventBusName != "" || cfg.IngestWorkerARN != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load AWS config")
		}
		opts.AWS = &awsCfg
	}
	a, err := app.New(ctx, cfg, models, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build application")
	}
	defer a.Close()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: api.NewRouter(newServer(a)),
		// A three-step method can run for minutes.
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("Graceful shutdown incomplete")
		}
	}()

	log.Info().Str("port", cfg.Port).Str("store", cfg.Store).Msg("Starting API server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

// newServer adapts the application to the router's collaborators.
func newServer(a *app.App) *api.Server {
	s := &api.Server{
		Runner:             a.Runner,
		Templates:          a.Templates,
		Ingester:           a,
		Loader:             a.Loader,
		OriginVerifySecret: a.Config.OriginVerifySecret,
	}
	if a.Dispatcher != nil {
		s.Dispatcher = a.Dispatcher
	}
	return s
}
