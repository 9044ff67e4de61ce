// Command refimg-mcp exposes the generation pipelines as MCP tools over
// stdio. Logs go to stderr; stdout carries the protocol.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/berthelol/reference-images/internal/app"
	"github.com/berthelol/reference-images/internal/cli"
	"github.com/berthelol/reference-images/internal/config"
	"github.com/berthelol/reference-images/internal/logging"
)

const version = "v1.0.0"

func main() {
	logging.Init(logging.FormatJSON)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	models := cli.InitModels(ctx, cfg)

	opts := app.Options{AllowLocalImages: true}
	if cfg.Store == config.StoreDynamo {
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

	server := mcp.NewServer(&mcp.Implementation{Name: "refimg", Version: version}, nil)
	(&tools{runner: a.Runner, templates: a.Templates, loader: a.Loader}).register(server)

	log.Info().Str("store", cfg.Store).Msg("MCP server listening on stdio")
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("MCP server failed")
	}
}
