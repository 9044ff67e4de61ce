// Command api-lambda serves the HTTP API behind a Lambda function URL.
//
// Configuration comes from the environment (see internal/config). The Gemini
// API key is read from SSM at cold start unless GEMINI_API_KEY is set.
package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/berthelol/reference-images/internal/api"
	"github.com/berthelol/reference-images/internal/app"
	"github.com/berthelol/reference-images/internal/config"
	"github.com/berthelol/reference-images/internal/lambdaboot"
	"github.com/berthelol/reference-images/internal/logging"
)

var adapter *httpadapter.HandlerAdapterV2

func init() {
	initStart := time.Now()
	logging.Init(logging.FormatJSON)
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	aws := lambdaboot.InitAWS()
	lambdaboot.LoadGeminiKey(aws.SSM, cfg)

	models, err := app.NewGeminiModels(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create model adapters")
	}
	a, err := app.New(ctx, cfg, models, app.Options{AWS: &aws.Config})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build application")
	}

	s := &api.Server{
		Runner:             a.Runner,
		Templates:          a.Templates,
		Ingester:           a,
		Loader:             a.Loader,
		OriginVerifySecret: cfg.OriginVerifySecret,
	}
	if a.Dispatcher != nil {
		s.Dispatcher = a.Dispatcher
	}
	adapter = httpadapter.NewV2(api.NewRouter(s))

	lambdaboot.StartupLog("api-lambda", initStart).
		Config("store", cfg.Store).
		DynamoTable("templates", cfg.TemplateTable).
		S3Bucket("templates", cfg.ImageBucket).
		SSMParam("geminiKey", cfg.SSMKeyParam).
		EventBus("events", cfg.EventBusName).
		LambdaFunc("ingestWorker", cfg.IngestWorkerARN).
		Feature("originVerify", cfg.OriginVerifySecret != "").
		Feature("asyncIngest", a.Dispatcher != nil).
		Log()
}

func main() {
	lambda.Start(adapter.ProxyWithContext)
}
