// Command ingest-lambda ingests templates asynchronously. The API Lambda
// invokes it with InvocationType=Event and an ingest.WorkerEvent payload:
//
//	{
//	  "type": "ingest",
//	  "jobId": "ing-xxx",
//	  "templateId": "tpl-candy",
//	  "imageRef": "s3://bucket/key" | "https://...",
//	  "source": "optional provenance"
//	}
//
// Results land in the template store; a TemplateIngested event is published
// when EVENT_BUS_NAME is set.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/berthelol/reference-images/internal/app"
	"github.com/berthelol/reference-images/internal/config"
	"github.com/berthelol/reference-images/internal/filehandler"
	"github.com/berthelol/reference-images/internal/ingest"
	"github.com/berthelol/reference-images/internal/lambdaboot"
	"github.com/berthelol/reference-images/internal/logging"
	"github.com/berthelol/reference-images/internal/metrics"
)

var coldStart = true

var h *worker

// setup runs once per cold start, before the first invocation.
func setup() *worker {
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
	w := &worker{ingester: a, loader: a.Loader}

	lambdaboot.StartupLog("ingest-lambda", initStart).
		Config("store", cfg.Store).
		DynamoTable("templates", cfg.TemplateTable).
		S3Bucket("templates", cfg.ImageBucket).
		SSMParam("geminiKey", cfg.SSMKeyParam).
		EventBus("events", cfg.EventBusName).
		Log()
	return w
}

func main() {
	h = setup()
	lambda.Start(handler)
}

func handler(ctx context.Context, event ingest.WorkerEvent) (*ingest.Result, error) {
	if coldStart {
		coldStart = false
		log.Debug().Msg("Cold start: first invocation")
	}
	return h.handle(ctx, event)
}

// Ingester stores one template.
type Ingester interface {
	Ingest(ctx context.Context, in ingest.Input) (*ingest.Result, error)
}

// Loader resolves an image reference.
type Loader interface {
	Load(ctx context.Context, ref string) (filehandler.Image, error)
}

type worker struct {
	ingester Ingester
	loader   Loader
}

func (w *worker) handle(ctx context.Context, event ingest.WorkerEvent) (*ingest.Result, error) {
	start := time.Now()
	logger := log.With().Str("jobId", event.JobID).Str("templateId", event.TemplateID).Logger()

	if event.Type != ingest.WorkerEventIngest {
		return nil, fmt.Errorf("unknown event type %q", event.Type)
	}
	if event.ImageRef == "" {
		return nil, fmt.Errorf("job %s: imageRef is required", event.JobID)
	}

	img, err := w.loader.Load(ctx, event.ImageRef)
	if err != nil {
		emitJob("error", start)
		logger.Error().Err(err).Str("imageRef", event.ImageRef).Msg("Failed to load template image")
		return nil, fmt.Errorf("job %s: load image: %w", event.JobID, err)
	}

	res, err := w.ingester.Ingest(ctx, ingest.Input{
		ID:     event.TemplateID,
		Image:  img,
		Source: event.Source,
	})
	if err != nil {
		emitJob("error", start)
		logger.Error().Err(err).Msg("Ingest job failed")
		return nil, fmt.Errorf("job %s: %w", event.JobID, err)
	}

	emitJob("success", start)
	logger.Info().
		Str("aspectRatio", res.AspectRatio).
		Int("tags", len(res.TagIDs)).
		Bool("fallbackDescriptor", res.FallbackDescriptor).
		Dur("duration", time.Since(start)).
		Msg("Ingest job complete")
	return res, nil
}

func emitJob(status string, start time.Time) {
	metrics.New(metrics.Namespace).
		Dimension("JobType", ingest.WorkerEventIngest).
		Dimension("Status", status).
		Duration("JobDurationMs", time.Since(start)).
		Count("JobCount").
		Flush()
}
