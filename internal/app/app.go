// Package app wires configuration, storage, models and services into the
// object graph every entry point shares.
package app

import (
	"context"
	"fmt"
	"math"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	lambdasvc "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/berthelol/reference-images/internal/config"
	"github.com/berthelol/reference-images/internal/creative"
	"github.com/berthelol/reference-images/internal/filehandler"
	"github.com/berthelol/reference-images/internal/gemini"
	"github.com/berthelol/reference-images/internal/ingest"
	"github.com/berthelol/reference-images/internal/pipeline"
	"github.com/berthelol/reference-images/internal/store"
)

// Models are the model adapters the services call.
type Models struct {
	Text  creative.StructuredModel
	Image creative.ImageModel
	// TextName prices ingestion token usage.
	TextName string
}

// NewGeminiModels builds rate-limited Gemini adapters from cfg.
func NewGeminiModels(ctx context.Context, cfg *config.Config) (Models, error) {
	m, err := gemini.NewModels(ctx, cfg.GeminiAPIKey, cfg.TextModel, cfg.ImageModel)
	if err != nil {
		return Models{}, err
	}
	limited := gemini.NewLimited(cfg.RPS, int(math.Ceil(cfg.RPS)))
	return Models{
		Text:     limited.Structured(m.Structured),
		Image:    limited.Image(m.Image),
		TextName: m.Structured.Model(),
	}, nil
}

// Options carries what only some entry points have.
type Options struct {
	// AWS is required by the dynamo store, s3:// image references, the
	// ingest dispatcher and event publishing.
	AWS *aws.Config
	// AllowLocalImages lets product and template references be file paths.
	AllowLocalImages bool
}

// App is the shared object graph.
type App struct {
	Config  *config.Config
	Library store.Library
	// Templates is the cached read side the pipelines use.
	Templates *store.CachedStore
	Runner    *pipeline.Runner
	Ingester  *ingest.Service
	Loader    *filehandler.Loader
	// Dispatcher is nil unless INGEST_WORKER_ARN is set.
	Dispatcher *ingest.LambdaDispatcher

	closers []func()
}

// New builds the App.
func New(ctx context.Context, cfg *config.Config, models Models, opts Options) (*App, error) {
	lib, closeLib, err := OpenLibrary(ctx, cfg, opts.AWS)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Library: lib}
	if closeLib != nil {
		a.closers = append(a.closers, closeLib)
	}

	a.Templates = store.NewCachedStore(lib, cfg.CacheTTL)
	a.Runner = pipeline.NewRunner(a.Templates, models.Text, models.Image)
	a.Ingester = ingest.New(lib, models.Text, models.TextName)
	a.Loader = filehandler.NewLoader()
	a.Loader.AllowLocal = opts.AllowLocalImages

	if opts.AWS != nil {
		a.Loader.S3 = s3.NewFromConfig(*opts.AWS)
		if cfg.EventBusName != "" {
			a.Ingester.Publisher = &ingest.EventBridgePublisher{
				Client:  eventbridge.NewFromConfig(*opts.AWS),
				BusName: cfg.EventBusName,
			}
		}
		if cfg.IngestWorkerARN != "" {
			a.Dispatcher = &ingest.LambdaDispatcher{
				Client:      lambdasvc.NewFromConfig(*opts.AWS),
				FunctionARN: cfg.IngestWorkerARN,
			}
		}
	}
	log.Debug().
		Str("store", cfg.Store).
		Bool("events", a.Ingester.Publisher != nil).
		Bool("asyncIngest", a.Dispatcher != nil).
		Msg("Application wired")
	return a, nil
}

// Ingest ingests one template and drops any cached copy of it.
func (a *App) Ingest(ctx context.Context, in ingest.Input) (*ingest.Result, error) {
	res, err := a.Ingester.Ingest(ctx, in)
	if res != nil {
		a.Templates.Invalidate(res.TemplateID)
	}
	return res, err
}

// Close releases store connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// OpenLibrary opens the store cfg.Store selects. The returned func, when
// non-nil, releases it.
func OpenLibrary(ctx context.Context, cfg *config.Config, awsCfg *aws.Config) (store.Library, func(), error) {
	switch cfg.Store {
	case config.StoreLocal:
		lib, err := store.NewLocalStore(cfg.LocalDir)
		if err != nil {
			return nil, nil, err
		}
		return lib, nil, nil

	case config.StoreDynamo:
		if awsCfg == nil {
			return nil, nil, fmt.Errorf("dynamo store needs AWS configuration")
		}
		meta := store.NewDynamoStore(dynamodb.NewFromConfig(*awsCfg), cfg.TemplateTable)
		return &store.Composite{
			Meta:   meta,
			Images: store.NewS3Images(s3.NewFromConfig(*awsCfg), cfg.ImageBucket),
			Tags:   meta,
		}, nil, nil

	case config.StorePostgres:
		pool, err := store.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		pg := store.NewPostgresStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return pg, pool.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
}
