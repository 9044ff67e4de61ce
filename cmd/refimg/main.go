// Command refimg ingests reference templates and generates ads from them on
// the command line.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/berthelol/reference-images/internal/app"
	"github.com/berthelol/reference-images/internal/cli"
	"github.com/berthelol/reference-images/internal/config"
	"github.com/berthelol/reference-images/internal/logging"
	"github.com/berthelol/reference-images/internal/store"
)

// Persistent flags. Empty values keep the environment configuration.
var (
	storeFlag      string
	localDirFlag   string
	tableFlag      string
	bucketFlag     string
	databaseFlag   string
	textModelFlag  string
	imageModelFlag string
	rpsFlag        float64
)

var rootCmd = &cobra.Command{
	Use:   "refimg",
	Short: "Generate product ads from reference templates",
	Long: `refimg turns a product photo into an ad by re-rendering a stored reference
template. Templates are ingested once (descriptor extraction and tagging) and
then reused by three generation methods.

Templates live in a local directory by default. Use --store dynamo for
DynamoDB + S3 or --store postgres for PostgreSQL.

Examples:
  refimg ingest ./references
  refimg generate --method method-1 --template tpl-candy --product bottle.png
  refimg describe --product bottle.png
  refimg descriptor tpl-candy`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logging.FormatConsole)
	},
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&storeFlag, "store", "", "Template store: local, dynamo or postgres")
	pf.StringVar(&localDirFlag, "dir", "", "Template directory for the local store")
	pf.StringVar(&tableFlag, "table", "", "DynamoDB template table")
	pf.StringVar(&bucketFlag, "bucket", "", "S3 template image bucket")
	pf.StringVar(&databaseFlag, "database-url", "", "PostgreSQL connection string")
	pf.StringVar(&textModelFlag, "text-model", "", "Gemini model for structured steps")
	pf.StringVar(&imageModelFlag, "image-model", "", "Gemini model for compositing")
	pf.Float64Var(&rpsFlag, "rps", 0, "Model requests per second (0 keeps REFIMG_RPS)")

	rootCmd.AddCommand(ingestCmd, generateCmd, describeCmd, cleanCmd, descriptorCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies the persistent flags.
func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	overrides := []struct {
		flag string
		dst  *string
	}{
		{storeFlag, &cfg.Store},
		{localDirFlag, &cfg.LocalDir},
		{tableFlag, &cfg.TemplateTable},
		{bucketFlag, &cfg.ImageBucket},
		{databaseFlag, &cfg.DatabaseURL},
		{textModelFlag, &cfg.TextModel},
		{imageModelFlag, &cfg.ImageModel},
	}
	for _, o := range overrides {
		if o.flag != "" {
			*o.dst = o.flag
		}
	}
	if rpsFlag > 0 {
		cfg.RPS = rpsFlag
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	return cfg
}

// awsConfig loads AWS only when the store or event publishing needs it.
func awsConfig(ctx context.Context, cfg *config.Config) *aws.Config {
	if cfg.Store != config.StoreDynamo && cfg.EventBusName == "" {
		return nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	return &awsCfg
}

// openApp builds the application for one command.
func openApp(ctx context.Context) *app.App {
	cfg := loadConfig()
	models := cli.InitModels(ctx, cfg)

	a, err := app.New(ctx, cfg, models, app.Options{
		AWS:              awsConfig(ctx, cfg),
		AllowLocalImages: true,
	})
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.Store).Msg("Failed to open template store")
	}
	return a
}

// openLibrary opens the template store alone, for commands that call no
// model.
func openLibrary(ctx context.Context, cfg *config.Config) (store.Library, func(), error) {
	return app.OpenLibrary(ctx, cfg, awsConfig(ctx, cfg))
}
