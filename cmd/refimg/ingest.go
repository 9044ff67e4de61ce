package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/berthelol/reference-images/internal/cli"
	"github.com/berthelol/reference-images/internal/filehandler"
	"github.com/berthelol/reference-images/internal/ingest"
)

var (
	ingestIDFlag          string
	ingestSourceFlag      string
	ingestConcurrencyFlag int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file or directory...]",
	Short: "Extract descriptors and tags from reference images",
	Long: `Ingest stores reference images as templates: it extracts the reference
descriptor, assigns taxonomy tags and saves the image. Directories are
expanded to the images directly inside them. With no argument you are
prompted for a directory.

Template IDs default to the file name without extension. --id applies only
when a single file is given.`,
	Run: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestIDFlag, "id", "", "Template ID (single file only)")
	ingestCmd.Flags().StringVar(&ingestSourceFlag, "source", "", "Provenance recorded in the descriptor")
	ingestCmd.Flags().IntVarP(&ingestConcurrencyFlag, "concurrency", "c", ingest.DefaultBatchConcurrency, "Templates ingested in parallel")
}

func runIngest(cmd *cobra.Command, args []string) {
	if len(args) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			cwd = "."
		}
		args = []string{cli.PromptForPath(os.Stdin, os.Stdout, "Directory", cwd)}
	}

	paths, err := expandPaths(args)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list template images")
	}
	if len(paths) == 0 {
		log.Fatal().Strs("args", args).Msg("No template images found")
	}
	if ingestIDFlag != "" && len(paths) > 1 {
		log.Fatal().Int("files", len(paths)).Msg("--id needs exactly one file")
	}

	inputs := make([]ingest.Input, 0, len(paths))
	for _, p := range paths {
		img, err := filehandler.ReadImageFile(p)
		if err != nil {
			log.Fatal().Err(err).Str("path", p).Msg("Failed to read template image")
		}
		id := ingestIDFlag
		if id == "" {
			id = strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		}
		source := ingestSourceFlag
		if source == "" {
			source = filepath.Base(p)
		}
		inputs = append(inputs, ingest.Input{ID: id, Image: img, Source: source})
	}

	ctx := cmd.Context()
	a := openApp(ctx)
	defer a.Close()

	limiter := rate.NewLimiter(rate.Limit(a.Config.RPS), 1)
	summary := a.Ingester.Batch(ctx, inputs, ingestConcurrencyFlag, limiter)

	fmt.Println()
	fmt.Println("============================================")
	fmt.Println("Template Ingestion")
	fmt.Println("============================================")
	for _, item := range summary.Items {
		if item.Err != nil {
			fmt.Printf("  FAIL  %-24s %v\n", item.Input.ID, item.Err)
			continue
		}
		fmt.Println(resultLine(item.Result))
	}
	fmt.Println("--------------------------------------------")
	fmt.Printf("Succeeded: %d  Failed: %d  Time: %s\n",
		summary.Succeeded, summary.Failed, cli.FormatDurationShort(summary.Duration))
	fmt.Printf("Estimated cost: $%.4f (%d calls, %d in / %d out tokens)\n",
		summary.Cost.USD, summary.Cost.Calls, summary.Cost.InputTokens, summary.Cost.OutputTokens)

	if summary.Failed > 0 {
		os.Exit(1)
	}
}

// resultLine formats one successful ingestion for the summary table.
func resultLine(r *ingest.Result) string {
	note := ""
	if r.FallbackDescriptor {
		note = " (fallback descriptor)"
	}
	return fmt.Sprintf("  OK    %-24s %s, %d tags, %d proposed%s",
		r.TemplateID, r.AspectRatio, len(r.TagIDs), r.ProposedTags, note)
}

// expandPaths replaces directories with the images inside them.
func expandPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		imgs, err := cli.ImagePaths(cli.ValidateAndResolveDirectory(arg))
		if err != nil {
			return nil, err
		}
		paths = append(paths, imgs...)
	}
	return paths, nil
}
