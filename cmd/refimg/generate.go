package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/berthelol/reference-images/internal/cli"
	"github.com/berthelol/reference-images/internal/descriptor"
	"github.com/berthelol/reference-images/internal/filehandler"
	"github.com/berthelol/reference-images/internal/pipeline"
)

var (
	methodFlag      string
	templateFlag    string
	productFlags    []string
	descriptionFlag string
	outDirFlag      string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate an ad from a template and product images",
	Long: `Generate re-renders a stored template around the product.

Methods:
  method-1  fill the whole descriptor, then composite once
  method-2  swap the product, then update text and colors
  method-3  place the product, fill, diff and apply edit instructions

Images and filled descriptors are written to --out.`,
	Run: runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringVar(&methodFlag, "method", pipeline.Method1, "Pipeline: method-1, method-2 or method-3")
	f.StringVarP(&templateFlag, "template", "t", "", "Template ID")
	f.StringSliceVarP(&productFlags, "product", "p", nil, "Product image path or URL (repeatable, up to 4)")
	f.StringVar(&descriptionFlag, "description", "", "Product description (derived from the images when empty)")
	f.StringVarP(&outDirFlag, "out", "o", "out", "Output directory")
	generateCmd.MarkFlagRequired("template")
	generateCmd.MarkFlagRequired("product")
}

func runGenerate(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	start := time.Now()
	a := openApp(ctx)
	defer a.Close()

	images, err := a.Loader.LoadAll(ctx, productFlags)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load product images")
	}
	req := pipeline.Request{
		TemplateID:         templateFlag,
		ProductImages:      images,
		ProductDescription: strings.TrimSpace(descriptionFlag),
	}

	prefix := filepath.Join(outDirFlag, templateFlag+"-"+methodFlag)
	var written []string
	switch methodFlag {
	case pipeline.Method1:
		res, err := a.Runner.RunMethod1(ctx, req)
		if err != nil {
			log.Fatal().Err(err).Msg("Generation failed")
		}
		written = writeArtifacts(prefix, res.Filled, res.Image)
	case pipeline.Method2:
		res, err := a.Runner.RunMethod2(ctx, req)
		if err != nil {
			log.Fatal().Err(err).Msg("Generation failed")
		}
		written = append(writeArtifacts(prefix+"-step1", res.Step1.Filled, res.Step1.Image),
			writeArtifacts(prefix+"-step2", res.Step2.Filled, res.Step2.Image)...)
	case pipeline.Method3:
		res, err := a.Runner.RunMethod3(ctx, req)
		if err != nil {
			log.Fatal().Err(err).Msg("Generation failed")
		}
		written = append(writeArtifacts(prefix+"-step1", nil, res.Step1Image),
			writeArtifacts(prefix+"-step4", res.Step2Filled, res.Step4Image)...)
		log.Debug().Str("step1Prompt", res.Step1Prompt).Str("step4Prompt", res.Step4Prompt).Msg("Image prompts")
		for i, instr := range res.Step3Instructions {
			fmt.Printf("  edit %d: %s\n", i+1, instr)
		}
	default:
		log.Fatal().Str("method", methodFlag).Msg("Unknown method: expected method-1, method-2 or method-3")
	}

	for _, p := range written {
		fmt.Println("  wrote", p)
	}
	fmt.Printf("Done in %s\n", cli.FormatDurationShort(time.Since(start)))
}

// writeArtifacts writes the filled descriptor, when present, and the image
// next to prefix.
func writeArtifacts(prefix string, filled *descriptor.Descriptor, img filehandler.Image) []string {
	var written []string
	if filled != nil {
		b, err := filled.Marshal()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to marshal descriptor")
		}
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, b, "", "  "); err == nil {
			b = pretty.Bytes()
		}
		path := prefix + ".json"
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			log.Fatal().Err(err).Msg("Failed to create output directory")
		}
		if err := os.WriteFile(path, b, 0o644); err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("Failed to write descriptor")
		}
		written = append(written, path)
	}
	path := prefix + filehandler.ExtensionFor(img.MIMEType)
	if err := filehandler.WriteImageFile(path, img); err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to write image")
	}
	return append(written, path)
}
