package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/berthelol/reference-images/internal/filehandler"
)

var cleanOutFlag string

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Describe a product from its images",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := openApp(ctx)
		defer a.Close()

		images, err := a.Loader.LoadAll(ctx, productFlags)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load product images")
		}
		desc, err := a.Runner.Describer.Describe(ctx, images...)
		if err != nil {
			log.Fatal().Err(err).Msg("Description failed")
		}
		fmt.Println(desc)
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Render the product alone on a plain background",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := openApp(ctx)
		defer a.Close()

		images, err := a.Loader.LoadAll(ctx, productFlags)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load product images")
		}
		desc := strings.TrimSpace(descriptionFlag)
		if desc == "" {
			if desc, err = a.Runner.Describer.Describe(ctx, images...); err != nil {
				log.Fatal().Err(err).Msg("Description failed")
			}
		}
		img, err := a.Runner.Compositor.CleanProduct(ctx, desc, images...)
		if err != nil {
			log.Fatal().Err(err).Msg("Clean product render failed")
		}
		path := cleanOutFlag
		if path == "" {
			path = "product-clean" + filehandler.ExtensionFor(img.MIMEType)
		}
		if err := filehandler.WriteImageFile(path, img); err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("Failed to write image")
		}
		fmt.Println("  wrote", path)
	},
}

var descriptorCmd = &cobra.Command{
	Use:   "descriptor <template-id>",
	Short: "Print the stored reference descriptor of a template",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		cfg := loadConfig()
		lib, closeLib, err := openLibrary(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open template store")
		}
		if closeLib != nil {
			defer closeLib()
		}

		d, err := lib.GetReferenceDescriptor(ctx, args[0])
		if err != nil {
			log.Fatal().Err(err).Str("templateId", args[0]).Msg("Failed to load descriptor")
		}
		b, err := d.Marshal()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to marshal descriptor")
		}
		var out bytes.Buffer
		if err := json.Indent(&out, b, "", "  "); err != nil {
			log.Fatal().Err(err).Msg("Failed to format descriptor")
		}
		out.WriteByte('\n')
		os.Stdout.Write(out.Bytes())
	},
}

func init() {
	for _, c := range []*cobra.Command{describeCmd, cleanCmd} {
		c.Flags().StringSliceVarP(&productFlags, "product", "p", nil, "Product image path or URL (repeatable, up to 4)")
		c.MarkFlagRequired("product")
	}
	cleanCmd.Flags().StringVar(&descriptionFlag, "description", "", "Product description (derived from the images when empty)")
	cleanCmd.Flags().StringVarP(&cleanOutFlag, "out", "o", "", "Output image path")
}
