package pipeline

import (
	"context"

	"github.com/berthelol/reference-images/internal/assets"
	"github.com/berthelol/reference-images/internal/creative"
	"github.com/berthelol/reference-images/internal/descriptor"
	"github.com/berthelol/reference-images/internal/filehandler"
)

// Method1Result is the output of the one-shot pipeline.
type Method1Result struct {
	Prompt string
	Filled *descriptor.Descriptor
	Image  filehandler.Image
}

// RunMethod1 fills the whole descriptor in one call and composites the ad in
// a second call.
func (rn *Runner) RunMethod1(ctx context.Context, req Request) (res *Method1Result, err error) {
	r := newRun(Method1, req.TemplateID)
	defer func() { r.finish(err) }()

	in, err := rn.prepare(ctx, r, req)
	if err != nil {
		return nil, err
	}

	fill, err := step(ctx, r, "fill", func(ctx context.Context) (*creative.FillResult, error) {
		return rn.Filler.Fill(ctx, creative.FillRequest{
			ProductImages:      in.products,
			ReferenceImage:     in.reference,
			ProductDescription: in.description,
			Descriptor:         in.descriptor,
			Mode:               creative.FillFull,
			Temperature:        method1FillTemperature,
		})
	})
	if err != nil {
		return nil, err
	}

	img, err := step(ctx, r, "composite", func(ctx context.Context) (filehandler.Image, error) {
		instruction := assets.RenderCompositePrompt(assets.CompositeData{
			Heading:            "METHOD 1: ONE-SHOT GENERATION",
			ProductDescription: in.description,
			Prompt:             fill.Prompt,
			Descriptor:         indentedJSON(fill.Filled),
			Closing:            "Generate a complete ad with all elements in one pass.",
		})
		return rn.Compositor.Composite(ctx, instruction, withImages(in.products, in.reference)...)
	})
	if err != nil {
		return nil, err
	}

	return &Method1Result{Prompt: fill.Prompt, Filled: fill.Filled, Image: img}, nil
}
