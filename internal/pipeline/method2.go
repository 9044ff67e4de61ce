package pipeline

import (
	"context"

	"github.com/berthelol/reference-images/internal/assets"
	"github.com/berthelol/reference-images/internal/creative"
	"github.com/berthelol/reference-images/internal/filehandler"
)

// Method2Result is the output of the two-step pipeline.
type Method2Result struct {
	Step1 StepArtifacts // product swap
	Step2 StepArtifacts // text and color update
}

// RunMethod2 swaps the product first and updates text and colors second.
// The second fill sees the rendered step-1 image in place of the product
// images and starts from the step-1 descriptor.
func (rn *Runner) RunMethod2(ctx context.Context, req Request) (res *Method2Result, err error) {
	r := newRun(Method2, req.TemplateID)
	defer func() { r.finish(err) }()

	in, err := rn.prepare(ctx, r, req)
	if err != nil {
		return nil, err
	}

	fill1, err := step(ctx, r, "step1-fill", func(ctx context.Context) (*creative.FillResult, error) {
		return rn.Filler.Fill(ctx, creative.FillRequest{
			ProductImages:      in.products,
			ReferenceImage:     in.reference,
			ProductDescription: in.description,
			Descriptor:         in.descriptor,
			Mode:               creative.FillProductOnly,
			Temperature:        method2Step1FillTemperature,
		})
	})
	if err != nil {
		return nil, err
	}

	img1, err := step(ctx, r, "step1-composite", func(ctx context.Context) (filehandler.Image, error) {
		instruction := assets.RenderCompositePrompt(assets.CompositeData{
			Heading:            "METHOD 2 - STEP 1: PRODUCT SWAP ONLY",
			ProductDescription: in.description,
			Prompt:             fill1.Prompt,
			JSONLabel:          "Product Elements Only",
			Descriptor:         indentedJSON(fill1.Filled),
			Closing:            "IMPORTANT: Only swap the product. Keep all text and colors exactly as shown in the reference image.",
		})
		return rn.Compositor.Composite(ctx, instruction, withImages(in.products, in.reference)...)
	})
	if err != nil {
		return nil, err
	}

	fill2, err := step(ctx, r, "step2-fill", func(ctx context.Context) (*creative.FillResult, error) {
		return rn.Filler.Fill(ctx, creative.FillRequest{
			ProductImages:      []filehandler.Image{img1},
			ReferenceImage:     in.reference,
			ProductDescription: in.description,
			Descriptor:         fill1.Filled,
			Mode:               creative.FillTextAndColorOnly,
			Temperature:        method2Step2FillTemperature,
		})
	})
	if err != nil {
		return nil, err
	}

	img2, err := step(ctx, r, "step2-composite", func(ctx context.Context) (filehandler.Image, error) {
		instruction := assets.RenderCompositePrompt(assets.CompositeData{
			Heading:            "METHOD 2 - STEP 2: TEXT AND ELEMENTS UPDATE",
			ProductDescription: in.description,
			Prompt:             fill2.Prompt,
			JSONLabel:          "Text and Color Variables",
			Descriptor:         indentedJSON(fill2.Filled),
			Closing:            "IMPORTANT: Update text and colors to match the product. Keep the product position exactly as it is in the first image.",
		})
		return rn.Compositor.Composite(ctx, instruction, img1, in.reference)
	})
	if err != nil {
		return nil, err
	}

	return &Method2Result{
		Step1: StepArtifacts{Prompt: fill1.Prompt, Filled: fill1.Filled, Image: img1},
		Step2: StepArtifacts{Prompt: fill2.Prompt, Filled: fill2.Filled, Image: img2},
	}, nil
}
