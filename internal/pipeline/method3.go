package pipeline

import (
	"context"

	"github.com/berthelol/reference-images/internal/assets"
	"github.com/berthelol/reference-images/internal/creative"
	"github.com/berthelol/reference-images/internal/descriptor"
	"github.com/berthelol/reference-images/internal/filehandler"
)

// Method3Result is the output of the four-step pipeline.
type Method3Result struct {
	Step1Prompt       string
	Step1Image        filehandler.Image
	Step2Filled       *descriptor.Descriptor
	Step3Instructions []string
	Step4Prompt       string
	Step4Image        filehandler.Image
}

// RunMethod3 places the product with a fixed instruction, fills the
// descriptor, turns the descriptor diff into edit instructions and applies
// them to the step-1 image.
func (rn *Runner) RunMethod3(ctx context.Context, req Request) (res *Method3Result, err error) {
	r := newRun(Method3, req.TemplateID)
	defer func() { r.finish(err) }()

	in, err := rn.prepare(ctx, r, req)
	if err != nil {
		return nil, err
	}

	// Placement is never model-authored.
	prompt1 := assets.RenderPlacementPrompt(in.description)
	img1, err := step(ctx, r, "step1-placement", func(ctx context.Context) (filehandler.Image, error) {
		return rn.Compositor.Composite(ctx, prompt1, withImages(in.products, in.reference)...)
	})
	if err != nil {
		return nil, err
	}

	filled, err := step(ctx, r, "step2-fill", func(ctx context.Context) (*descriptor.Descriptor, error) {
		res, err := rn.Filler.Fill(ctx, creative.FillRequest{
			ProductImages:      in.products,
			ReferenceImage:     in.reference,
			ProductDescription: in.description,
			Descriptor:         in.descriptor,
			Mode:               creative.FillFull,
			Temperature:        method3FillTemperature,
			JSONOnly:           true,
		})
		if err != nil {
			return nil, err
		}
		return res.Filled, nil
	})
	if err != nil {
		return nil, err
	}

	instructions, err := step(ctx, r, "step3-diff", func(ctx context.Context) ([]string, error) {
		return rn.Differ.Diff(ctx, in.descriptor, filled)
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info().Int("instructions", len(instructions)).Msg("Change instructions ready")

	prompt4 := assets.RenderApplyChangesPrompt(in.description, instructions)
	img4, err := step(ctx, r, "step4-composite", func(ctx context.Context) (filehandler.Image, error) {
		return rn.Compositor.Composite(ctx, prompt4, withImages(in.products, img1)...)
	})
	if err != nil {
		return nil, err
	}

	return &Method3Result{
		Step1Prompt:       prompt1,
		Step1Image:        img1,
		Step2Filled:       filled,
		Step3Instructions: instructions,
		Step4Prompt:       prompt4,
		Step4Image:        img4,
	}, nil
}
