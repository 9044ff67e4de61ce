package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/berthelol/reference-images/internal/descriptor"
	"github.com/berthelol/reference-images/internal/filehandler"
	"github.com/berthelol/reference-images/internal/pipeline"
	"github.com/berthelol/reference-images/internal/store"
)

// generateArgs are the arguments of the generate tools.
type generateArgs struct {
	TemplateID         string   `json:"templateId" jsonschema:"ID of a stored reference template"`
	ProductImages      []string `json:"productImages" jsonschema:"one to four product images as file paths, URLs or data URLs"`
	ProductDescription string   `json:"productDescription,omitempty" jsonschema:"short product description; derived from the images when empty"`
}

type descriptorArgs struct {
	TemplateID string `json:"templateId" jsonschema:"ID of a stored reference template"`
}

type tools struct {
	runner    *pipeline.Runner
	templates store.TemplateStore
	loader    *filehandler.Loader
}

func (t *tools) register(s *mcp.Server) {
	mcp.AddTool(s, &mcp.Tool{
		Name:        "generate_method1",
		Description: "Fill the template descriptor for the product in one call and render the ad.",
	}, t.method1)
	mcp.AddTool(s, &mcp.Tool{
		Name:        "generate_method2",
		Description: "Swap the product into the template, then update text and colors. Returns both step images.",
	}, t.method2)
	mcp.AddTool(s, &mcp.Tool{
		Name:        "generate_method3",
		Description: "Place the product, fill the descriptor, derive edit instructions from the diff and apply them.",
	}, t.method3)
	mcp.AddTool(s, &mcp.Tool{
		Name:        "get_descriptor",
		Description: "Return the stored reference descriptor of a template as JSON.",
	}, t.descriptor)
}

func (t *tools) request(ctx context.Context, args generateArgs) (pipeline.Request, error) {
	if len(args.ProductImages) == 0 {
		return pipeline.Request{}, fmt.Errorf("productImages: at least one image is required")
	}
	images, err := t.loader.LoadAll(ctx, args.ProductImages)
	if err != nil {
		return pipeline.Request{}, fmt.Errorf("productImages: %w", err)
	}
	return pipeline.Request{
		TemplateID:         args.TemplateID,
		ProductImages:      images,
		ProductDescription: strings.TrimSpace(args.ProductDescription),
	}, nil
}

func (t *tools) method1(ctx context.Context, req *mcp.CallToolRequest, args generateArgs) (*mcp.CallToolResult, any, error) {
	in, err := t.request(ctx, args)
	if err != nil {
		return nil, nil, err
	}
	res, err := t.runner.RunMethod1(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	return result(
		text("prompt", res.Prompt),
		text("filled_json", descriptorText(res.Filled)),
		image(res.Image),
	), nil, nil
}

func (t *tools) method2(ctx context.Context, req *mcp.CallToolRequest, args generateArgs) (*mcp.CallToolResult, any, error) {
	in, err := t.request(ctx, args)
	if err != nil {
		return nil, nil, err
	}
	res, err := t.runner.RunMethod2(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	return result(
		text("step1 prompt", res.Step1.Prompt),
		image(res.Step1.Image),
		text("step2 prompt", res.Step2.Prompt),
		text("step2 filled_json", descriptorText(res.Step2.Filled)),
		image(res.Step2.Image),
	), nil, nil
}

func (t *tools) method3(ctx context.Context, req *mcp.CallToolRequest, args generateArgs) (*mcp.CallToolResult, any, error) {
	in, err := t.request(ctx, args)
	if err != nil {
		return nil, nil, err
	}
	res, err := t.runner.RunMethod3(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	instructions, _ := json.Marshal(res.Step3Instructions)
	return result(
		text("step1 prompt", res.Step1Prompt),
		image(res.Step1Image),
		text("step2 filled_json", descriptorText(res.Step2Filled)),
		text("step3 instructions", string(instructions)),
		text("step4 prompt", res.Step4Prompt),
		image(res.Step4Image),
	), nil, nil
}

func (t *tools) descriptor(ctx context.Context, req *mcp.CallToolRequest, args descriptorArgs) (*mcp.CallToolResult, any, error) {
	d, err := t.templates.GetReferenceDescriptor(ctx, args.TemplateID)
	if err != nil {
		return nil, nil, err
	}
	return result(&mcp.TextContent{Text: descriptorText(d)}), nil, nil
}

func result(content ...mcp.Content) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: content}
}

func text(label, body string) mcp.Content {
	return &mcp.TextContent{Text: label + ":\n" + body}
}

func image(img filehandler.Image) mcp.Content {
	return &mcp.ImageContent{Data: img.Data, MIMEType: img.MIMEType}
}

func descriptorText(d *descriptor.Descriptor) string {
	if d == nil {
		return "null"
	}
	b, err := d.Marshal()
	if err != nil {
		return "null"
	}
	return string(b)
}
