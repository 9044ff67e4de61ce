package main

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/berthelol/reference-images/internal/creative/creativetest"
	"github.com/berthelol/reference-images/internal/descriptor/descriptortest"
	"github.com/berthelol/reference-images/internal/filehandler"
	"github.com/berthelol/reference-images/internal/metrics"
	"github.com/berthelol/reference-images/internal/pipeline"
	"github.com/berthelol/reference-images/internal/store/storetest"
)

func TestMain(m *testing.M) {
	metrics.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func newTools(text *creativetest.Structured, img *creativetest.Image) *tools {
	mem := storetest.NewMemory()
	mem.Add("tpl-candy", descriptortest.Sample(), filehandler.Image{Data: []byte("reference"), MIMEType: filehandler.MIMEJPEG})
	runner := pipeline.NewRunner(mem, text, img)
	runner.Filler.Retry = creativetest.FastRetry(0)
	runner.Compositor.Retry = creativetest.FastRetry(0)
	return &tools{runner: runner, templates: mem, loader: filehandler.NewLoader()}
}

var product = filehandler.Image{Data: []byte("product"), MIMEType: filehandler.MIMEPNG}.DataURL()

func TestMethod1Tool(t *testing.T) {
	tl := newTools(
		creativetest.NewStructured(creativetest.FillReply("Swap the candy for the can.", descriptortest.Sample())),
		creativetest.NewImage([]byte("final")),
	)
	res, _, err := tl.method1(context.Background(), nil, generateArgs{
		TemplateID:         "tpl-candy",
		ProductImages:      []string{product},
		ProductDescription: "green soda can",
	})
	if err != nil {
		t.Fatalf("method1: %v", err)
	}
	if len(res.Content) != 3 {
		t.Fatalf("content = %d items", len(res.Content))
	}
	if tc, ok := res.Content[0].(*mcp.TextContent); !ok || !strings.Contains(tc.Text, "Swap the candy") {
		t.Errorf("prompt content = %+v", res.Content[0])
	}
	if ic, ok := res.Content[2].(*mcp.ImageContent); !ok || string(ic.Data) != "final" {
		t.Errorf("image content = %+v", res.Content[2])
	}
}

func TestMethod3Tool(t *testing.T) {
	tl := newTools(
		creativetest.NewStructured(creativetest.FillReply("", descriptortest.Sample())),
		creativetest.NewImage([]byte("placed"), []byte("final")),
	)
	res, _, err := tl.method3(context.Background(), nil, generateArgs{
		TemplateID:         "tpl-candy",
		ProductImages:      []string{product},
		ProductDescription: "green soda can",
	})
	if err != nil {
		t.Fatalf("method3: %v", err)
	}
	if len(res.Content) != 6 {
		t.Fatalf("content = %d items", len(res.Content))
	}
	for i, label := range map[int]string{0: "step1 prompt", 2: "step2 filled_json", 3: "step3 instructions", 4: "step4 prompt"} {
		if tc, ok := res.Content[i].(*mcp.TextContent); !ok || !strings.HasPrefix(tc.Text, label+":") {
			t.Errorf("content[%d] = %+v, want %s", i, res.Content[i], label)
		}
	}
	if ic, ok := res.Content[5].(*mcp.ImageContent); !ok || string(ic.Data) != "final" {
		t.Errorf("image content = %+v", res.Content[5])
	}
}

func TestGenerateTool_Errors(t *testing.T) {
	tl := newTools(creativetest.NewStructured(), creativetest.NewImage())
	ctx := context.Background()

	if _, _, err := tl.method2(ctx, nil, generateArgs{TemplateID: "tpl-candy"}); err == nil {
		t.Error("no product images: expected error")
	}
	if _, _, err := tl.method3(ctx, nil, generateArgs{TemplateID: "tpl-candy", ProductImages: []string{"ftp://x"}}); err == nil {
		t.Error("bad reference: expected error")
	}
	if _, _, err := tl.method1(ctx, nil, generateArgs{TemplateID: "missing", ProductImages: []string{product}, ProductDescription: "can"}); err == nil {
		t.Error("missing template: expected error")
	}
}

func TestDescriptorTool(t *testing.T) {
	tl := newTools(creativetest.NewStructured(), creativetest.NewImage())
	res, _, err := tl.descriptor(context.Background(), nil, descriptorArgs{TemplateID: "tpl-candy"})
	if err != nil {
		t.Fatalf("descriptor: %v", err)
	}
	tc, ok := res.Content[0].(*mcp.TextContent)
	if !ok || !strings.Contains(tc.Text, "refimg.v1") {
		t.Errorf("content = %+v", res.Content[0])
	}
	if _, _, err := tl.descriptor(context.Background(), nil, descriptorArgs{TemplateID: "missing"}); err == nil {
		t.Error("missing template: expected error")
	}
}
