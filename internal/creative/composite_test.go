package creative_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/berthelol/reference-images/internal/creative"
	"github.com/berthelol/reference-images/internal/creative/creativetest"
	"github.com/berthelol/reference-images/internal/filehandler"
)

func newCompositor(model creative.ImageModel) *creative.Compositor {
	c := creative.NewCompositor(model)
	c.Retry = creativetest.FastRetry(2)
	return c
}

var (
	productImg   = filehandler.Image{Data: []byte("product"), MIMEType: filehandler.MIMEPNG}
	referenceImg = filehandler.Image{Data: []byte("reference"), MIMEType: filehandler.MIMEJPEG}
)

func TestComposite_Success(t *testing.T) {
	model := creativetest.NewImage([]byte("result"))

	img, err := newCompositor(model).Composite(context.Background(), "make an ad", productImg, referenceImg)
	if err != nil {
		t.Fatalf("Composite: %v", err)
	}
	if string(img.Data) != "result" {
		t.Errorf("data = %q", img.Data)
	}
	req := model.Requests[0]
	if req.Instruction != "make an ad" || len(req.Images) != 2 {
		t.Fatalf("request = %+v", req)
	}
	if string(req.Images[0].Data) != "product" || string(req.Images[1].Data) != "reference" {
		t.Error("images not passed in order")
	}
}

func TestComposite_FilteredNotRetried(t *testing.T) {
	model := &creativetest.Image{Replies: []creativetest.ImageReply{{
		Response: creative.ImageResponse{Filtered: true, FinishReason: "IMAGE_SAFETY", Text: "cannot help"},
	}}}

	_, err := newCompositor(model).Composite(context.Background(), "x", productImg)
	var cf *creative.ContentFilterError
	if !errors.As(err, &cf) {
		t.Fatalf("err = %v, want ContentFilterError", err)
	}
	if cf.Reason != "IMAGE_SAFETY" || cf.UserMessage() == "" {
		t.Errorf("filter error = %+v", cf)
	}
	if model.Calls() != 1 {
		t.Errorf("calls = %d, want 1", model.Calls())
	}
}

func TestComposite_EmptyResult(t *testing.T) {
	model := &creativetest.Image{Replies: []creativetest.ImageReply{{
		Response: creative.ImageResponse{FinishReason: "STOP", Text: "here is a description instead"},
	}}}

	_, err := newCompositor(model).Composite(context.Background(), "x", productImg)
	var gerr *creative.GenerationError
	if !errors.As(err, &gerr) || !errors.Is(err, creative.ErrEmptyResult) {
		t.Fatalf("err = %v, want GenerationError wrapping ErrEmptyResult", err)
	}
	if !strings.Contains(err.Error(), "here is a description") {
		t.Errorf("model text missing from %q", err)
	}
	if model.Calls() != 1 {
		t.Errorf("calls = %d, want 1", model.Calls())
	}
}

func TestComposite_TransientRetried(t *testing.T) {
	model := &creativetest.Image{Replies: []creativetest.ImageReply{
		{Err: creativetest.TransientErr{Msg: "503"}},
		{Response: creative.ImageResponse{Image: filehandler.Image{Data: []byte("ok"), MIMEType: filehandler.MIMEPNG}}},
	}}

	img, err := newCompositor(model).Composite(context.Background(), "x", productImg)
	if err != nil {
		t.Fatalf("Composite: %v", err)
	}
	if string(img.Data) != "ok" || model.Calls() != 2 {
		t.Errorf("data = %q, calls = %d", img.Data, model.Calls())
	}
}

func TestComposite_TransientBudgetExhausted(t *testing.T) {
	model := &creativetest.Image{Replies: []creativetest.ImageReply{{Err: creativetest.TransientErr{Msg: "429"}}}}

	_, err := newCompositor(model).Composite(context.Background(), "x", productImg)
	var gerr *creative.GenerationError
	if !errors.As(err, &gerr) || gerr.Attempts != 3 {
		t.Fatalf("err = %v, want GenerationError after 3 attempts", err)
	}
}

func TestComposite_PermanentErrorNotRetried(t *testing.T) {
	model := &creativetest.Image{Replies: []creativetest.ImageReply{{Err: errors.New("invalid argument")}}}

	if _, err := newCompositor(model).Composite(context.Background(), "x", productImg); err == nil {
		t.Fatal("expected error")
	}
	if model.Calls() != 1 {
		t.Errorf("calls = %d, want 1", model.Calls())
	}
}

func TestComposite_NoImages(t *testing.T) {
	model := creativetest.NewImage([]byte("x"))
	if _, err := newCompositor(model).Composite(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
	if model.Calls() != 0 {
		t.Error("no model call expected")
	}
}

func TestCleanProduct(t *testing.T) {
	model := creativetest.NewImage([]byte("clean"))

	img, err := newCompositor(model).CleanProduct(context.Background(), "red sneaker", productImg)
	if err != nil {
		t.Fatalf("CleanProduct: %v", err)
	}
	if string(img.Data) != "clean" {
		t.Errorf("data = %q", img.Data)
	}
	req := model.Requests[0]
	if req.Name != "clean" || !strings.Contains(req.Instruction, "red sneaker") {
		t.Errorf("request = %+v", req)
	}
}
