package creative_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/berthelol/reference-images/internal/creative"
	"github.com/berthelol/reference-images/internal/creative/creativetest"
)

func TestDescribe_CapsWords(t *testing.T) {
	long := strings.Repeat("word ", 80)
	model := creativetest.NewStructured("  " + long + "\n")
	d := creative.NewDescriber(model)
	d.Retry = creativetest.FastRetry(2)

	got, err := d.Describe(context.Background(), productImg, productImg)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if n := len(strings.Fields(got)); n != creative.MaxDescriptionWords {
		t.Errorf("words = %d, want %d", n, creative.MaxDescriptionWords)
	}
	req := model.Requests[0]
	if !req.PlainText || req.Temperature != creative.DescribeTemperature || len(req.Parts) != 3 {
		t.Errorf("request = %+v", req)
	}
}

func TestDescribe_EmptyRetried(t *testing.T) {
	model := creativetest.NewStructured("   ", "A red sneaker.")
	d := creative.NewDescriber(model)
	d.Retry = creativetest.FastRetry(2)

	got, err := d.Describe(context.Background(), productImg)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if got != "A red sneaker." {
		t.Errorf("got %q", got)
	}
}

func TestDescribe_NoImages(t *testing.T) {
	if _, err := creative.NewDescriber(creativetest.NewStructured("x")).Describe(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestUsageMeter(t *testing.T) {
	var m creative.UsageMeter
	structured := m.Structured(creativetest.NewStructured("{}"))
	image := m.Image(creativetest.NewImage([]byte("x")))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = structured.GenerateJSON(context.Background(), creative.StructuredRequest{})
		}()
	}
	wg.Wait()
	if _, err := image.GenerateImage(context.Background(), creative.ImageRequest{}); err != nil {
		t.Fatal(err)
	}

	usage, calls := m.Total()
	if calls != 5 {
		t.Errorf("calls = %d, want 5", calls)
	}
	if usage.InputTokens != 4*100+500 || usage.OutputTokens != 4*10+1290 {
		t.Errorf("usage = %+v", usage)
	}
}
