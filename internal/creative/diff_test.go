package creative_test

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/berthelol/reference-images/internal/creative"
	"github.com/berthelol/reference-images/internal/creative/creativetest"
	"github.com/berthelol/reference-images/internal/descriptor/descriptortest"
)

func newDiffer(model creative.StructuredModel) *creative.Differ {
	d := creative.NewDiffer(model)
	d.Retry = creativetest.FastRetry(3)
	return d
}

func TestDiff_IdenticalSkipsModel(t *testing.T) {
	model := creativetest.NewStructured()
	got, err := newDiffer(model).Diff(context.Background(), descriptortest.Sample(), descriptortest.Sample())
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("instructions = %v, want none", got)
	}
	if model.Calls() != 0 {
		t.Errorf("calls = %d, want 0", model.Calls())
	}
}

func TestDiff_OrdersAndCleans(t *testing.T) {
	reply := `{"instructions": [
		{"kind": "layout", "instruction": "Make the button corners rounder"},
		{"kind": "color", "instruction": "Change the BACKGROUND color to #00FF00"},
		{"kind": "text", "instruction": "Change HEADLINE to 'Playful Design'"},
		{"kind": "layout", "instruction": "Replace the product with the new product and move it left"},
		{"kind": "text", "instruction": "Change the text 'SUBHEAD' to 'Fresh'"},
		{"kind": "text", "instruction": "   "}
	]}`
	model := creativetest.NewStructured(reply)
	original := descriptortest.Sample()
	filled := descriptortest.Sample()
	filled.Variables.ColorVariables["BACKGROUND"] = "#00FF00"

	got, err := newDiffer(model).Diff(context.Background(), original, filled)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	want := []string{
		"Change 'Meet Your New Peanut Butter Cup Addiction' to 'Playful Design'",
		"Change the text 'Irresistibly Creamy & Rich' to 'Fresh'",
		"Change the #FFC72C color to #00FF00",
		"Make the button corners rounder",
	}
	if len(got) != len(want) {
		t.Fatalf("got %d instructions %q, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("instruction %d = %q, want %q", i, got[i], want[i])
		}
	}
	if model.Requests[0].Temperature != creative.DiffTemperature {
		t.Errorf("temperature = %v", model.Requests[0].Temperature)
	}
}

func TestCleanInstructions_NoVariableKeysLeak(t *testing.T) {
	d := descriptortest.Sample()
	in := []creative.Instruction{
		{Kind: "text", Instruction: "Set CTA to 'Buy'"},
		{Kind: "color", Instruction: "Use BRAND_PRIMARY for TEXT_DARK areas"},
		{Kind: "text", Instruction: "Move SUBHEAD text closer to HEADLINE"},
	}
	out := creative.CleanInstructions(in, d)

	var keys []string
	for k := range d.Variables.TextVariables {
		keys = append(keys, regexp.QuoteMeta(k))
	}
	for k := range d.Variables.ColorVariables {
		keys = append(keys, regexp.QuoteMeta(k))
	}
	leak := regexp.MustCompile(`\b(` + strings.Join(keys, "|") + `)\b`)
	for _, s := range out {
		if leak.MatchString(s) {
			t.Errorf("variable key leaked in %q", s)
		}
	}
}

func TestCleanInstructions_EmptyContentUsesKeyWords(t *testing.T) {
	d := descriptortest.Sample()
	tv := d.Variables.TextVariables["CTA"]
	tv.Content = ""
	d.Variables.TextVariables["CTA"] = tv

	out := creative.CleanInstructions([]creative.Instruction{{Kind: "text", Instruction: "Remove CTA"}}, d)
	if len(out) != 1 || out[0] != "Remove 'cta'" {
		t.Errorf("got %q", out)
	}
}

func TestCleanInstructions_QuotedProductCopyKept(t *testing.T) {
	out := creative.CleanInstructions([]creative.Instruction{
		{Kind: "text", Instruction: "Change the text 'Old' to 'Add our best product to your cart'"},
		{Kind: "layout", Instruction: "Scale the product down by 10%"},
	}, descriptortest.Sample())
	if len(out) != 1 || !strings.HasPrefix(out[0], "Change the text") {
		t.Errorf("got %q", out)
	}
}

func TestCleanInstructions_KeepsEditsMentioningProduct(t *testing.T) {
	out := creative.CleanInstructions([]creative.Instruction{
		{Kind: "text", Instruction: "Replace the product name 'Reese' with 'Fizz'"},
		{Kind: "layout", Instruction: "Move the headline slightly above the product"},
		{Kind: "layout", Instruction: "Add a soft glow behind the product badge"},
		{Kind: "text", Instruction: "Change the text 'Shop Now' to 'Add to cart'"},
		{Kind: "product", Instruction: "Swap in the new jar"},
		{Kind: "layout", Instruction: "Scale the product down by 10%"},
		{Kind: "layout", Instruction: "Move the product."},
	}, descriptortest.Sample())
	want := []string{
		"Replace the product name 'Reese' with 'Fizz'",
		"Change the text 'Shop Now' to 'Add to cart'",
		"Move the headline slightly above the product",
		"Add a soft glow behind the product badge",
	}
	if len(out) != len(want) {
		t.Fatalf("got %q, want %q", out, want)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("instruction %d = %q, want %q", i, out[i], want[i])
		}
	}
}

func TestCleanInstructions_UnknownKindSortsAsLayout(t *testing.T) {
	out := creative.CleanInstructions([]creative.Instruction{
		{Kind: "effects", Instruction: "a"},
		{Kind: "layout", Instruction: "b"},
		{Kind: "COLOR", Instruction: "c"},
	}, descriptortest.Sample())
	if strings.Join(out, "") != "cab" {
		t.Errorf("got %q", out)
	}
}

func TestDiff_BudgetExhausted(t *testing.T) {
	model := creativetest.NewStructured("no json here")
	filled := descriptortest.Sample()
	filled.Negatives = append(filled.Negatives, "grain")

	_, err := newDiffer(model).Diff(context.Background(), descriptortest.Sample(), filled)
	var gerr *creative.GenerationError
	if !errors.As(err, &gerr) || gerr.Step != "diff" {
		t.Fatalf("err = %v, want diff GenerationError", err)
	}
	if gerr.Attempts != 4 || model.Calls() != 4 {
		t.Errorf("attempts = %d, calls = %d, want 4", gerr.Attempts, model.Calls())
	}
}
