package creative_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/berthelol/reference-images/internal/creative"
	"github.com/berthelol/reference-images/internal/creative/creativetest"
	"github.com/berthelol/reference-images/internal/taxonomy"
)

func sampleTaxonomy() taxonomy.Taxonomy {
	return taxonomy.New([]taxonomy.Category{
		{ID: "cat-style", Title: "Style", Mandatory: true, Tags: []taxonomy.Tag{
			{ID: "t-minimal", Title: "Minimal"},
			{ID: "t-bold", Title: "Bold"},
		}},
		{ID: "cat-setting", Title: "Setting", Tags: []taxonomy.Tag{
			{ID: "t-studio", Title: "Studio"},
		}},
	})
}

func TestFilterTags(t *testing.T) {
	raw := creative.TagResult{
		TagIDs:      []string{"t-bold", "unknown", "cat-style", "t-bold", "t-studio"},
		Confidences: map[string]float64{"t-bold": 1.7, "unknown": 0.9, "t-studio": -0.2},
		Description: "  Flat yellow backdrop.  ",
		Proposed: []creative.ProposedTag{
			{Name: "Neon", ParentTagID: "cat-style"},
			{Name: "Neon", ParentTagID: "missing"},
			{Name: "studio", ParentTagID: "cat-setting"},
			{Name: " ", ParentTagID: "cat-style"},
			{Name: "Glossy", ParentTagID: "t-bold"},
		},
	}
	got := creative.FilterTags(raw, sampleTaxonomy())

	if strings.Join(got.TagIDs, ",") != "t-bold,t-studio" {
		t.Errorf("tag ids = %v", got.TagIDs)
	}
	if got.Confidences["t-bold"] != 1 || got.Confidences["t-studio"] != 0 {
		t.Errorf("confidences = %v", got.Confidences)
	}
	if _, ok := got.Confidences["unknown"]; ok {
		t.Error("confidence of unknown id kept")
	}
	if got.Description != "Flat yellow backdrop." {
		t.Errorf("description = %q", got.Description)
	}
	if len(got.Proposed) != 2 || got.Proposed[0].Name != "Neon" || got.Proposed[1].Name != "Glossy" {
		t.Errorf("proposed = %+v", got.Proposed)
	}
}

func TestTag(t *testing.T) {
	model := creativetest.NewStructured(`{"description": "d", "tagIds": ["t-minimal", "nope"], "confidences": {"t-minimal": 0.8}}`)
	tagger := creative.NewTagger(model)
	tagger.Retry = creativetest.FastRetry(2)

	res, err := tagger.Tag(context.Background(), referenceImg, sampleTaxonomy())
	if err != nil {
		t.Fatalf("Tag: %v", err)
	}
	if len(res.TagIDs) != 1 || res.TagIDs[0] != "t-minimal" {
		t.Errorf("tag ids = %v", res.TagIDs)
	}
	if res.Usage.InputTokens == 0 {
		t.Error("usage not recorded")
	}
	prompt := model.Requests[0].Parts[0].Text
	if !strings.Contains(prompt, `"Style"`) || !strings.Contains(prompt, "t-studio") {
		t.Errorf("prompt missing taxonomy or mandatory category:\n%s", prompt)
	}
}

func TestTag_BudgetExhausted(t *testing.T) {
	model := creativetest.NewStructured("nope")
	tagger := creative.NewTagger(model)
	tagger.Retry = creativetest.FastRetry(2)

	_, err := tagger.Tag(context.Background(), referenceImg, sampleTaxonomy())
	var gerr *creative.GenerationError
	if !errors.As(err, &gerr) || gerr.Step != "tags" {
		t.Fatalf("err = %v", err)
	}
}
