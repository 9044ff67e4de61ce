package creative

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/berthelol/reference-images/internal/assets"
	"github.com/berthelol/reference-images/internal/filehandler"
	"github.com/berthelol/reference-images/internal/jsonutil"
	"github.com/berthelol/reference-images/internal/taxonomy"
)

// TagTemperature is the sampling temperature of tagging calls.
const TagTemperature = 0.2

// ProposedTag is a tag the model suggests adding under an existing parent.
type ProposedTag struct {
	Name        string `json:"name"`
	ParentTagID string `json:"parentTagId"`
	Reasoning   string `json:"reasoning,omitempty"`
}

// TagResult is the filtered output of one tagging call.
type TagResult struct {
	TagIDs      []string           `json:"tagIds"`
	Confidences map[string]float64 `json:"confidences"`
	Description string             `json:"description"`
	Proposed    []ProposedTag      `json:"proposedTags"`
	Usage       Usage              `json:"-"`
}

// Tagger selects taxonomy tags for a template image.
type Tagger struct {
	Model StructuredModel
	Retry RetryPolicy
}

// NewTagger returns a Tagger with the default retry budget.
func NewTagger(model StructuredModel) *Tagger {
	return &Tagger{Model: model, Retry: TagRetry}
}

// Tag asks the model for tags from tax. IDs tax does not know are dropped,
// confidences are clamped to [0,1] and proposals need a known parent.
func (t *Tagger) Tag(ctx context.Context, img filehandler.Image, tax taxonomy.Taxonomy) (*TagResult, error) {
	req := StructuredRequest{
		Name:        "tags",
		System:      assets.TagsSystemPrompt,
		Parts:       []Part{TextPart(assets.RenderTagsPrompt(tax.PromptJSON(), tax.MandatoryTitles())), ImagePart(img)},
		Temperature: TagTemperature,
	}

	start := time.Now()
	var (
		raw   TagResult
		usage Usage
	)
	attempts, err := t.Retry.run(ctx, func(attempt int) error {
		resp, err := t.Model.GenerateJSON(ctx, req)
		if err != nil {
			return modelErr(err)
		}
		usage = usage.Add(resp.Usage)
		parsed, err := jsonutil.ParseJSON[TagResult](resp.Text)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("Tag output rejected")
			return err
		}
		raw = parsed
		return nil
	})
	if err != nil {
		return nil, &GenerationError{Step: "tags", Attempts: attempts, Err: err}
	}

	out := FilterTags(raw, tax)
	out.Usage = usage
	log.Debug().
		Int("received", len(raw.TagIDs)).
		Int("kept", len(out.TagIDs)).
		Int("proposed", len(out.Proposed)).
		Dur("duration", time.Since(start)).
		Msg("Tags selected")
	return &out, nil
}

// FilterTags restricts a raw tag result to what tax allows.
func FilterTags(raw TagResult, tax taxonomy.Taxonomy) TagResult {
	out := TagResult{
		TagIDs:      []string{},
		Confidences: map[string]float64{},
		Description: strings.TrimSpace(raw.Description),
		Proposed:    []ProposedTag{},
	}
	seen := map[string]bool{}
	for _, id := range raw.TagIDs {
		if seen[id] || !tax.HasTag(id) {
			continue
		}
		seen[id] = true
		out.TagIDs = append(out.TagIDs, id)
		if c, ok := raw.Confidences[id]; ok {
			out.Confidences[id] = clamp01(c)
		}
	}
	for _, p := range raw.Proposed {
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" || !tax.HasParent(p.ParentTagID) || tax.HasTitle(p.Name) {
			continue
		}
		out.Proposed = append(out.Proposed, p)
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
