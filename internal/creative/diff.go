package creative

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/berthelol/reference-images/internal/assets"
	"github.com/berthelol/reference-images/internal/descriptor"
	"github.com/berthelol/reference-images/internal/jsonutil"
)

// DiffTemperature is the sampling temperature of diff calls.
const DiffTemperature = 0.2

// Instruction kinds, in the order instructions are applied.
const (
	KindText   = "text"
	KindColor  = "color"
	KindLayout = "layout"
	// KindProduct marks product placement edits. They are dropped: the
	// product is positioned by the placement step, not by diff edits.
	KindProduct = "product"
)

// Differ turns the difference between two descriptors into natural-language
// edit instructions for an image model.
type Differ struct {
	Model StructuredModel
	Retry RetryPolicy
}

// NewDiffer returns a Differ with the default retry budget.
func NewDiffer(model StructuredModel) *Differ {
	return &Differ{Model: model, Retry: DiffRetry}
}

// Instruction is one model-authored edit.
type Instruction struct {
	Kind        string `json:"kind"`
	Instruction string `json:"instruction"`
}

type diffResponse struct {
	Instructions []Instruction `json:"instructions"`
}

// Diff returns the ordered edit instructions that turn an image of original
// into an image of filled: text edits first, then colors, then layout. The
// instructions never name variable keys and never concern the product itself.
// Identical descriptors yield no instructions and no model call.
func (d *Differ) Diff(ctx context.Context, original, filled *descriptor.Descriptor) ([]string, error) {
	if original == nil || filled == nil {
		return nil, &GenerationError{Step: "diff", Err: errors.New("missing descriptor")}
	}
	origJSON, err := original.MarshalIndent()
	if err != nil {
		return nil, &GenerationError{Step: "diff", Err: fmt.Errorf("failed to encode original: %w", err)}
	}
	filledJSON, err := filled.MarshalIndent()
	if err != nil {
		return nil, &GenerationError{Step: "diff", Err: fmt.Errorf("failed to encode filled: %w", err)}
	}
	if bytes.Equal(origJSON, filledJSON) {
		log.Debug().Msg("Descriptors identical, no diff instructions")
		return []string{}, nil
	}

	req := StructuredRequest{
		Name:        "diff",
		System:      assets.DiffSystemPrompt,
		Parts:       []Part{TextPart(assets.RenderDiffPrompt(string(origJSON), string(filledJSON)))},
		Temperature: DiffTemperature,
	}

	start := time.Now()
	var raw []Instruction
	attempts, err := d.Retry.run(ctx, func(attempt int) error {
		resp, err := d.Model.GenerateJSON(ctx, req)
		if err != nil {
			return modelErr(err)
		}
		parsed, err := jsonutil.ParseJSON[diffResponse](resp.Text)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("Diff output rejected")
			return err
		}
		raw = parsed.Instructions
		return nil
	})
	if err != nil {
		return nil, &GenerationError{Step: "diff", Attempts: attempts, Err: err}
	}

	out := CleanInstructions(raw, original)
	log.Debug().
		Int("received", len(raw)).
		Int("kept", len(out)).
		Int("attempts", attempts).
		Dur("duration", time.Since(start)).
		Msg("Diff instructions ready")
	return out, nil
}

// CleanInstructions orders instructions by kind, replaces leaked variable
// keys with the values they stand for and drops empty and product placement
// instructions.
func CleanInstructions(in []Instruction, original *descriptor.Descriptor) []string {
	kept := make([]Instruction, 0, len(in))
	for _, ins := range in {
		kind := strings.ToLower(strings.TrimSpace(ins.Kind))
		text := strings.TrimSpace(replaceVariableKeys(ins.Instruction, original))
		if text == "" || kind == KindProduct || movesProduct(text) {
			continue
		}
		kept = append(kept, Instruction{Kind: kind, Instruction: text})
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kindRank(kept[i].Kind) < kindRank(kept[j].Kind)
	})
	out := make([]string, len(kept))
	for i, ins := range kept {
		out[i] = ins.Instruction
	}
	return out
}

// kindRank orders kinds; unknown kinds sort with layout.
func kindRank(kind string) int {
	switch kind {
	case KindText:
		return 0
	case KindColor:
		return 1
	default:
		return 2
	}
}

// replaceVariableKeys swaps any whole-word occurrence of a known text or
// color variable key for the literal content the key stands for.
func replaceVariableKeys(s string, d *descriptor.Descriptor) string {
	if d == nil {
		return s
	}
	for _, key := range longestFirst(d.Variables.TextVariables) {
		tv := d.Variables.TextVariables[key]
		if !strings.Contains(s, key) {
			continue
		}
		repl := tv.Content
		if repl == "" {
			repl = strings.ToLower(strings.ReplaceAll(key, "_", " "))
		}
		s = replaceQuoted(s, keyPattern(key), repl)
	}
	for _, key := range longestFirst(d.Variables.ColorVariables) {
		if !strings.Contains(s, key) {
			continue
		}
		s = keyPattern(key).ReplaceAllLiteralString(s, d.Variables.ColorVariables[key])
	}
	return s
}

// replaceQuoted replaces every match of re with 'text'. Matches that already
// sit between quotes are replaced without adding another pair.
func replaceQuoted(s string, re *regexp.Regexp, text string) string {
	var b strings.Builder
	last := 0
	for _, m := range re.FindAllStringIndex(s, -1) {
		start, end := m[0], m[1]
		quoted := start > 0 && isQuote(s[start-1]) && end < len(s) && isQuote(s[end])
		b.WriteString(s[last:start])
		if quoted {
			b.WriteString(text)
		} else {
			b.WriteString("'" + text + "'")
		}
		last = end
	}
	b.WriteString(s[last:])
	return b.String()
}

// longestFirst returns the map keys ordered by length, longest first, then
// alphabetically.
func longestFirst[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

func isQuote(c byte) bool { return c == '\'' || c == '"' }

func keyPattern(key string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(key) + `\b`)
}

// productEdit matches instructions whose direct object is the product
// itself ("Scale the product down by 10%"). Instructions that only mention
// the product ("the product name", "above the product") do not match.
var productEdit = regexp.MustCompile(`^(?:replace|swap|move|reposition|resize|rescale|scale|shrink|enlarge|place|remove|shift|rotate)\s+(?:the\s+)?product(?:\s+(?:image|photo|itself))?(?:[\s,.;:!]*$|[\s,.;:!]+(?:up|down|by|to|so|slightly|further|closer|left|right|into|in|within|with|for|and|\d)\b)`)

// movesProduct reports whether the instruction edits the product itself.
func movesProduct(s string) bool {
	return productEdit.MatchString(strings.ToLower(strings.TrimSpace(s)))
}
