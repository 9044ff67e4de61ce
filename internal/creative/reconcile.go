package creative

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/berthelol/reference-images/internal/descriptor"
)

// Reconcile merges a model-filled descriptor into a clone of original,
// taking only the sections mode allows to change. Sections absent from
// filledJSON keep the original value. Text and color variable maps always end
// with exactly the original key set. The result is validated.
func Reconcile(original *descriptor.Descriptor, filledJSON []byte, mode FillMode) (*descriptor.Descriptor, error) {
	raw, err := unquoteJSON(filledJSON)
	if err != nil {
		return nil, err
	}
	top, err := sections(raw)
	if err != nil {
		return nil, fmt.Errorf("filled_json is not an object: %w", err)
	}
	var model descriptor.Descriptor
	if err := json.Unmarshal(raw, &model); err != nil {
		return nil, fmt.Errorf("decode filled_json: %w", err)
	}

	out, err := original.Clone()
	if err != nil {
		return nil, err
	}
	vars, _ := sections(top["variables"])
	elems, _ := sections(top["elements"])

	switch mode {
	case FillProductOnly:
		if _, ok := top["subjects"]; ok {
			out.Subjects = model.Subjects
		}
		if _, ok := elems["product_elements"]; ok {
			out.Elements.ProductElements = model.Elements.ProductElements
		}

	case FillTextAndColorOnly:
		mergeVariables(out, &model, vars)

	case FillFull:
		mergeVariables(out, &model, vars)
		if _, ok := vars["font_variables"]; ok {
			out.Variables.FontVariables = model.Variables.FontVariables
		}
		if _, ok := vars["icon_variables"]; ok {
			out.Variables.IconVariables = model.Variables.IconVariables
		}
		if _, ok := top["scene"]; ok {
			out.Scene = model.Scene
		}
		if _, ok := top["subjects"]; ok {
			out.Subjects = model.Subjects
		}
		if _, ok := elems["text_elements"]; ok {
			out.Elements.TextElements = model.Elements.TextElements
		}
		if _, ok := elems["graphic_elements"]; ok {
			out.Elements.GraphicElements = model.Elements.GraphicElements
		}
		if _, ok := elems["product_elements"]; ok {
			out.Elements.ProductElements = model.Elements.ProductElements
		}
		if _, ok := top["negatives"]; ok {
			out.Negatives = model.Negatives
		}
		if model.Description != nil {
			out.Description = model.Description
		}
		if _, ok := top["scene_variations"]; ok {
			out.SceneVariations = model.SceneVariations
		}

	default:
		return nil, fmt.Errorf("unknown fill mode %q", mode)
	}

	out.ApplyDefaults()
	if err := descriptor.Validate(out); err != nil {
		return nil, err
	}
	return out, nil
}

// mergeVariables replaces text and color values in dst with the model's,
// key by key, over dst's key set only. Empty model fields keep dst's value.
func mergeVariables(dst, model *descriptor.Descriptor, present map[string]json.RawMessage) {
	if _, ok := present["text_variables"]; ok {
		for key, orig := range dst.Variables.TextVariables {
			if v, ok := model.Variables.TextVariables[key]; ok {
				dst.Variables.TextVariables[key] = mergeTextVariable(orig, v)
			}
		}
	}
	if _, ok := present["color_variables"]; ok {
		for key := range dst.Variables.ColorVariables {
			if v := model.Variables.ColorVariables[key]; v != "" {
				dst.Variables.ColorVariables[key] = v
			}
		}
	}
}

func mergeTextVariable(orig, next descriptor.TextVariable) descriptor.TextVariable {
	out := next
	// content may legitimately be emptied; styling fields may not.
	if out.Color == "" {
		out.Color = orig.Color
	}
	if out.Font == "" {
		out.Font = orig.Font
	}
	if out.Size == 0 {
		out.Size = orig.Size
	}
	if out.Weight == "" {
		out.Weight = orig.Weight
	}
	if out.Case == "" {
		out.Case = orig.Case
	}
	if out.Notes == nil {
		out.Notes = orig.Notes
	}
	return out
}

// sections returns the top-level members of a JSON object. Non-objects and
// empty input yield an empty map with an error.
func sections(raw json.RawMessage) (map[string]json.RawMessage, error) {
	m := map[string]json.RawMessage{}
	if len(raw) == 0 {
		return m, errors.New("empty")
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]json.RawMessage{}, err
	}
	for k, v := range m {
		if string(v) == "null" {
			delete(m, k)
		}
	}
	return m, nil
}

// unquoteJSON accepts filled_json either as an object or as a string holding
// one, which some models emit.
func unquoteJSON(raw []byte) (json.RawMessage, error) {
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode filled_json string: %w", err)
		}
		return json.RawMessage(s), nil
	}
	return json.RawMessage(raw), nil
}
