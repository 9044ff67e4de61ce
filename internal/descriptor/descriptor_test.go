package descriptor_test

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/berthelol/reference-images/internal/descriptor"
	"github.com/berthelol/reference-images/internal/descriptor/descriptortest"
)

func TestParse_Sample(t *testing.T) {
	d := descriptortest.Sample()
	if d.Meta.Version != descriptor.Version {
		t.Errorf("version = %q, want %q", d.Meta.Version, descriptor.Version)
	}
	if got := len(d.Variables.TextVariables); got != 3 {
		t.Errorf("text variables = %d, want 3", got)
	}
	if d.Subjects[0].Position.BBox[2] != 0.5 {
		t.Errorf("bbox width = %v, want 0.5", d.Subjects[0].Position.BBox[2])
	}
}

func TestRoundTrip(t *testing.T) {
	d := descriptortest.Sample()
	data, err := d.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	back, err := descriptor.Parse(data)
	if err != nil {
		t.Fatalf("Parse after Marshal: %v", err)
	}
	if !reflect.DeepEqual(d, back) {
		t.Errorf("round trip changed descriptor\nbefore: %+v\nafter:  %+v", d, back)
	}
}

func TestRoundTrip_EmptyOptionalLists(t *testing.T) {
	raw := strings.Replace(descriptortest.SampleJSON,
		`"type": "product", "description"`, `"type": "product", "materials": [], "description"`, 1)
	raw = strings.Replace(raw, `"alignment": "center"}`, `"alignment": "center", "effects": []}`, 1)
	raw = strings.Replace(raw, `"color_variables"`, `"font_variables": {}, "color_variables"`, 1)
	d, err := descriptor.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.Subjects[0].Materials != nil || d.Elements.TextElements[0].Effects != nil || d.Variables.FontVariables != nil {
		t.Errorf("empty optional lists should parse as nil: %+v", d)
	}
	data, err := d.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	back, err := descriptor.Parse(data)
	if err != nil {
		t.Fatalf("Parse after Marshal: %v", err)
	}
	if !reflect.DeepEqual(d, back) {
		t.Errorf("round trip changed descriptor\nbefore: %+v\nafter:  %+v", d, back)
	}
	c, err := d.Clone()
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if !reflect.DeepEqual(d, c) {
		t.Error("clone differs from parsed descriptor")
	}
}

func TestParse_RequiresVersion(t *testing.T) {
	for _, raw := range []string{
		strings.Replace(descriptortest.SampleJSON, `"version": "refimg.v1", `, "", 1),
		strings.Replace(descriptortest.SampleJSON, `"refimg.v1"`, `"refimg.v2"`, 1),
	} {
		_, err := descriptor.Parse([]byte(raw))
		var verr *descriptor.ValidationError
		if !errors.As(err, &verr) || !verr.Has("meta.version") {
			t.Errorf("err = %v, want meta.version failure", err)
		}
	}
}

func TestApplyDefaults_FillsMissingVersion(t *testing.T) {
	var d descriptor.Descriptor
	d.ApplyDefaults()
	if d.Meta.Version != descriptor.Version {
		t.Errorf("version = %q, want %q", d.Meta.Version, descriptor.Version)
	}
}

func TestClone_Independent(t *testing.T) {
	d := descriptortest.Sample()
	c, err := d.Clone()
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if !reflect.DeepEqual(d, c) {
		t.Fatal("clone differs from original")
	}
	c.Variables.TextVariables["HEADLINE"] = descriptor.TextVariable{Content: "changed", Color: "#000000"}
	c.Subjects[0].Position.BBox[0] = 0.9
	if d.Variables.TextVariables["HEADLINE"].Content == "changed" {
		t.Error("mutating clone map changed original")
	}
	if d.Subjects[0].Position.BBox[0] == 0.9 {
		t.Error("mutating clone slice changed original")
	}
}

func TestValidate_BBoxBounds(t *testing.T) {
	tests := []struct {
		name  string
		bbox  []float64
		valid bool
	}{
		{"inside", []float64{0, 0, 1, 1}, true},
		{"negative", []float64{-0.1, 0, 0.5, 0.5}, false},
		{"above one", []float64{0.2, 0.2, 1.2, 0.5}, false},
		{"three components", []float64{0.2, 0.2, 0.5}, false},
		{"five components", []float64{0.2, 0.2, 0.5, 0.5, 0.5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := descriptortest.Sample()
			d.Subjects[0].Position.BBox = tt.bbox
			err := descriptor.Validate(d)
			if tt.valid && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.valid {
				var verr *descriptor.ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				if !strings.Contains(verr.Error(), "subjects[0].position.bbox_norm") {
					t.Errorf("error does not name the bbox field: %v", verr)
				}
			}
		})
	}
}

func TestValidate_Rules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *descriptor.Descriptor)
		field  string
	}{
		{"wrong version", func(d *descriptor.Descriptor) { d.Meta.Version = "refimg.v0" }, "meta.version"},
		{"confidence above one", func(d *descriptor.Descriptor) { d.Meta.Confidence = 1.5 }, "meta.confidence"},
		{"jitter above fifty", func(d *descriptor.Descriptor) { v := 51.0; d.Variability.AllowedJitterPct = &v }, "variability.allowed_jitter_pct"},
		{"unknown augmentation", func(d *descriptor.Descriptor) { d.Variability.Augmentations = "heavy" }, "variability.augmentations"},
		{"bad export format", func(d *descriptor.Descriptor) { d.Export.Format = "GIF" }, "export.format"},
		{"color not hex", func(d *descriptor.Descriptor) { d.Variables.ColorVariables["BACKGROUND"] = "yellow" }, "variables.color_variables[BACKGROUND]"},
		{"dangling text element", func(d *descriptor.Descriptor) { d.Elements.TextElements[0].ID = "TAGLINE" }, "elements.text_elements[0].id"},
		{"safe area too short", func(d *descriptor.Descriptor) { d.Scene.Composition.SafeArea = []float64{0.1, 0.1} }, "scene.composition.safe_area"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := descriptortest.Sample()
			tt.mutate(d)
			err := descriptor.Validate(d)
			var verr *descriptor.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if !verr.Has(tt.field) {
				t.Errorf("expected failure on %s, got %v", tt.field, verr)
			}
		})
	}
}

func TestParse_Defaults(t *testing.T) {
	raw := `{"meta":{"version":"refimg.v1","aspect_ratio":"1:1","confidence":0.7},
		"variables":{"text_variables":{},"color_variables":{}},
		"scene":{"background":{"type":"solid"},"lighting":{"key":"soft"},"camera":{"angle":"front"}},
		"subjects":[],"elements":{"text_elements":[],"graphic_elements":[],"product_elements":[]},
		"constraints":{},"export":{"aspect_ratio":"1:1"},"variability":{}}`
	d, err := descriptor.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.Constraints.StrictLayoutMatch == nil || !*d.Constraints.StrictLayoutMatch {
		t.Error("strict_layout_match should default to true")
	}
	if d.Variability.AllowedJitterPct == nil || *d.Variability.AllowedJitterPct != 5 {
		t.Errorf("allowed_jitter_pct should default to 5, got %v", d.Variability.AllowedJitterPct)
	}
	if d.Variability.Augmentations != descriptor.AugmentNone {
		t.Errorf("augmentations = %q, want none", d.Variability.Augmentations)
	}
	if d.Negatives == nil || d.Constraints.DoNotAdd == nil {
		t.Error("list defaults should be empty, not nil")
	}
}

func TestParse_NoTextStillValid(t *testing.T) {
	raw := `{"meta":{"version":"refimg.v1","aspect_ratio":"9:16","confidence":0.8},
		"variables":{"text_variables":{},"color_variables":{"BACKGROUND":"#101010"}},
		"scene":{"background":{"type":"studio","colorVar":"BACKGROUND"},"lighting":{"key":"rim light"},"camera":{"angle":"three-quarter"}},
		"subjects":[{"name":"bottle","type":"product","description":"glass bottle","position":{"anchor":"center","bbox_norm":[0.3,0.2,0.4,0.6]}}],
		"elements":{"text_elements":[],"graphic_elements":[],"product_elements":[]},
		"constraints":{"strict_layout_match":true},"export":{"aspect_ratio":"9:16"},
		"variability":{"allowed_jitter_pct":0,"augmentations":"minor"},"negatives":[]}`
	d, err := descriptor.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(d.Variables.TextVariables) != 0 {
		t.Errorf("text variables = %v, want empty", d.Variables.TextVariables)
	}
	if len(d.Subjects) != 1 {
		t.Errorf("subjects = %d, want 1", len(d.Subjects))
	}
	if *d.Variability.AllowedJitterPct != 0 {
		t.Errorf("explicit zero jitter was replaced by default")
	}
}

func TestFallback(t *testing.T) {
	a := descriptor.Fallback("4:5")
	b := descriptor.Fallback("4:5")
	if !reflect.DeepEqual(a, b) {
		t.Error("fallback is not deterministic")
	}
	if err := descriptor.Validate(a); err != nil {
		t.Fatalf("fallback does not validate: %v", err)
	}
	if a.Meta.Confidence != descriptor.FallbackConfidence {
		t.Errorf("confidence = %v, want %v", a.Meta.Confidence, descriptor.FallbackConfidence)
	}
	if !a.IsFallback() {
		t.Error("IsFallback() = false")
	}
	if len(a.SceneVariations) != 1 || a.SceneVariations[0].AspectRatio != "4:5" {
		t.Errorf("scene variations = %+v", a.SceneVariations)
	}
	if len(a.Variables.TextVariables) != 0 || len(a.Variables.ColorVariables) != 0 {
		t.Error("fallback variables should be empty")
	}
	if got := descriptor.Fallback("").Meta.AspectRatio; got != descriptor.DefaultAspectRatio {
		t.Errorf("empty aspect ratio = %q, want %q", got, descriptor.DefaultAspectRatio)
	}
}

func TestClosestAspectRatio(t *testing.T) {
	tests := []struct {
		w, h int
		want string
	}{
		{1080, 1080, "1:1"},
		{1080, 1350, "4:5"},
		{1080, 1920, "9:16"},
		{1920, 1080, "16:9"},
		{3000, 4000, "3:4"},
		{2560, 1080, "21:9"},
		{0, 100, "1:1"},
	}
	for _, tt := range tests {
		if got := descriptor.ClosestAspectRatio(tt.w, tt.h); got != tt.want {
			t.Errorf("ClosestAspectRatio(%d, %d) = %q, want %q", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestParseAspectRatio(t *testing.T) {
	v, err := descriptor.ParseAspectRatio("16:9")
	if err != nil || v < 1.77 || v > 1.78 {
		t.Errorf("ParseAspectRatio(16:9) = %v, %v", v, err)
	}
	for _, bad := range []string{"", "16x9", "0:1", "a:b"} {
		if _, err := descriptor.ParseAspectRatio(bad); err == nil {
			t.Errorf("ParseAspectRatio(%q) should fail", bad)
		}
	}
}
