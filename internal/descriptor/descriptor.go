// Package descriptor defines the reference descriptor: the structured description
// of an ad template image (layout, variables, scene, constraints) that flows
// between the extraction, fill, and diff steps.
//
// A stored template descriptor is never mutated. Steps that change a descriptor
// work on a Clone and return a new instance ("filled descriptor").
package descriptor

import (
	"encoding/json"
	"fmt"
)

// Version is the literal schema tag carried in meta.version.
const Version = "refimg.v1"

// Descriptor is the root of a reference descriptor document.
type Descriptor struct {
	Meta            Meta             `json:"meta"`
	Variables       Variables        `json:"variables"`
	Scene           Scene            `json:"scene"`
	Subjects        []Subject        `json:"subjects" validate:"dive"`
	Elements        Elements         `json:"elements"`
	Constraints     Constraints      `json:"constraints"`
	Export          Export           `json:"export"`
	Variability     Variability      `json:"variability"`
	Negatives       []string         `json:"negatives"`
	Description     *string          `json:"description,omitempty"`
	SceneVariations []SceneVariation `json:"scene_variations,omitempty" validate:"omitempty,dive"`
}

// Meta carries the schema version and extraction metadata.
type Meta struct {
	Version            string  `json:"version" validate:"eq=refimg.v1"`
	Source             *string `json:"source,omitempty"`
	AspectRatio        string  `json:"aspect_ratio" validate:"required"`
	DetectedResolution *string `json:"detected_resolution,omitempty"`
	Confidence         float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// Variables holds the keyed values a generation run is allowed to replace.
// Keys are template-local identifiers such as HEADLINE or BRAND_PRIMARY.
type Variables struct {
	TextVariables  map[string]TextVariable `json:"text_variables" validate:"dive,keys,required,endkeys"`
	ColorVariables map[string]string       `json:"color_variables" validate:"dive,keys,required,endkeys,hexcolor"`
	FontVariables  map[string]string       `json:"font_variables,omitempty"`
	IconVariables  map[string]string       `json:"icon_variables,omitempty"`
}

// TextVariable is one piece of copy rendered on the template.
type TextVariable struct {
	Content string  `json:"content"`
	Color   string  `json:"color" validate:"required"`
	Font    string  `json:"font"`
	Size    float64 `json:"size" validate:"gte=0"`
	Weight  string  `json:"weight"`
	Case    string  `json:"case"`
	Notes   *string `json:"notes,omitempty"`
}

// Scene describes everything behind and around the subjects.
type Scene struct {
	Background  Background   `json:"background"`
	Lighting    Lighting     `json:"lighting"`
	Camera      Camera       `json:"camera"`
	Composition *Composition `json:"composition,omitempty"`
}

type Background struct {
	Type        string  `json:"type" validate:"required"`
	ColorVar    *string `json:"colorVar,omitempty"`
	ColorVar2   *string `json:"colorVar2,omitempty"`
	Description *string `json:"description,omitempty"`
}

type Lighting struct {
	Key     string   `json:"key" validate:"required"`
	Shadows *string  `json:"shadows,omitempty"`
	Effects []string `json:"effects,omitempty"`
}

type Camera struct {
	Angle        string  `json:"angle" validate:"required"`
	FocalLength  *string `json:"focal_length,omitempty"`
	DepthOfField *string `json:"depth_of_field,omitempty"`
	Framing      *string `json:"framing,omitempty"`
}

type Composition struct {
	Grid     *string   `json:"grid,omitempty"`
	SafeArea []float64 `json:"safe_area,omitempty" validate:"omitempty,len=4,dive,gte=0,lte=1"`
	ZOrder   []string  `json:"z_order,omitempty"`
}

// Position places an entity with an anchor and a normalized [x, y, w, h] box.
type Position struct {
	Anchor string    `json:"anchor" validate:"required"`
	BBox   []float64 `json:"bbox_norm" validate:"len=4,dive,gte=0,lte=1"`
	ZIndex *float64  `json:"z_index,omitempty"`
}

// Subject is a detected foreground entity (product, person, hand with product...).
type Subject struct {
	Name        string   `json:"name" validate:"required"`
	Type        string   `json:"type" validate:"required"`
	Description string   `json:"description"`
	Pose        *string  `json:"pose,omitempty"`
	Materials   []string `json:"materials,omitempty"`
	Position    Position `json:"position"`
	Scale       *string  `json:"scale,omitempty"`
	RotationDeg *float64 `json:"rotation_deg,omitempty"`
	Shadow      *string  `json:"shadow,omitempty"`
	MaskShape   *string  `json:"mask_shape,omitempty"`
}

type Elements struct {
	TextElements    []TextElement    `json:"text_elements" validate:"dive"`
	GraphicElements []GraphicElement `json:"graphic_elements" validate:"dive"`
	ProductElements []ProductElement `json:"product_elements" validate:"dive"`
}

// TextElement positions a text variable; ID is a key of Variables.TextVariables.
type TextElement struct {
	ID            string   `json:"id" validate:"required"`
	Position      Position `json:"position"`
	Alignment     *string  `json:"alignment,omitempty"`
	LineHeight    *float64 `json:"line_height,omitempty"`
	LetterSpacing *float64 `json:"letter_spacing,omitempty"`
	MaxWidth      *float64 `json:"max_width,omitempty"`
	Rotation      *float64 `json:"rotation,omitempty"`
	Effects       []string `json:"effects,omitempty"`
}

type GraphicElement struct {
	Name     string        `json:"name" validate:"required"`
	Type     string        `json:"type" validate:"required"`
	Position Position      `json:"position"`
	Style    *GraphicStyle `json:"style,omitempty"`
	Rotation *float64      `json:"rotation,omitempty"`
	Effects  []string      `json:"effects,omitempty"`
}

type GraphicStyle struct {
	FillColor    *string  `json:"fill_color,omitempty"`
	StrokeColor  *string  `json:"stroke_color,omitempty"`
	StrokeWidth  *float64 `json:"stroke_width,omitempty"`
	Opacity      *float64 `json:"opacity,omitempty" validate:"omitempty,gte=0,lte=1"`
	BorderRadius *float64 `json:"border_radius,omitempty"`
}

type ProductElement struct {
	Name        string   `json:"name" validate:"required"`
	Type        string   `json:"type" validate:"required"`
	Description string   `json:"description"`
	Position    Position `json:"position"`
	Rotation    *float64 `json:"rotation,omitempty"`
	Scale       *string  `json:"scale,omitempty"`
	Shadow      *string  `json:"shadow,omitempty"`
	Effects     []string `json:"effects,omitempty"`
}

type Constraints struct {
	StrictLayoutMatch *bool    `json:"strict_layout_match" validate:"required"`
	DoNotAdd          []string `json:"do_not_add"`
	MustMatch         []string `json:"must_match"`
}

// Export formats accepted in export.format.
const (
	FormatPNG  = "PNG"
	FormatJPG  = "JPG"
	FormatWEBP = "WEBP"
)

type Export struct {
	AspectRatio           string  `json:"aspect_ratio" validate:"required"`
	TargetResolution      *string `json:"target_resolution,omitempty"`
	Format                string  `json:"format,omitempty" validate:"omitempty,oneof=PNG JPG WEBP"`
	TransparentBackground *bool   `json:"transparent_background,omitempty"`
}

// Augmentation intensities accepted in variability.augmentations.
const (
	AugmentNone     = "none"
	AugmentMinor    = "minor"
	AugmentModerate = "moderate"
)

type Variability struct {
	AllowedJitterPct *float64 `json:"allowed_jitter_pct" validate:"required,gte=0,lte=50"`
	RandomSeed       *float64 `json:"random_seed,omitempty"`
	Augmentations    string   `json:"augmentations" validate:"oneof=none minor moderate"`
}

// SceneVariation is a named recipe for multi-shot generation from one template.
type SceneVariation struct {
	Slot        string `json:"slot" validate:"required"`
	AspectRatio string `json:"aspect_ratio" validate:"required"`
	Scene       string `json:"scene"`
	Angle       string `json:"angle"`
	Lighting    string `json:"lighting"`
	Quality     string `json:"quality"`
}

// Defaults applied by ApplyDefaults.
const (
	DefaultJitterPct     = 5.0
	DefaultAugmentations = AugmentNone
	DefaultStrictLayout  = true
	DefaultAspectRatio   = "1:1"
	FallbackConfidence   = 0.5
	FallbackSource       = "fallback"
)

// ApplyDefaults fills the schema defaults for fields the producer left out.
// A missing meta.version is set to Version, which only model output relies
// on: Parse rejects documents without it. It is idempotent.
func (d *Descriptor) ApplyDefaults() {
	if d.Meta.Version == "" {
		d.Meta.Version = Version
	}
	if d.Variables.TextVariables == nil {
		d.Variables.TextVariables = map[string]TextVariable{}
	}
	if d.Variables.ColorVariables == nil {
		d.Variables.ColorVariables = map[string]string{}
	}
	if d.Subjects == nil {
		d.Subjects = []Subject{}
	}
	if d.Elements.TextElements == nil {
		d.Elements.TextElements = []TextElement{}
	}
	if d.Elements.GraphicElements == nil {
		d.Elements.GraphicElements = []GraphicElement{}
	}
	if d.Elements.ProductElements == nil {
		d.Elements.ProductElements = []ProductElement{}
	}
	if d.Constraints.StrictLayoutMatch == nil {
		v := DefaultStrictLayout
		d.Constraints.StrictLayoutMatch = &v
	}
	if d.Constraints.DoNotAdd == nil {
		d.Constraints.DoNotAdd = []string{}
	}
	if d.Constraints.MustMatch == nil {
		d.Constraints.MustMatch = []string{}
	}
	if d.Export.AspectRatio == "" {
		d.Export.AspectRatio = d.Meta.AspectRatio
	}
	if d.Variability.AllowedJitterPct == nil {
		v := DefaultJitterPct
		d.Variability.AllowedJitterPct = &v
	}
	if d.Variability.Augmentations == "" {
		d.Variability.Augmentations = DefaultAugmentations
	}
	if d.Negatives == nil {
		d.Negatives = []string{}
	}
	d.dropEmptyOptional()
}

// dropEmptyOptional sets empty omitempty slices and maps to nil so a parsed
// descriptor equals its own JSON round trip.
func (d *Descriptor) dropEmptyOptional() {
	if len(d.Variables.FontVariables) == 0 {
		d.Variables.FontVariables = nil
	}
	if len(d.Variables.IconVariables) == 0 {
		d.Variables.IconVariables = nil
	}
	if len(d.Scene.Lighting.Effects) == 0 {
		d.Scene.Lighting.Effects = nil
	}
	if c := d.Scene.Composition; c != nil {
		if len(c.SafeArea) == 0 {
			c.SafeArea = nil
		}
		if len(c.ZOrder) == 0 {
			c.ZOrder = nil
		}
	}
	for i := range d.Subjects {
		if len(d.Subjects[i].Materials) == 0 {
			d.Subjects[i].Materials = nil
		}
	}
	for i := range d.Elements.TextElements {
		if len(d.Elements.TextElements[i].Effects) == 0 {
			d.Elements.TextElements[i].Effects = nil
		}
	}
	for i := range d.Elements.GraphicElements {
		if len(d.Elements.GraphicElements[i].Effects) == 0 {
			d.Elements.GraphicElements[i].Effects = nil
		}
	}
	for i := range d.Elements.ProductElements {
		if len(d.Elements.ProductElements[i].Effects) == 0 {
			d.Elements.ProductElements[i].Effects = nil
		}
	}
	if len(d.SceneVariations) == 0 {
		d.SceneVariations = nil
	}
}

// Parse decodes a descriptor document, applies defaults and validates it.
// meta.version must be present and equal Version.
func Parse(data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode descriptor: %w", err)
	}
	if d.Meta.Version != Version {
		return nil, &ValidationError{Fields: []FieldError{{
			Field: "meta.version", Rule: "eq", Param: Version, Value: d.Meta.Version,
		}}}
	}
	d.ApplyDefaults()
	if err := Validate(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Marshal encodes the descriptor as compact JSON.
func (d *Descriptor) Marshal() ([]byte, error) {
	return json.Marshal(d)
}

// MarshalIndent encodes the descriptor for embedding in model prompts.
func (d *Descriptor) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// Clone returns a deep copy made by a JSON round trip. Empty optional slices
// and maps come back as nil, matching what ApplyDefaults leaves.
func (d *Descriptor) Clone() (*Descriptor, error) {
	if d == nil {
		return nil, nil
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("clone descriptor: %w", err)
	}
	var out Descriptor
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("clone descriptor: %w", err)
	}
	return &out, nil
}

// TextKeys returns the set of text variable keys.
func (d *Descriptor) TextKeys() map[string]bool {
	keys := make(map[string]bool, len(d.Variables.TextVariables))
	for k := range d.Variables.TextVariables {
		keys[k] = true
	}
	return keys
}
