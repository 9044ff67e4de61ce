package descriptor

// Fallback returns the minimal descriptor used when extraction cannot produce a
// valid one. The result depends only on aspectRatio, and confidence is pinned to
// FallbackConfidence so consumers can tell it apart from a real extraction.
func Fallback(aspectRatio string) *Descriptor {
	if aspectRatio == "" {
		aspectRatio = DefaultAspectRatio
	}
	source := FallbackSource
	strict := DefaultStrictLayout
	jitter := DefaultJitterPct

	return &Descriptor{
		Meta: Meta{
			Version:     Version,
			Source:      &source,
			AspectRatio: aspectRatio,
			Confidence:  FallbackConfidence,
		},
		Variables: Variables{
			TextVariables:  map[string]TextVariable{},
			ColorVariables: map[string]string{},
		},
		Scene: Scene{
			Background: Background{Type: "solid"},
			Lighting:   Lighting{Key: "soft even studio lighting"},
			Camera:     Camera{Angle: "front"},
		},
		Subjects: []Subject{},
		Elements: Elements{
			TextElements:    []TextElement{},
			GraphicElements: []GraphicElement{},
			ProductElements: []ProductElement{},
		},
		Constraints: Constraints{
			StrictLayoutMatch: &strict,
			DoNotAdd:          []string{},
			MustMatch:         []string{},
		},
		Export: Export{AspectRatio: aspectRatio},
		Variability: Variability{
			AllowedJitterPct: &jitter,
			Augmentations:    DefaultAugmentations,
		},
		Negatives: []string{},
		SceneVariations: []SceneVariation{{
			Slot:        "hero",
			AspectRatio: aspectRatio,
			Scene:       "product centered on a clean studio backdrop",
			Angle:       "eye level, front facing",
			Lighting:    "soft diffused key light with gentle shadow",
			Quality:     "high detail, sharp focus, commercial product photography",
		}},
	}
}

// IsFallback reports whether d was produced by Fallback.
func (d *Descriptor) IsFallback() bool {
	return d.Meta.Source != nil && *d.Meta.Source == FallbackSource
}
