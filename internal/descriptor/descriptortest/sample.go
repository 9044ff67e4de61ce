// Package descriptortest provides descriptor fixtures for tests.
package descriptortest

import (
	"github.com/berthelol/reference-images/internal/descriptor"
)

// SampleJSON is a complete, valid template descriptor for a candy ad.
const SampleJSON = `{
  "meta": {"version": "refimg.v1", "source": "uploaded", "aspect_ratio": "4:5", "detected_resolution": "1080x1350", "confidence": 0.9},
  "variables": {
    "text_variables": {
      "HEADLINE": {"content": "Meet Your New Peanut Butter Cup Addiction", "color": "#4A2C00", "font": "Helvetica", "size": 42, "weight": "bold", "case": "title"},
      "SUBHEAD": {"content": "Irresistibly Creamy & Rich", "color": "#4A2C00", "font": "Helvetica", "size": 20, "weight": "normal", "case": "normal", "notes": "under headline"},
      "CTA": {"content": "Shop Now", "color": "#FFFFFF", "font": "Helvetica", "size": 18, "weight": "bold", "case": "upper"}
    },
    "color_variables": {"BACKGROUND": "#FFC72C", "BRAND_PRIMARY": "#FF6B00", "TEXT_DARK": "#4A2C00"}
  },
  "scene": {
    "background": {"type": "solid", "colorVar": "BACKGROUND", "description": "flat yellow backdrop"},
    "lighting": {"key": "soft studio light from the top left", "shadows": "soft drop shadow"},
    "camera": {"angle": "front, slightly above", "depth_of_field": "deep"},
    "composition": {"grid": "center-weighted", "safe_area": [0.05, 0.05, 0.9, 0.9]}
  },
  "subjects": [
    {"name": "main_product", "type": "product", "description": "orange candy wrapper with two cups", "position": {"anchor": "center", "bbox_norm": [0.25, 0.35, 0.5, 0.4]}, "scale": "large", "shadow": "drop"}
  ],
  "elements": {
    "text_elements": [
      {"id": "HEADLINE", "position": {"anchor": "top", "bbox_norm": [0.1, 0.05, 0.8, 0.15], "z_index": 10}, "alignment": "center"},
      {"id": "SUBHEAD", "position": {"anchor": "top", "bbox_norm": [0.15, 0.2, 0.7, 0.08], "z_index": 9}, "alignment": "center"},
      {"id": "CTA", "position": {"anchor": "bottom", "bbox_norm": [0.35, 0.85, 0.3, 0.07], "z_index": 12}}
    ],
    "graphic_elements": [
      {"name": "cta_button", "type": "shape", "position": {"anchor": "bottom", "bbox_norm": [0.33, 0.84, 0.34, 0.09], "z_index": 11}, "style": {"fill_color": "BRAND_PRIMARY", "border_radius": 24, "opacity": 1}}
    ],
    "product_elements": [
      {"name": "main_product", "type": "package", "description": "candy wrapper", "position": {"anchor": "center", "bbox_norm": [0.25, 0.35, 0.5, 0.4], "z_index": 5}, "scale": "large", "shadow": "drop"}
    ]
  },
  "constraints": {"strict_layout_match": true, "do_not_add": ["extra logos"], "must_match": ["text positions", "product placement"]},
  "export": {"aspect_ratio": "4:5", "format": "PNG"},
  "variability": {"allowed_jitter_pct": 5, "augmentations": "none"},
  "negatives": ["blurry text", "watermarks"]
}`

// Sample parses SampleJSON and panics if it is invalid.
func Sample() *descriptor.Descriptor {
	d, err := descriptor.Parse([]byte(SampleJSON))
	if err != nil {
		panic(err)
	}
	return d
}
