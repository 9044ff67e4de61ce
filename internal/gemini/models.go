package gemini

import "os"

// Gemini Model IDs
//
// | Model Name                    | API Model ID                   | Use Case                         |
// |-------------------------------|--------------------------------|----------------------------------|
// | Gemini 2.5 Flash              | gemini-2.5-flash               | Extraction, fill, diff, tagging  |
// | Gemini 2.5 Pro                | gemini-2.5-pro                 | Higher-quality structured output |
// | Gemini 2.5 Flash Image        | gemini-2.5-flash-image-preview | Compositing and product cleanup  |
// | Gemini 3 Pro Image (Preview)  | gemini-3-pro-image-preview     | Higher-fidelity compositing      |
const (
	ModelGemini25Flash      = "gemini-2.5-flash"
	ModelGemini25Pro        = "gemini-2.5-pro"
	ModelGemini25FlashImage = "gemini-2.5-flash-image-preview"
	ModelGemini3ProImage    = "gemini-3-pro-image-preview"
)

const (
	// DefaultTextModel serves every structured step.
	DefaultTextModel = ModelGemini25Flash
	// DefaultImageModel serves compositing.
	DefaultImageModel = ModelGemini25FlashImage
)

// TextModelName returns REFIMG_TEXT_MODEL if set, else DefaultTextModel.
func TextModelName() string {
	if env := os.Getenv("REFIMG_TEXT_MODEL"); env != "" {
		return env
	}
	return DefaultTextModel
}

// ImageModelName returns REFIMG_IMAGE_MODEL if set, else DefaultImageModel.
func ImageModelName() string {
	if env := os.Getenv("REFIMG_IMAGE_MODEL"); env != "" {
		return env
	}
	return DefaultImageModel
}
