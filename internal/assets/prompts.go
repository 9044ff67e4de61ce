// Package assets provides embedded static assets for the application.
//
// Prompt templates are stored as text files under prompts/ and embedded at
// compile time. Static prompts are exported as strings; prompts with dynamic
// data are exposed through Render* functions.
package assets

import (
	"bytes"
	_ "embed"
	"text/template"
)

// --- Static prompts (no dynamic data) ---

// ExtractSystemPrompt demands strict schema conformance during extraction.
//
//go:embed prompts/extract-system.txt
var ExtractSystemPrompt string

// ExtractExample is the example descriptor embedded in the extraction prompt.
//
//go:embed prompts/extract-example.json
var ExtractExample string

// FillSystemPrompt frames every fill variant.
//
//go:embed prompts/fill-system.txt
var FillSystemPrompt string

// DiffSystemPrompt describes the instruction list contract.
//
//go:embed prompts/diff-system.txt
var DiffSystemPrompt string

// TagsSystemPrompt frames taxonomy tagging.
//
//go:embed prompts/tags-system.txt
var TagsSystemPrompt string

// DescribeSystemPrompt asks for a short product description.
//
//go:embed prompts/describe-system.txt
var DescribeSystemPrompt string

// --- Dynamic prompt templates ---

//go:embed prompts/extract-user.txt
var extractUserTemplate string

//go:embed prompts/fill-full.txt
var fillFullTemplate string

//go:embed prompts/fill-json-only.txt
var fillJSONOnlyTemplate string

//go:embed prompts/fill-product-only.txt
var fillProductOnlyTemplate string

//go:embed prompts/fill-text-color.txt
var fillTextColorTemplate string

//go:embed prompts/diff-user.txt
var diffUserTemplate string

//go:embed prompts/tags-user.txt
var tagsUserTemplate string

//go:embed prompts/clean-product.txt
var cleanProductTemplate string

//go:embed prompts/placement.txt
var placementTemplate string

//go:embed prompts/apply-changes.txt
var applyChangesTemplate string

//go:embed prompts/composite.txt
var compositeTemplate string

var funcs = template.FuncMap{"inc": func(i int) int { return i + 1 }}

// Pre-parsed templates. template.Must panics on malformed templates at startup.
var (
	extractTmpl      = template.Must(template.New("extract").Parse(extractUserTemplate))
	diffTmpl         = template.Must(template.New("diff").Parse(diffUserTemplate))
	tagsTmpl         = template.Must(template.New("tags").Parse(tagsUserTemplate))
	cleanProductTmpl = template.Must(template.New("clean").Parse(cleanProductTemplate))
	placementTmpl    = template.Must(template.New("placement").Parse(placementTemplate))
	applyTmpl        = template.Must(template.New("apply").Funcs(funcs).Parse(applyChangesTemplate))
	compositeTmpl    = template.Must(template.New("composite").Parse(compositeTemplate))

	fillTmpls = map[FillTemplate]*template.Template{
		FillFull:         template.Must(template.New("fill-full").Parse(fillFullTemplate)),
		FillJSONOnly:     template.Must(template.New("fill-json-only").Parse(fillJSONOnlyTemplate)),
		FillProductOnly:  template.Must(template.New("fill-product-only").Parse(fillProductOnlyTemplate)),
		FillTextAndColor: template.Must(template.New("fill-text-color").Parse(fillTextColorTemplate)),
	}
)

// FillTemplate selects the user prompt of a fill call.
type FillTemplate string

const (
	FillFull         FillTemplate = "full"
	FillJSONOnly     FillTemplate = "json-only"
	FillProductOnly  FillTemplate = "product-only"
	FillTextAndColor FillTemplate = "text-and-color"
)

// FillPromptData is injected into the fill templates.
type FillPromptData struct {
	ProductDescription string
	Descriptor         string // indented descriptor JSON
}

// RenderExtractPrompt renders the extraction prompt for the target aspect ratio.
func RenderExtractPrompt(aspectRatio string) string {
	return render(extractTmpl, struct {
		AspectRatio string
		Example     string
	}{aspectRatio, ExtractExample})
}

// RenderFillPrompt renders the user prompt for one fill variant. Unknown
// variants render the full prompt.
func RenderFillPrompt(t FillTemplate, data FillPromptData) string {
	tmpl, ok := fillTmpls[t]
	if !ok {
		tmpl = fillTmpls[FillFull]
	}
	return render(tmpl, data)
}

// RenderDiffPrompt renders the comparison prompt for two indented descriptors.
func RenderDiffPrompt(original, filled string) string {
	return render(diffTmpl, struct{ Original, Filled string }{original, filled})
}

// RenderTagsPrompt renders the tagging prompt. mandatory lists category titles
// that need at least one selected tag.
func RenderTagsPrompt(taxonomyJSON string, mandatory []string) string {
	return render(tagsTmpl, struct {
		Taxonomy  string
		Mandatory []string
	}{taxonomyJSON, mandatory})
}

// RenderCleanProductPrompt renders the fixed product cleanup instruction.
func RenderCleanProductPrompt(productDescription string) string {
	if productDescription == "" {
		productDescription = "Product image"
	}
	return render(cleanProductTmpl, struct{ ProductDescription string }{productDescription})
}

// RenderPlacementPrompt renders the fixed product placement instruction. The
// output depends only on productDescription.
func RenderPlacementPrompt(productDescription string) string {
	return render(placementTmpl, struct{ ProductDescription string }{productDescription})
}

// RenderApplyChangesPrompt renders numbered change instructions for the final
// compositing call.
func RenderApplyChangesPrompt(productDescription string, instructions []string) string {
	return render(applyTmpl, struct {
		ProductDescription string
		Instructions       []string
	}{productDescription, instructions})
}

// CompositeData is injected into the compositing instruction that carries a
// model-authored prompt and its filled descriptor.
type CompositeData struct {
	Heading            string
	ProductDescription string
	Prompt             string
	JSONLabel          string
	Descriptor         string // indented descriptor JSON
	Closing            string
}

// RenderCompositePrompt renders the instruction of a compositing call that
// follows a fill step.
func RenderCompositePrompt(data CompositeData) string {
	return render(compositeTmpl, data)
}

// render executes a pre-parsed template. Execution errors are not expected
// with these templates; whatever was rendered is returned.
func render(tmpl *template.Template, data any) string {
	var buf bytes.Buffer
	_ = tmpl.Execute(&buf, data)
	return buf.String()
}
