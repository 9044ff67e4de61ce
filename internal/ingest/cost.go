package ingest

import (
	"github.com/berthelol/reference-images/internal/creative"
)

// Price is the list price of a model in USD per one million tokens.
type Price struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// Prices holds paid-tier Gemini list prices. Unknown models are costed at the
// gemini-2.5-flash rate.
var Prices = map[string]Price{
	"gemini-2.5-flash":               {InputPerMillion: 0.30, OutputPerMillion: 2.50},
	"gemini-2.5-flash-lite":          {InputPerMillion: 0.10, OutputPerMillion: 0.40},
	"gemini-2.5-pro":                 {InputPerMillion: 1.25, OutputPerMillion: 10.00},
	"gemini-2.5-flash-image-preview": {InputPerMillion: 0.30, OutputPerMillion: 30.00},
	"gemini-3-pro-image-preview":     {InputPerMillion: 2.00, OutputPerMillion: 120.00},
}

const fallbackPriceModel = "gemini-2.5-flash"

// CostEstimate is the estimated spend of the model calls of one operation.
type CostEstimate struct {
	Model        string  `json:"model"`
	Calls        int     `json:"calls"`
	InputTokens  int     `json:"inputTokens"`
	OutputTokens int     `json:"outputTokens"`
	USD          float64 `json:"usd"`
}

// EstimateCost prices usage at model's rate.
func EstimateCost(model string, usage creative.Usage, calls int) CostEstimate {
	p, ok := Prices[model]
	if !ok {
		p = Prices[fallbackPriceModel]
	}
	usd := float64(usage.InputTokens)/1e6*p.InputPerMillion +
		float64(usage.OutputTokens)/1e6*p.OutputPerMillion
	return CostEstimate{
		Model:        model,
		Calls:        calls,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		USD:          usd,
	}
}

// Add sums two estimates. The model of e is kept.
func (e CostEstimate) Add(o CostEstimate) CostEstimate {
	e.Calls += o.Calls
	e.InputTokens += o.InputTokens
	e.OutputTokens += o.OutputTokens
	e.USD += o.USD
	return e
}
