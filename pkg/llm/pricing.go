package llm

// ModelPricing holds USD rates per one million tokens.
type ModelPricing struct {
	InputPerMTok       float64
	CachedInputPerMTok float64
	OutputPerMTok      float64
}

// baselineModel is the pricing fallback for models not in the table.
const baselineModel = "deepseek-chat"

var pricingTable = map[string]ModelPricing{
	"deepseek-chat":     {InputPerMTok: 0.27, CachedInputPerMTok: 0.07, OutputPerMTok: 1.10},
	"deepseek-reasoner": {InputPerMTok: 0.55, CachedInputPerMTok: 0.14, OutputPerMTok: 2.19},
	"gpt-4o":            {InputPerMTok: 2.50, CachedInputPerMTok: 1.25, OutputPerMTok: 10.00},
	"gpt-4o-mini":       {InputPerMTok: 0.15, CachedInputPerMTok: 0.075, OutputPerMTok: 0.60},
	"gpt-4.1":           {InputPerMTok: 2.00, CachedInputPerMTok: 0.50, OutputPerMTok: 8.00},
	"gpt-4.1-mini":      {InputPerMTok: 0.40, CachedInputPerMTok: 0.10, OutputPerMTok: 1.60},
}

// PricingFor returns the price card for a model, falling back to the
// baseline model's rates when the model is unlisted.
func PricingFor(model string) ModelPricing {
	if p, ok := pricingTable[model]; ok {
		return p
	}
	return pricingTable[baselineModel]
}

// CostUSD computes the dollar cost of a usage record for the given model.
// Cached input tokens are billed at the cached rate; the remainder of the
// input at the regular rate.
func CostUSD(model string, u Usage) float64 {
	p := PricingFor(model)
	regularInput := u.InputTokens - u.CachedTokens
	if regularInput < 0 {
		regularInput = 0
	}
	return (float64(regularInput)*p.InputPerMTok +
		float64(u.CachedTokens)*p.CachedInputPerMTok +
		float64(u.OutputTokens)*p.OutputPerMTok) / 1_000_000
}
