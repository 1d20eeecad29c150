package llm

// Price is the USD cost per million tokens for one model.
type Price struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// Pricing maps model names to prices. Models missing from the table use Fallback.
type Pricing struct {
	Models   map[string]Price
	Fallback Price
}

// DefaultPricing returns list prices for the default Gemini models.
func DefaultPricing() Pricing {
	return Pricing{
		Models: map[string]Price{
			"gemini-2.5-flash-lite": {InputPerMillion: 0.10, OutputPerMillion: 0.40},
			"gemini-2.5-flash":      {InputPerMillion: 0.30, OutputPerMillion: 2.50},
			"gemini-2.5-pro":        {InputPerMillion: 1.25, OutputPerMillion: 10.00},
		},
		Fallback: Price{InputPerMillion: 1.25, OutputPerMillion: 5.00},
	}
}

// Cost returns the USD cost of a call.
func (p Pricing) Cost(model string, inputTokens, outputTokens int) float64 {
	price, ok := p.Models[model]
	if !ok {
		price = p.Fallback
	}
	return float64(inputTokens)/1_000_000*price.InputPerMillion +
		float64(outputTokens)/1_000_000*price.OutputPerMillion
}
