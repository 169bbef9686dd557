package model

import (
	"github.com/cloudwego/eino/schema"
)

// Pricing defines USD cost per 1M tokens for input/output.
type Pricing struct {
	InputPerM  float64
	OutputPerM float64
}

// defaultPricing provides hardcoded USD pricing per 1M tokens (text tokens).
var defaultPricing = map[string]Pricing{
	"gemini-2.5-flash":      {InputPerM: 0.30, OutputPerM: 2.50},
	"gemini-2.5-flash-lite": {InputPerM: 0.10, OutputPerM: 0.40},
	"gemini-2.5-pro":        {InputPerM: 1.25, OutputPerM: 10.00},
}

// Usage is the cost summary of one text-generation call.
type Usage struct {
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	InputCost        float64
	OutputCost       float64
	TotalCost        float64
}

// ResolvePricing returns hardcoded pricing for a model, zero when unknown.
func ResolvePricing(model string) Pricing {
	return defaultPricing[model]
}

// ComputeUsage converts token usage to USD cost using per-1M Pricing.
// A nil usage yields a zero Usage carrying only the model name.
func ComputeUsage(model string, usage *schema.TokenUsage) Usage {
	u := Usage{Model: model}
	if usage == nil {
		return u
	}
	p := ResolvePricing(model)
	u.PromptTokens = usage.PromptTokens
	u.CompletionTokens = usage.CompletionTokens
	u.TotalTokens = usage.TotalTokens
	u.InputCost = p.InputPerM * float64(usage.PromptTokens) / 1_000_000.0
	u.OutputCost = p.OutputPerM * float64(usage.CompletionTokens) / 1_000_000.0
	u.TotalCost = u.InputCost + u.OutputCost
	return u
}
