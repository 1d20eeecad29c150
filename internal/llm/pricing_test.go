package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPricing_Cost(t *testing.T) {
	p := DefaultPricing()

	// 1M input + 1M output on flash
	assert.InDelta(t, 2.80, p.Cost("gemini-2.5-flash", 1_000_000, 1_000_000), 1e-9)
	assert.InDelta(t, 0.0, p.Cost("gemini-2.5-pro", 0, 0), 1e-12)
}

func TestPricing_FallbackForUnknownModel(t *testing.T) {
	p := DefaultPricing()
	assert.InDelta(t, 1.25, p.Cost("mystery-model", 1_000_000, 0), 1e-9)
}

func TestResponse_Cost(t *testing.T) {
	resp := &Response{Model: "gemini-2.5-flash-lite", InputTokens: 2000, OutputTokens: 500}
	assert.InDelta(t, 0.0004, resp.Cost(DefaultPricing()), 1e-9)
}
