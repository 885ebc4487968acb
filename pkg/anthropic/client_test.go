package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateCost(t *testing.T) {
	usage := TokenUsage{
		InputTokens:  1_000_000,
		OutputTokens: 500_000,
	}

	// haiku: $0.80/MTok in, $4.00/MTok out.
	assert.InDelta(t, 0.80+2.00, usage.EstimateCost("claude-haiku-4-5-20251001"), 1e-9)

	// sonnet: $3.00/MTok in, $15.00/MTok out.
	assert.InDelta(t, 3.00+7.50, usage.EstimateCost("claude-sonnet-4-5-20250929"), 1e-9)

	assert.Zero(t, usage.EstimateCost("unknown-model"))
}

func TestEstimateCost_CacheTokens(t *testing.T) {
	usage := TokenUsage{
		CacheCreationInputTokens: 1_000_000, // 1.25x input rate
		CacheReadInputTokens:     1_000_000, // 0.1x input rate
	}
	assert.InDelta(t, 0.80*1.25+0.80*0.1, usage.EstimateCost("claude-haiku-4-5-20251001"), 1e-9)
}

func TestBuildCachedSystemBlocks(t *testing.T) {
	blocks := BuildCachedSystemBlocks("you are an audit service")

	assert.Len(t, blocks, 1)
	assert.Equal(t, "you are an audit service", blocks[0].Text)
	assert.NotNil(t, blocks[0].CacheControl)
	assert.Equal(t, "1h", blocks[0].CacheControl.TTL)
}
