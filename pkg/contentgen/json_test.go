package contentgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type extraction struct {
	Slot  string `json:"slot"`
	Value string `json:"value"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"plain", `{"slot":"budget.total","value":"$50,000"}`},
		{"fenced", "```\n{\"slot\":\"budget.total\",\"value\":\"$50,000\"}\n```"},
		{"fenced with language", "```json\n{\"slot\":\"budget.total\",\"value\":\"$50,000\"}\n```"},
		{"surrounding whitespace", "\n\n  {\"slot\":\"budget.total\",\"value\":\"$50,000\"}  \n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got extraction
			require.NoError(t, DecodeJSON(tt.text, &got))
			assert.Equal(t, "budget.total", got.Slot)
			assert.Equal(t, "$50,000", got.Value)
		})
	}
}

func TestDecodeJSON_Errors(t *testing.T) {
	var got extraction

	err := DecodeJSON("", &got)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty response")

	err = DecodeJSON("Sure! Here is the JSON you asked for.", &got)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse response JSON")
}

func TestTokenUsage_EstimateCost(t *testing.T) {
	usage := TokenUsage{InputTokens: 1_000_000, OutputTokens: 500_000}

	assert.InDelta(t, 3.00+7.50, usage.EstimateCost("claude-sonnet-4-5-20250929"), 1e-9)
	assert.InDelta(t, 0.80+2.00, usage.EstimateCost("claude-haiku-4-5-20251001"), 1e-9)
	assert.Zero(t, usage.EstimateCost("some-unknown-model"))
}
