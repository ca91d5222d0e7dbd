package prompt

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeRatios(t *testing.T) {
	raw := json.RawMessage(`{
		"sales": {"total_orders": 200, "cancelled": 30, "aov": 45.5, "repeat": "35%"},
		"warehouse": {"skus": 400, "out_of_stock": 20, "dead_stock": 100},
		"finance": {"revenue": 100000, "expenses": 80000, "profit": 4000},
		"crm": {"leads": 50, "converted": 10, "lost": 25}
	}`)

	want := Ratios{
		CancellationRate: 15,
		AOV:              45.5,
		RepeatRate:       35,
		StockoutRate:     5,
		DeadStockRate:    25,
		NetProfitMargin:  4,
		ExpenseRatio:     80,
		ConversionRate:   20,
		LossRate:         50,
	}
	if diff := cmp.Diff(want, ComputeRatios(raw)); diff != "" {
		t.Errorf("ComputeRatios mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeRatiosZeroDenominators(t *testing.T) {
	raw := json.RawMessage(`{"sales": {"total_orders": 0, "cancelled": 5}, "warehouse": "n/a", "finance": {"revenue": 0, "profit": 10}}`)
	got := ComputeRatios(raw)
	if diff := cmp.Diff(Ratios{}, got); diff != "" {
		t.Errorf("expected zero ratios (-want +got):\n%s", diff)
	}
}

func TestComputeRatiosNumericRepeatAndGarbage(t *testing.T) {
	assert.Equal(t, 12.5, ComputeRatios(json.RawMessage(`{"sales": {"repeat": 12.5}}`)).RepeatRate)
	assert.Equal(t, 0.0, ComputeRatios(json.RawMessage(`{"sales": {"repeat": "lots"}}`)).RepeatRate)
}

func TestNormalize(t *testing.T) {
	obj, err := Normalize(json.RawMessage(` {"a": 1} `))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 1}`, string(obj))

	arr, err := Normalize(json.RawMessage(`[{"metric": "x", "value": 1}]`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"raw_data": [{"metric": "x", "value": 1}]}`, string(arr))

	_, err = Normalize(json.RawMessage(`{nope`))
	assert.Error(t, err)
}

func TestUserPromptsEmbedIndentedJSON(t *testing.T) {
	raw := json.RawMessage(`{"sales":{"aov":10}}`)
	p := DataQualityUser(raw, ComputeRatios(raw))
	assert.Contains(t, p, "Raw Data:\n{\n  \"sales\": {\n    \"aov\": 10\n  }\n}")
	assert.Contains(t, p, `"aov": 10`)
	assert.Contains(t, p, `"cancellation_rate": 0`)

	s := StrategyUser(raw, json.RawMessage(`{"summary":"ok"}`))
	assert.Contains(t, s, "Data Quality Insights:\n{\n  \"summary\": \"ok\"\n}")

	e := ERPConfigUser(json.RawMessage(`{"top_problems":[]}`))
	assert.Contains(t, e, "Business Strategy:\n{\n  \"top_problems\": []\n}")
}
