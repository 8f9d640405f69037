package budget

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateScenariosVsBaseline(t *testing.T) {
	r, curves := testCurves(t)
	evaluator := NewScenarioEvaluator(zerolog.Nop())

	scenarios := []Scenario{
		{Name: "double search", Allocations: []Allocation{
			{Channel: "search", Spend: 2320},
			{Channel: "display", Spend: 1160},
		}},
		{Name: "cut display", Allocations: []Allocation{
			{Channel: "search", Spend: 1160},
			{Channel: "display", Spend: 580},
		}},
	}

	response, err := evaluator.Evaluate(context.Background(), r, scenarios, currentFromCurves(), curves, 8)
	require.NoError(t, err)

	require.Len(t, response.Scenarios, 2)
	assert.Equal(t, "double search", response.Scenarios[0].Name, "results keep input order")
	assert.Equal(t, "cut display", response.Scenarios[1].Name)

	assert.InDelta(t, 2320.0, response.Baseline.TotalSpend, 0.001)
	assert.Greater(t, response.Baseline.ProjectedRevenue, 0.0)

	doubled := response.Scenarios[0]
	require.NotNil(t, doubled.VsBaseline)
	assert.InDelta(t, 1160.0, doubled.VsBaseline.SpendDelta, 0.001)
	assert.Greater(t, doubled.VsBaseline.RevenueDelta, 0.0,
		"more search spend projects more revenue than the baseline")

	cut := response.Scenarios[1]
	require.NotNil(t, cut.VsBaseline)
	assert.InDelta(t, -580.0, cut.VsBaseline.SpendDelta, 0.001)
	assert.Less(t, cut.VsBaseline.RevenueDelta, 0.0)
}

func TestEvaluateScenariosBestPick(t *testing.T) {
	r, curves := testCurves(t)
	evaluator := NewScenarioEvaluator(zerolog.Nop())

	// Identical allocations: the tie must break by name.
	same := []Allocation{
		{Channel: "search", Spend: 1500},
		{Channel: "display", Spend: 800},
	}
	scenarios := []Scenario{
		{Name: "beta", Allocations: same},
		{Name: "alpha", Allocations: same},
	}

	response, err := evaluator.Evaluate(context.Background(), r, scenarios, currentFromCurves(), curves, 8)
	require.NoError(t, err)
	assert.Equal(t, "alpha", response.BestScenario)
}

func TestEvaluateScenariosPreferLowerSpendOnRevenueTie(t *testing.T) {
	r, curves := testCurves(t)
	evaluator := NewScenarioEvaluator(zerolog.Nop())

	// The "lean" scenario spends the same on curved channels but skips the
	// wasted podcast spend, so revenue ties while spend does not.
	scenarios := []Scenario{
		{Name: "padded", Allocations: []Allocation{
			{Channel: "search", Spend: 1160},
			{Channel: "display", Spend: 1160},
			{Channel: "podcast", Spend: 500},
		}},
		{Name: "lean", Allocations: []Allocation{
			{Channel: "search", Spend: 1160},
			{Channel: "display", Spend: 1160},
		}},
	}

	response, err := evaluator.Evaluate(context.Background(), r, scenarios, currentFromCurves(), curves, 8)
	require.NoError(t, err)

	assert.InDelta(t, response.Scenarios[0].ProjectedRevenue, response.Scenarios[1].ProjectedRevenue, 1e-9,
		"uncurved podcast spend adds no projected revenue")
	assert.Equal(t, "lean", response.BestScenario)
}

func TestEvaluateScenariosEmptyBatch(t *testing.T) {
	r, curves := testCurves(t)
	evaluator := NewScenarioEvaluator(zerolog.Nop())

	_, err := evaluator.Evaluate(context.Background(), r, nil, currentFromCurves(), curves, 8)
	assert.Error(t, err)
}

func TestEvaluateScenariosCancellation(t *testing.T) {
	r, curves := testCurves(t)
	evaluator := NewScenarioEvaluator(zerolog.Nop())

	scenarios := make([]Scenario, 500)
	for i := range scenarios {
		scenarios[i] = Scenario{
			Name:        "s",
			Allocations: []Allocation{{Channel: "search", Spend: 1000}},
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := evaluator.Evaluate(ctx, r, scenarios, currentFromCurves(), curves, 8)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvaluateScenariosDeterministicBatch(t *testing.T) {
	r, curves := testCurves(t)
	evaluator := NewScenarioEvaluator(zerolog.Nop())

	scenarios := make([]Scenario, 50)
	for i := range scenarios {
		scenarios[i] = Scenario{
			Name: string(rune('a' + i%26)),
			Allocations: []Allocation{
				{Channel: "search", Spend: float64(1000 + i*10)},
				{Channel: "display", Spend: float64(2000 - i*10)},
			},
		}
	}

	first, err := evaluator.Evaluate(context.Background(), r, scenarios, currentFromCurves(), curves, 8)
	require.NoError(t, err)
	second, err := evaluator.Evaluate(context.Background(), r, scenarios, currentFromCurves(), curves, 8)
	require.NoError(t, err)

	assert.Equal(t, first.BestScenario, second.BestScenario)
	for i := range first.Scenarios {
		assert.Equal(t, first.Scenarios[i].Name, second.Scenarios[i].Name)
		assert.Equal(t, first.Scenarios[i].ProjectedRevenue, second.Scenarios[i].ProjectedRevenue)
	}
}
