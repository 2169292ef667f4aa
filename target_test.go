package ebomlca

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarioThresholds(t *testing.T) {
	expected := map[Scenario]float64{
		ScenarioMaterialChange:  4.37,
		ScenarioSizeChange:      19.78,
		ScenarioStructureChange: 36.25,
	}
	for _, scenario := range Scenarios() {
		threshold, found := scenario.Threshold()
		assert.True(t, found)
		assert.Equal(t, expected[scenario], threshold)
	}

	scenario, err := ParseScenario("size-change")
	require.NoError(t, err)
	assert.Equal(t, ScenarioSizeChange, scenario)

	_, err = ParseScenario("colour-change")
	assert.Error(t, err)
}

func TestEvaluateBands(t *testing.T) {
	threshold, _ := ScenarioMaterialChange.Threshold()

	exceeded := Evaluate(4.37, threshold)
	assert.Equal(t, 100.0, exceeded.Percent)
	assert.Equal(t, StatusExceeded, exceeded.Status)

	achieved := Evaluate(3.933, threshold)
	assert.InDelta(t, 90.0, achieved.Percent, 1e-9)
	assert.Equal(t, StatusAchieved, achieved.Status)

	under := Evaluate(3.932, threshold)
	assert.InDelta(t, 89.977, under.Percent, 1e-3)
	assert.Equal(t, StatusUnder, under.Status)

	assert.Equal(t, StatusExceeded, Evaluate(10, threshold).Status)
	assert.Equal(t, StatusUnder, Evaluate(0, threshold).Status)
}

func TestEvaluateDegenerateThreshold(t *testing.T) {
	for _, total := range []float64{0, 12.5, -3} {
		assert.Equal(t, 0.0, Evaluate(total, 0).Percent)
		assert.Equal(t, 0.0, Evaluate(total, -4).Percent)
	}
}

func TestEvaluateNonFinite(t *testing.T) {
	nan := Evaluate(1, math.NaN())
	assert.True(t, math.IsNaN(nan.Percent))
	assert.Equal(t, StatusUnder, nan.Status)

	inf := Evaluate(math.Inf(1), 10)
	assert.True(t, math.IsInf(inf.Percent, 1))
	assert.Equal(t, StatusExceeded, inf.Status)

	assert.Equal(t, 0.0, Evaluate(5, math.Inf(1)).Percent)
}

func TestCheckCompletion(t *testing.T) {
	threshold, _ := ScenarioSizeChange.Threshold()

	assert.NoError(t, CheckCompletion(17.802, threshold))
	assert.NoError(t, CheckCompletion(19.78, threshold))
	assert.NoError(t, CheckCompletion(21.758, threshold))

	err := CheckCompletion(17.801, threshold)
	var outOfBand *OutOfBandError
	require.ErrorAs(t, err, &outOfBand)
	assert.Equal(t, 17.801, outOfBand.Total)
	assert.Equal(t, 19.78, outOfBand.Threshold)
	assert.Equal(t, 17.802, outOfBand.Lower)
	assert.Equal(t, 21.758, outOfBand.Upper)
	assert.Contains(t, err.Error(), "17.801000")

	assert.Error(t, CheckCompletion(21.759, threshold))
	assert.Error(t, CheckCompletion(math.NaN(), threshold))
	assert.Error(t, CheckCompletion(10, math.NaN()))
	assert.Error(t, CheckCompletion(math.Inf(1), threshold))
}

func TestCompletionGateIsNotDerivedFromStatus(t *testing.T) {
	threshold, _ := ScenarioSizeChange.Threshold()

	// exceeded for display, still inside the completion band
	assert.Equal(t, StatusExceeded, Evaluate(21, threshold).Status)
	assert.NoError(t, CheckCompletion(21, threshold))
}
