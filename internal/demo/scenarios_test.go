package demo_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ebomlca "github.com/superdango/ebom-lca"
	"github.com/superdango/ebom-lca/internal/demo"
	"github.com/superdango/ebom-lca/model/materials"
)

func TestScenarioSamples(t *testing.T) {
	for _, scenario := range ebomlca.Scenarios() {
		rows, err := demo.Rows(scenario)
		require.NoError(t, err, scenario)
		assert.NotEmpty(t, rows, scenario)
		assert.Equal(t, "1", rows[0].LineNo)
		assert.Equal(t, 0, rows[0].Level)
		assert.True(t, ebomlca.IsUnassigned(rows[0].Material))
	}
}

func TestMaterialChangeSampleIsAchieved(t *testing.T) {
	rows, err := demo.Rows(ebomlca.ScenarioMaterialChange)
	require.NoError(t, err)

	report := ebomlca.Aggregate(rows, materials.Default())
	assert.InDelta(t, 4.0614, report.TotalCarbonKgCO2e, 1e-9)

	threshold, _ := ebomlca.ScenarioMaterialChange.Threshold()
	assert.Equal(t, ebomlca.StatusAchieved, ebomlca.Evaluate(report.TotalCarbonKgCO2e, threshold).Status)
}

func TestStructureChangeSampleSkipsBlankMaterial(t *testing.T) {
	rows, err := demo.Rows(ebomlca.ScenarioStructureChange)
	require.NoError(t, err)

	last := rows[len(rows)-1]
	assert.Equal(t, "1.5", last.LineNo)
	assert.Nil(t, last.Material)
	assert.InDelta(t, 0.12, last.Mass(), 1e-12)
	assert.Equal(t, 2, rows[4].Level)
}

func TestUnknownScenario(t *testing.T) {
	_, err := demo.Rows(ebomlca.Scenario("colour-change"))
	assert.Error(t, err)
}

func TestTableName(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	assert.Equal(t, "Scenario-size-change-20260304050607", demo.TableName(ebomlca.ScenarioSizeChange, now))
}
