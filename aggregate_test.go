package ebomlca

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T {
	return &v
}

func row(material string, mass float64) BomRow {
	return BomRow{Material: ptr(material), TotalMassKg: ptr(mass)}
}

func TestAggregateScenario(t *testing.T) {
	rows := []BomRow{
		row("Steel", 10),
		row("", 5),
		row("Aluminum", 2),
	}
	materials := []MaterialEntry{
		{Label: "Steel", EmissionFactor: 1.8},
		{Label: "Aluminum", EmissionFactor: 9.1},
	}

	report := Aggregate(rows, materials)

	assert.Len(t, report.Summaries, 2)
	assert.Equal(t, "Steel", report.Summaries["steel"].Label)
	assert.InDelta(t, 10.0, report.Summaries["steel"].MassKg, 1e-12)
	assert.InDelta(t, 18.0, report.Summaries["steel"].CarbonKgCO2e, 1e-12)
	assert.Equal(t, "Aluminum", report.Summaries["aluminum"].Label)
	assert.InDelta(t, 2.0, report.Summaries["aluminum"].MassKg, 1e-12)
	assert.InDelta(t, 18.2, report.Summaries["aluminum"].CarbonKgCO2e, 1e-12)
	assert.InDelta(t, 36.2, report.TotalCarbonKgCO2e, 1e-9)
	assert.InDelta(t, 12.0, report.TotalMassKg, 1e-12)

	threshold, found := ScenarioStructureChange.Threshold()
	assert.True(t, found)

	evaluation := Evaluate(report.TotalCarbonKgCO2e, threshold)
	assert.InDelta(t, 99.862, evaluation.Percent, 1e-3)
	assert.Equal(t, StatusAchieved, evaluation.Status)
}

func TestAggregateIsAdditiveAndOrderIndependent(t *testing.T) {
	rnd := rand.New(rand.NewPCG(1, 2))
	labels := []string{"Steel", "steel ", "Aluminum", "PA66", "Copper", "none", "", "Unobtainium"}
	materials := []MaterialEntry{
		{Label: "Steel", EmissionFactor: 1.8},
		{Label: "Aluminum", EmissionFactor: 9.1},
		{Label: "PA66", EmissionFactor: 7.9},
		{Label: "Copper", EmissionFactor: 3.8},
	}
	catalog := NewCatalog(materials)

	rows := make([]BomRow, 0, 200)
	direct := 0.0
	for range 200 {
		label := labels[rnd.IntN(len(labels))]
		mass := rnd.Float64() * 10
		rows = append(rows, row(label, mass))
		if !IsUnassigned(&label) {
			direct += mass * catalog.EmissionFactor(label)
		}
	}

	report := Aggregate(rows, materials)
	assert.InDelta(t, direct, report.TotalCarbonKgCO2e, 1e-9)

	bucketSum := 0.0
	for _, summary := range report.Summaries {
		bucketSum += summary.CarbonKgCO2e
	}
	assert.InDelta(t, bucketSum, report.TotalCarbonKgCO2e, 1e-9)

	for range 5 {
		rnd.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
		shuffled := Aggregate(rows, materials)
		assert.InDelta(t, report.TotalCarbonKgCO2e, shuffled.TotalCarbonKgCO2e, 1e-9)
		assert.ElementsMatch(t, report.Keys(), shuffled.Keys())
	}

	// partitions add up to the whole
	half := len(rows) / 2
	left := Aggregate(rows[:half], materials)
	right := Aggregate(rows[half:], materials)
	assert.InDelta(t, report.TotalCarbonKgCO2e, left.TotalCarbonKgCO2e+right.TotalCarbonKgCO2e, 1e-9)
}

func TestAggregateExcludesUnassignedRows(t *testing.T) {
	materials := []MaterialEntry{{Label: "None", EmissionFactor: 100}, {Label: "Steel", EmissionFactor: 1}}
	rows := []BomRow{
		{Material: nil, TotalMassKg: ptr(3.0)},
		row("", 1),
		row("   ", 1),
		row("none", 1),
		row(" NONE ", 1),
		row("No Material", 1),
		row("no material", 1),
		row("Steel", 2),
	}

	report := Aggregate(rows, materials)

	assert.Equal(t, []string{"steel"}, report.Keys())
	assert.Equal(t, 2.0, report.TotalCarbonKgCO2e)
	assert.Equal(t, 2.0, report.TotalMassKg)
}

func TestAggregateUnknownMaterialHasZeroFactor(t *testing.T) {
	report := Aggregate([]BomRow{row("Kryptonite", 4), row("Steel", 1)}, []MaterialEntry{{Label: "Steel", EmissionFactor: 2}})

	assert.Equal(t, 4.0, report.Summaries["kryptonite"].MassKg)
	assert.Equal(t, 0.0, report.Summaries["kryptonite"].CarbonKgCO2e)
	assert.Equal(t, 2.0, report.TotalCarbonKgCO2e)
}

func TestAggregateEdgeCases(t *testing.T) {
	empty := Aggregate(nil, []MaterialEntry{{Label: "Steel", EmissionFactor: 2}})
	assert.Empty(t, empty.Summaries)
	assert.Equal(t, 0.0, empty.TotalCarbonKgCO2e)

	noCatalog := Aggregate([]BomRow{row("Steel", 3), row("Copper", 1)}, nil)
	assert.Len(t, noCatalog.Summaries, 2)
	assert.Equal(t, 3.0, noCatalog.Summaries["steel"].MassKg)
	assert.Equal(t, 0.0, noCatalog.TotalCarbonKgCO2e)

	missingMass := Aggregate([]BomRow{{Material: ptr("Steel")}}, []MaterialEntry{{Label: "Steel", EmissionFactor: 2}})
	assert.Equal(t, 0.0, missingMass.Summaries["steel"].MassKg)

	negative := Aggregate([]BomRow{row("Steel", -1)}, []MaterialEntry{{Label: "Steel", EmissionFactor: 2}})
	assert.Equal(t, -2.0, negative.TotalCarbonKgCO2e)
}

func TestAggregateCanonicalizesSpellings(t *testing.T) {
	rows := []BomRow{row(" Steel", 1), row("STEEL", 2), row("steel ", 3)}
	report := Aggregate(rows, []MaterialEntry{{Label: "Steel", EmissionFactor: 1.5}})

	assert.Len(t, report.Summaries, 1)
	assert.Equal(t, "Steel", report.Summaries["steel"].Label)
	assert.Equal(t, 6.0, report.Summaries["steel"].MassKg)
	assert.Equal(t, 9.0, report.Summaries["steel"].CarbonKgCO2e)
}

func TestAggregateDoesNotMatchSubstrings(t *testing.T) {
	materials := []MaterialEntry{{Label: "Steel", EmissionFactor: 1}, {Label: "Stainless Steel", EmissionFactor: 5}}
	report := Aggregate([]BomRow{row("Stainless Steel", 1), row("Steel", 1)}, materials)

	assert.Equal(t, 5.0, report.Summaries["stainless steel"].CarbonKgCO2e)
	assert.Equal(t, 1.0, report.Summaries["steel"].CarbonKgCO2e)
}

func TestLineCarbonAndHottestLine(t *testing.T) {
	materials := []MaterialEntry{{Label: "Steel", EmissionFactor: 2}, {Label: "Copper", EmissionFactor: 4}}
	rows := []BomRow{row("Steel", 1), row("none", 50), row("Copper", 1), row("Wood", 9)}

	assert.Equal(t, []float64{2, 0, 4, 0}, LineCarbon(rows, materials))

	i, found := HottestLine(rows, materials)
	assert.True(t, found)
	assert.Equal(t, 2, i)

	_, found = HottestLine([]BomRow{row("Wood", 3)}, materials)
	assert.False(t, found)

	_, found = HottestLine(nil, materials)
	assert.False(t, found)
}
