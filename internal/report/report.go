// Package report projects an aggregation into chart and spreadsheet friendly views.
package report

import (
	"cmp"
	"slices"

	ebomlca "github.com/superdango/ebom-lca"
)

// Slice is one part of the carbon pie chart.
type Slice struct {
	Key          string  `json:"key"`
	Name         string  `json:"name"`
	CarbonKgCO2e float64 `json:"carbonKgCO2e"`
	// Percent of the total carbon
	Percent float64 `json:"percent"`
}

// Bar is one material of the mass and carbon bar chart.
type Bar struct {
	Name         string  `json:"name"`
	MassKg       float64 `json:"massKg"`
	CarbonKgCO2e float64 `json:"carbonKgCO2e"`
}

type View struct {
	Slices            []Slice            `json:"slices"`
	Bars              []Bar              `json:"bars"`
	TotalMassKg       float64            `json:"totalMassKg"`
	TotalCarbonKgCO2e float64            `json:"totalCarbonKgCO2e"`
	ThresholdKgCO2e   float64            `json:"thresholdKgCO2e"`
	Evaluation        ebomlca.Evaluation `json:"evaluation"`
}

// Build projects report against threshold. Slices are sorted by carbon, largest
// first, bars by material name. Shares are 0 when the total carbon is 0.
func Build(report ebomlca.Report, threshold float64) View {
	view := View{
		Slices:            make([]Slice, 0, len(report.Summaries)),
		Bars:              make([]Bar, 0, len(report.Summaries)),
		TotalMassKg:       report.TotalMassKg,
		TotalCarbonKgCO2e: report.TotalCarbonKgCO2e,
		ThresholdKgCO2e:   threshold,
		Evaluation:        ebomlca.Evaluate(report.TotalCarbonKgCO2e, threshold),
	}

	for _, key := range report.Keys() {
		summary := report.Summaries[key]
		percent := 0.0
		if report.TotalCarbonKgCO2e != 0 {
			percent = summary.CarbonKgCO2e / report.TotalCarbonKgCO2e * 100
		}
		view.Slices = append(view.Slices, Slice{
			Key:          key,
			Name:         summary.Label,
			CarbonKgCO2e: summary.CarbonKgCO2e,
			Percent:      percent,
		})
		view.Bars = append(view.Bars, Bar{
			Name:         summary.Label,
			MassKg:       summary.MassKg,
			CarbonKgCO2e: summary.CarbonKgCO2e,
		})
	}

	slices.SortStableFunc(view.Slices, func(a, b Slice) int {
		return cmp.Compare(b.CarbonKgCO2e, a.CarbonKgCO2e)
	})
	return view
}
