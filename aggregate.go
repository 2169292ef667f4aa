package ebomlca

import (
	"slices"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// MaterialSummary holds the mass and carbon of every line made of one material.
type MaterialSummary struct {
	// Key is the normalized material name
	Key string
	// Label is the first spelling of the material met in the rows, trimmed
	Label        string
	MassKg       float64
	CarbonKgCO2e float64
}

// Report is the result of an aggregation.
type Report struct {
	Summaries         map[string]MaterialSummary
	TotalMassKg       float64
	TotalCarbonKgCO2e float64
}

// Keys returns summary keys in lexicographical order.
func (r Report) Keys() []string {
	keys := make([]string, 0, len(r.Summaries))
	for k := range r.Summaries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Aggregate sums mass and carbon per material. Lines without material are left out of
// both the summaries and the totals. Lines with a material missing from the catalog
// count for their mass with a zero emission factor. Carbon is accumulated line by line.
func Aggregate(rows []BomRow, materials []MaterialEntry) Report {
	catalog := NewCatalog(materials)
	report := Report{Summaries: make(map[string]MaterialSummary)}

	for _, row := range rows {
		if IsUnassigned(row.Material) {
			continue
		}

		key := NormalizeMaterial(*row.Material)
		mass := row.Mass()

		summary, found := report.Summaries[key]
		if !found {
			summary = MaterialSummary{Key: key, Label: strings.TrimSpace(*row.Material)}
		}
		summary.MassKg += mass
		summary.CarbonKgCO2e += mass * catalog.EmissionFactor(key)
		report.Summaries[key] = summary
	}

	// map iteration order is random, sum in key order to keep totals stable
	keys := report.Keys()
	masses := make([]float64, 0, len(keys))
	carbons := make([]float64, 0, len(keys))
	for _, k := range keys {
		masses = append(masses, report.Summaries[k].MassKg)
		carbons = append(carbons, report.Summaries[k].CarbonKgCO2e)
	}
	report.TotalMassKg = floats.Sum(masses)
	report.TotalCarbonKgCO2e = floats.Sum(carbons)

	return report
}

// LineCarbon returns the carbon of every line in input order. Lines without material weigh 0.
func LineCarbon(rows []BomRow, materials []MaterialEntry) []float64 {
	catalog := NewCatalog(materials)
	carbons := make([]float64, len(rows))
	for i, row := range rows {
		if IsUnassigned(row.Material) {
			continue
		}
		carbons[i] = row.Mass() * catalog.EmissionFactor(*row.Material)
	}
	return carbons
}

// HottestLine returns the index of the line emitting the most carbon. It returns false
// when there is no line or when no line emits anything.
func HottestLine(rows []BomRow, materials []MaterialEntry) (int, bool) {
	if len(rows) == 0 {
		return 0, false
	}
	carbons := LineCarbon(rows, materials)
	i := floats.MaxIdx(carbons)
	if !(carbons[i] > 0) {
		return 0, false
	}
	return i, true
}
