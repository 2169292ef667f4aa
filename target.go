package ebomlca

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Scenario is one of the fixed product-change cases.
type Scenario string

const (
	ScenarioMaterialChange  Scenario = "material-change"
	ScenarioSizeChange      Scenario = "size-change"
	ScenarioStructureChange Scenario = "structure-change"
)

// scenarioThresholds are the carbon ceilings in kgCO2e of each scenario.
var scenarioThresholds = map[Scenario]float64{
	ScenarioMaterialChange:  4.37,
	ScenarioSizeChange:      19.78,
	ScenarioStructureChange: 36.25,
}

// Scenarios returns every known scenario.
func Scenarios() []Scenario {
	return []Scenario{ScenarioMaterialChange, ScenarioSizeChange, ScenarioStructureChange}
}

// ParseScenario returns the scenario named s.
func ParseScenario(s string) (Scenario, error) {
	scenario := Scenario(s)
	if _, found := scenarioThresholds[scenario]; !found {
		return "", fmt.Errorf("unknown scenario: %q", s)
	}
	return scenario, nil
}

// Threshold returns the static carbon ceiling of the scenario.
func (s Scenario) Threshold() (float64, bool) {
	threshold, found := scenarioThresholds[s]
	return threshold, found
}

// Status classifies a total against its target.
type Status string

const (
	StatusExceeded Status = "exceeded"
	StatusAchieved Status = "achieved"
	StatusUnder    Status = "under"
)

var (
	hundred     = decimal.NewFromInt(100)
	achievedPct = decimal.NewFromInt(90)
	lowerBand   = decimal.RequireFromString("0.9")
	upperBand   = decimal.RequireFromString("1.1")
)

// Evaluation is the share of the target consumed by a total.
type Evaluation struct {
	Percent float64 `json:"percent"`
	Status  Status  `json:"status"`
}

// Evaluate returns the percentage of threshold consumed by total and its status:
// exceeded from 100%, achieved from 90%, under below. A threshold lower or equal
// to zero always evaluates to 0%.
func Evaluate(total, threshold float64) Evaluation {
	if threshold <= 0 {
		return Evaluation{Percent: 0, Status: StatusUnder}
	}

	if !isFinite(total) || !isFinite(threshold) {
		percent := total / threshold * 100
		return Evaluation{Percent: percent, Status: statusOf(percent)}
	}

	// decimals keep literal boundaries such as 3.933 / 4.37 exactly at 90%
	pct := decimal.NewFromFloat(total).Div(decimal.NewFromFloat(threshold)).Mul(hundred)
	percent, _ := pct.Float64()

	switch {
	case pct.GreaterThanOrEqual(hundred):
		return Evaluation{Percent: percent, Status: StatusExceeded}
	case pct.GreaterThanOrEqual(achievedPct):
		return Evaluation{Percent: percent, Status: StatusAchieved}
	default:
		return Evaluation{Percent: percent, Status: StatusUnder}
	}
}

func statusOf(percent float64) Status {
	switch {
	case percent >= 100:
		return StatusExceeded
	case percent >= 90:
		return StatusAchieved
	default:
		return StatusUnder
	}
}

// OutOfBandError is returned when a total is too far from its target to complete a table.
type OutOfBandError struct {
	Total     float64
	Threshold float64
	Lower     float64
	Upper     float64
}

func (e *OutOfBandError) Error() string {
	return fmt.Sprintf("total carbon %.6f kgCO2e is outside [%g, %g], the 90%%-110%% band of target %g kgCO2e",
		e.Total, e.Lower, e.Upper, e.Threshold)
}

// CheckCompletion allows completion only when total lies within 90% and 110% of
// threshold, both bounds included.
func CheckCompletion(total, threshold float64) error {
	outOfBand := &OutOfBandError{
		Total:     total,
		Threshold: threshold,
		Lower:     threshold * 0.9,
		Upper:     threshold * 1.1,
	}

	if !isFinite(total) || !isFinite(threshold) {
		if total >= outOfBand.Lower && total <= outOfBand.Upper {
			return nil
		}
		return outOfBand
	}

	t := decimal.NewFromFloat(total)
	th := decimal.NewFromFloat(threshold)
	lower := th.Mul(lowerBand)
	upper := th.Mul(upperBand)
	outOfBand.Lower, _ = lower.Float64()
	outOfBand.Upper, _ = upper.Float64()

	if t.LessThan(lower) || t.GreaterThan(upper) {
		return outOfBand
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
