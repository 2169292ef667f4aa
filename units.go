package ebomlca

import "fmt"

// Mass in kilograms
type Mass float64

// Emissions in kgCO2e
type Emissions float64

func (e Emissions) GCO2e() float64 {
	return float64(e) * 1000
}

func (e Emissions) TCO2e() float64 {
	return float64(e) / 1000
}

// String formats emissions in the most readable unit.
func (e Emissions) String() string {
	switch {
	case e >= 1000 || e <= -1000:
		return fmt.Sprintf("%.3f tCO2e", e.TCO2e())
	case e != 0 && e < 1 && e > -1:
		return fmt.Sprintf("%.1f gCO2e", e.GCO2e())
	default:
		return fmt.Sprintf("%.2f kgCO2e", float64(e))
	}
}

func (m Mass) String() string {
	if m != 0 && m < 1 && m > -1 {
		return fmt.Sprintf("%.1f g", float64(m)*1000)
	}
	return fmt.Sprintf("%.3f kg", float64(m))
}
