package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const sheetName = "LCA"

var headings = []any{"Material", "Mass (kg)", "Carbon (kgCO2e)", "Share (%)"}

// WriteXLSX writes view as a single sheet workbook: one line per material, largest
// emitter first, followed by the totals and the target evaluation.
func WriteXLSX(w io.Writer, view View) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	masses := make(map[string]float64, len(view.Bars))
	for _, bar := range view.Bars {
		masses[bar.Name] = bar.MassKg
	}

	rowNo := 1
	if err := setRow(f, rowNo, headings...); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheetName, rowNo, rowNo, bold); err != nil {
		return fmt.Errorf("failed to style headings: %w", err)
	}

	for _, slice := range view.Slices {
		rowNo++
		if err := setRow(f, rowNo, slice.Name, masses[slice.Name], slice.CarbonKgCO2e, slice.Percent); err != nil {
			return err
		}
	}

	rowNo += 2
	summary := [][]any{
		{"Total", view.TotalMassKg, view.TotalCarbonKgCO2e},
		{"Target (kgCO2e)", nil, view.ThresholdKgCO2e},
		{"Target consumed (%)", nil, view.Evaluation.Percent},
		{"Status", nil, string(view.Evaluation.Status)},
	}
	for i, values := range summary {
		if err := setRow(f, rowNo+i, values...); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(sheetName, cell(1, rowNo), cell(1, rowNo+len(summary)-1), bold); err != nil {
		return fmt.Errorf("failed to style summary: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, rowNo int, values ...any) error {
	for i, value := range values {
		if value == nil {
			continue
		}
		if err := f.SetCellValue(sheetName, cell(i+1, rowNo), value); err != nil {
			return fmt.Errorf("failed to set cell %s: %w", cell(i+1, rowNo), err)
		}
	}
	return nil
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
