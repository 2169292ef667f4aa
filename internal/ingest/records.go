// Package ingest turns loosely typed BOM records (decoded JSON, CSV cells) into BOM rows.
package ingest

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	ebomlca "github.com/superdango/ebom-lca"
)

var ErrNonFinite = errors.New("value is not a finite number")

// record is the wire shape of a BOM line, numbers may arrive as strings.
type record struct {
	LineNo      string   `mapstructure:"line_no"`
	PartNo      string   `mapstructure:"part_no"`
	Name        string   `mapstructure:"name"`
	Material    *string  `mapstructure:"material"`
	Qty         *float64 `mapstructure:"qty"`
	MassPerEaKg *float64 `mapstructure:"mass_per_ea_kg"`
	TotalMassKg *float64 `mapstructure:"total_mass_kg"`
}

// DecodeRecords converts records into rows. Numeric strings are coerced, blank cells
// are treated as absent and the total mass defaults to qty * mass_per_ea_kg.
func DecodeRecords(records []map[string]any) ([]ebomlca.BomRow, error) {
	rows := make([]ebomlca.BomRow, 0, len(records))
	for i, raw := range records {
		rec := new(record)
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           rec,
		})
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(withoutBlanks(raw)); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}

		lineNo := strings.TrimSpace(rec.LineNo)
		row := ebomlca.BomRow{
			LineNo:      lineNo,
			PartNo:      strings.TrimSpace(rec.PartNo),
			Name:        rec.Name,
			Level:       Level(lineNo),
			Material:    rec.Material,
			TotalMassKg: rec.TotalMassKg,
		}
		if row.TotalMassKg == nil && rec.Qty != nil && rec.MassPerEaKg != nil {
			total := *rec.Qty * *rec.MassPerEaKg
			row.TotalMassKg = &total
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func withoutBlanks(raw map[string]any) map[string]any {
	cleaned := make(map[string]any, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		cleaned[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return cleaned
}

// Validate rejects rows whose mass is NaN or infinite.
func Validate(rows []ebomlca.BomRow) error {
	var errs []error
	for i, row := range rows {
		mass := row.Mass()
		if math.IsNaN(mass) || math.IsInf(mass, 0) {
			errs = append(errs, fmt.Errorf("line %d (%s): total mass %v: %w", i, row.LineNo, mass, ErrNonFinite))
		}
	}
	return errors.Join(errs...)
}

// ValidateMaterials rejects entries whose emission factor is NaN or infinite.
func ValidateMaterials(entries []ebomlca.MaterialEntry) error {
	var errs []error
	for _, entry := range entries {
		if math.IsNaN(entry.EmissionFactor) || math.IsInf(entry.EmissionFactor, 0) {
			errs = append(errs, fmt.Errorf("material %q: emission factor %v: %w", entry.Label, entry.EmissionFactor, ErrNonFinite))
		}
	}
	return errors.Join(errs...)
}

// Level returns the depth of a dotted line number, "1" is 0 and "1.2.3" is 2.
func Level(lineNo string) int {
	if lineNo == "" {
		return 0
	}
	return strings.Count(lineNo, ".")
}

// ParentLine returns the line number of the parent of lineNo, empty for root lines.
func ParentLine(lineNo string) string {
	i := strings.LastIndex(lineNo, ".")
	if i < 0 {
		return ""
	}
	return lineNo[:i]
}

// SortByLine returns a copy of rows in natural line order, parents before their
// children. Rows sharing a line number keep their relative order.
func SortByLine(rows []ebomlca.BomRow) []ebomlca.BomRow {
	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b ebomlca.BomRow) int {
		return CompareLines(a.LineNo, b.LineNo)
	})
	return sorted
}

// CompareLines orders dotted line numbers numerically segment by segment,
// so that "1.2" < "1.10" < "2".
func CompareLines(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := compareSegment(as[i], bs[i]); c != 0 {
			return c
		}
	}
	return len(as) - len(bs)
}

func compareSegment(a, b string) int {
	an, aerr := strconv.Atoi(a)
	bn, berr := strconv.Atoi(b)
	switch {
	case aerr == nil && berr == nil:
		return an - bn
	case aerr == nil:
		return -1
	case berr == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}
