package ebomlca

import (
	"context"
	"fmt"
	"time"
)

// BomRow is one line of an engineering bill of materials.
type BomRow struct {
	// LineNo is the dotted position of the line in the tree ("1", "1.2", "1.2.1")
	LineNo string
	// PartNo is the part number of the line
	PartNo string
	// Name of the part
	Name string
	// Level is the depth of the line in the tree, root lines are level 0
	Level int
	// Material is the free-form material label, nil when never entered
	Material *string
	// TotalMassKg is quantity times unit mass, nil when unknown
	TotalMassKg *float64
}

// Mass returns the total mass of the line, 0 when absent.
func (r BomRow) Mass() float64 {
	if r.TotalMassKg == nil {
		return 0
	}
	return *r.TotalMassKg
}

// MaterialName returns the material label, empty when absent.
func (r BomRow) MaterialName() string {
	if r.Material == nil {
		return ""
	}
	return *r.Material
}

// MaterialEntry is one row of the material catalog.
type MaterialEntry struct {
	Label string
	// EmissionFactor in kgCO2e per kg of material
	EmissionFactor float64
}

// Target is a persisted carbon ceiling scoped to a table and a calendar year.
type Target struct {
	TableID      string
	Year         int
	TargetKgCO2e float64
	Notes        string
}

// Event is a usage record appended to the audit log.
type Event struct {
	Category   string
	Action     string
	TableID    string
	Step       string
	DurationMs int64
	Detail     map[string]any
	At         time.Time
}

// RowSource returns the lines of a table.
type RowSource interface {
	Rows(ctx context.Context, tableID string) ([]BomRow, error)
}

// MaterialCatalog returns every known material with its emission factor.
type MaterialCatalog interface {
	Materials(ctx context.Context) ([]MaterialEntry, error)
}

// TargetStore persists yearly targets, one per (table, year).
type TargetStore interface {
	Target(ctx context.Context, tableID string, year int) (Target, error)
	Targets(ctx context.Context, tableID string) ([]Target, error)
	UpsertTargets(ctx context.Context, targets []Target) error
}

// EventSink appends usage events.
type EventSink interface {
	Log(ctx context.Context, event Event) error
}

type OpErr struct {
	Err       error
	Operation string
}

func (opErr *OpErr) Error() string {
	return fmt.Sprintf("operation failed (op: %s): %s", opErr.Operation, opErr.Err.Error())
}

func (opErr *OpErr) Unwrap() error {
	return opErr.Err
}

// MergeLabels merges label sets from left to right, empty values are skipped.
func MergeLabels(labels ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, l := range labels {
		for k, v := range l {
			if v == "" {
				continue
			}
			result[k] = v
		}
	}
	return result
}
