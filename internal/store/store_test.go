package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ebomlca "github.com/superdango/ebom-lca"
)

func setupStore(t *testing.T) *Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	s, err := Open(t.Context(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr[T any](v T) *T {
	return &v
}

func TestTablesAndRows(t *testing.T) {
	s := setupStore(t)
	ctx := t.Context()

	table, err := s.CreateTable(ctx, "bracket", ebomlca.ScenarioMaterialChange)
	require.NoError(t, err)
	assert.NotEmpty(t, table.ID)

	got, err := s.Table(ctx, table.ID)
	require.NoError(t, err)
	assert.Equal(t, "bracket", got.Name)
	assert.Equal(t, ebomlca.ScenarioMaterialChange, got.Scenario)

	_, err = s.Table(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	first := []ebomlca.BomRow{
		{LineNo: "1", Name: "assembly"},
		{LineNo: "1.1", Level: 1, Material: ptr("Steel"), TotalMassKg: ptr(2.5)},
	}
	require.NoError(t, s.SaveRows(ctx, table.ID, first, ModeReplace))

	require.NoError(t, s.SaveRows(ctx, table.ID, []ebomlca.BomRow{{LineNo: "2", Material: ptr("Copper")}}, ModeAppend))

	rows, err := s.Rows(ctx, table.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "1", rows[0].LineNo)
	assert.Nil(t, rows[0].Material)
	assert.Equal(t, "Steel", rows[1].MaterialName())
	assert.Equal(t, 2.5, rows[1].Mass())
	assert.Equal(t, 1, rows[1].Level)
	assert.Equal(t, "2", rows[2].LineNo)

	require.NoError(t, s.SaveRows(ctx, table.ID, []ebomlca.BomRow{{LineNo: "9"}}, ModeReplace))
	rows, err = s.Rows(ctx, table.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "9", rows[0].LineNo)

	assert.ErrorIs(t, s.SaveRows(ctx, "missing", first, ModeReplace), ErrNotFound)
	assert.ErrorIs(t, s.SaveRows(ctx, table.ID, first, ImportMode("merge")), ErrInvalidMode)

	tables, err := s.Tables(ctx)
	require.NoError(t, err)
	assert.Len(t, tables, 1)
}

func TestParseImportMode(t *testing.T) {
	mode, err := ParseImportMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeReplace, mode)

	mode, err = ParseImportMode("append")
	require.NoError(t, err)
	assert.Equal(t, ModeAppend, mode)

	_, err = ParseImportMode("merge")
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestMaterials(t *testing.T) {
	s := setupStore(t)
	ctx := t.Context()

	require.NoError(t, s.UpsertMaterials(ctx, []ebomlca.MaterialEntry{
		{Label: "Steel", EmissionFactor: 1.7},
		{Label: "Aluminum", EmissionFactor: 9.1},
		{Label: "Steel", EmissionFactor: 1.8},
	}))
	require.NoError(t, s.UpsertMaterials(ctx, []ebomlca.MaterialEntry{{Label: "Copper", EmissionFactor: 3.8}}))

	entries, err := s.Materials(ctx)
	require.NoError(t, err)
	assert.Equal(t, []ebomlca.MaterialEntry{
		{Label: "Steel", EmissionFactor: 1.8},
		{Label: "Aluminum", EmissionFactor: 9.1},
		{Label: "Copper", EmissionFactor: 3.8},
	}, entries)

	require.NoError(t, s.UpsertMaterials(ctx, []ebomlca.MaterialEntry{{Label: "Aluminum", EmissionFactor: 8.5}}))
	entries, err = s.Materials(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8.5, entries[1].EmissionFactor)
}

func TestTargetsUpsert(t *testing.T) {
	s := setupStore(t)
	ctx := t.Context()

	require.NoError(t, s.UpsertTargets(ctx, []ebomlca.Target{
		{TableID: "t1", Year: 2027, TargetKgCO2e: 30},
		{TableID: "t1", Year: 2026, TargetKgCO2e: 36.25, Notes: "cradle to gate"},
		{TableID: "t2", Year: 2026, TargetKgCO2e: 4.37},
	}))

	require.NoError(t, s.UpsertTargets(ctx, []ebomlca.Target{
		{TableID: "t1", Year: 2026, TargetKgCO2e: 35},
	}))

	target, err := s.Target(ctx, "t1", 2026)
	require.NoError(t, err)
	assert.Equal(t, 35.0, target.TargetKgCO2e)
	assert.Equal(t, "", target.Notes)

	targets, err := s.Targets(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, 2026, targets[0].Year)
	assert.Equal(t, 2027, targets[1].Year)

	_, err = s.Target(ctx, "t1", 2030)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTargetsValidation(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	for _, target := range []ebomlca.Target{
		{TableID: "", Year: 2026, TargetKgCO2e: 1},
		{TableID: "t1", Year: 26, TargetKgCO2e: 1},
		{TableID: "t1", Year: 2026, TargetKgCO2e: -1},
	} {
		assert.ErrorIs(t, s.UpsertTargets(ctx, []ebomlca.Target{target}), ErrInvalidTarget)
	}

	targets, err := s.Targets(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, targets)
}

func TestWithPlannedYears(t *testing.T) {
	now := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	planned := WithPlannedYears("t1", []ebomlca.Target{{TableID: "t1", Year: 2027, TargetKgCO2e: 12}}, now)

	require.Len(t, planned, 3)
	assert.Equal(t, []int{2026, 2027, 2028}, []int{planned[0].Year, planned[1].Year, planned[2].Year})
	assert.Equal(t, 12.0, planned[1].TargetKgCO2e)
	assert.Equal(t, 0.0, planned[0].TargetKgCO2e)
	assert.Equal(t, "t1", planned[2].TableID)
}

func TestEvents(t *testing.T) {
	s := setupStore(t)
	ctx := t.Context()

	at := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.Log(ctx, ebomlca.Event{
		Category: "material-change",
		Action:   "Starting CAD work",
		TableID:  "t1",
		Detail:   map[string]any{"source": "CAD"},
		At:       at,
	}))
	require.NoError(t, s.Log(ctx, ebomlca.Event{
		Action:     "Completed CAD work",
		TableID:    "t1",
		DurationMs: 1500,
		At:         at.Add(time.Minute),
	}))
	assert.Error(t, s.Log(ctx, ebomlca.Event{Action: " "}))

	events, err := s.Events(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Starting CAD work", events[0].Action)
	assert.Equal(t, "CAD", events[0].Detail["source"])
	assert.Equal(t, "unknown", events[1].Category)
	assert.Equal(t, int64(1500), events[1].DurationMs)
}
