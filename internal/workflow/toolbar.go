// Package workflow implements the actions of the EBOM toolbar. Each action records
// one usage event. Event logging is fire and forget and never fails an action.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	ebomlca "github.com/superdango/ebom-lca"
	"github.com/superdango/ebom-lca/internal/demo"
	"github.com/superdango/ebom-lca/internal/events"
	"github.com/superdango/ebom-lca/internal/ingest"
	"github.com/superdango/ebom-lca/internal/store"
	"golang.org/x/sync/errgroup"
)

var (
	ErrCADNotStarted   = errors.New("cad work has not been started")
	ErrCADInProgress   = errors.New("cad work is already in progress")
	ErrUnknownScenario = errors.New("unknown scenario")
)

const (
	categoryUnknown    = "unknown"
	categoryProcessEnd = "PROCESS END"
	categoryTarget     = "LCA TARGET"
	stepReview         = "REVIEW"
)

// Tables is the persistence used by the toolbar.
type Tables interface {
	ebomlca.RowSource
	CreateTable(ctx context.Context, name string, scenario ebomlca.Scenario) (store.Table, error)
	SaveRows(ctx context.Context, tableID string, rows []ebomlca.BomRow, mode store.ImportMode) error
}

// Toolbar runs toolbar actions on behalf of one process.
type Toolbar struct {
	tables    Tables
	materials ebomlca.MaterialCatalog
	targets   ebomlca.TargetStore
	events    *events.Logger
	now       func() time.Time

	mu         sync.Mutex
	cadStarted map[string]time.Time
}

type Option func(t *Toolbar)

// WithClock overrides the time source used to measure CAD work.
func WithClock(now func() time.Time) Option {
	return func(t *Toolbar) {
		t.now = now
	}
}

// WithEvents sets the logger receiving usage events. Without it events are dropped.
func WithEvents(logger *events.Logger) Option {
	return func(t *Toolbar) {
		t.events = logger
	}
}

func NewToolbar(tables Tables, materials ebomlca.MaterialCatalog, targets ebomlca.TargetStore, opts ...Option) *Toolbar {
	t := &Toolbar{
		tables:     tables,
		materials:  materials,
		targets:    targets,
		now:        time.Now,
		cadStarted: make(map[string]time.Time),
	}
	for _, option := range opts {
		option(t)
	}
	return t
}

func category(scenario ebomlca.Scenario) string {
	if scenario == "" {
		return categoryUnknown
	}
	return string(scenario)
}

// StartCAD marks the beginning of CAD work on a table.
func (t *Toolbar) StartCAD(ctx context.Context, tableID string, scenario ebomlca.Scenario) error {
	t.mu.Lock()
	if _, started := t.cadStarted[tableID]; started {
		t.mu.Unlock()
		return fmt.Errorf("table %s: %w", tableID, ErrCADInProgress)
	}
	startAt := t.now()
	t.cadStarted[tableID] = startAt
	t.mu.Unlock()

	t.events.Log(ctx, ebomlca.Event{
		Category: category(scenario),
		Action:   "Starting CAD work",
		TableID:  tableID,
		Detail: map[string]any{
			"source":  "CAD",
			"note":    "user marked complete",
			"startAt": startAt.UTC().Format(time.RFC3339Nano),
		},
		At: startAt,
	})
	return nil
}

// FinishCAD ends the CAD work started on a table and returns its duration.
func (t *Toolbar) FinishCAD(ctx context.Context, tableID string, scenario ebomlca.Scenario) (time.Duration, error) {
	t.mu.Lock()
	startAt, started := t.cadStarted[tableID]
	if !started {
		t.mu.Unlock()
		return 0, fmt.Errorf("table %s: %w", tableID, ErrCADNotStarted)
	}
	delete(t.cadStarted, tableID)
	t.mu.Unlock()

	doneAt := t.now()
	duration := max(doneAt.Sub(startAt), 0)

	t.events.Log(ctx, ebomlca.Event{
		Category:   category(scenario),
		Action:     "Completed CAD work",
		TableID:    tableID,
		DurationMs: duration.Milliseconds(),
		Detail: map[string]any{
			"source":     "CAD",
			"startAt":    startAt.UTC().Format(time.RFC3339Nano),
			"doneAt":     doneAt.UTC().Format(time.RFC3339Nano),
			"durationMs": duration.Milliseconds(),
		},
		At: doneAt,
	})
	return duration, nil
}

// CADInProgress reports whether CAD work is running on a table.
func (t *Toolbar) CADInProgress(tableID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, started := t.cadStarted[tableID]
	return started
}

func (t *Toolbar) StartReview(ctx context.Context, tableID string, scenario ebomlca.Scenario) {
	t.events.Log(ctx, ebomlca.Event{
		Category: category(scenario),
		Action:   "Starting the EBOM data review.",
		TableID:  tableID,
		Step:     stepReview,
		Detail:   map[string]any{"note": "User moved to review page from BOM table"},
	})
}

// Save validates and persists the rows of a table in natural line order. The event
// is logged whether the save succeeded or not.
func (t *Toolbar) Save(ctx context.Context, tableID string, scenario ebomlca.Scenario, rows []ebomlca.BomRow, mode store.ImportMode) (err error) {
	start := t.now()
	defer func() {
		detail := map[string]any{
			"note": "EBOM Table Save to DB",
			"mode": string(mode),
			"rows": len(rows),
			"ok":   err == nil,
		}
		if err != nil {
			detail["error"] = err.Error()
		}
		t.events.Log(ctx, ebomlca.Event{
			Category:   category(scenario),
			Action:     "EBOM Save",
			TableID:    tableID,
			DurationMs: t.now().Sub(start).Milliseconds(),
			Detail:     detail,
		})
	}()

	if err := ingest.Validate(rows); err != nil {
		return fmt.Errorf("invalid rows: %w", err)
	}
	return t.tables.SaveRows(ctx, tableID, ingest.SortByLine(rows), mode)
}

// Completion is the accepted result of Complete.
type Completion struct {
	Report     ebomlca.Report
	Threshold  float64
	Evaluation ebomlca.Evaluation
}

// Complete aggregates the table and accepts it only when its total lies within the
// completion band of the scenario threshold. A refusal returns *ebomlca.OutOfBandError
// and logs nothing.
func (t *Toolbar) Complete(ctx context.Context, tableID string, scenario ebomlca.Scenario) (Completion, error) {
	threshold, found := scenario.Threshold()
	if !found {
		return Completion{}, fmt.Errorf("%q: %w", scenario, ErrUnknownScenario)
	}

	rows, materials, err := Load(ctx, t.tables, t.materials, tableID)
	if err != nil {
		return Completion{}, err
	}

	report := ebomlca.Aggregate(rows, materials)
	if err := ebomlca.CheckCompletion(report.TotalCarbonKgCO2e, threshold); err != nil {
		return Completion{}, err
	}

	t.events.Log(ctx, ebomlca.Event{
		Category: category(scenario),
		Action:   "Complete EBOM test",
		TableID:  tableID,
		Detail: map[string]any{
			"tableId":             tableID,
			"total_carbon_kgco2e": round6(report.TotalCarbonKgCO2e),
			"threshold_kgco2e":    threshold,
		},
	})

	return Completion{
		Report:     report,
		Threshold:  threshold,
		Evaluation: ebomlca.Evaluate(report.TotalCarbonKgCO2e, threshold),
	}, nil
}

func (t *Toolbar) EndProcess(ctx context.Context, tableID string) {
	t.events.Log(ctx, ebomlca.Event{
		Category: categoryProcessEnd,
		Action:   "End of Product Development Process",
		TableID:  tableID,
		Detail:   map[string]any{"note": "End of Process"},
	})
}

// DisplayTargets records that the yearly targets of a table were opened.
func (t *Toolbar) DisplayTargets(ctx context.Context, tableID string) {
	t.events.Log(ctx, ebomlca.Event{
		Category: categoryTarget,
		Action:   "Display a LCA Target (Carbon Emission target)",
		TableID:  tableID,
	})
}

// SetTargets upserts the yearly targets of a table. Targets are always scoped to
// tableID whatever their own TableID says.
func (t *Toolbar) SetTargets(ctx context.Context, tableID string, targets []ebomlca.Target) (err error) {
	scoped := make([]ebomlca.Target, len(targets))
	years := make([]int, len(targets))
	for i, target := range targets {
		target.TableID = tableID
		scoped[i] = target
		years[i] = target.Year
	}

	defer func() {
		detail := map[string]any{"years": years, "ok": err == nil}
		if err != nil {
			detail["error"] = err.Error()
		}
		t.events.Log(ctx, ebomlca.Event{
			Category: categoryTarget,
			Action:   "Setting a LCA Target (Carbon Emission target)",
			TableID:  tableID,
			Detail:   detail,
		})
	}()

	return t.targets.UpsertTargets(ctx, scoped)
}

// CreateFromScenario creates a table seeded with the sample lines of scenario.
func (t *Toolbar) CreateFromScenario(ctx context.Context, scenario ebomlca.Scenario) (store.Table, error) {
	if _, found := scenario.Threshold(); !found {
		return store.Table{}, fmt.Errorf("%q: %w", scenario, ErrUnknownScenario)
	}

	rows, err := demo.Rows(scenario)
	if err != nil {
		return store.Table{}, err
	}

	table, err := t.tables.CreateTable(ctx, demo.TableName(scenario, t.now()), scenario)
	if err != nil {
		return store.Table{}, err
	}
	if err := t.tables.SaveRows(ctx, table.ID, ingest.SortByLine(rows), store.ModeReplace); err != nil {
		return store.Table{}, err
	}

	t.events.Log(ctx, ebomlca.Event{
		Category: string(scenario),
		Action:   "EBOM Table create (scenario)",
		TableID:  table.ID,
		Detail: map[string]any{
			"note":         "Create from scenario: " + strings.TrimSpace(string(scenario)),
			"scenario":     string(scenario),
			"treetable_id": table.ID,
			"rows":         len(rows),
		},
	})
	return table, nil
}

// Load reads the rows of a table and the material catalog concurrently.
func Load(ctx context.Context, rowSource ebomlca.RowSource, catalog ebomlca.MaterialCatalog, tableID string) ([]ebomlca.BomRow, []ebomlca.MaterialEntry, error) {
	var rows []ebomlca.BomRow
	var materials []ebomlca.MaterialEntry

	errg, errgctx := errgroup.WithContext(ctx)
	errg.Go(func() (err error) {
		rows, err = rowSource.Rows(errgctx, tableID)
		if err != nil {
			return &ebomlca.OpErr{Operation: "rows", Err: err}
		}
		return nil
	})
	errg.Go(func() (err error) {
		materials, err = catalog.Materials(errgctx)
		if err != nil {
			return &ebomlca.OpErr{Operation: "materials", Err: err}
		}
		return nil
	})

	if err := errg.Wait(); err != nil {
		return nil, nil, err
	}
	return rows, materials, nil
}

func round6(f float64) float64 {
	return math.Round(f*1e6) / 1e6
}
