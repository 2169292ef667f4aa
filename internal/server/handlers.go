package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	ebomlca "github.com/superdango/ebom-lca"
	"github.com/superdango/ebom-lca/internal/ingest"
	"github.com/superdango/ebom-lca/internal/report"
	"github.com/superdango/ebom-lca/internal/store"
	"github.com/superdango/ebom-lca/internal/workflow"
	referencematerials "github.com/superdango/ebom-lca/model/materials"
	"golang.org/x/sync/errgroup"
)

type tableResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Scenario  string `json:"scenario"`
	CreatedAt string `json:"createdAt"`
}

func toTableResponse(table store.Table) tableResponse {
	return tableResponse{
		ID:        table.ID,
		Name:      table.Name,
		Scenario:  string(table.Scenario),
		CreatedAt: table.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Server) listTables(w http.ResponseWriter, r *http.Request) error {
	tables, err := s.store.Tables(r.Context())
	if err != nil {
		return err
	}
	resp := make([]tableResponse, 0, len(tables))
	for _, table := range tables {
		resp = append(resp, toTableResponse(table))
	}
	return writeJSON(w, http.StatusOK, resp)
}

type hottestLine struct {
	LineNo       string  `json:"lineNo"`
	Name         string  `json:"name"`
	Material     string  `json:"material"`
	CarbonKgCO2e float64 `json:"carbonKgCO2e"`
}

// suggestion proposes a reference material for a label missing from the catalog.
type suggestion struct {
	Material       string  `json:"material"`
	Label          string  `json:"label"`
	EmissionFactor float64 `json:"emissionFactor"`
}

type lcaResponse struct {
	TableID     string       `json:"tableId"`
	Scenario    string       `json:"scenario,omitempty"`
	Year        int          `json:"year,omitempty"`
	Hottest     *hottestLine `json:"hottest,omitempty"`
	Suggestions []suggestion `json:"suggestions,omitempty"`
	report.View
}

type lca struct {
	table     store.Table
	rows      []ebomlca.BomRow
	materials []ebomlca.MaterialEntry
	scenario  ebomlca.Scenario
	year      int
	threshold float64
}

// loadLCA reads the table, its rows and the catalog concurrently and resolves the
// threshold: the stored target of ?year= when set, else the ?scenario= or table scenario.
func (s *Server) loadLCA(r *http.Request) (*lca, error) {
	ctx := r.Context()
	tableID := r.PathValue("id")
	query := r.URL.Query()

	result := &lca{}
	errg, errgctx := errgroup.WithContext(ctx)
	errg.Go(func() (err error) {
		result.table, err = s.store.Table(errgctx, tableID)
		return err
	})
	errg.Go(func() (err error) {
		result.rows, result.materials, err = workflow.Load(errgctx, s.store, s.catalog, tableID)
		return err
	})
	if err := errg.Wait(); err != nil {
		return nil, err
	}

	if year := query.Get("year"); year != "" {
		y, err := strconv.Atoi(year)
		if err != nil {
			return nil, fmt.Errorf("%w: year %q: %w", errBadRequest, year, err)
		}
		target, err := s.store.Target(ctx, tableID, y)
		if err != nil {
			return nil, err
		}
		result.year = y
		result.threshold = target.TargetKgCO2e
		return result, nil
	}

	result.scenario = result.table.Scenario
	if scenario := query.Get("scenario"); scenario != "" {
		result.scenario = ebomlca.Scenario(scenario)
	}
	if result.scenario == "" {
		return result, nil
	}
	threshold, found := result.scenario.Threshold()
	if !found {
		return nil, fmt.Errorf("%q: %w", result.scenario, workflow.ErrUnknownScenario)
	}
	result.threshold = threshold
	return result, nil
}

func (s *Server) getLCA(w http.ResponseWriter, r *http.Request) error {
	lca, err := s.loadLCA(r)
	if err != nil {
		return err
	}

	aggregated := ebomlca.Aggregate(lca.rows, lca.materials)
	resp := lcaResponse{
		TableID:     lca.table.ID,
		Scenario:    string(lca.scenario),
		Year:        lca.year,
		Suggestions: suggest(aggregated, lca.materials),
		View:        report.Build(aggregated, lca.threshold),
	}
	if i, found := ebomlca.HottestLine(lca.rows, lca.materials); found {
		row := lca.rows[i]
		resp.Hottest = &hottestLine{
			LineNo:       row.LineNo,
			Name:         row.Name,
			Material:     row.MaterialName(),
			CarbonKgCO2e: ebomlca.LineCarbon(lca.rows[i:i+1], lca.materials)[0],
		}
	}
	return writeJSON(w, http.StatusOK, resp)
}

// suggest returns the closest reference material of every aggregated material
// that has no exact catalog entry, and so counts with a zero factor.
func suggest(aggregated ebomlca.Report, materials []ebomlca.MaterialEntry) []suggestion {
	catalog := ebomlca.NewCatalog(materials)
	var suggestions []suggestion
	for _, key := range aggregated.Keys() {
		summary := aggregated.Summaries[key]
		if _, found := catalog.Find(key); found {
			continue
		}
		entry, found := referencematerials.Lookup(summary.Label)
		if !found {
			continue
		}
		suggestions = append(suggestions, suggestion{
			Material:       summary.Label,
			Label:          entry.Label,
			EmissionFactor: entry.EmissionFactor,
		})
	}
	return suggestions
}

func (s *Server) getLCAWorkbook(w http.ResponseWriter, r *http.Request) error {
	lca, err := s.loadLCA(r)
	if err != nil {
		return err
	}

	view := report.Build(ebomlca.Aggregate(lca.rows, lca.materials), lca.threshold)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", lca.table.Name+".xlsx"))
	return report.WriteXLSX(w, view)
}

func (s *Server) putRows(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	mode, err := store.ParseImportMode(r.URL.Query().Get("mode"))
	if err != nil {
		return err
	}

	table, err := s.store.Table(ctx, r.PathValue("id"))
	if err != nil {
		return err
	}

	var records []map[string]any
	if err := readJSON(r, &records); err != nil {
		return err
	}
	rows, err := ingest.DecodeRecords(records)
	if err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}

	if err := s.toolbar.Save(ctx, table.ID, table.Scenario, rows, mode); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

type targetPayload struct {
	Year         int     `json:"year"`
	TargetKgCO2e float64 `json:"targetKgCO2e"`
	Notes        string  `json:"notes,omitempty"`
}

func (s *Server) getTargets(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	table, err := s.store.Table(ctx, r.PathValue("id"))
	if err != nil {
		return err
	}

	targets, err := s.store.Targets(ctx, table.ID)
	if err != nil {
		return err
	}
	s.toolbar.DisplayTargets(ctx, table.ID)

	planned := store.WithPlannedYears(table.ID, targets, s.now())
	resp := make([]targetPayload, 0, len(planned))
	for _, target := range planned {
		resp = append(resp, targetPayload{Year: target.Year, TargetKgCO2e: target.TargetKgCO2e, Notes: target.Notes})
	}
	return writeJSON(w, http.StatusOK, resp)
}

func (s *Server) putTargets(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	table, err := s.store.Table(ctx, r.PathValue("id"))
	if err != nil {
		return err
	}

	var payload []targetPayload
	if err := readJSON(r, &payload); err != nil {
		return err
	}

	targets := make([]ebomlca.Target, 0, len(payload))
	for _, p := range payload {
		targets = append(targets, ebomlca.Target{Year: p.Year, TargetKgCO2e: p.TargetKgCO2e, Notes: p.Notes})
	}
	if err := s.toolbar.SetTargets(ctx, table.ID, targets); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

type actionResponse struct {
	Action        string              `json:"action"`
	CADInProgress *bool               `json:"cadInProgress,omitempty"`
	DurationMs    *int64              `json:"durationMs,omitempty"`
	Completion    *completionResponse `json:"completion,omitempty"`
}

type completionResponse struct {
	TotalCarbonKgCO2e float64            `json:"totalCarbonKgCO2e"`
	ThresholdKgCO2e   float64            `json:"thresholdKgCO2e"`
	Evaluation        ebomlca.Evaluation `json:"evaluation"`
}

// postAction runs a toolbar action. The cad action toggles the CAD work of the table.
func (s *Server) postAction(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	action := r.PathValue("action")

	table, err := s.store.Table(ctx, r.PathValue("id"))
	if err != nil {
		return err
	}

	resp := actionResponse{Action: action}
	switch action {
	case "cad":
		if s.toolbar.CADInProgress(table.ID) {
			duration, err := s.toolbar.FinishCAD(ctx, table.ID, table.Scenario)
			if err != nil {
				return err
			}
			ms := duration.Milliseconds()
			resp.DurationMs = &ms
		} else if err := s.toolbar.StartCAD(ctx, table.ID, table.Scenario); err != nil {
			return err
		}
		inProgress := s.toolbar.CADInProgress(table.ID)
		resp.CADInProgress = &inProgress

	case "review":
		s.toolbar.StartReview(ctx, table.ID, table.Scenario)

	case "complete":
		scenario := table.Scenario
		if q := r.URL.Query().Get("scenario"); q != "" {
			scenario = ebomlca.Scenario(q)
		}
		completion, err := s.toolbar.Complete(ctx, table.ID, scenario)
		s.metrics.completion(scenario, err == nil)
		if err != nil {
			return err
		}
		resp.Completion = &completionResponse{
			TotalCarbonKgCO2e: completion.Report.TotalCarbonKgCO2e,
			ThresholdKgCO2e:   completion.Threshold,
			Evaluation:        completion.Evaluation,
		}

	case "end":
		s.toolbar.EndProcess(ctx, table.ID)

	default:
		return fmt.Errorf("unknown action %q: %w", action, store.ErrNotFound)
	}

	return writeJSON(w, http.StatusOK, resp)
}

func (s *Server) postScenario(w http.ResponseWriter, r *http.Request) error {
	table, err := s.toolbar.CreateFromScenario(r.Context(), ebomlca.Scenario(r.PathValue("scenario")))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, toTableResponse(table))
}

type materialPayload struct {
	Label          string  `json:"label"`
	EmissionFactor float64 `json:"emissionFactor"`
}

// getMaterials lists the catalog, or its fuzzy matches of ?q= best first.
func (s *Server) getMaterials(w http.ResponseWriter, r *http.Request) error {
	entries, err := s.catalog.Materials(r.Context())
	if err != nil {
		return err
	}
	if q := r.URL.Query().Get("q"); q != "" {
		entries = ebomlca.NewCatalog(entries).Fuzzy(q)
	}

	resp := make([]materialPayload, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, materialPayload(entry))
	}
	return writeJSON(w, http.StatusOK, resp)
}

func (s *Server) putMaterials(w http.ResponseWriter, r *http.Request) error {
	var payload []materialPayload
	if err := readJSON(r, &payload); err != nil {
		return err
	}

	entries := make([]ebomlca.MaterialEntry, 0, len(payload))
	for _, p := range payload {
		entries = append(entries, ebomlca.MaterialEntry(p))
	}
	if err := ingest.ValidateMaterials(entries); err != nil {
		return err
	}
	if err := s.store.UpsertMaterials(r.Context(), entries); err != nil {
		return err
	}
	if cached, ok := s.catalog.(invalidator); ok {
		cached.Invalidate()
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
