// Package server exposes the LCA reports and the toolbar actions over http.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	ebomlca "github.com/superdango/ebom-lca"
	"github.com/superdango/ebom-lca/internal/ingest"
	"github.com/superdango/ebom-lca/internal/store"
	"github.com/superdango/ebom-lca/internal/workflow"
)

var errBadRequest = errors.New("bad request")

// Store is the persistence used by the api.
type Store interface {
	workflow.Tables
	ebomlca.TargetStore
	Table(ctx context.Context, tableID string) (store.Table, error)
	Tables(ctx context.Context) ([]store.Table, error)
	UpsertMaterials(ctx context.Context, entries []ebomlca.MaterialEntry) error
}

// invalidator is implemented by catalogs keeping a copy of the stored materials.
type invalidator interface {
	Invalidate()
}

type Server struct {
	store   Store
	catalog ebomlca.MaterialCatalog
	toolbar *workflow.Toolbar
	metrics *Metrics
	now     func() time.Time
	mux     *http.ServeMux
}

type Option func(s *Server)

func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(s *Server) {
		s.metrics = metrics
	}
}

func New(st Store, catalog ebomlca.MaterialCatalog, toolbar *workflow.Toolbar, opts ...Option) *Server {
	s := &Server{
		store:   st,
		catalog: catalog,
		toolbar: toolbar,
		now:     time.Now,
		mux:     http.NewServeMux(),
	}
	for _, option := range opts {
		option(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}

	s.handle("GET /tables", s.listTables)
	s.handle("GET /tables/{id}/lca", s.getLCA)
	s.handle("GET /tables/{id}/lca.xlsx", s.getLCAWorkbook)
	s.handle("PUT /tables/{id}/rows", s.putRows)
	s.handle("GET /tables/{id}/targets", s.getTargets)
	s.handle("PUT /tables/{id}/targets", s.putTargets)
	s.handle("POST /tables/{id}/actions/{action}", s.postAction)
	s.handle("POST /scenarios/{scenario}", s.postScenario)
	s.handle("GET /materials", s.getMaterials)
	s.handle("PUT /materials", s.putMaterials)

	s.mux.Handle("GET /metrics", s.metrics.instrument("GET /metrics",
		ebomlca.NewOpenMetricsHandler("ebom-lca", &snapshotSource{store: st, catalog: catalog})))
	s.mux.Handle("GET /internal/metrics", s.metrics.Handler())

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handle(pattern string, h func(w http.ResponseWriter, r *http.Request) error) {
	s.mux.Handle(pattern, s.metrics.instrument(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			writeError(w, r, err)
		}
	})))
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "err", err)
	}
	return nil
}

func readJSON(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid json body: %w", errBadRequest, err)
	}
	return nil
}

type errorResponse struct {
	Error string   `json:"error"`
	Total *float64 `json:"totalKgCO2e,omitempty"`
	Lower *float64 `json:"lowerKgCO2e,omitempty"`
	Upper *float64 `json:"upperKgCO2e,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= 500 {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}

	resp := errorResponse{Error: err.Error()}
	var outOfBand *ebomlca.OutOfBandError
	if errors.As(err, &outOfBand) {
		resp.Total = &outOfBand.Total
		resp.Lower = &outOfBand.Lower
		resp.Upper = &outOfBand.Upper
	}
	_ = writeJSON(w, status, resp)
}

func statusOf(err error) int {
	var outOfBand *ebomlca.OutOfBandError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &outOfBand), errors.Is(err, workflow.ErrCADInProgress), errors.Is(err, workflow.ErrCADNotStarted):
		return http.StatusConflict
	case errors.Is(err, errBadRequest),
		errors.Is(err, store.ErrInvalidTarget),
		errors.Is(err, store.ErrInvalidMode),
		errors.Is(err, ingest.ErrNonFinite),
		errors.Is(err, workflow.ErrUnknownScenario):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
