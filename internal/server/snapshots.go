package server

import (
	"context"

	ebomlca "github.com/superdango/ebom-lca"
	"github.com/superdango/ebom-lca/internal/store"
)

// snapshotSource aggregates every stored table for the openmetrics handler.
type snapshotSource struct {
	store   Store
	catalog ebomlca.MaterialCatalog
}

func (s *snapshotSource) Snapshots(ctx context.Context, snapshots chan *ebomlca.Snapshot, errs chan error) {
	sendErr := func(err error) bool {
		select {
		case <-ctx.Done():
			return false
		case errs <- err:
			return true
		}
	}

	tables, err := s.store.Tables(ctx)
	if err != nil {
		sendErr(&ebomlca.OpErr{Operation: "tables", Err: err})
		return
	}

	materials, err := s.catalog.Materials(ctx)
	if err != nil {
		sendErr(&ebomlca.OpErr{Operation: "materials", Err: err})
		return
	}

	for _, table := range tables {
		snapshot, err := s.snapshot(ctx, table, materials)
		if err != nil {
			if !sendErr(&ebomlca.OpErr{Operation: "rows", Err: err}) {
				return
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case snapshots <- snapshot:
		}
	}
}

func (s *snapshotSource) snapshot(ctx context.Context, table store.Table, materials []ebomlca.MaterialEntry) (*ebomlca.Snapshot, error) {
	rows, err := s.store.Rows(ctx, table.ID)
	if err != nil {
		return nil, err
	}
	threshold, _ := table.Scenario.Threshold()
	return &ebomlca.Snapshot{
		TableID:   table.ID,
		Scenario:  table.Scenario,
		Threshold: threshold,
		Report:    ebomlca.Aggregate(rows, materials),
	}, nil
}
