package store

import (
	"context"
	"fmt"

	ebomlca "github.com/superdango/ebom-lca"
	"github.com/superdango/ebom-lca/internal/ingest"
	"gorm.io/gorm/clause"
)

// Materials implements ebomlca.MaterialCatalog, entries come in insertion order.
func (s *Store) Materials(ctx context.Context) ([]ebomlca.MaterialEntry, error) {
	var records []material
	if err := s.db.WithContext(ctx).Order("id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load materials: %w", err)
	}

	entries := make([]ebomlca.MaterialEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, ebomlca.MaterialEntry{
			Label:          record.Label,
			EmissionFactor: record.EmissionFactor,
		})
	}
	return entries, nil
}

// UpsertMaterials inserts new labels and updates the emission factor of known ones.
func (s *Store) UpsertMaterials(ctx context.Context, entries []ebomlca.MaterialEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := ingest.ValidateMaterials(entries); err != nil {
		return err
	}

	// a label may appear once per statement, the last entry wins
	records := make([]material, 0, len(entries))
	index := make(map[string]int, len(entries))
	for _, entry := range entries {
		if i, found := index[entry.Label]; found {
			records[i].EmissionFactor = entry.EmissionFactor
			continue
		}
		index[entry.Label] = len(records)
		records = append(records, material{Label: entry.Label, EmissionFactor: entry.EmissionFactor})
	}

	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "label"}},
		DoUpdates: clause.AssignmentColumns([]string{"emission_factor", "updated_at"}),
	}).Create(&records).Error
}
