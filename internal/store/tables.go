package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	ebomlca "github.com/superdango/ebom-lca"
	"github.com/superdango/ebom-lca/internal/ingest"
	"gorm.io/gorm"
)

// Table is the header of a bill of materials.
type Table struct {
	ID        string
	Name      string
	Scenario  ebomlca.Scenario
	CreatedAt time.Time
}

// ImportMode tells SaveRows what to do with the lines already stored.
type ImportMode string

const (
	ModeReplace ImportMode = "replace"
	ModeAppend  ImportMode = "append"
)

// ParseImportMode defaults to replace.
func ParseImportMode(s string) (ImportMode, error) {
	switch ImportMode(s) {
	case "", ModeReplace:
		return ModeReplace, nil
	case ModeAppend:
		return ModeAppend, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrInvalidMode)
}

func (s *Store) CreateTable(ctx context.Context, name string, scenario ebomlca.Scenario) (Table, error) {
	record := bomTable{
		ID:       uuid.NewString(),
		Name:     name,
		Scenario: string(scenario),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return Table{}, fmt.Errorf("failed to create table %q: %w", name, err)
	}
	return toTable(record), nil
}

func (s *Store) Table(ctx context.Context, tableID string) (Table, error) {
	var record bomTable
	err := s.db.WithContext(ctx).Where("id = ?", tableID).First(&record).Error
	if err != nil {
		return Table{}, notFound(err, "table "+tableID)
	}
	return toTable(record), nil
}

func (s *Store) Tables(ctx context.Context) ([]Table, error) {
	var records []bomTable
	if err := s.db.WithContext(ctx).Order("created_at, id").Find(&records).Error; err != nil {
		return nil, err
	}
	tables := make([]Table, 0, len(records))
	for _, record := range records {
		tables = append(tables, toTable(record))
	}
	return tables, nil
}

// SaveRows stores the lines of a table in the given order. Replace drops the
// previous lines, append adds the new ones after them.
func (s *Store) SaveRows(ctx context.Context, tableID string, rows []ebomlca.BomRow, mode ImportMode) error {
	if mode != ModeReplace && mode != ModeAppend {
		return fmt.Errorf("%q: %w", mode, ErrInvalidMode)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&bomTable{}).Where("id = ?", tableID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("table %s: %w", tableID, ErrNotFound)
		}

		offset := 0
		switch mode {
		case ModeReplace:
			if err := tx.Where("table_id = ?", tableID).Delete(&bomNode{}).Error; err != nil {
				return err
			}
		case ModeAppend:
			var last struct{ Max *int }
			if err := tx.Model(&bomNode{}).Select("MAX(position) AS max").Where("table_id = ?", tableID).Scan(&last).Error; err != nil {
				return err
			}
			if last.Max != nil {
				offset = *last.Max + 1
			}
		}

		if len(rows) == 0 {
			return nil
		}

		nodes := make([]bomNode, 0, len(rows))
		for i, row := range rows {
			nodes = append(nodes, bomNode{
				ID:           uuid.NewString(),
				TableID:      tableID,
				Position:     offset + i,
				LineNo:       row.LineNo,
				ParentLineNo: ingest.ParentLine(row.LineNo),
				PartNo:       row.PartNo,
				Name:         row.Name,
				Level:        row.Level,
				Material:     row.Material,
				TotalMassKg:  row.TotalMassKg,
			})
		}
		return tx.CreateInBatches(nodes, 100).Error
	})
}

// Rows implements ebomlca.RowSource.
func (s *Store) Rows(ctx context.Context, tableID string) ([]ebomlca.BomRow, error) {
	var nodes []bomNode
	err := s.db.WithContext(ctx).Where("table_id = ?", tableID).Order("position").Find(&nodes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load rows of table %s: %w", tableID, err)
	}

	rows := make([]ebomlca.BomRow, 0, len(nodes))
	for _, node := range nodes {
		rows = append(rows, ebomlca.BomRow{
			LineNo:      node.LineNo,
			PartNo:      node.PartNo,
			Name:        node.Name,
			Level:       node.Level,
			Material:    node.Material,
			TotalMassKg: node.TotalMassKg,
		})
	}
	return rows, nil
}

func toTable(record bomTable) Table {
	return Table{
		ID:        record.ID,
		Name:      record.Name,
		Scenario:  ebomlca.Scenario(record.Scenario),
		CreatedAt: record.CreatedAt,
	}
}
