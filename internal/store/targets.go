package store

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
	ebomlca "github.com/superdango/ebom-lca"
	"gorm.io/gorm/clause"
)

type targetRequest struct {
	TableID      string  `validate:"required,max=36"`
	Year         int     `validate:"gte=1900,lte=9999"`
	TargetKgCO2e float64 `validate:"gte=0"`
	Notes        string  `validate:"max=2000"`
}

func (s *Store) validateTarget(target ebomlca.Target) error {
	if math.IsNaN(target.TargetKgCO2e) || math.IsInf(target.TargetKgCO2e, 0) {
		return fmt.Errorf("target of %d is not a finite number: %w", target.Year, ErrInvalidTarget)
	}
	err := s.validate.Struct(targetRequest{
		TableID:      target.TableID,
		Year:         target.Year,
		TargetKgCO2e: target.TargetKgCO2e,
		Notes:        target.Notes,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTarget, err)
	}
	return nil
}

// UpsertTargets implements ebomlca.TargetStore. A target replaces the one stored for
// the same table and year, the last write wins.
func (s *Store) UpsertTargets(ctx context.Context, targets []ebomlca.Target) error {
	if len(targets) == 0 {
		return nil
	}

	records := make([]lcaTarget, 0, len(targets))
	for _, target := range targets {
		if err := s.validateTarget(target); err != nil {
			return err
		}
		record := lcaTarget{
			ID:           uuid.NewString(),
			TableID:      target.TableID,
			Year:         target.Year,
			TargetKgCO2e: target.TargetKgCO2e,
		}
		if target.Notes != "" {
			record.Notes = &target.Notes
		}
		records = append(records, record)
	}

	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "table_id"}, {Name: "year"}},
		DoUpdates: clause.AssignmentColumns([]string{"target_kg_co2e", "notes", "updated_at"}),
	}).Create(&records).Error
}

// Target implements ebomlca.TargetStore.
func (s *Store) Target(ctx context.Context, tableID string, year int) (ebomlca.Target, error) {
	var record lcaTarget
	err := s.db.WithContext(ctx).Where("table_id = ? AND year = ?", tableID, year).First(&record).Error
	if err != nil {
		return ebomlca.Target{}, notFound(err, fmt.Sprintf("target %s/%d", tableID, year))
	}
	return toTarget(record), nil
}

// Targets implements ebomlca.TargetStore, targets are sorted by year.
func (s *Store) Targets(ctx context.Context, tableID string) ([]ebomlca.Target, error) {
	var records []lcaTarget
	err := s.db.WithContext(ctx).Where("table_id = ?", tableID).Order("year").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load targets of table %s: %w", tableID, err)
	}

	targets := make([]ebomlca.Target, 0, len(records))
	for _, record := range records {
		targets = append(targets, toTarget(record))
	}
	return targets, nil
}

// WithPlannedYears completes targets with an empty target for the current year and
// the next two when they are missing, sorted by year.
func WithPlannedYears(tableID string, targets []ebomlca.Target, now time.Time) []ebomlca.Target {
	planned := slices.Clone(targets)
	for year := now.Year(); year <= now.Year()+2; year++ {
		exists := slices.ContainsFunc(targets, func(t ebomlca.Target) bool { return t.Year == year })
		if !exists {
			planned = append(planned, ebomlca.Target{TableID: tableID, Year: year})
		}
	}
	slices.SortStableFunc(planned, func(a, b ebomlca.Target) int { return a.Year - b.Year })
	return planned
}

func toTarget(record lcaTarget) ebomlca.Target {
	target := ebomlca.Target{
		TableID:      record.TableID,
		Year:         record.Year,
		TargetKgCO2e: record.TargetKgCO2e,
	}
	if record.Notes != nil {
		target.Notes = *record.Notes
	}
	return target
}
