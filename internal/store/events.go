package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	ebomlca "github.com/superdango/ebom-lca"
	"gorm.io/datatypes"
)

// Log implements ebomlca.EventSink by appending to the usage_events table.
func (s *Store) Log(ctx context.Context, event ebomlca.Event) error {
	action := strings.TrimSpace(event.Action)
	if action == "" {
		return fmt.Errorf("usage event without action")
	}

	category := strings.TrimSpace(event.Category)
	if category == "" {
		category = "unknown"
	}

	createdAt := event.At
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	record := usageEvent{
		ID:         uuid.NewString(),
		Category:   category,
		Action:     action,
		TableID:    event.TableID,
		Step:       event.Step,
		DurationMs: event.DurationMs,
		Detail:     datatypes.JSONMap(event.Detail),
		CreatedAt:  createdAt.UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to insert usage event %q: %w", action, err)
	}
	return nil
}

// Events returns the usage events of a table, oldest first.
func (s *Store) Events(ctx context.Context, tableID string) ([]ebomlca.Event, error) {
	var records []usageEvent
	err := s.db.WithContext(ctx).Where("table_id = ?", tableID).Order("created_at, id").Find(&records).Error
	if err != nil {
		return nil, err
	}

	events := make([]ebomlca.Event, 0, len(records))
	for _, record := range records {
		events = append(events, ebomlca.Event{
			Category:   record.Category,
			Action:     record.Action,
			TableID:    record.TableID,
			Step:       record.Step,
			DurationMs: record.DurationMs,
			Detail:     map[string]any(record.Detail),
			At:         record.CreatedAt,
		})
	}
	return events, nil
}
