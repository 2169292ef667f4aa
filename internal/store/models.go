package store

import (
	"time"

	"gorm.io/datatypes"
)

type bomTable struct {
	ID        string `gorm:"primaryKey;size:36"`
	Name      string `gorm:"size:128;not null"`
	Scenario  string `gorm:"size:32"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (bomTable) TableName() string {
	return "bom_tables"
}

type bomNode struct {
	ID           string `gorm:"primaryKey;size:36"`
	TableID      string `gorm:"size:36;not null;index"`
	Position     int    `gorm:"not null"`
	LineNo       string `gorm:"size:64"`
	ParentLineNo string `gorm:"size:64"`
	PartNo       string `gorm:"size:64"`
	Name         string `gorm:"size:256"`
	Level        int    `gorm:"not null;default:0"`
	Material     *string
	TotalMassKg  *float64 `gorm:"column:total_mass_kg"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (bomNode) TableName() string {
	return "bom_nodes"
}

type material struct {
	ID             uint    `gorm:"primaryKey;autoIncrement"`
	Label          string  `gorm:"size:128;not null;uniqueIndex"`
	EmissionFactor float64 `gorm:"not null;default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (material) TableName() string {
	return "materials"
}

type lcaTarget struct {
	ID           string  `gorm:"primaryKey;size:36"`
	TableID      string  `gorm:"size:36;not null;uniqueIndex:idx_lca_targets_table_year"`
	Year         int     `gorm:"not null;uniqueIndex:idx_lca_targets_table_year"`
	TargetKgCO2e float64 `gorm:"column:target_kg_co2e;not null;default:0"`
	Notes        *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (lcaTarget) TableName() string {
	return "lca_targets"
}

type usageEvent struct {
	ID         string `gorm:"primaryKey;size:36"`
	Category   string `gorm:"size:64;not null"`
	Action     string `gorm:"size:256;not null"`
	TableID    string `gorm:"size:36;index"`
	Step       string `gorm:"size:32"`
	DurationMs int64
	Detail     datatypes.JSONMap
	CreatedAt  time.Time `gorm:"index"`
}

func (usageEvent) TableName() string {
	return "usage_events"
}
