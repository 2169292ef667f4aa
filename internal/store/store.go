// Package store persists tables, lines, materials, yearly targets and usage events with gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/go-playground/validator/v10"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidTarget = errors.New("invalid target")
	ErrInvalidMode   = errors.New("invalid import mode")
)

type Store struct {
	db       *gorm.DB
	validate *validator.Validate
}

type Options func(cfg *gorm.Config)

// WithLogger sets the gorm logger, queries are not logged by default.
func WithLogger(l logger.Interface) Options {
	return func(cfg *gorm.Config) {
		cfg.Logger = l
	}
}

// Open connects to postgres when dsn is a postgres url, to sqlite otherwise
// (a file path or "file::memory:"), and migrates the schema.
func Open(ctx context.Context, dsn string, opts ...Options) (*Store, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	for _, option := range opts {
		option(cfg)
	}

	dialector := sqlite.Open(dsn)
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if db.Dialector.Name() == "sqlite" {
		// sqlite serializes writers, a single connection avoids busy errors
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return New(ctx, db)
}

// New wraps an opened database and migrates the schema.
func New(ctx context.Context, db *gorm.DB) (*Store, error) {
	err := db.WithContext(ctx).AutoMigrate(
		&bomTable{},
		&bomNode{},
		&material{},
		&lcaTarget{},
		&usageEvent{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &Store{db: db, validate: validator.New()}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}
