package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// checkpointRecord is the relational form of a stored checkpoint.
type checkpointRecord struct {
	ID        uint   `gorm:"primaryKey"`
	Pipeline  string `gorm:"size:200;not null;uniqueIndex:idx_checkpoint_key"`
	Session   string `gorm:"size:200;not null;uniqueIndex:idx_checkpoint_key"`
	State     string `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName sets the table name for GORM.
func (checkpointRecord) TableName() string { return "sigflow_checkpoints" }

// GormStore persists checkpoints in a relational database through GORM.
// Works with PostgreSQL, MySQL and SQLite.
type GormStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormStore wraps an open GORM connection and migrates the checkpoint
// table.
func NewGormStore(db *gorm.DB, logger *zap.Logger) (*GormStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := db.AutoMigrate(&checkpointRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate checkpoint table: %w", err)
	}

	return &GormStore{
		db:     db,
		logger: logger.With(zap.String("component", "checkpoint_gorm")),
	}, nil
}

// Name implements Store.
func (s *GormStore) Name() string { return "database" }

// Save upserts the checkpoint row for a pipeline/session pair.
func (s *GormStore) Save(ctx context.Context, pipeline, session string, state any) error {
	if err := validateKeys(pipeline, session); err != nil {
		return err
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint state: %w", err)
	}

	rec := checkpointRecord{
		Pipeline:  pipeline,
		Session:   session,
		State:     string(raw),
		UpdatedAt: time.Now().UTC(),
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "pipeline"}, {Name: "session"}},
		DoUpdates: clause.AssignmentColumns([]string{"state", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	s.logger.Debug("checkpoint saved",
		zap.String("pipeline", pipeline),
		zap.String("session", session),
		zap.Int("bytes", len(raw)))

	return nil
}

// Load reads a checkpoint into the value pointed to by into.
func (s *GormStore) Load(ctx context.Context, pipeline, session string, into any) error {
	if err := validateKeys(pipeline, session); err != nil {
		return err
	}

	var rec checkpointRecord
	err := s.db.WithContext(ctx).
		Where("pipeline = ? AND session = ?", pipeline, session).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read checkpoint: %w", err)
	}

	if err := json.Unmarshal([]byte(rec.State), into); err != nil {
		return fmt.Errorf("failed to unmarshal checkpoint state: %w", err)
	}
	return nil
}

// Delete removes a checkpoint row.
func (s *GormStore) Delete(ctx context.Context, pipeline, session string) error {
	if err := validateKeys(pipeline, session); err != nil {
		return err
	}

	res := s.db.WithContext(ctx).
		Where("pipeline = ? AND session = ?", pipeline, session).
		Delete(&checkpointRecord{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns stored checkpoints, newest first, optionally filtered by
// pipeline name.
func (s *GormStore) List(ctx context.Context, pipeline string) ([]Ref, error) {
	q := s.db.WithContext(ctx).
		Select("pipeline", "session", "updated_at").
		Order("updated_at DESC")
	if pipeline != "" {
		q = q.Where("pipeline = ?", pipeline)
	}

	var recs []checkpointRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	refs := make([]Ref, 0, len(recs))
	for _, rec := range recs {
		refs = append(refs, Ref{Pipeline: rec.Pipeline, Session: rec.Session, UpdatedAt: rec.UpdatedAt})
	}
	return refs, nil
}

// Close closes the underlying database connection.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ Store = (*GormStore)(nil)
