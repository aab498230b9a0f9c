package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"index-coordinator/internal/database"
	"index-coordinator/internal/model"
	"index-coordinator/pkg/logger"
)

// PropertyStore persists named timestamps per project.
type PropertyStore interface {
	// ReadDatetime returns the stored value and whether it exists.
	ReadDatetime(ctx context.Context, projectKey, property string) (time.Time, bool, error)
	// StoreDatetime writes immediately when batch is nil, otherwise adds the write to batch.
	StoreDatetime(ctx context.Context, projectKey, property string, value time.Time, batch *PropertyBatch) error
	// FlushBatch writes all batched values at once.
	FlushBatch(ctx context.Context, batch *PropertyBatch) error
	// DeleteProperties removes every property of a project.
	DeleteProperties(ctx context.Context, projectKey string) error
}

// PropertyBatch collects property writes that are flushed together.
type PropertyBatch struct {
	entries []model.ProjectProperty
}

func NewPropertyBatch() *PropertyBatch {
	return &PropertyBatch{}
}

func (b *PropertyBatch) add(projectKey, property string, value time.Time) {
	b.entries = append(b.entries, model.ProjectProperty{
		ProjectKey:   projectKey,
		PropertyName: property,
		Value:        value,
	})
}

// Len returns the number of pending writes
func (b *PropertyBatch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.entries)
}

func (b *PropertyBatch) reset() {
	b.entries = b.entries[:0]
}

// values are kept with millisecond precision in every store
func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

type sqlitePropertyStore struct {
	db     database.DatabaseManager
	logger logger.Logger
}

// NewSQLitePropertyStore 创建基于SQLite的属性存储
func NewSQLitePropertyStore(db database.DatabaseManager, logger logger.Logger) PropertyStore {
	return &sqlitePropertyStore{
		db:     db,
		logger: logger,
	}
}

const upsertPropertySQL = `
	INSERT INTO project_properties (project_key, property_name, value_unix_ms, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(project_key, property_name)
	DO UPDATE SET value_unix_ms = excluded.value_unix_ms, updated_at = excluded.updated_at
`

func (s *sqlitePropertyStore) ReadDatetime(ctx context.Context, projectKey, property string) (time.Time, bool, error) {
	var ms int64
	err := s.db.GetDB().QueryRowContext(ctx,
		`SELECT value_unix_ms FROM project_properties WHERE project_key = ? AND property_name = ?`,
		projectKey, property,
	).Scan(&ms)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("[DB] failed to read property %s of %s: %w", property, projectKey, err)
	}
	return fromMillis(ms), true, nil
}

func (s *sqlitePropertyStore) StoreDatetime(ctx context.Context, projectKey, property string, value time.Time,
	batch *PropertyBatch) error {
	if batch != nil {
		batch.add(projectKey, property, value)
		return nil
	}

	if _, err := s.db.GetDB().ExecContext(ctx, upsertPropertySQL,
		projectKey, property, toMillis(value), time.Now()); err != nil {
		return fmt.Errorf("[DB] failed to store property %s of %s: %w", property, projectKey, err)
	}
	return nil
}

func (s *sqlitePropertyStore) FlushBatch(ctx context.Context, batch *PropertyBatch) error {
	if batch.Len() == 0 {
		return nil
	}

	tx, err := s.db.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("[DB] failed to begin transaction: %w", err)
	}

	now := time.Now()
	for _, entry := range batch.entries {
		if _, err := tx.ExecContext(ctx, upsertPropertySQL,
			entry.ProjectKey, entry.PropertyName, toMillis(entry.Value), now); err != nil {
			tx.Rollback()
			return fmt.Errorf("[DB] failed to store property %s of %s: %w", entry.PropertyName, entry.ProjectKey, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("[DB] failed to commit property batch: %w", err)
	}
	batch.reset()
	return nil
}

func (s *sqlitePropertyStore) DeleteProperties(ctx context.Context, projectKey string) error {
	if _, err := s.db.GetDB().ExecContext(ctx,
		`DELETE FROM project_properties WHERE project_key = ?`, projectKey); err != nil {
		return fmt.Errorf("[DB] failed to delete properties of %s: %w", projectKey, err)
	}
	return nil
}
