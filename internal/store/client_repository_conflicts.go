// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/Rajak13/StudyCollab-sub003/internal/logger"
	"github.com/Rajak13/StudyCollab-sub003/models"
)

type conflictRepository struct {
	*DB
}

// NewConflictRepository constructs the SQLite-backed [ConflictRepository].
func NewConflictRepository(db *DB) ConflictRepository {
	return &conflictRepository{DB: db}
}

// Upsert stores c. An existing record keeps its original detection time.
func (r *conflictRepository) Upsert(ctx context.Context, c models.ConflictRecord) error {
	if _, err := r.exec(ctx, "conflictRepository.Upsert", buildUpsertConflictQuery(r.builder, c)); err != nil {
		return fmt.Errorf("failed to save conflict %s: %w", c.Key(), err)
	}
	return nil
}

func (r *conflictRepository) Get(ctx context.Context, key models.EntityKey) (models.ConflictRecord, error) {
	row, err := r.queryRow(ctx, r.builder.Select(conflictColumns...).
		From(tableConflicts).
		Where(sq.Eq{"entity_type": key.Type, "entity_id": key.ID}))
	if err != nil {
		return models.ConflictRecord{}, err
	}

	c, err := scanConflict(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ConflictRecord{}, ErrNotFound
		}
		logger.FromContext(ctx).Err(err).
			Str("func", "conflictRepository.Get").
			Str("entity", key.String()).
			Msg("failed to scan conflict row")
		return models.ConflictRecord{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	return c, nil
}

func (r *conflictRepository) Delete(ctx context.Context, key models.EntityKey) error {
	del := r.builder.Delete(tableConflicts).Where(sq.Eq{"entity_type": key.Type, "entity_id": key.ID})
	res, err := r.exec(ctx, "conflictRepository.Delete", del)
	if err != nil {
		return fmt.Errorf("failed to delete conflict %s: %w", key, err)
	}
	return expectAffected(res)
}

// List returns conflicts oldest first.
func (r *conflictRepository) List(ctx context.Context) ([]models.ConflictRecord, error) {
	rows, err := r.query(ctx, "conflictRepository.List", r.builder.Select(conflictColumns...).
		From(tableConflicts).
		OrderBy("detected_at", "entity_type", "entity_id"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.ConflictRecord
	for rows.Next() {
		c, scanErr := scanConflict(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, scanErr)
		}
		items = append(items, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return items, nil
}

func (r *conflictRepository) Count(ctx context.Context) (int64, error) {
	row, err := r.queryRow(ctx, r.builder.Select("COUNT(*)").From(tableConflicts))
	if err != nil {
		return 0, err
	}

	var n int64
	if err = scanOne(ctx, "conflictRepository.Count", row, &n); err != nil {
		return 0, err
	}
	return n, nil
}

func scanConflict(scan func(dest ...any) error) (models.ConflictRecord, error) {
	var (
		c                             models.ConflictRecord
		localTS, remoteTS, detectedAt int64
	)

	err := scan(
		&c.EntityType,
		&c.EntityID,
		&c.LocalSnapshot,
		&c.RemoteSnapshot,
		&localTS,
		&remoteTS,
		&c.RemoteVersion,
		&c.RemoteDeleted,
		&detectedAt,
	)
	if err != nil {
		return models.ConflictRecord{}, err
	}

	c.LocalTimestamp = fromUnix(localTS)
	c.RemoteTimestamp = fromUnix(remoteTS)
	c.DetectedAt = fromUnix(detectedAt)

	return c, nil
}
