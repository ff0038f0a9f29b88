// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/Rajak13/StudyCollab-sub003/internal/logger"
	"github.com/Rajak13/StudyCollab-sub003/models"
)

type entityRepository struct {
	*DB
}

// NewEntityRepository constructs the SQLite-backed [EntityRepository].
func NewEntityRepository(db *DB) EntityRepository {
	return &entityRepository{DB: db}
}

func (r *entityRepository) Get(ctx context.Context, key models.EntityKey) (models.CachedEntity, error) {
	row, err := r.queryRow(ctx, buildSelectEntityQuery(r.builder, key))
	if err != nil {
		return models.CachedEntity{}, err
	}

	e, err := scanEntity(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.CachedEntity{}, ErrNotFound
		}
		logger.FromContext(ctx).Err(err).
			Str("func", "entityRepository.Get").
			Str("entity", key.String()).
			Msg("failed to scan entity row")
		return models.CachedEntity{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	return e, nil
}

// Upsert writes e and moves the per-type counters by the size difference in
// the same transaction.
func (r *entityRepository) Upsert(ctx context.Context, e models.CachedEntity) error {
	return r.InTx(ctx, func(ctx context.Context) error {
		var (
			countDelta int64 = 1
			sizeDelta        = e.Size
		)

		old, err := r.Get(ctx, models.EntityKey{Type: e.EntityType, ID: e.ID})
		switch {
		case err == nil:
			countDelta = 0
			sizeDelta = e.Size - old.Size
		case !errors.Is(err, ErrNotFound):
			return err
		}

		if _, err = r.exec(ctx, "entityRepository.Upsert", buildUpsertEntityQuery(r.builder, e)); err != nil {
			return fmt.Errorf("failed to upsert entity %s/%s: %w", e.EntityType, e.ID, err)
		}

		return r.adjustStats(ctx, e.EntityType, countDelta, sizeDelta)
	})
}

func (r *entityRepository) Delete(ctx context.Context, key models.EntityKey) (bool, error) {
	deleted := false
	err := r.InTx(ctx, func(ctx context.Context) error {
		old, err := r.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		del := r.builder.Delete(tableEntities).Where(sq.Eq{"entity_type": key.Type, "id": key.ID})
		if _, err = r.exec(ctx, "entityRepository.Delete", del); err != nil {
			return fmt.Errorf("failed to delete entity %s: %w", key, err)
		}
		deleted = true

		return r.adjustStats(ctx, key.Type, -1, -old.Size)
	})
	return deleted, err
}

func (r *entityRepository) Touch(ctx context.Context, key models.EntityKey, at time.Time) error {
	upd := r.builder.Update(tableEntities).
		Set("last_read_at", toUnix(at)).
		Where(sq.Eq{"entity_type": key.Type, "id": key.ID})
	_, err := r.exec(ctx, "entityRepository.Touch", upd)
	return err
}

func (r *entityRepository) ListByType(ctx context.Context, t models.EntityType, afterID string, limit int) ([]models.CachedEntity, error) {
	return r.list(ctx, "entityRepository.ListByType", buildListEntitiesByTypeQuery(r.builder, t, afterID, limit))
}

func (r *entityRepository) LeastRecentlyRead(ctx context.Context, limit int) ([]models.CachedEntity, error) {
	return r.list(ctx, "entityRepository.LeastRecentlyRead", buildLeastRecentlyReadQuery(r.builder, limit))
}

// DeleteSynced removes synced rows of type t, or of every type when t is
// empty. Unflushed rows are never touched.
func (r *entityRepository) DeleteSynced(ctx context.Context, t models.EntityType) (int64, error) {
	var removed int64
	err := r.InTx(ctx, func(ctx context.Context) error {
		del := r.builder.Delete(tableEntities).Where(sq.Eq{"sync_status": models.StatusSynced})
		if t != "" {
			del = del.Where(sq.Eq{"entity_type": t})
		}

		res, err := r.exec(ctx, "entityRepository.DeleteSynced", del)
		if err != nil {
			return err
		}
		if removed, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
		}

		return r.recomputeStats(ctx)
	})
	return removed, err
}

func (r *entityRepository) Stats(ctx context.Context) (models.CacheStats, error) {
	rows, err := r.query(ctx, "entityRepository.Stats",
		r.builder.Select("entity_type", "total_count", "total_size").From(tableCacheStats))
	if err != nil {
		return models.CacheStats{}, err
	}
	defer rows.Close()

	stats := models.CacheStats{
		PerTypeCounts: make(map[models.EntityType]int64),
		PerTypeSize:   make(map[models.EntityType]int64),
	}
	for rows.Next() {
		var (
			t           models.EntityType
			count, size int64
		)
		if err = rows.Scan(&t, &count, &size); err != nil {
			return models.CacheStats{}, fmt.Errorf("%w: %w", ErrScanningRows, err)
		}
		if count == 0 && size == 0 {
			continue
		}
		stats.PerTypeCounts[t] = count
		stats.PerTypeSize[t] = size
		stats.TotalCount += count
		stats.TotalSize += size
	}
	if err = rows.Err(); err != nil {
		return models.CacheStats{}, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return stats, nil
}

func (r *entityRepository) adjustStats(ctx context.Context, t models.EntityType, countDelta, sizeDelta int64) error {
	if countDelta == 0 && sizeDelta == 0 {
		return nil
	}
	_, err := r.exec(ctx, "entityRepository.adjustStats", buildAdjustStatsQuery(r.builder, t, countDelta, sizeDelta))
	return err
}

// recomputeStats rebuilds cache_stats from the entities table after bulk
// deletes.
func (r *entityRepository) recomputeStats(ctx context.Context) error {
	if _, err := r.exec(ctx, "entityRepository.recomputeStats", r.builder.Delete(tableCacheStats)); err != nil {
		return err
	}

	rebuild := r.builder.Insert(tableCacheStats).
		Columns("entity_type", "total_count", "total_size").
		Select(r.builder.Select("entity_type", "COUNT(*)", "COALESCE(SUM(size), 0)").
			From(tableEntities).
			GroupBy("entity_type"))
	_, err := r.exec(ctx, "entityRepository.recomputeStats", rebuild)
	return err
}

func (r *entityRepository) list(ctx context.Context, fn string, q sq.SelectBuilder) ([]models.CachedEntity, error) {
	rows, err := r.query(ctx, fn, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.CachedEntity
	for rows.Next() {
		e, scanErr := scanEntity(rows.Scan)
		if scanErr != nil {
			logger.FromContext(ctx).Err(scanErr).Str("func", fn).Msg("failed to scan entity row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, scanErr)
		}
		items = append(items, e)
	}

	if err = rows.Err(); err != nil {
		logger.FromContext(ctx).Err(err).Str("func", fn).Msg("error occurred during rows iteration")
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return items, nil
}

func scanEntity(scan func(dest ...any) error) (models.CachedEntity, error) {
	var (
		e                          models.CachedEntity
		remoteVersion              sql.NullInt64
		lastModified, lastReadUnix int64
	)

	err := scan(
		&e.EntityType,
		&e.ID,
		&e.PayloadEncrypted,
		&e.LocalVersion,
		&remoteVersion,
		&lastModified,
		&lastReadUnix,
		&e.SyncStatus,
		&e.Size,
	)
	if err != nil {
		return models.CachedEntity{}, err
	}

	e.RemoteVersion = fromNullInt64(remoteVersion)
	e.LastModifiedLocal = fromUnix(lastModified)
	e.LastReadAt = fromUnix(lastReadUnix)

	return e, nil
}
