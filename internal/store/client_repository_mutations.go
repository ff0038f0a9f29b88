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

type mutationRepository struct {
	*DB
}

// NewMutationRepository constructs the SQLite-backed [MutationRepository].
func NewMutationRepository(db *DB) MutationRepository {
	return &mutationRepository{DB: db}
}

// Insert stores m and returns its enqueue sequence number.
func (r *mutationRepository) Insert(ctx context.Context, m models.QueuedMutation) (int64, error) {
	res, err := r.exec(ctx, "mutationRepository.Insert", buildInsertMutationQuery(r.builder, m))
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue mutation (id=%s): %w", m.ID, err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return seq, nil
}

func (r *mutationRepository) Update(ctx context.Context, m models.QueuedMutation) error {
	res, err := r.exec(ctx, "mutationRepository.Update", buildUpdateMutationQuery(r.builder, m))
	if err != nil {
		return fmt.Errorf("failed to update mutation (id=%s): %w", m.ID, err)
	}
	return expectAffected(res)
}

func (r *mutationRepository) Delete(ctx context.Context, id string) error {
	res, err := r.exec(ctx, "mutationRepository.Delete", r.builder.Delete(tableMutations).Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("failed to delete mutation (id=%s): %w", id, err)
	}
	return expectAffected(res)
}

func (r *mutationRepository) GetByID(ctx context.Context, id string) (models.QueuedMutation, error) {
	return r.getOne(ctx, "mutationRepository.GetByID", buildSelectMutationsQuery(r.builder).Where(sq.Eq{"id": id}))
}

// GetLive returns the non-dead mutation of key, if any.
func (r *mutationRepository) GetLive(ctx context.Context, key models.EntityKey) (models.QueuedMutation, error) {
	q := buildSelectMutationsQuery(r.builder).
		Where(sq.Eq{"entity_type": key.Type, "entity_id": key.ID}).
		Where(sq.NotEq{"state": models.MutationDead})
	return r.getOne(ctx, "mutationRepository.GetLive", q)
}

// ListDue returns pending mutations whose backoff elapsed, in enqueue order.
// A non-positive limit means no limit.
func (r *mutationRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.QueuedMutation, error) {
	return r.list(ctx, "mutationRepository.ListDue", buildListDueMutationsQuery(r.builder, now.UnixNano(), limit))
}

func (r *mutationRepository) ListByState(ctx context.Context, state models.MutationState) ([]models.QueuedMutation, error) {
	return r.list(ctx, "mutationRepository.ListByState", buildSelectMutationsQuery(r.builder).Where(sq.Eq{"state": state}))
}

func (r *mutationRepository) CountByState(ctx context.Context) (map[models.MutationState]int64, error) {
	rows, err := r.query(ctx, "mutationRepository.CountByState",
		r.builder.Select("state", "COUNT(*)").From(tableMutations).GroupBy("state"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.MutationState]int64, 3)
	for rows.Next() {
		var (
			state models.MutationState
			n     int64
		)
		if err = rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
		}
		counts[state] = n
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return counts, nil
}

// NextAttemptAt returns the earliest scheduled retry among pending
// mutations; ok is false when nothing is pending.
func (r *mutationRepository) NextAttemptAt(ctx context.Context) (time.Time, bool, error) {
	row, err := r.queryRow(ctx, r.builder.
		Select("MIN(next_attempt_at)").
		From(tableMutations).
		Where(sq.Eq{"state": models.MutationPending}))
	if err != nil {
		return time.Time{}, false, err
	}

	var next sql.NullInt64
	if err = scanOne(ctx, "mutationRepository.NextAttemptAt", row, &next); err != nil {
		return time.Time{}, false, err
	}
	if !next.Valid {
		return time.Time{}, false, nil
	}
	return fromUnix(next.Int64), true, nil
}

func (r *mutationRepository) getOne(ctx context.Context, fn string, q sq.SelectBuilder) (models.QueuedMutation, error) {
	row, err := r.queryRow(ctx, q)
	if err != nil {
		return models.QueuedMutation{}, err
	}

	m, err := scanMutation(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.QueuedMutation{}, ErrNotFound
		}
		logger.FromContext(ctx).Err(err).Str("func", fn).Msg("failed to scan mutation row")
		return models.QueuedMutation{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	return m, nil
}

func (r *mutationRepository) list(ctx context.Context, fn string, q sq.SelectBuilder) ([]models.QueuedMutation, error) {
	rows, err := r.query(ctx, fn, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.QueuedMutation
	for rows.Next() {
		m, scanErr := scanMutation(rows.Scan)
		if scanErr != nil {
			logger.FromContext(ctx).Err(scanErr).Str("func", fn).Msg("failed to scan mutation row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, scanErr)
		}
		items = append(items, m)
	}

	if err = rows.Err(); err != nil {
		logger.FromContext(ctx).Err(err).Str("func", fn).Msg("error occurred during rows iteration")
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return items, nil
}

func scanMutation(scan func(dest ...any) error) (models.QueuedMutation, error) {
	var (
		m                   models.QueuedMutation
		baseVersion         sql.NullInt64
		enqueuedAt, nextAtt int64
	)

	err := scan(
		&m.Seq,
		&m.ID,
		&m.EntityType,
		&m.EntityID,
		&m.Operation,
		&m.PayloadEncrypted,
		&baseVersion,
		&m.Revision,
		&m.State,
		&enqueuedAt,
		&m.Attempts,
		&m.LastError,
		&nextAtt,
	)
	if err != nil {
		return models.QueuedMutation{}, err
	}

	m.BaseVersion = fromNullInt64(baseVersion)
	m.EnqueuedAt = fromUnix(enqueuedAt)
	m.NextAttemptAt = fromUnix(nextAtt)

	return m, nil
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
