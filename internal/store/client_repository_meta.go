// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	sq "github.com/Masterminds/squirrel"
)

// Well-known sync_meta keys.
const (
	MetaWatermark    = "watermark"
	MetaLastSyncTime = "last_sync_time"
	MetaSalt         = "salt"
	MetaKeyCheck     = "key_check"
)

type metaRepository struct {
	*DB
}

// NewMetaRepository constructs the SQLite-backed [MetaRepository].
func NewMetaRepository(db *DB) MetaRepository {
	return &metaRepository{DB: db}
}

func (r *metaRepository) Get(ctx context.Context, key string) ([]byte, error) {
	row, err := r.queryRow(ctx, r.builder.Select("value").From(tableSyncMeta).Where(sq.Eq{"key": key}))
	if err != nil {
		return nil, err
	}

	var value []byte
	if err = scanOne(ctx, "metaRepository.Get", row, &value); err != nil {
		return nil, err
	}
	return value, nil
}

func (r *metaRepository) Set(ctx context.Context, key string, value []byte) error {
	ins := r.builder.Insert(tableSyncMeta).
		Columns("key", "value").
		Values(key, value).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = excluded.value")
	if _, err := r.exec(ctx, "metaRepository.Set", ins); err != nil {
		return fmt.Errorf("failed to set meta %q: %w", key, err)
	}
	return nil
}

func (r *metaRepository) Delete(ctx context.Context, key string) error {
	_, err := r.exec(ctx, "metaRepository.Delete", r.builder.Delete(tableSyncMeta).Where(sq.Eq{"key": key}))
	return err
}

// GetInt64 reads a decimal value; ok is false when the key is absent.
func (r *metaRepository) GetInt64(ctx context.Context, key string) (int64, bool, error) {
	raw, err := r.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: meta %q: %w", ErrScanningRow, key, err)
	}
	return v, true, nil
}

func (r *metaRepository) SetInt64(ctx context.Context, key string, value int64) error {
	return r.Set(ctx, key, []byte(strconv.FormatInt(value, 10)))
}

