// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"fmt"

	"github.com/Rajak13/StudyCollab-sub003/internal/config"
	"github.com/Rajak13/StudyCollab-sub003/internal/logger"
)

// ClientStorages groups the repositories of one user's partition into a
// single value that can be passed around the service layer. Cache rows,
// queue rows and conflict rows share the partition, so one transaction can
// span all of them.
type ClientStorages struct {
	Transactor

	Entities  EntityRepository
	Mutations MutationRepository
	Conflicts ConflictRepository
	Meta      MetaRepository

	db   *DB
	Path string
}

// NewClientStorages opens userID's partition under cfg.DataDir and brings
// its schema up to date. Any failure is reported as [ErrStoreUnavailable].
func NewClientStorages(ctx context.Context, cfg config.ClientStorage, userID string, log *logger.Logger) (*ClientStorages, error) {
	path := PartitionPath(cfg.DataDir, userID)
	log.Info().Str("func", "NewClientStorages").Str("path", path).Msg("opening partition")

	db, err := NewConnectSQLite(ctx, path, cfg.BusyTimeout, log)
	if err != nil {
		return nil, err
	}

	if err = db.Migrate(ctx); err != nil {
		db.Close()
		log.Err(err).Str("func", "NewClientStorages").Msg("partition migration failed")
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	storages := NewClientStoragesFromDB(db)
	storages.Path = path
	return storages, nil
}

// NewClientStoragesFromDB wires repositories over an already open DB.
func NewClientStoragesFromDB(db *DB) *ClientStorages {
	return &ClientStorages{
		Transactor: db,
		Entities:   NewEntityRepository(db),
		Mutations:  NewMutationRepository(db),
		Conflicts:  NewConflictRepository(db),
		Meta:       NewMetaRepository(db),
		db:         db,
	}
}

// Close releases the partition file.
func (s *ClientStorages) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
