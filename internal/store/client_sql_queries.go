// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/Rajak13/StudyCollab-sub003/models"
)

const (
	tableEntities   = "entities"
	tableCacheStats = "cache_stats"
	tableMutations  = "mutations"
	tableConflicts  = "conflicts"
	tableSyncMeta   = "sync_meta"
)

var entityColumns = []string{
	"entity_type",
	"id",
	"payload_encrypted",
	"local_version",
	"remote_version",
	"last_modified_local",
	"last_read_at",
	"sync_status",
	"size",
}

var mutationColumns = []string{
	"seq",
	"id",
	"entity_type",
	"entity_id",
	"operation",
	"payload_encrypted",
	"base_version",
	"revision",
	"state",
	"enqueued_at",
	"attempts",
	"last_error",
	"next_attempt_at",
}

var conflictColumns = []string{
	"entity_type",
	"entity_id",
	"local_snapshot",
	"remote_snapshot",
	"local_timestamp",
	"remote_timestamp",
	"remote_version",
	"remote_deleted",
	"detected_at",
}

func buildSelectEntityQuery(b sq.StatementBuilderType, key models.EntityKey) sq.SelectBuilder {
	return b.Select(entityColumns...).
		From(tableEntities).
		Where(sq.Eq{"entity_type": key.Type, "id": key.ID})
}

func buildUpsertEntityQuery(b sq.StatementBuilderType, e models.CachedEntity) sq.InsertBuilder {
	return b.Insert(tableEntities).
		Columns(entityColumns...).
		Values(
			e.EntityType,
			e.ID,
			e.PayloadEncrypted,
			e.LocalVersion,
			toNullInt64(e.RemoteVersion),
			toUnix(e.LastModifiedLocal),
			toUnix(e.LastReadAt),
			e.SyncStatus,
			e.Size,
		).
		Suffix(`ON CONFLICT (entity_type, id) DO UPDATE SET
			payload_encrypted = excluded.payload_encrypted,
			local_version = excluded.local_version,
			remote_version = excluded.remote_version,
			last_modified_local = excluded.last_modified_local,
			last_read_at = excluded.last_read_at,
			sync_status = excluded.sync_status,
			size = excluded.size`)
}

// buildListEntitiesByTypeQuery pages by primary key (keyset pagination).
func buildListEntitiesByTypeQuery(b sq.StatementBuilderType, t models.EntityType, afterID string, limit int) sq.SelectBuilder {
	return b.Select(entityColumns...).
		From(tableEntities).
		Where(sq.Eq{"entity_type": t}).
		Where(sq.Gt{"id": afterID}).
		OrderBy("id").
		Limit(uint64(limit))
}

func buildLeastRecentlyReadQuery(b sq.StatementBuilderType, limit int) sq.SelectBuilder {
	return b.Select(entityColumns...).
		From(tableEntities).
		Where(sq.Eq{"sync_status": models.StatusSynced}).
		OrderBy("last_read_at", "entity_type", "id").
		Limit(uint64(limit))
}

// buildAdjustStatsQuery adds deltas to the per-type counters.
func buildAdjustStatsQuery(b sq.StatementBuilderType, t models.EntityType, countDelta, sizeDelta int64) sq.InsertBuilder {
	return b.Insert(tableCacheStats).
		Columns("entity_type", "total_count", "total_size").
		Values(t, countDelta, sizeDelta).
		Suffix(`ON CONFLICT (entity_type) DO UPDATE SET
			total_count = total_count + excluded.total_count,
			total_size = total_size + excluded.total_size`)
}

func buildInsertMutationQuery(b sq.StatementBuilderType, m models.QueuedMutation) sq.InsertBuilder {
	return b.Insert(tableMutations).
		Columns(mutationColumns[1:]...).
		Values(
			m.ID,
			m.EntityType,
			m.EntityID,
			m.Operation,
			m.PayloadEncrypted,
			toNullInt64(m.BaseVersion),
			m.Revision,
			m.State,
			toUnix(m.EnqueuedAt),
			m.Attempts,
			m.LastError,
			toUnix(m.NextAttemptAt),
		)
}

func buildUpdateMutationQuery(b sq.StatementBuilderType, m models.QueuedMutation) sq.UpdateBuilder {
	return b.Update(tableMutations).
		SetMap(map[string]any{
			"operation":         m.Operation,
			"payload_encrypted": m.PayloadEncrypted,
			"base_version":      toNullInt64(m.BaseVersion),
			"revision":          m.Revision,
			"state":             m.State,
			"attempts":          m.Attempts,
			"last_error":        m.LastError,
			"next_attempt_at":   toUnix(m.NextAttemptAt),
		}).
		Where(sq.Eq{"id": m.ID})
}

func buildSelectMutationsQuery(b sq.StatementBuilderType) sq.SelectBuilder {
	return b.Select(mutationColumns...).From(tableMutations).OrderBy("seq")
}

func buildListDueMutationsQuery(b sq.StatementBuilderType, nowUnix int64, limit int) sq.SelectBuilder {
	q := buildSelectMutationsQuery(b).
		Where(sq.Eq{"state": models.MutationPending}).
		Where(sq.LtOrEq{"next_attempt_at": nowUnix})
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return q
}

func buildUpsertConflictQuery(b sq.StatementBuilderType, c models.ConflictRecord) sq.InsertBuilder {
	return b.Insert(tableConflicts).
		Columns(conflictColumns...).
		Values(
			c.EntityType,
			c.EntityID,
			c.LocalSnapshot,
			c.RemoteSnapshot,
			toUnix(c.LocalTimestamp),
			toUnix(c.RemoteTimestamp),
			c.RemoteVersion,
			c.RemoteDeleted,
			toUnix(c.DetectedAt),
		).
		Suffix(`ON CONFLICT (entity_type, entity_id) DO UPDATE SET
			local_snapshot = excluded.local_snapshot,
			remote_snapshot = excluded.remote_snapshot,
			local_timestamp = excluded.local_timestamp,
			remote_timestamp = excluded.remote_timestamp,
			remote_version = excluded.remote_version,
			remote_deleted = excluded.remote_deleted`)
}
