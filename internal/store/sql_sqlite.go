// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Rajak13/StudyCollab-sub003/internal/logger"
)

// PartitionPath returns the file of userID's partition inside dataDir. The
// user id is hashed so it never appears on disk in clear.
func PartitionPath(dataDir, userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return filepath.Join(dataDir, hex.EncodeToString(sum[:16])+".db")
}

// NewConnectSQLite opens (creating if needed) the partition file at path.
// The pool is limited to one connection: the partition is single-writer.
func NewConnectSQLite(ctx context.Context, path string, busyTimeout time.Duration, log *logger.Logger) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		log.Err(err).Str("func", "NewConnectSQLite").Msg("error creating data directory")
		return nil, fmt.Errorf("%w: create data dir: %w", ErrStoreUnavailable, err)
	}

	params := url.Values{}
	params.Set("_busy_timeout", strconv.FormatInt(busyTimeout.Milliseconds(), 10))
	params.Set("_journal_mode", "WAL")
	params.Set("_txlock", "immediate")
	dsn := "file:" + path + "?" + params.Encode()

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		log.Err(err).Str("func", "NewConnectSQLite").Msg("error opening database")
		return nil, fmt.Errorf("%w: open: %w", ErrStoreUnavailable, err)
	}
	conn.SetMaxOpenConns(1)

	if err = conn.PingContext(ctx); err != nil {
		conn.Close()
		log.Err(err).Str("func", "NewConnectSQLite").Msg("error connecting database (ping)")
		return nil, fmt.Errorf("%w: ping: %w", ErrStoreUnavailable, err)
	}
	log.Debug().Str("func", "NewConnectSQLite").Str("path", path).Msg("connected to partition")

	return NewDB(conn, log), nil
}
