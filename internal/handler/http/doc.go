// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package http serves the sync remote contract over REST.
//
// Routes:
//
//	GET  /api/ping           reachability probe, no auth
//	POST /api/sync/push      apply one mutation, bearer auth and HashSHA256
//	GET  /api/sync/changes   change feed page, bearer auth
//
// Request tracing, access logging, gzip and integrity checks are handled by
// middleware in this package before requests reach the [remote.SyncStore].
package http
