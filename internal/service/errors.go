// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import "errors"

var (
	// ErrAuthExpired fails a sync cycle when the session token is missing,
	// expired or rejected by the remote. It is never retried automatically.
	ErrAuthExpired = errors.New("session expired")

	// ErrOffline is returned by a sync started while the monitor reports
	// offline, and is the cause of a cycle aborted by an offline transition.
	ErrOffline = errors.New("remote is unreachable")

	// ErrInvalidMutation rejects a local write that cannot be queued, such as
	// an update of a deleted entity.
	ErrInvalidMutation = errors.New("invalid mutation")

	// ErrInvalidResolution rejects an unknown resolution choice or a merged
	// resolution without a payload.
	ErrInvalidResolution = errors.New("invalid conflict resolution")

	// ErrClosed is the cause of a cycle aborted because the session closes.
	ErrClosed = errors.New("session closed")
)
