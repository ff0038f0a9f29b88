// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package adapter provides the transport layer between the offline client
// and the StudyCollab sync remote.
//
// The primary abstraction is [RemoteAdapter], which decouples the sync
// manager from the underlying protocol. The package ships an HTTP/REST
// implementation ([NewHTTPRemoteAdapter]) built on resty.
//
// HTTP statuses are mapped by mapHTTPError to the sentinel values in
// errors.go so callers can use [errors.Is] for transport-agnostic handling:
// [ErrUnauthorized] for 401, [ErrVersionConflict] for 409, [ErrPermanent]
// for other 4xx and [ErrTransient] for 5xx, throttling and network failures.
package adapter

import (
	"context"

	"github.com/Rajak13/StudyCollab-sub003/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/remote_adapter_mock.go -package=mock

// RemoteAdapter is the contract of the sync remote: push a single mutation
// with a version check, fetch changes since a watermark, and probe health.
type RemoteAdapter interface {
	// SetToken stores the bearer token attached to all subsequent requests.
	SetToken(token string)

	// Token returns the bearer token currently stored in the adapter.
	Token() string

	// PushMutation delivers one mutation. Version conflicts and rejections
	// are outcomes, not errors: they come back as PushResult with Status
	// [models.PushConflict] (Remote set) or [models.PushRejected] (Reason
	// set). Errors are [ErrTransient] or [ErrUnauthorized], wrapped.
	PushMutation(ctx context.Context, req models.PushRequest) (models.PushResult, error)

	// PullChanges returns at most limit changes with a feed position
	// greater than since, in feed order.
	PullChanges(ctx context.Context, since int64, limit int) (models.PullResponse, error)

	// Ping checks that the remote is reachable. It needs no token.
	Ping(ctx context.Context) (models.PingResponse, error)
}
