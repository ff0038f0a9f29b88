// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package remote

import "errors"

var (
	// ErrInvalidRequest means a push can never be applied as sent: missing
	// identifiers, an unknown operation or a payload that does not decode.
	ErrInvalidRequest = errors.New("invalid push request")
	// ErrNotFound means an update targets an entity the remote never had.
	ErrNotFound = errors.New("entity not found")
	// ErrNoUserID means the request context carries no authenticated user.
	ErrNoUserID = errors.New("no user id in context")
	// ErrInvalidQuery means the change feed query parameters are malformed.
	ErrInvalidQuery = errors.New("invalid change feed query")
)
