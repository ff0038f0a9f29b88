// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package adapter

import "errors"

var (
	// ErrTransient marks failures worth retrying: network errors, timeouts,
	// throttling and 5xx responses.
	ErrTransient = errors.New("transient remote error")
	// ErrPermanent marks requests the remote will never accept as sent.
	ErrPermanent = errors.New("permanent remote error")
	// ErrUnauthorized means the session token was refused.
	ErrUnauthorized = errors.New("client unauthorized")
	// ErrVersionConflict means the base version did not match the remote.
	ErrVersionConflict = errors.New("version conflict")
	// ErrMalformedResponse means a 2xx body could not be decoded.
	ErrMalformedResponse = errors.New("malformed remote response")
)
