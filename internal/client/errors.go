// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package client

import "errors"

var (
	ErrNotInitialized     = errors.New("client is not initialized")
	ErrAlreadyInitialized = errors.New("client is already initialized")
	ErrNoUserID           = errors.New("user id is required")
	// ErrNoSecret is returned when neither an encryption secret nor a
	// session token is available to derive the key from.
	ErrNoSecret = errors.New("no secret to derive the encryption key from")
)
