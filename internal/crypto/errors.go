// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package crypto

import "errors"

var (
	ErrEncryption     = errors.New("encryption failure")
	ErrNotInitialized = errors.New("encryption key is not initialized")
	ErrWrongSecret    = errors.New("session secret does not match the stored key check")
)
