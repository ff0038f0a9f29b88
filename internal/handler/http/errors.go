// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import "errors"

// Sentinel errors of the auth and integrity middleware. Callers can match
// against them with [errors.Is].
var (
	// ErrEmptyAuthorizationHeader is returned when the request carries no
	// "Authorization" header at all.
	ErrEmptyAuthorizationHeader = errors.New("empty `Authorization` header")

	// ErrInvalidAuthorizationHeader is returned when the header is not of
	// the form "Bearer <token>".
	ErrInvalidAuthorizationHeader = errors.New("invalid `Authorization` header")

	// ErrTokenExpired is returned for a well-formed token past its exp claim.
	ErrTokenExpired = errors.New("token is expired")

	// ErrInvalidToken covers bad signatures, issuers and subjects.
	ErrInvalidToken = errors.New("invalid token")

	// ErrIntegrityCheckFailed means the HashSHA256 header is missing or does
	// not match the body.
	ErrIntegrityCheckFailed = errors.New("integrity check failed")
)
