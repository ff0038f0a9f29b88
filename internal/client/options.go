// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package client

import (
	"time"

	"github.com/Rajak13/StudyCollab-sub003/internal/adapter"
	"github.com/Rajak13/StudyCollab-sub003/internal/crypto"
)

// Option tunes a session opened by [Coordinator.Initialize].
type Option func(*options)

type options struct {
	remote adapter.RemoteAdapter
	cipher *crypto.EncryptionService
	secret string
	now    func() time.Time
}

// WithRemote replaces the HTTP adapter built from the configuration.
func WithRemote(remote adapter.RemoteAdapter) Option {
	return func(o *options) {
		o.remote = remote
	}
}

// WithEncryption replaces the default encryption service, e.g. with one
// using cheaper key derivation parameters.
func WithEncryption(cipher *crypto.EncryptionService) Option {
	return func(o *options) {
		o.cipher = cipher
	}
}

// WithSecret sets the key derivation secret, overriding the configured
// encryption secret and the session token.
func WithSecret(secret string) Option {
	return func(o *options) {
		o.secret = secret
	}
}

// WithClock replaces time.Now in the session.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
