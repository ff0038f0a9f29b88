// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package crypto owns the per-session key material of the offline cache and
// the at-rest encryption of cached payloads, queued mutations and conflict
// snapshots.
//
// Scheme:
//
//	Salt = GenerateSalt()                                  (first run, stored in sync_meta)
//	Key  = Argon2id(userID ‖ 0x00 ‖ sessionSecret, Salt)   (Initialize)
//	Blob = nonce ‖ AES-256-GCM(Key, snappy(plaintext))     (Encrypt)
//
// The key exists only in memory and is wiped by Reset.
package crypto

// Cipher is the narrow view of the encryption service used by the storage
// services. Implementations must be safe for concurrent use.
type Cipher interface {
	// Encrypt compresses and seals plaintext. Fails with ErrEncryption
	// before Initialize.
	Encrypt(plaintext []byte) ([]byte, error)

	// Decrypt opens a blob produced by Encrypt. Tampered or truncated
	// blobs and blobs sealed with another key fail with ErrEncryption.
	Decrypt(blob []byte) ([]byte, error)

	// IsInitialized reports whether a key is loaded.
	IsInitialized() bool
}
