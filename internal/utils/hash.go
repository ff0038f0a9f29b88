// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"sync"
)

// HashHeader carries the hex HMAC-SHA256 of a request body.
const HashHeader = "HashSHA256"

// Hasher computes keyed HMAC-SHA256 digests over request bodies. HMAC
// instances are pooled to reduce allocations on hot paths; a Hasher with an
// empty key is disabled and signs nothing.
type Hasher struct {
	key  []byte
	pool sync.Pool
}

// NewHasher returns a Hasher bound to key.
//
// Example usage:
//
//	h := utils.NewHasher("my-secret-key")
//	req.SetHeader(utils.HashHeader, h.SumHex(body))
func NewHasher(key string) *Hasher {
	h := &Hasher{key: []byte(key)}
	h.pool.New = func() any {
		return hmac.New(sha256.New, h.key)
	}
	return h
}

// Enabled reports whether the hasher has a key.
func (h *Hasher) Enabled() bool {
	return h != nil && len(h.key) > 0
}

// Sum computes the raw HMAC-SHA256 digest of data.
//
// Behavior:
//   - Retrieves a hash.Hash instance from the pool
//   - Resets it, writes the data, computes the sum
//   - Resets again and returns it to the pool
func (h *Hasher) Sum(data []byte) []byte {
	mac := h.pool.Get().(hash.Hash)
	mac.Reset()

	mac.Write(data)
	sum := mac.Sum(nil)

	mac.Reset()
	h.pool.Put(mac)

	return sum
}

// SumHex is Sum encoded as lowercase hex. It returns "" when the hasher is
// disabled.
func (h *Hasher) SumHex(data []byte) string {
	if !h.Enabled() {
		return ""
	}
	return hex.EncodeToString(h.Sum(data))
}

// Verify reports whether hexSum is the digest of data. A disabled hasher
// accepts everything.
func (h *Hasher) Verify(data []byte, hexSum string) bool {
	if !h.Enabled() {
		return true
	}
	got, err := hex.DecodeString(hexSum)
	if err != nil {
		return false
	}
	return hmac.Equal(got, h.Sum(data))
}

// HashString computes an HMAC-SHA256 signature over the given string
// using the provided hash key and returns the result as a hex-encoded string.
//
// Unlike Hasher, this function creates a new HMAC instance on each call.
// Suitable for one-off hashing.
func HashString(data string, hashKey string) string {
	mac := hmac.New(sha256.New, []byte(hashKey))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}
