// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package utils

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"testing"
)

const testHashKey = "test-secret-key"

func TestHasher_SumMatchesHMAC(t *testing.T) {
	h := NewHasher(testHashKey)
	data := []byte(`{"mutation_id":"m-1","revision":2}`)

	sum1 := h.Sum(data)
	sum2 := h.Sum(data)

	if !bytes.Equal(sum1, sum2) {
		t.Fatal("hash must be deterministic for the same input")
	}

	mac := hmac.New(sha256.New, []byte(testHashKey))
	mac.Write(data)
	if want := mac.Sum(nil); !bytes.Equal(sum1, want) {
		t.Fatalf("unexpected hash value\nwant: %x\ngot:  %x", want, sum1)
	}
	if got := h.SumHex(data); got != hex.EncodeToString(sum1) {
		t.Errorf("SumHex = %s, want %x", got, sum1)
	}
}

func TestHasher_DifferentKeys(t *testing.T) {
	data := []byte("payload")

	if NewHasher("key-one").SumHex(data) == NewHasher("key-two").SumHex(data) {
		t.Error("different keys must produce different hashes for the same payload")
	}
}

func TestHasher_Verify(t *testing.T) {
	h := NewHasher(testHashKey)
	data := []byte("body")
	sum := h.SumHex(data)

	if !h.Verify(data, sum) {
		t.Error("expected valid signature to verify")
	}
	if h.Verify([]byte("other body"), sum) {
		t.Error("expected signature of other data to fail")
	}
	if h.Verify(data, "not-hex") {
		t.Error("expected malformed signature to fail")
	}
}

func TestHasher_Disabled(t *testing.T) {
	h := NewHasher("")

	if h.Enabled() {
		t.Fatal("hasher with empty key must be disabled")
	}
	if got := h.SumHex([]byte("x")); got != "" {
		t.Errorf("disabled SumHex = %q, want empty", got)
	}
	if !h.Verify([]byte("x"), "anything") {
		t.Error("disabled hasher must accept every signature")
	}

	var nilHasher *Hasher
	if nilHasher.Enabled() {
		t.Error("nil hasher must be disabled")
	}
}

func TestHasher_ConcurrentUse(t *testing.T) {
	h := NewHasher(testHashKey)
	want := h.SumHex([]byte("same"))

	var wg sync.WaitGroup
	for range 32 {
		wg.Go(func() {
			if got := h.SumHex([]byte("same")); got != want {
				t.Errorf("concurrent SumHex = %s, want %s", got, want)
			}
		})
	}
	wg.Wait()
}

func TestHashString(t *testing.T) {
	if HashString("data", testHashKey) != NewHasher(testHashKey).SumHex([]byte("data")) {
		t.Error("HashString must match Hasher.SumHex")
	}
}
