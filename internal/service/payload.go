// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"encoding/json"
	"fmt"

	"github.com/Rajak13/StudyCollab-sub003/internal/crypto"
	"github.com/Rajak13/StudyCollab-sub003/models"
)

// sealPayload encodes and encrypts p. A zero payload seals to nil.
func sealPayload(c crypto.Cipher, p models.Payload) ([]byte, error) {
	raw, err := p.Encode()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMutation, err)
	}
	return sealRaw(c, raw)
}

// sealRaw encrypts a plaintext JSON document. Empty and null documents seal
// to nil.
func sealRaw(c crypto.Cipher, raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	return c.Encrypt(raw)
}

// openRaw reverses sealRaw.
func openRaw(c crypto.Cipher, blob []byte) (json.RawMessage, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	raw, err := c.Decrypt(blob)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// openPayload decrypts blob and decodes it as the payload of an entity of
// type t.
func openPayload(c crypto.Cipher, t models.EntityType, blob []byte) (models.Payload, error) {
	raw, err := openRaw(c, blob)
	if err != nil {
		return models.Payload{}, err
	}
	p, err := models.DecodePayload(t, raw)
	if err != nil {
		return models.Payload{}, fmt.Errorf("%w: %w", crypto.ErrEncryption, err)
	}
	return p, nil
}
