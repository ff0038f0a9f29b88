// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"sync"

	"github.com/golang/snappy"
	"golang.org/x/crypto/argon2"
)

const (
	SaltSize = 16
	KeySize  = 32

	// keyCheckPlaintext is sealed with the derived key and stored next to the
	// salt, so a wrong session secret is detected before any row is read.
	keyCheckPlaintext = "studycollab-offline-key-check-v1"
)

// EncryptionService is the session-scoped implementation of [Cipher].
type EncryptionService struct {
	// Argon2id tuning parameters.
	argonTime    uint32
	argonMemory  uint32
	argonThreads uint8

	mu   sync.RWMutex
	aead cipher.AEAD
	key  []byte
}

// NewEncryptionService constructs an uninitialized service with the Argon2id
// parameters recommended by OWASP:
//   - time cost:   1 iteration
//   - memory cost: 64 MiB
//   - parallelism: 4 threads
func NewEncryptionService() *EncryptionService {
	return &EncryptionService{
		argonTime:    1,
		argonMemory:  64 * 1024,
		argonThreads: 4,
	}
}

// NewFastEncryptionService uses a tiny Argon2id memory cost. Only meant for
// tests, where the default 64 MiB per derivation dominates run time.
func NewFastEncryptionService() *EncryptionService {
	return &EncryptionService{
		argonTime:    1,
		argonMemory:  1024,
		argonThreads: 1,
	}
}

// GenerateSalt reads SaltSize random bytes from the OS CSPRNG.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("%w: generate salt: %w", ErrEncryption, err)
	}
	return salt, nil
}

// Initialize derives the session key from userID, sessionSecret and salt.
// Calling it again replaces the key.
func (s *EncryptionService) Initialize(userID, sessionSecret string, salt []byte) error {
	if userID == "" || sessionSecret == "" {
		return fmt.Errorf("%w: empty user id or session secret", ErrEncryption)
	}
	if len(salt) != SaltSize {
		return fmt.Errorf("%w: salt must be %d bytes, got %d", ErrEncryption, SaltSize, len(salt))
	}

	material := make([]byte, 0, len(userID)+1+len(sessionSecret))
	material = append(material, userID...)
	material = append(material, 0x00)
	material = append(material, sessionSecret...)

	key := argon2.IDKey(material, salt, s.argonTime, s.argonMemory, s.argonThreads, KeySize)
	clear(material)

	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("%w: create cipher: %w", ErrEncryption, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("%w: create gcm: %w", ErrEncryption, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.key)
	s.key = key
	s.aead = gcm

	return nil
}

// IsInitialized implements [Cipher].
func (s *EncryptionService) IsInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.aead != nil
}

// Reset wipes the key from memory. The service must be initialized again
// before use.
func (s *EncryptionService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.key)
	s.key = nil
	s.aead = nil
}

// Encrypt implements [Cipher]. blob = nonce ‖ ciphertext.
func (s *EncryptionService) Encrypt(plaintext []byte) ([]byte, error) {
	gcm, err := s.current()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize(), gcm.NonceSize()+len(plaintext)+gcm.Overhead())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("%w: generate nonce: %w", ErrEncryption, err)
	}

	return gcm.Seal(nonce, nonce, snappy.Encode(nil, plaintext), nil), nil
}

// Decrypt implements [Cipher].
func (s *EncryptionService) Decrypt(blob []byte) ([]byte, error) {
	gcm, err := s.current()
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(blob) < nonceSize+gcm.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrEncryption)
	}

	nonce, ciphertext := blob[:nonceSize], blob[nonceSize:]
	compressed, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %w", ErrEncryption, err)
	}

	plaintext, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("%w: decompress: %w", ErrEncryption, err)
	}

	return plaintext, nil
}

// KeyCheck seals a fixed marker with the current key.
func (s *EncryptionService) KeyCheck() ([]byte, error) {
	return s.Encrypt([]byte(keyCheckPlaintext))
}

// VerifyKeyCheck reports ErrWrongSecret when blob was not produced by
// KeyCheck under the current key.
func (s *EncryptionService) VerifyKeyCheck(blob []byte) error {
	plain, err := s.Decrypt(blob)
	if err != nil {
		if !s.IsInitialized() {
			return err
		}
		return fmt.Errorf("%w: %w", ErrWrongSecret, err)
	}
	if subtle.ConstantTimeCompare(plain, []byte(keyCheckPlaintext)) != 1 {
		return ErrWrongSecret
	}
	return nil
}

func (s *EncryptionService) current() (cipher.AEAD, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.aead == nil {
		return nil, fmt.Errorf("%w: %w", ErrEncryption, ErrNotInitialized)
	}
	return s.aead, nil
}
