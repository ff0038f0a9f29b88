// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"bytes"
	"io"
	"net/http"

	"github.com/Rajak13/StudyCollab-sub003/internal/logger"
	"github.com/Rajak13/StudyCollab-sub003/internal/utils"
)

// maxSignedBody bounds the bytes read to verify a request signature.
const maxSignedBody = 4 << 20

// verifyHash checks the HashSHA256 header against the HMAC of the raw
// request body. It is a no-op when the handler has no hash key.
func (h *Handler) verifyHash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.hasher.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		log := logger.FromRequest(r)

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSignedBody))
		if err != nil {
			log.Err(err).Str("func", "*Handler.verifyHash").Msg("failed to read request body")
			utils.WriteError(w, "failed to read request body", http.StatusRequestEntityTooLarge)
			return
		}
		// restore request body
		r.Body = io.NopCloser(bytes.NewReader(body))

		sum := r.Header.Get(utils.HashHeader)
		if sum == "" || !h.hasher.Verify(body, sum) {
			log.Error().Str("func", "*Handler.verifyHash").
				Str("hash from request", sum).
				Msg("hashes are not equal")
			utils.WriteError(w, ErrIntegrityCheckFailed.Error(), http.StatusBadRequest)
			return
		}

		next.ServeHTTP(w, r)
	})
}
