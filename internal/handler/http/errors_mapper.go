// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/Rajak13/StudyCollab-sub003/internal/remote"
)

var errorStatusMap = map[error]int{
	remote.ErrInvalidRequest: http.StatusUnprocessableEntity,
	remote.ErrInvalidQuery:   http.StatusBadRequest,
	remote.ErrNotFound:       http.StatusNotFound,
	remote.ErrNoUserID:       http.StatusUnauthorized,

	context.DeadlineExceeded: http.StatusGatewayTimeout,
	context.Canceled:         http.StatusServiceUnavailable,
}

func statusFromError(err error) int {
	for target, status := range errorStatusMap {
		if errors.Is(err, target) {
			return status
		}
	}
	return http.StatusInternalServerError
}
