// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Rajak13/StudyCollab-sub003/internal/adapter"
)

// Init builds the router.
func (h *Handler) Init() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(h.withTraceID, h.withLogging, withGZip)
	if h.requestTimeout > 0 {
		router.Use(middleware.Timeout(h.requestTimeout))
	}

	// routes without authorization
	router.Get(adapter.PathPing, h.ping)

	router.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.With(h.verifyHash).Post(adapter.PathPush, h.push)
		r.Get(adapter.PathChanges, h.changes)
	})

	router.MethodNotAllowed(CheckHTTPMethod(router))

	return router
}
