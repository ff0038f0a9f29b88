// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"time"

	"github.com/Rajak13/StudyCollab-sub003/internal/config"
	"github.com/Rajak13/StudyCollab-sub003/internal/logger"
	"github.com/Rajak13/StudyCollab-sub003/internal/remote"
	"github.com/Rajak13/StudyCollab-sub003/internal/utils"
)

// Handler serves the sync routes on top of a [remote.SyncStore].
type Handler struct {
	store  remote.SyncStore
	hasher *utils.Hasher

	tokenSignKey   string
	tokenIssuer    string
	version        string
	requestTimeout time.Duration
	now            func() time.Time

	logger *logger.Logger
}

// NewHandler wires the store with the auth and signing settings of cfg.
func NewHandler(store remote.SyncStore, cfg *config.ServerConfig, logger *logger.Logger) *Handler {
	logger.Info().Msg("http handler created")
	return &Handler{
		store:          store,
		hasher:         utils.NewHasher(cfg.HashKey),
		tokenSignKey:   cfg.TokenSignKey,
		tokenIssuer:    cfg.TokenIssuer,
		version:        cfg.Version,
		requestTimeout: cfg.RequestTimeout,
		now:            time.Now,
		logger:         logger,
	}
}
