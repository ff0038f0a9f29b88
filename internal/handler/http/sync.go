// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Rajak13/StudyCollab-sub003/internal/adapter"
	"github.com/Rajak13/StudyCollab-sub003/internal/logger"
	"github.com/Rajak13/StudyCollab-sub003/internal/remote"
	"github.com/Rajak13/StudyCollab-sub003/internal/utils"
	"github.com/Rajak13/StudyCollab-sub003/models"
)

// push applies one mutation. An applied push answers 200, a version
// conflict answers 409 with the remote snapshot in the body.
func (h *Handler) push(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	userID, found := utils.GetUserIDFromContext(ctx)
	if !found {
		log.Error().Str("func", "*Handler.push").Msg("no user ID was given")
		utils.WriteError(w, remote.ErrNoUserID.Error(), http.StatusUnauthorized)
		return
	}

	var req models.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Err(err).Str("func", "*Handler.push").Msg("invalid JSON was passed")
		utils.WriteError(w, "invalid JSON was passed", http.StatusBadRequest)
		return
	}

	res, err := h.store.Push(ctx, userID, r.Header.Get(adapter.HeaderIdempotency), req)
	if err != nil {
		log.Err(err).Str("func", "*Handler.push").Str("entity_id", req.EntityID).Msg("push refused")
		utils.WriteError(w, err.Error(), statusFromError(err))
		return
	}

	status := http.StatusOK
	if res.Status == models.PushConflict {
		status = http.StatusConflict
	}
	utils.WriteJSON(w, res, status)
}

// changes serves one page of the change feed: ?since=<watermark>&limit=<n>.
func (h *Handler) changes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	userID, found := utils.GetUserIDFromContext(ctx)
	if !found {
		log.Error().Str("func", "*Handler.changes").Msg("no user ID was given")
		utils.WriteError(w, remote.ErrNoUserID.Error(), http.StatusUnauthorized)
		return
	}

	since, err := queryInt(r, "since", 0)
	if err != nil {
		utils.WriteError(w, "invalid since parameter", http.StatusBadRequest)
		return
	}
	limit, err := queryInt(r, "limit", remote.DefaultPageSize)
	if err != nil {
		utils.WriteError(w, "invalid limit parameter", http.StatusBadRequest)
		return
	}

	page, err := h.store.Changes(ctx, userID, since, int(limit))
	if err != nil {
		log.Err(err).Str("func", "*Handler.changes").Msg("error reading change feed")
		utils.WriteError(w, err.Error(), statusFromError(err))
		return
	}

	utils.WriteJSON(w, page, http.StatusOK)
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, models.PingResponse{
		Status:  "ok",
		Version: h.version,
		Time:    h.now().UTC(),
	}, http.StatusOK)
}

func queryInt(r *http.Request, name string, def int64) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
