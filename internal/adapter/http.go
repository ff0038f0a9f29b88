// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/Rajak13/StudyCollab-sub003/internal/config"
	"github.com/Rajak13/StudyCollab-sub003/internal/logger"
	"github.com/Rajak13/StudyCollab-sub003/internal/utils"
	"github.com/Rajak13/StudyCollab-sub003/models"
	"github.com/go-resty/resty/v2"
)

// Wire paths and headers of the sync remote.
const (
	PathPush    = "/api/sync/push"
	PathChanges = "/api/sync/changes"
	PathPing    = "/api/ping"

	HeaderRequestID   = "X-Request-ID"
	HeaderIdempotency = "Idempotency-Key"
)

type httpRemoteAdapter struct {
	client *utils.HTTPClient
	hasher *utils.Hasher
	ids    *utils.UUIDGenerator

	mu    sync.RWMutex
	token string

	logger *logger.Logger
}

// NewHTTPRemoteAdapter constructs an HTTP/REST implementation of
// [RemoteAdapter]. It normalises and validates the base URL from
// adapterCfg.HTTPAddress, configures the underlying resty client with the
// request timeout, and prepares the HMAC hasher for the HashSHA256 header.
// The session token from appCfg is attached when present.
//
// Returns an error if adapterCfg.HTTPAddress is empty or cannot be parsed as
// a valid URL.
func NewHTTPRemoteAdapter(adapterCfg config.ClientAdapter, appCfg config.ClientApp, logger *logger.Logger) (RemoteAdapter, error) {
	baseURL, err := normalizeBaseURL(adapterCfg.HTTPAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid adapter http address: %w", err)
	}

	a := &httpRemoteAdapter{
		client: utils.NewHTTPClient(baseURL, adapterCfg.RequestTimeout),
		hasher: utils.NewHasher(appCfg.HashKey),
		ids:    utils.NewUUIDGenerator(),
		logger: logger,
	}
	a.SetToken(appCfg.SessionToken)

	return a, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address must include host and scheme")
	}

	return strings.TrimRight(u.String(), "/"), nil
}

// SetToken implements [RemoteAdapter].
func (h *httpRemoteAdapter) SetToken(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = strings.TrimSpace(token)
}

// Token implements [RemoteAdapter].
func (h *httpRemoteAdapter) Token() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

// PushMutation implements [RemoteAdapter]. It POSTs req to /api/sync/push
// with the Idempotency-Key header set to "mutationID:revision" so a retried
// delivery of an applied revision is answered from the remote's replay
// cache instead of being applied twice.
func (h *httpRemoteAdapter) PushMutation(ctx context.Context, req models.PushRequest) (models.PushResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return models.PushResult{}, fmt.Errorf("%w: encode push request: %w", ErrPermanent, err)
	}

	resp, err := h.signedRequest(ctx, body).
		SetHeader(HeaderIdempotency, req.MutationID+":"+strconv.FormatInt(req.Revision, 10)).
		Post(PathPush)
	if err != nil {
		return models.PushResult{}, fmt.Errorf("%w: push request: %w", ErrTransient, err)
	}

	mapped := mapHTTPError(resp)
	switch {
	case mapped == nil:
		var result models.PushResult
		if err = json.Unmarshal(resp.Body(), &result); err != nil {
			return models.PushResult{}, fmt.Errorf("%w: decode push response: %w", ErrMalformedResponse, err)
		}
		if result.Status == "" {
			result.Status = models.PushApplied
		}
		return result, nil

	case errors.Is(mapped, ErrVersionConflict):
		var result models.PushResult
		if err = json.Unmarshal(resp.Body(), &result); err != nil || result.Remote == nil {
			return models.PushResult{}, fmt.Errorf("%w: conflict without remote snapshot", ErrTransient)
		}
		result.Status = models.PushConflict
		return result, nil

	case errors.Is(mapped, ErrPermanent):
		h.logger.Warn().
			Str("func", "httpRemoteAdapter.PushMutation").
			Str("mutation_id", req.MutationID).
			Int("status", resp.StatusCode()).
			Msg("push rejected by remote")
		return models.PushResult{Status: models.PushRejected, Reason: rejectReason(resp)}, nil

	default:
		return models.PushResult{}, mapped
	}
}

// PullChanges implements [RemoteAdapter]. It GETs /api/sync/changes with the
// since and limit query parameters.
func (h *httpRemoteAdapter) PullChanges(ctx context.Context, since int64, limit int) (models.PullResponse, error) {
	var page models.PullResponse

	resp, err := h.authedRequest(ctx).
		SetQueryParam("since", strconv.FormatInt(since, 10)).
		SetQueryParam("limit", strconv.Itoa(limit)).
		Get(PathChanges)
	if err != nil {
		return page, fmt.Errorf("%w: pull request: %w", ErrTransient, err)
	}
	if err = mapHTTPError(resp); err != nil {
		return page, err
	}

	if err = json.Unmarshal(resp.Body(), &page); err != nil {
		return models.PullResponse{}, fmt.Errorf("%w: decode pull response: %w", ErrMalformedResponse, err)
	}
	if page.Watermark < since {
		page.Watermark = since
	}

	return page, nil
}

// Ping implements [RemoteAdapter].
func (h *httpRemoteAdapter) Ping(ctx context.Context) (models.PingResponse, error) {
	var pong models.PingResponse

	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader(HeaderRequestID, h.ids.Generate()).
		SetResult(&pong).
		Get(PathPing)
	if err != nil {
		return pong, fmt.Errorf("%w: ping request: %w", ErrTransient, err)
	}
	if err = mapHTTPError(resp); err != nil {
		return pong, err
	}

	return pong, nil
}

func (h *httpRemoteAdapter) authedRequest(ctx context.Context) *resty.Request {
	req := h.client.R().
		SetContext(ctx).
		SetHeader(HeaderRequestID, h.ids.Generate())
	if token := h.Token(); token != "" {
		req.SetAuthToken(token)
	}
	return req
}

// signedRequest attaches a pre-encoded JSON body and its HMAC, so the hash
// covers exactly the bytes on the wire.
func (h *httpRemoteAdapter) signedRequest(ctx context.Context, body []byte) *resty.Request {
	req := h.authedRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body)
	if sum := h.hasher.SumHex(body); sum != "" {
		req.SetHeader(utils.HashHeader, sum)
	}
	return req
}

func rejectReason(resp *resty.Response) string {
	var e utils.ErrorBody
	if err := json.Unmarshal(resp.Body(), &e); err == nil && e.Error != "" {
		return e.Error
	}
	var r models.PushResult
	if err := json.Unmarshal(resp.Body(), &r); err == nil && r.Reason != "" {
		return r.Reason
	}
	if body := strings.TrimSpace(string(resp.Body())); body != "" {
		return body
	}
	return resp.Status()
}
