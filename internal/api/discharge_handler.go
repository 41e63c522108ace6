package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/shaiso/Vetflow/internal/archive"
	"github.com/shaiso/Vetflow/internal/cache"
	"github.com/shaiso/Vetflow/internal/domain"
	"github.com/shaiso/Vetflow/internal/engine"
)

// Заголовки idempotency.
const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"
)

const maxKeyLen = 128

// Discharge запускает discharge workflow.
// POST /api/v1/discharge
//
// Ответ 200 {data: OrchestrationResult} возвращается и при неуспешном workflow:
// клиент смотрит на поле success. Ключ результата возвращается в Idempotency-Key.
func (h *Handler) Discharge(w http.ResponseWriter, r *http.Request) {
	actor := ActorFrom(r.Context())

	var req domain.OrchestrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if err := engine.ValidateRequest(&req); err != nil {
		BadRequest(w, err.Error())
		return
	}
	if req.Options == nil && h.defaults != nil {
		opts := *h.defaults
		req.Options = &opts
	}

	key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	if len(key) > maxKeyLen {
		BadRequest(w, "idempotency key is too long")
		return
	}
	idempotent := key != "" && h.cache != nil
	if key == "" {
		key = uuid.NewString()
	}

	if idempotent {
		cached, err := h.cache.Get(r.Context(), actor.ClinicID, key)
		switch {
		case err == nil:
			w.Header().Set(HeaderIdempotencyKey, key)
			w.Header().Set(HeaderReplayed, "true")
			Success(w, cached)
			return
		case !errors.Is(err, cache.ErrMiss):
			h.requestLogger(r).Warn("result cache unavailable", "error", err)
			idempotent = false
		}
	}

	if idempotent {
		err := h.cache.Acquire(r.Context(), actor.ClinicID, key)
		if errors.Is(err, cache.ErrInProgress) {
			Conflict(w, "discharge with this idempotency key is in progress")
			return
		}
		if err != nil {
			h.requestLogger(r).Warn("result cache lock failed", "error", err)
			idempotent = false
		}
	}

	result := h.orchestrator.Orchestrate(r.Context(), actor, &req)

	// Сохраняем результат даже если клиент отключился
	ctx := context.WithoutCancel(r.Context())
	if idempotent {
		if err := h.cache.Put(ctx, actor.ClinicID, key, result); err != nil {
			h.requestLogger(r).Warn("failed to cache result", "key", key, "error", err)
			h.cache.Release(ctx, actor.ClinicID, key)
		}
	}
	if h.archive != nil {
		rec := &archive.ResultRecord{
			Key:      key,
			ClinicID: actor.ClinicID,
			UserID:   actor.UserID,
			Request:  &req,
			Result:   result,
		}
		if err := h.archive.SaveResult(ctx, rec); err != nil {
			h.requestLogger(r).Warn("failed to archive result", "key", key, "error", err)
		}
	}

	w.Header().Set(HeaderIdempotencyKey, key)
	Success(w, result)
}

// GetDischarge возвращает результат по ключу: сначала из кэша, затем из архива.
// GET /api/v1/discharge/{key}
func (h *Handler) GetDischarge(w http.ResponseWriter, r *http.Request) {
	actor := ActorFrom(r.Context())
	key := r.PathValue("key")
	if key == "" || len(key) > maxKeyLen {
		BadRequest(w, "invalid key")
		return
	}

	if h.cache != nil {
		result, err := h.cache.Get(r.Context(), actor.ClinicID, key)
		if err == nil {
			Success(w, result)
			return
		}
		if !errors.Is(err, cache.ErrMiss) {
			h.requestLogger(r).Warn("result cache unavailable", "error", err)
		}
	}

	if h.archive == nil {
		NotFound(w, "result not found")
		return
	}

	rec, err := h.archive.LoadResult(r.Context(), actor.ClinicID, key)
	if errors.Is(err, archive.ErrNotFound) {
		NotFound(w, "result not found")
		return
	}
	if err != nil {
		InternalError(w, h.requestLogger(r), err)
		return
	}
	Success(w, rec.Result)
}
