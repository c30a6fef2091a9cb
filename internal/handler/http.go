package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"railmap/internal/cache"
	"railmap/internal/domain"
	"railmap/internal/store"
)

type HTTPHandler struct {
	store  *store.Store
	cache  *cache.RedisCache
	ttl    time.Duration
	logger *slog.Logger
}

// NewHTTPHandler serves the position endpoints. cache may be nil when
// Redis is not configured.
func NewHTTPHandler(st *store.Store, c *cache.RedisCache, ttl time.Duration, logger *slog.Logger) *HTTPHandler {
	return &HTTPHandler{store: st, cache: c, ttl: ttl, logger: logger}
}

type PositionsResponse struct {
	Positions   []*domain.Position `json:"positions"`
	Count       int                `json:"count"`
	Fingerprint string             `json:"fingerprint"`
	ServerTime  time.Time          `json:"serverTime"`
}

func (h *HTTPHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	opts := store.SnapshotOptions{}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			respondError(w, http.StatusBadRequest, domain.KindValidation, "invalid limit parameter")
			return
		}
		opts.Limit = limit
	}

	if ageStr := r.URL.Query().Get("max_age_minutes"); ageStr != "" {
		minutes, err := strconv.Atoi(ageStr)
		if err != nil || minutes <= 0 {
			respondError(w, http.StatusBadRequest, domain.KindValidation, "invalid max_age_minutes parameter")
			return
		}
		opts.MaxAge = time.Duration(minutes) * time.Minute
	}

	if stateStr := r.URL.Query().Get("state"); stateStr != "" {
		state := domain.MotionState(stateStr)
		if !state.Valid() {
			respondError(w, http.StatusBadRequest, domain.KindValidation,
				"invalid state parameter: must be enroute, dwell or stopped")
			return
		}
		opts.State = state
	}

	opts.RunID = r.URL.Query().Get("run")

	key := cache.PositionsKey(opts.Limit, int(opts.MaxAge.Minutes()), string(opts.State), opts.RunID)
	if h.cache != nil {
		if data, ok := h.cache.Get(r.Context(), key); ok {
			ServerStats.IncCacheHits()
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "hit")
			w.Write(data)
			return
		}
		ServerStats.IncCacheMisses()
	}

	positions, fp := h.store.SnapshotWithFingerprint(opts)
	resp := PositionsResponse{
		Positions:   positions,
		Count:       len(positions),
		Fingerprint: fmt.Sprintf("%016x", fp),
		ServerTime:  time.Now(),
	}

	if h.cache != nil {
		if data, err := json.Marshal(resp); err == nil {
			h.cache.Set(r.Context(), key, data, h.ttl)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "miss")
			w.Write(data)
			return
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	rid := r.PathValue("rid")
	if rid == "" {
		respondError(w, http.StatusBadRequest, domain.KindValidation, "missing run id")
		return
	}

	pos, ok := h.store.Get(rid)
	if !ok {
		respondError(w, http.StatusNotFound, domain.KindNotFound, "run not found")
		return
	}

	respondJSON(w, http.StatusOK, pos)
}

// InvalidateCache drops cached position responses. Called after sweeps
// so clients do not see removed runs for a full TTL.
func (h *HTTPHandler) InvalidateCache(ctx context.Context) {
	if h.cache == nil {
		return
	}
	if err := h.cache.DeletePrefix(ctx, cache.PositionsPrefix); err != nil {
		h.logger.Debug("cache invalidation failed", "error", err)
	}
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, kind domain.Kind, message string) {
	respondJSON(w, status, errorResponse{Error: errorBody{Kind: string(kind), Message: message}})
}
