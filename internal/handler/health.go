package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"railmap/internal/ingest"
	"railmap/internal/store"
)

type HealthHandler struct {
	adapter *ingest.Adapter
	store   *store.Store
}

func NewHealthHandler(a *ingest.Adapter, s *store.Store) *HealthHandler {
	return &HealthHandler{
		adapter: a,
		store:   s,
	}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type HealthResponse struct {
	Status        string    `json:"status"`
	Ready         bool      `json:"ready"`
	AdapterMode   string    `json:"adapterMode"`
	PositionCount int       `json:"positionCount"`
	LastEvent     time.Time `json:"lastEvent"`
	ServerTime    time.Time `json:"serverTime"`
}

// Health is the combined liveness/readiness view for probes that expect
// a single endpoint. Always 200; degradation is in the body.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ready := h.adapter.IsReady()
	status := "ok"
	if !ready {
		status = "starting"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(HealthResponse{
		Status:        status,
		Ready:         ready,
		AdapterMode:   string(h.adapter.Mode()),
		PositionCount: h.store.Count(),
		LastEvent:     h.adapter.LastSeen(),
		ServerTime:    time.Now(),
	})
}

type ReadyResponse struct {
	Ready         bool      `json:"ready"`
	AdapterMode   string    `json:"adapterMode"`
	PositionCount int       `json:"positionCount"`
	LastEvent     time.Time `json:"lastEvent"`
	ServerTime    time.Time `json:"serverTime"`
}

// Readyz reports 503 until the first event has flowed through the
// pipeline, so load balancers never route to an empty instance.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ready := h.adapter.IsReady()
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ReadyResponse{
		Ready:         ready,
		AdapterMode:   string(h.adapter.Mode()),
		PositionCount: h.store.Count(),
		LastEvent:     h.adapter.LastSeen(),
		ServerTime:    time.Now(),
	})
}
