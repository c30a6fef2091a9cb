package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"railmap/internal/domain"
	"railmap/internal/scheduler"
)

type ConfigHandler struct {
	scheduler *scheduler.Scheduler
	logger    *slog.Logger
}

func NewConfigHandler(sch *scheduler.Scheduler, logger *slog.Logger) *ConfigHandler {
	return &ConfigHandler{scheduler: sch, logger: logger}
}

type IntervalResponse struct {
	IntervalSeconds float64 `json:"interval_seconds"`
	Override        bool    `json:"override"`
	State           string  `json:"state"`
}

// SetUpdateInterval pins the push cadence at runtime. The override
// sticks until cleared and wins over the time-of-day profiles.
func (h *ConfigHandler) SetUpdateInterval(w http.ResponseWriter, r *http.Request) {
	secondsStr := r.PathValue("seconds")
	seconds, err := strconv.Atoi(secondsStr)
	if err != nil {
		respondError(w, http.StatusBadRequest, domain.KindValidation, "interval must be an integer number of seconds")
		return
	}

	d := time.Duration(seconds) * time.Second
	if err := h.scheduler.SetOverride(d); err != nil {
		respondError(w, http.StatusBadRequest, domain.KindOf(err), err.Error())
		return
	}

	h.logger.Info("push interval overridden", "interval", d)
	respondJSON(w, http.StatusOK, h.currentInterval())
}

// ClearUpdateInterval returns cadence control to the profiles.
func (h *ConfigHandler) ClearUpdateInterval(w http.ResponseWriter, r *http.Request) {
	h.scheduler.ClearOverride()
	h.logger.Info("push interval override cleared")
	respondJSON(w, http.StatusOK, h.currentInterval())
}

// GetUpdateInterval reports the effective push cadence.
func (h *ConfigHandler) GetUpdateInterval(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.currentInterval())
}

func (h *ConfigHandler) currentInterval() IntervalResponse {
	return IntervalResponse{
		IntervalSeconds: h.scheduler.CurrentInterval().Seconds(),
		Override:        h.scheduler.Override() > 0,
		State:           string(h.scheduler.State()),
	}
}
