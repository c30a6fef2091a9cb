package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"railmap/internal/domain"
	"railmap/internal/tiploc"
)

type TiplocHandler struct {
	table  *tiploc.Table
	logger *slog.Logger
}

func NewTiplocHandler(table *tiploc.Table, logger *slog.Logger) *TiplocHandler {
	return &TiplocHandler{table: table, logger: logger}
}

type TiplocsResponse struct {
	Tiplocs    []domain.Coordinate `json:"tiplocs"`
	Count      int                 `json:"count"`
	ServerTime time.Time           `json:"serverTime"`
}

func (h *TiplocHandler) ListTiplocs(w http.ResponseWriter, r *http.Request) {
	coords := h.table.All()
	respondJSON(w, http.StatusOK, TiplocsResponse{
		Tiplocs:    coords,
		Count:      len(coords),
		ServerTime: time.Now(),
	})
}

type UpsertTiplocRequest struct {
	Tiploc string   `json:"tiploc"`
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
	Name   string   `json:"name"`
}

// UpsertTiploc registers or moves a station coordinate. New entries take
// effect for positions estimated after the call.
func (h *TiplocHandler) UpsertTiploc(w http.ResponseWriter, r *http.Request) {
	var req UpsertTiplocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, domain.KindValidation, "malformed request body")
		return
	}
	if req.Tiploc == "" || req.Lat == nil || req.Lon == nil {
		respondError(w, http.StatusBadRequest, domain.KindValidation, "tiploc, lat and lon are required")
		return
	}
	if *req.Lat < -90 || *req.Lat > 90 || *req.Lon < -180 || *req.Lon > 180 {
		respondError(w, http.StatusBadRequest, domain.KindValidation, "coordinates out of range")
		return
	}

	coord := h.table.Upsert(r.Context(), req.Tiploc, *req.Lat, *req.Lon, req.Name, "api")
	h.logger.Info("tiploc upserted", "tiploc", coord.Code, "lat", coord.Lat, "lon", coord.Lon)
	respondJSON(w, http.StatusOK, coord)
}

// UpsertTiplocByCode is the path+query form: POST /v1/tiplocs/{code}?lat=&lon=&name=.
func (h *TiplocHandler) UpsertTiplocByCode(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	q := r.URL.Query()

	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, domain.KindValidation, "lat must be a number")
		return
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, domain.KindValidation, "lon must be a number")
		return
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		respondError(w, http.StatusBadRequest, domain.KindValidation, "coordinates out of range")
		return
	}

	coord := h.table.Upsert(r.Context(), code, lat, lon, q.Get("name"), "api")
	h.logger.Info("tiploc upserted", "tiploc", coord.Code, "lat", coord.Lat, "lon", coord.Lon)
	respondJSON(w, http.StatusOK, coord)
}
