package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"railmap/internal/domain"
	"railmap/internal/scheduler"
	"railmap/internal/store"
	"railmap/internal/tiploc"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(nil, 100, testLogger())
	ts := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	for i, rid := range []string{"202608300001", "202608300002"} {
		err := s.Apply(context.Background(), &domain.Position{
			RunID:     rid,
			Timestamp: ts.Add(time.Duration(i) * time.Minute),
			FromCode:  "KNGX",
			ToCode:    "YORK",
			Lat:       52 + float64(i),
			Lon:       -1,
			Ratio:     0.5,
			State:     domain.StateEnroute,
		})
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
	}
	return s
}

func newPositionsMux(t *testing.T) *http.ServeMux {
	t.Helper()
	h := NewHTTPHandler(newTestStore(t), nil, 2*time.Second, testLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/positions", h.ListPositions)
	mux.HandleFunc("GET /v1/positions/{rid}", h.GetPosition)
	return mux
}

func TestListPositions(t *testing.T) {
	mux := newPositionsMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/positions", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp PositionsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 2 || len(resp.Positions) != 2 {
		t.Errorf("count = %d, positions = %d; want 2", resp.Count, len(resp.Positions))
	}
	if resp.Fingerprint == "" || resp.Fingerprint == "0000000000000000" {
		t.Errorf("fingerprint = %q", resp.Fingerprint)
	}
	// Most recently updated first.
	if resp.Positions[0].RunID != "202608300002" {
		t.Errorf("first position = %s", resp.Positions[0].RunID)
	}
}

func TestListPositionsFilters(t *testing.T) {
	mux := newPositionsMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/positions?limit=1", nil))
	var resp PositionsResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Count != 1 {
		t.Errorf("limit=1 returned %d positions", resp.Count)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/positions?run=202608300001", nil))
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Count != 1 || resp.Positions[0].RunID != "202608300001" {
		t.Errorf("run filter returned %+v", resp.Positions)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/positions?state=dwell", nil))
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Count != 0 {
		t.Errorf("state filter returned %d positions, want 0", resp.Count)
	}
}

func TestListPositionsRejectsBadParams(t *testing.T) {
	mux := newPositionsMux(t)

	for _, url := range []string{
		"/v1/positions?state=flying",
		"/v1/positions?limit=-1",
		"/v1/positions?limit=abc",
		"/v1/positions?max_age_minutes=0",
	} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", url, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", url, rec.Code)
			continue
		}
		var resp errorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Errorf("%s: decode error body: %v", url, err)
			continue
		}
		if resp.Error.Kind != string(domain.KindValidation) {
			t.Errorf("%s: error kind = %s", url, resp.Error.Kind)
		}
	}
}

func TestGetPosition(t *testing.T) {
	mux := newPositionsMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/positions/202608300001", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var pos domain.Position
	if err := json.Unmarshal(rec.Body.Bytes(), &pos); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if pos.RunID != "202608300001" {
		t.Errorf("rid = %s", pos.RunID)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/positions/unknown", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing run: status = %d, want 404", rec.Code)
	}
}

func newConfigMux() (*http.ServeMux, *scheduler.Scheduler) {
	sch := scheduler.New(scheduler.Config{
		PeakStartHour:       6,
		PeakEndHour:         22,
		InitInterval:        2 * time.Second,
		PeakPushInterval:    5 * time.Second,
		OffPeakPushInterval: 30 * time.Second,
		PeakReconcile:       time.Minute,
		OffPeakReconcile:    5 * time.Minute,
		OverrideMin:         time.Second,
		OverrideMax:         time.Hour,
	})
	h := NewConfigHandler(sch, testLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/config/update-interval", h.GetUpdateInterval)
	mux.HandleFunc("POST /v1/config/update-interval/{seconds}", h.SetUpdateInterval)
	mux.HandleFunc("DELETE /v1/config/update-interval", h.ClearUpdateInterval)
	return mux, sch
}

func TestSetUpdateInterval(t *testing.T) {
	mux, sch := newConfigMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/config/update-interval/10", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if sch.Override() != 10*time.Second {
		t.Errorf("override = %s, want 10s", sch.Override())
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("DELETE", "/v1/config/update-interval", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("clear status = %d", rec.Code)
	}
	if sch.Override() != 0 {
		t.Error("override survived the clear")
	}
}

func TestSetUpdateIntervalRejectsOutOfRange(t *testing.T) {
	mux, sch := newConfigMux()

	for _, path := range []string{
		"/v1/config/update-interval/0",
		"/v1/config/update-interval/4000",
		"/v1/config/update-interval/abc",
	} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("POST", path, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
	}
	if sch.Override() != 0 {
		t.Error("rejected override took effect")
	}
}

func TestTiplocUpsertAndList(t *testing.T) {
	table := tiploc.NewTable(nil, testLogger())
	h := NewTiplocHandler(table, testLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/tiplocs", h.ListTiplocs)
	mux.HandleFunc("POST /v1/tiplocs", h.UpsertTiploc)

	body := `{"tiploc": "hwdnjct", "lat": 51.5, "lon": -0.2, "name": "Hawthorn Junction"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/tiplocs", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var coord domain.Coordinate
	json.Unmarshal(rec.Body.Bytes(), &coord)
	if coord.Code != "HWDNJCT" {
		t.Errorf("code = %q, not normalized", coord.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/tiplocs", nil))
	var resp TiplocsResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Count != 1 || resp.Tiplocs[0].Code != "HWDNJCT" {
		t.Errorf("list = %+v", resp)
	}
}

func TestTiplocUpsertByCode(t *testing.T) {
	table := tiploc.NewTable(nil, testLogger())
	h := NewTiplocHandler(table, testLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/tiplocs/{code}", h.UpsertTiplocByCode)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/tiplocs/hwdnjct?lat=51.5&lon=-0.2&name=Hawthorn+Junction", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var coord domain.Coordinate
	json.Unmarshal(rec.Body.Bytes(), &coord)
	if coord.Code != "HWDNJCT" || coord.Name != "Hawthorn Junction" {
		t.Errorf("coord = %+v", coord)
	}

	for name, query := range map[string]string{
		"missing lat": "lon=-0.2",
		"bad lon":     "lat=51.5&lon=east",
		"lat range":   "lat=91&lon=0",
	} {
		rec = httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/tiplocs/KNGX?"+query, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, rec.Code)
		}
	}
}

func TestTiplocUpsertValidation(t *testing.T) {
	h := NewTiplocHandler(tiploc.NewTable(nil, testLogger()), testLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/tiplocs", h.UpsertTiploc)

	for name, body := range map[string]string{
		"no code":   `{"lat": 51.5, "lon": -0.2}`,
		"no lat":    `{"tiploc": "KNGX", "lon": -0.2}`,
		"lat range": `{"tiploc": "KNGX", "lat": 91, "lon": 0}`,
		"lon range": `{"tiploc": "KNGX", "lat": 0, "lon": 181}`,
		"not json":  `nope`,
	} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/tiplocs", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, rec.Code)
		}
	}
}
