package handler

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"railmap/internal/domain"
	"railmap/internal/hub"
	"railmap/internal/ingest"
	"railmap/internal/middleware"
	"railmap/internal/scheduler"
	"railmap/internal/store"
)

// Stats tracks server-wide counters
type Stats struct {
	startTime     time.Time
	requestCount  atomic.Int64
	wsMessagesOut atomic.Int64
	cacheHits     atomic.Int64
	cacheMisses   atomic.Int64
}

// Global stats instance
var ServerStats = &Stats{
	startTime: time.Now(),
}

func (s *Stats) IncRequests()      { s.requestCount.Add(1) }
func (s *Stats) IncWSMessagesOut() { s.wsMessagesOut.Add(1) }
func (s *Stats) IncCacheHits()     { s.cacheHits.Add(1) }
func (s *Stats) IncCacheMisses()   { s.cacheMisses.Add(1) }

type StatsHandler struct {
	store     *store.Store
	adapter   *ingest.Adapter
	scheduler *scheduler.Scheduler
	hub       *hub.Hub
	limiter   *middleware.RateLimiter
}

func NewStatsHandler(st *store.Store, a *ingest.Adapter, sch *scheduler.Scheduler, h *hub.Hub, rl *middleware.RateLimiter) *StatsHandler {
	return &StatsHandler{
		store:     st,
		adapter:   a,
		scheduler: sch,
		hub:       h,
		limiter:   rl,
	}
}

type StatsResponse struct {
	Server    ServerStatsResponse    `json:"server"`
	Positions PositionStatsResponse  `json:"positions"`
	Adapter   AdapterStatsResponse   `json:"adapter"`
	Scheduler SchedulerStatsResponse `json:"scheduler"`
	WebSocket WebSocketStatsResponse `json:"websocket"`
	Cache     CacheStatsResponse     `json:"cache"`
	RateLimit middleware.Stats       `json:"rate_limit"`
	Go        GoStatsResponse        `json:"go"`
}

type ServerStatsResponse struct {
	Uptime        string    `json:"uptime"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	StartTime     time.Time `json:"start_time"`
	RequestCount  int64     `json:"request_count"`
	Version       string    `json:"version"`
}

type PositionStatsResponse struct {
	Total     int       `json:"total"`
	Enroute   int       `json:"enroute"`
	Dwell     int       `json:"dwell"`
	Stopped   int       `json:"stopped"`
	LastApply time.Time `json:"last_apply"`
}

type AdapterStatsResponse struct {
	Mode      string    `json:"mode"`
	Processed int64     `json:"processed"`
	Dropped   int64     `json:"dropped"`
	LastEvent time.Time `json:"last_event"`
}

type SchedulerStatsResponse struct {
	State            string  `json:"state"`
	IntervalSeconds  float64 `json:"interval_seconds"`
	ReconcileSeconds float64 `json:"reconcile_seconds"`
	OverrideSeconds  float64 `json:"override_seconds,omitempty"`
}

type WebSocketStatsResponse struct {
	Connections int   `json:"connections"`
	MessagesOut int64 `json:"messages_out"`
}

type CacheStatsResponse struct {
	Hits   int64   `json:"hits"`
	Misses int64   `json:"misses"`
	Ratio  float64 `json:"hit_ratio"`
}

type GoStatsResponse struct {
	Goroutines  int     `json:"goroutines"`
	HeapAlloc   uint64  `json:"heap_alloc_bytes"`
	HeapAllocMB float64 `json:"heap_alloc_mb"`
	NumGC       uint32  `json:"num_gc"`
	GoVersion   string  `json:"go_version"`
}

func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()

	uptime := time.Since(ServerStats.startTime)

	var enroute, dwell, stopped int
	positions := h.store.Snapshot(store.SnapshotOptions{})
	for _, p := range positions {
		switch p.State {
		case domain.StateEnroute:
			enroute++
		case domain.StateDwell:
			dwell++
		case domain.StateStopped:
			stopped++
		}
	}

	processed, dropped := h.adapter.Stats()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	hits := ServerStats.cacheHits.Load()
	misses := ServerStats.cacheMisses.Load()
	var ratio float64
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}

	sched := SchedulerStatsResponse{
		State:            string(h.scheduler.State()),
		IntervalSeconds:  h.scheduler.CurrentInterval().Seconds(),
		ReconcileSeconds: h.scheduler.ReconcileInterval().Seconds(),
	}
	if override := h.scheduler.Override(); override > 0 {
		sched.OverrideSeconds = override.Seconds()
	}

	response := StatsResponse{
		Server: ServerStatsResponse{
			Uptime:        uptime.Round(time.Second).String(),
			UptimeSeconds: uptime.Seconds(),
			StartTime:     ServerStats.startTime,
			RequestCount:  ServerStats.requestCount.Load(),
			Version:       "1.0.0",
		},
		Positions: PositionStatsResponse{
			Total:     len(positions),
			Enroute:   enroute,
			Dwell:     dwell,
			Stopped:   stopped,
			LastApply: h.store.LastApply(),
		},
		Adapter: AdapterStatsResponse{
			Mode:      string(h.adapter.Mode()),
			Processed: processed,
			Dropped:   dropped,
			LastEvent: h.adapter.LastSeen(),
		},
		Scheduler: sched,
		WebSocket: WebSocketStatsResponse{
			Connections: h.hub.ClientCount(),
			MessagesOut: ServerStats.wsMessagesOut.Load(),
		},
		Cache: CacheStatsResponse{
			Hits:   hits,
			Misses: misses,
			Ratio:  ratio,
		},
		RateLimit: h.limiter.Stats(),
		Go: GoStatsResponse{
			Goroutines:  runtime.NumGoroutine(),
			HeapAlloc:   mem.HeapAlloc,
			HeapAllocMB: float64(mem.HeapAlloc) / 1024 / 1024,
			NumGC:       mem.NumGC,
			GoVersion:   runtime.Version(),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	json.NewEncoder(w).Encode(response)
}
