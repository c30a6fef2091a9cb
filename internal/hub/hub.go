package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"railmap/internal/delta"
	"railmap/internal/observability"
	"railmap/internal/store"
)

type Client struct {
	ID   string
	Send chan []byte
}

func NewClient(id string, bufferSize int) *Client {
	return &Client{
		ID:   id,
		Send: make(chan []byte, bufferSize),
	}
}

// Hub fans position updates out to websocket clients. Every client sees
// the same stream; per-client catch-up happens once at connect time via
// Sync, after which broadcast deltas keep everyone current.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client

	store *store.Store
	diff  *delta.Computer

	// fingerprint of the state covered by the last broadcast; written
	// from both the push and reconcile loops
	lastVersion atomic.Uint64

	logger *slog.Logger
}

func NewHub(st *store.Store, diff *delta.Computer, logger *slog.Logger) *Hub {
	h := &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		store:      st,
		diff:       diff,
		logger:     logger,
	}
	h.lastVersion.Store(st.Fingerprint())
	return h
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			observability.WSClients.Set(float64(total))
			h.logger.Debug("client registered", "client_id", client.ID, "total", total)

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Sync produces the catch-up message for a client that announced the
// given fingerprint. Clients at the current state get a noop, clients
// with a coverable gap get a delta, everyone else gets a full snapshot.
func (h *Hub) Sync(fingerprint uint64) ([]byte, error) {
	if fingerprint != 0 {
		if d, ok := h.diff.Diff(fingerprint); ok {
			if d.Empty() {
				observability.DeltasPushed.WithLabelValues("noop").Inc()
				return json.Marshal(noopMessage(d.Fingerprint))
			}
			observability.DeltasPushed.WithLabelValues("delta").Inc()
			return json.Marshal(deltaMessage(d))
		}
	}
	positions, fp := h.store.SnapshotWithFingerprint(store.SnapshotOptions{})
	observability.DeltasPushed.WithLabelValues("full").Inc()
	return json.Marshal(fullMessage(positions, fp))
}

// Push broadcasts changes accumulated since the previous push. When the
// journal no longer covers the gap every client receives a fresh full
// snapshot instead.
func (h *Hub) Push() {
	if h.ClientCount() == 0 {
		// advance anyway so the next push stays incremental
		h.lastVersion.Store(h.store.Fingerprint())
		return
	}

	d, ok := h.diff.Diff(h.lastVersion.Load())
	if !ok {
		positions, fp := h.store.SnapshotWithFingerprint(store.SnapshotOptions{})
		data, err := json.Marshal(fullMessage(positions, fp))
		if err != nil {
			h.logger.Error("snapshot encode failed", "error", err)
			return
		}
		h.lastVersion.Store(fp)
		observability.DeltasPushed.WithLabelValues("full").Inc()
		h.fanout(data)
		return
	}
	if d.Empty() {
		h.lastVersion.Store(d.Fingerprint)
		return
	}

	data, err := json.Marshal(deltaMessage(d))
	if err != nil {
		h.logger.Error("delta encode failed", "error", err)
		return
	}
	h.lastVersion.Store(d.Fingerprint)
	observability.DeltasPushed.WithLabelValues("delta").Inc()
	h.logger.Debug("pushing delta",
		"added", len(d.Added),
		"updated", len(d.Updated),
		"removed", len(d.Removed),
		"clients", h.ClientCount())
	h.fanout(data)
}

// ForceFull queues a full snapshot for every connected client.
func (h *Hub) ForceFull() {
	positions, fp := h.store.SnapshotWithFingerprint(store.SnapshotOptions{})
	data, err := json.Marshal(fullMessage(positions, fp))
	if err != nil {
		h.logger.Error("snapshot encode failed", "error", err)
		return
	}
	h.lastVersion.Store(fp)
	observability.DeltasPushed.WithLabelValues("full").Inc()
	h.fanout(data)
}

func (h *Hub) fanout(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.Send <- data:
		default:
			h.logger.Debug("client send buffer full", "client_id", client.ID)
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)
	observability.WSClients.Set(float64(len(h.clients)))
	h.logger.Debug("client unregistered", "client_id", client.ID, "total", len(h.clients))
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.Send)
	}
	h.clients = make(map[*Client]struct{})
	observability.WSClients.Set(0)
}
