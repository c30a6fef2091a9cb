package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"railmap/internal/hub"
)

type WSHandler struct {
	hub               *hub.Hub
	compressThreshold int
	logger            *slog.Logger
}

func NewWSHandler(h *hub.Hub, compressThreshold int, logger *slog.Logger) *WSHandler {
	return &WSHandler{hub: h, compressThreshold: compressThreshold, logger: logger}
}

type PongMessage struct {
	Type string `json:"type"`
}

// ServeWS upgrades the connection and joins the client to the hub.
// Every client starts from a full snapshot so subsequent broadcast
// deltas have a base to apply against. A hello frame carrying a known
// fingerprint can still fast-forward with a noop or delta.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:       []string{"*"},
		CompressionMode:      websocket.CompressionContextTakeover,
		CompressionThreshold: h.compressThreshold,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}

	clientID := uuid.New().String()
	client := hub.NewClient(clientID, 256)

	h.hub.Register(client)
	h.sendSync(client, 0)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.writeLoop(ctx, conn, client)

	h.readLoop(ctx, conn, client)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	defer func() {
		h.hub.Unregister(client)
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				h.logger.Debug("websocket read error", "client_id", client.ID, "error", err)
			}
			return
		}

		if msgType != websocket.MessageText {
			continue
		}

		var msg hub.Hello
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Debug("invalid message format", "client_id", client.ID, "error", err)
			continue
		}

		switch msg.Type {
		case "hello", "sync":
			h.sendSync(client, hub.ParseFingerprint(msg.Fingerprint))

		case "ping":
			h.sendPong(client)

		default:
			h.sendSync(client, 0)
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-client.Send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
			ServerStats.IncWSMessagesOut()

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) sendSync(client *hub.Client, fingerprint uint64) {
	data, err := h.hub.Sync(fingerprint)
	if err != nil {
		h.logger.Error("sync encode failed", "client_id", client.ID, "error", err)
		return
	}
	select {
	case client.Send <- data:
	default:
		h.logger.Debug("failed to send sync, buffer full", "client_id", client.ID)
	}
}

func (h *WSHandler) sendPong(client *hub.Client) {
	data, err := json.Marshal(PongMessage{Type: "pong"})
	if err != nil {
		return
	}
	select {
	case client.Send <- data:
	default:
	}
}
