package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"

	"railmap/internal/delta"
	"railmap/internal/domain"
	"railmap/internal/hub"
)

func TestServeWSFirstFrameIsFullSnapshot(t *testing.T) {
	st := newTestStore(t)
	wsHub := hub.NewHub(st, delta.NewComputer(st), testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go wsHub.Run(ctx)

	h := NewWSHandler(wsHub, 1024, testLogger())
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	conn, _, err := websocket.Dial(ctx, srv.URL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// No hello sent: the server must still open with the snapshot.
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg hub.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != "full" {
		t.Fatalf("first frame type = %q, want full", msg.Type)
	}
	if len(msg.Positions) != 2 {
		t.Errorf("snapshot carries %d positions, want 2", len(msg.Positions))
	}

	for i := 0; i < 100 && wsHub.ClientCount() == 0; i++ {
		time.Sleep(10 * time.Millisecond)
	}

	// A broadcast after the snapshot arrives as a delta against it.
	err = st.Apply(context.Background(), &domain.Position{
		RunID:     "202608300003",
		Timestamp: time.Now(),
		FromCode:  "KNGX",
		ToCode:    "LEEDS",
		Lat:       53,
		Lon:       -1.5,
		State:     domain.StateEnroute,
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	wsHub.Push()

	_, data, err = conn.Read(ctx)
	if err != nil {
		t.Fatalf("read delta: %v", err)
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal delta: %v", err)
	}
	if msg.Type != "delta" || msg.Changes == nil || len(msg.Changes.Added) != 1 {
		t.Errorf("second frame type = %q, want delta adding one run", msg.Type)
	}
}
