package ingest

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"railmap/internal/config"
	"railmap/internal/domain"
	"railmap/internal/estimator"
	"railmap/internal/store"
	"railmap/internal/tiploc"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAdapter(t *testing.T) (*Adapter, *store.Store) {
	t.Helper()
	logger := testLogger()
	table := tiploc.NewTable(nil, logger)
	ctx := context.Background()
	table.Upsert(ctx, "AAA", 51.5, -0.1, "Alpha", "test")
	table.Upsert(ctx, "BBB", 52.0, -0.5, "Beta", "test")

	st := store.New(nil, 100, logger)
	est := estimator.New(0, 3*time.Minute)
	return New(&config.Config{}, table, est, st, logger), st
}

func TestApplyEventDropsUnresolvableDestination(t *testing.T) {
	a, st := newTestAdapter(t)
	ctx := context.Background()

	a.applyEvent(ctx, &domain.RawMovementEvent{
		RunID:     "202608300010",
		Timestamp: time.Now(),
		FromCode:  "AAA",
		ToCode:    "ZZZ",
	})

	processed, dropped := a.Stats()
	if processed != 0 {
		t.Errorf("processed = %d, want 0", processed)
	}
	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
	if _, ok := st.Get("202608300010"); ok {
		t.Error("position created for a run with an unresolvable destination")
	}
	if a.IsReady() {
		t.Error("adapter marked ready by a dropped event")
	}
}

func TestEvictSyntheticClearsGeneratedRunsOnly(t *testing.T) {
	a, st := newTestAdapter(t)
	ctx := context.Background()
	now := time.Now()

	a.applyEvent(ctx, &domain.RawMovementEvent{
		RunID:     "SYN0001",
		Timestamp: now,
		FromCode:  "AAA",
		ToCode:    "BBB",
	})
	a.applyEvent(ctx, &domain.RawMovementEvent{
		RunID:     "202608300012",
		Timestamp: now,
		FromCode:  "AAA",
		ToCode:    "BBB",
	})

	a.evictSynthetic(ctx)

	if _, ok := st.Get("SYN0001"); ok {
		t.Error("synthetic run survived eviction")
	}
	if _, ok := st.Get("202608300012"); !ok {
		t.Error("live run evicted alongside the synthetic fleet")
	}
}

func TestApplyEventResolvableSegment(t *testing.T) {
	a, st := newTestAdapter(t)
	ctx := context.Background()

	a.applyEvent(ctx, &domain.RawMovementEvent{
		RunID:     "202608300011",
		Timestamp: time.Now(),
		FromCode:  "AAA",
		ToCode:    "BBB",
	})

	processed, dropped := a.Stats()
	if processed != 1 || dropped != 0 {
		t.Errorf("processed = %d, dropped = %d, want 1/0", processed, dropped)
	}
	if _, ok := st.Get("202608300011"); !ok {
		t.Error("position missing after a resolvable event")
	}
	if !a.IsReady() {
		t.Error("adapter not ready after the first applied event")
	}
}
