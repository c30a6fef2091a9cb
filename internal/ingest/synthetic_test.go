package ingest

import (
	"math"
	"testing"
	"time"
)

func TestSyntheticEventEncodesProgress(t *testing.T) {
	run := &syntheticRun{
		runID:    "SYN0001",
		from:     "KNGX",
		to:       "EDINBGH",
		segment:  time.Hour,
		progress: 0.4,
		dir:      1,
	}
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	ev := run.event(now)
	if ev.FromCode != "KNGX" || ev.ToCode != "EDINBGH" {
		t.Errorf("segment = %s -> %s", ev.FromCode, ev.ToCode)
	}
	total := ev.DueAt.Sub(ev.DepartedAt)
	got := float64(now.Sub(ev.DepartedAt)) / float64(total)
	if math.Abs(got-0.4) > 1e-9 {
		t.Errorf("encoded progress = %g, want 0.4", got)
	}
}

func TestSyntheticEventReversesDirection(t *testing.T) {
	run := &syntheticRun{
		runID:    "SYN0002",
		from:     "KNGX",
		to:       "EDINBGH",
		segment:  time.Hour,
		progress: 0.75,
		dir:      -1,
	}

	ev := run.event(time.Now())
	if ev.FromCode != "EDINBGH" || ev.ToCode != "KNGX" {
		t.Errorf("reversed segment = %s -> %s, want EDINBGH -> KNGX", ev.FromCode, ev.ToCode)
	}
}

func TestSyntheticDwellAtEndpoints(t *testing.T) {
	run := &syntheticRun{
		runID:    "SYN0003",
		from:     "KNGX",
		to:       "EDINBGH",
		segment:  time.Hour,
		progress: 1,
		dir:      1,
		dwell:    2,
		platform: "5",
	}

	ev := run.event(time.Now())
	if !ev.AtStation {
		t.Fatal("dwelling run not marked at station")
	}
	if ev.FromCode != "EDINBGH" || ev.ToCode != "EDINBGH" {
		t.Errorf("dwell location = %s/%s, want EDINBGH", ev.FromCode, ev.ToCode)
	}
	if ev.Platform != "5" {
		t.Errorf("platform = %q", ev.Platform)
	}
}

func TestAdvanceBouncesAndDwells(t *testing.T) {
	run := &syntheticRun{progress: 0.95, dir: 1}

	advance(run, 0.1)
	if run.progress != 1 || run.dir != -1 || run.dwell == 0 {
		t.Fatalf("no bounce at the far end: %+v", run)
	}

	dwell := run.dwell
	advance(run, 0.1)
	if run.progress != 1 || run.dwell != dwell-1 {
		t.Errorf("dwell tick moved the run: %+v", run)
	}
}

func TestModeChangeCallback(t *testing.T) {
	a := &Adapter{mode: ModeSynthetic}

	var fired []Mode
	a.OnModeChange(func(m Mode) { fired = append(fired, m) })

	a.setMode(ModeSynthetic)
	if len(fired) != 0 {
		t.Fatalf("callback fired without a mode change: %v", fired)
	}

	a.setMode(ModeLive)
	a.setMode(ModeLive)
	a.setMode(ModeSynthetic)
	if len(fired) != 2 || fired[0] != ModeLive || fired[1] != ModeSynthetic {
		t.Errorf("transitions = %v, want [live synthetic]", fired)
	}
}
