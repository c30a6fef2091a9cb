package ingest

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"railmap/internal/domain"
	"railmap/internal/observability"
)

// A synthetic run shuttles back and forth on a fixed corridor. Progress
// is expressed through synthesized schedule times so the events exercise
// the same estimation path as live traffic.
type syntheticRun struct {
	runID    string
	uid      string
	from     string
	to       string
	segment  time.Duration
	platform string
	progress float64
	dir      float64
	dwell    int
}

var syntheticCorridors = [][2]string{
	{"KNGX", "EDINBGH"},
	{"EUSTON", "MNCHSTR"},
	{"PADTON", "BRISTOL"},
	{"STPANCI", "LEEDS"},
	{"WLOO", "SOUTHAMPTON"},
	{"LIVST", "CAMBRIDGE"},
	{"VICTRIC", "BRIGHTON"},
	{"MARYLBN", "BRMNGM"},
}

// runSynthetic emits deterministic movement events until ctx is
// cancelled. The same seed always yields the same trajectory.
func (a *Adapter) runSynthetic(ctx context.Context) {
	a.setMode(ModeSynthetic)
	observability.AdapterLive.Set(0)

	rng := rand.New(rand.NewSource(a.cfg.SyntheticSeed))
	fleet := make([]*syntheticRun, 0, len(syntheticCorridors))
	for i, c := range syntheticCorridors {
		fleet = append(fleet, &syntheticRun{
			runID:    fmt.Sprintf("SYN%04d", i+1),
			uid:      fmt.Sprintf("Y%05d", 10000+i),
			from:     c[0],
			to:       c[1],
			segment:  time.Duration(45+rng.Intn(75)) * time.Minute,
			platform: fmt.Sprintf("%d", 1+rng.Intn(12)),
			progress: rng.Float64(),
			dir:      1,
		})
	}
	a.logger.Info("synthetic generator started",
		"fleet", len(fleet),
		"period", a.cfg.SyntheticPeriod,
		"seed", a.cfg.SyntheticSeed)

	step := a.cfg.SyntheticPeriod.Seconds() / (5 * time.Minute).Seconds()
	ticker := time.NewTicker(a.cfg.SyntheticPeriod)
	defer ticker.Stop()

	a.emitFleet(ctx, fleet, time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, run := range fleet {
				advance(run, step)
			}
			a.emitFleet(ctx, fleet, now)
		}
	}
}

// evictSynthetic removes every synthetic run from the store. Called
// when the live feed takes over so generated positions do not linger
// next to real ones until the retention sweep catches them.
func (a *Adapter) evictSynthetic(ctx context.Context) {
	var evicted int
	for i := range syntheticCorridors {
		if a.store.Remove(ctx, fmt.Sprintf("SYN%04d", i+1)) {
			evicted++
		}
	}
	if evicted > 0 {
		a.logger.Info("evicted synthetic fleet", "count", evicted)
	}
}

// advance moves a run along its corridor, dwelling a few ticks at each
// end before reversing.
func advance(run *syntheticRun, step float64) {
	if run.dwell > 0 {
		run.dwell--
		return
	}
	run.progress += step * run.dir
	if run.progress >= 1 {
		run.progress = 1
		run.dir = -1
		run.dwell = 3
	} else if run.progress <= 0 {
		run.progress = 0
		run.dir = 1
		run.dwell = 3
	}
}

func (a *Adapter) emitFleet(ctx context.Context, fleet []*syntheticRun, now time.Time) {
	for _, run := range fleet {
		if ctx.Err() != nil {
			return
		}
		a.applyEvent(ctx, run.event(now))
	}
}

// event renders the run as a movement event. Schedule times are placed
// around now so that elapsed/total reproduces the run's progress.
func (run *syntheticRun) event(now time.Time) *domain.RawMovementEvent {
	from, to := run.from, run.to
	progress := run.progress
	if run.dir < 0 {
		from, to = to, from
		progress = 1 - progress
	}
	ev := &domain.RawMovementEvent{
		RunID:     run.runID,
		VehicleID: run.uid,
		Timestamp: now,
	}
	if run.dwell > 0 {
		at := to
		if progress < 0.5 {
			at = from
		}
		ev.FromCode = at
		ev.ToCode = at
		ev.AtStation = true
		ev.Platform = run.platform
		return ev
	}
	ev.FromCode = from
	ev.ToCode = to
	ev.DepartedAt = now.Add(-time.Duration(progress * float64(run.segment)))
	ev.DueAt = ev.DepartedAt.Add(run.segment)
	return ev
}
