package scheduler

import (
	"sync"
	"time"

	"railmap/internal/domain"
)

// State is the scheduler's cadence profile.
type State string

const (
	StateInitializing State = "initializing"
	StatePeak         State = "peak"
	StateOffPeak      State = "offpeak"
)

// Config holds the cadence profiles and the peak wall-clock window.
type Config struct {
	PeakStartHour int // inclusive
	PeakEndHour   int // inclusive, matching the upstream configuration

	InitInterval        time.Duration
	PeakPushInterval    time.Duration
	OffPeakPushInterval time.Duration
	PeakReconcile       time.Duration
	OffPeakReconcile    time.Duration

	OverrideMin time.Duration
	OverrideMax time.Duration
}

// Scheduler decides how often deltas are pushed and how often the store
// is fully reconciled. Transitions are functions of the supplied clock,
// never of traffic.
type Scheduler struct {
	mu       sync.Mutex
	cfg      Config
	synced   bool
	override time.Duration // 0 = none
	clock    func() time.Time
}

func New(cfg Config) *Scheduler {
	return &Scheduler{cfg: cfg, clock: time.Now}
}

// State reports the profile in effect right now.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Scheduler) stateLocked() State {
	if !s.synced {
		return StateInitializing
	}
	if s.inPeak(s.clock()) {
		return StatePeak
	}
	return StateOffPeak
}

// CurrentInterval returns the delta-push cadence. A manual override
// wins over every profile until cleared.
func (s *Scheduler) CurrentInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.override > 0 {
		return s.override
	}
	switch s.stateLocked() {
	case StateInitializing:
		return s.cfg.InitInterval
	case StatePeak:
		return s.cfg.PeakPushInterval
	default:
		return s.cfg.OffPeakPushInterval
	}
}

// ReconcileInterval returns the full-reconciliation cadence.
func (s *Scheduler) ReconcileInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.stateLocked() {
	case StateInitializing:
		return s.cfg.InitInterval
	case StatePeak:
		return s.cfg.PeakReconcile
	default:
		return s.cfg.OffPeakReconcile
	}
}

// MarkSynced records a successful full reconciliation; the scheduler
// leaves the initializing profile on the first call.
func (s *Scheduler) MarkSynced() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synced = true
}

// ForceFullSync drops back to the initializing profile until the next
// successful reconciliation.
func (s *Scheduler) ForceFullSync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synced = false
}

// SetOverride pins the push cadence to a fixed interval. Out-of-range
// values are rejected and the previous configuration is retained.
func (s *Scheduler) SetOverride(d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d < s.cfg.OverrideMin || d > s.cfg.OverrideMax {
		return domain.Errorf(domain.KindConfig,
			"interval %s outside accepted range %s-%s", d, s.cfg.OverrideMin, s.cfg.OverrideMax)
	}
	s.override = d
	return nil
}

// ClearOverride returns cadence control to the time-of-day profiles.
func (s *Scheduler) ClearOverride() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.override = 0
}

// Override reports the active override, 0 when none.
func (s *Scheduler) Override() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.override
}

func (s *Scheduler) inPeak(now time.Time) bool {
	h := now.Hour()
	if s.cfg.PeakStartHour <= s.cfg.PeakEndHour {
		return h >= s.cfg.PeakStartHour && h <= s.cfg.PeakEndHour
	}
	// Window wrapping midnight.
	return h >= s.cfg.PeakStartHour || h <= s.cfg.PeakEndHour
}

// SetClock overrides the time source. Tests only.
func (s *Scheduler) SetClock(clock func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}
