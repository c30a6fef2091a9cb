package scheduler

import (
	"testing"
	"time"

	"railmap/internal/domain"
)

func testConfig() Config {
	return Config{
		PeakStartHour:       6,
		PeakEndHour:         22,
		InitInterval:        2 * time.Second,
		PeakPushInterval:    5 * time.Second,
		OffPeakPushInterval: 30 * time.Second,
		PeakReconcile:       time.Minute,
		OffPeakReconcile:    5 * time.Minute,
		OverrideMin:         time.Second,
		OverrideMax:         time.Hour,
	}
}

func at(hour int) func() time.Time {
	return func() time.Time {
		return time.Date(2026, 8, 30, hour, 0, 0, 0, time.UTC)
	}
}

func TestInitializingUntilSynced(t *testing.T) {
	s := New(testConfig())
	s.SetClock(at(10))

	if s.State() != StateInitializing {
		t.Errorf("state = %s, want initializing before first sync", s.State())
	}
	if s.CurrentInterval() != 2*time.Second {
		t.Errorf("interval = %s, want init interval", s.CurrentInterval())
	}

	s.MarkSynced()
	if s.State() != StatePeak {
		t.Errorf("state = %s, want peak after sync at 10:00", s.State())
	}

	s.ForceFullSync()
	if s.State() != StateInitializing {
		t.Errorf("state = %s, want initializing after forced full sync", s.State())
	}
}

func TestPeakAndOffPeakProfiles(t *testing.T) {
	tests := []struct {
		hour      int
		state     State
		interval  time.Duration
		reconcile time.Duration
	}{
		{10, StatePeak, 5 * time.Second, time.Minute},
		{6, StatePeak, 5 * time.Second, time.Minute},
		{22, StatePeak, 5 * time.Second, time.Minute},
		{23, StateOffPeak, 30 * time.Second, 5 * time.Minute},
		{3, StateOffPeak, 30 * time.Second, 5 * time.Minute},
	}

	for _, tt := range tests {
		s := New(testConfig())
		s.SetClock(at(tt.hour))
		s.MarkSynced()

		if s.State() != tt.state {
			t.Errorf("hour %d: state = %s, want %s", tt.hour, s.State(), tt.state)
		}
		if s.CurrentInterval() != tt.interval {
			t.Errorf("hour %d: interval = %s, want %s", tt.hour, s.CurrentInterval(), tt.interval)
		}
		if s.ReconcileInterval() != tt.reconcile {
			t.Errorf("hour %d: reconcile = %s, want %s", tt.hour, s.ReconcileInterval(), tt.reconcile)
		}
	}
}

func TestPeakWindowWrapsMidnight(t *testing.T) {
	cfg := testConfig()
	cfg.PeakStartHour = 22
	cfg.PeakEndHour = 2

	s := New(cfg)
	s.MarkSynced()

	s.SetClock(at(23))
	if s.State() != StatePeak {
		t.Errorf("23:00 in a 22-02 window: state = %s, want peak", s.State())
	}
	s.SetClock(at(1))
	if s.State() != StatePeak {
		t.Errorf("01:00 in a 22-02 window: state = %s, want peak", s.State())
	}
	s.SetClock(at(12))
	if s.State() != StateOffPeak {
		t.Errorf("12:00 in a 22-02 window: state = %s, want offpeak", s.State())
	}
}

func TestOverride(t *testing.T) {
	s := New(testConfig())
	s.SetClock(at(10))
	s.MarkSynced()

	if err := s.SetOverride(10 * time.Second); err != nil {
		t.Fatalf("SetOverride: %v", err)
	}
	if s.CurrentInterval() != 10*time.Second {
		t.Errorf("interval = %s, want the override", s.CurrentInterval())
	}

	s.ClearOverride()
	if s.CurrentInterval() != 5*time.Second {
		t.Errorf("interval = %s after clear, want peak interval", s.CurrentInterval())
	}
}

func TestOverrideRangeValidation(t *testing.T) {
	s := New(testConfig())

	for _, d := range []time.Duration{0, 500 * time.Millisecond, 2 * time.Hour, -time.Second} {
		err := s.SetOverride(d)
		if err == nil {
			t.Errorf("SetOverride(%s): expected error", d)
			continue
		}
		if domain.KindOf(err) != domain.KindConfig {
			t.Errorf("SetOverride(%s): error kind = %s, want config", d, domain.KindOf(err))
		}
	}

	if s.Override() != 0 {
		t.Error("rejected override was retained")
	}
}
