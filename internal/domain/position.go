package domain

import (
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
)

// MotionState classifies how a train is moving on its current segment
type MotionState string

const (
	StateEnroute MotionState = "enroute"
	StateDwell   MotionState = "dwell"
	StateStopped MotionState = "stopped"
)

// Valid reports whether s is one of the known motion states
func (s MotionState) Valid() bool {
	switch s {
	case StateEnroute, StateDwell, StateStopped:
		return true
	}
	return false
}

// Coordinate maps a TIPLOC location code to a geographic point
type Coordinate struct {
	Code      string    `json:"tiploc"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Name      string    `json:"name,omitempty"`
	Source    string    `json:"source,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RawMovementEvent is a normalized movement report from the feed.
// It is consumed by the estimator and discarded; nothing retains it.
type RawMovementEvent struct {
	RunID     string
	VehicleID string
	Timestamp time.Time
	FromCode  string
	ToCode    string

	// Segment timetable. Zero values mean the feed carried no usable
	// schedule and the estimator falls back to its default policy.
	DepartedAt time.Time
	DueAt      time.Time

	// AtStation marks a single-location report: the train is standing
	// at FromCode and ToCode equals FromCode.
	AtStation bool

	Platform string
	Delayed  bool
}

// Validate rejects events that cannot be applied to the store.
func (e *RawMovementEvent) Validate() error {
	if e.RunID == "" {
		return Errorf(KindValidation, "movement event missing run id")
	}
	if e.FromCode == "" || e.ToCode == "" {
		return Errorf(KindValidation, "movement event for run %s missing location codes", e.RunID)
	}
	if e.Timestamp.IsZero() {
		return Errorf(KindValidation, "movement event for run %s missing timestamp", e.RunID)
	}
	return nil
}

// Position is the authoritative per-run record served to clients
type Position struct {
	RunID       string      `json:"rid"`
	VehicleID   string      `json:"uid,omitempty"`
	Timestamp   time.Time   `json:"ts"`
	FromCode    string      `json:"from_tpl"`
	ToCode      string      `json:"to_tpl"`
	Lat         float64     `json:"lat"`
	Lon         float64     `json:"lon"`
	Ratio       float64     `json:"ratio"`
	State       MotionState `json:"state"`
	Platform    string      `json:"platform,omitempty"`
	Delayed     bool        `json:"delayed,omitempty"`
	LastUpdated time.Time   `json:"updatedAt"`
}

// Signature hashes the client-visible fields of a position. Coordinates
// are rounded to 4 decimal places (~11 m) so jitter below map resolution
// does not count as a change.
func (p *Position) Signature() uint64 {
	key := fmt.Sprintf("%s:%.4f:%.4f:%s:%s:%t",
		p.RunID, p.Lat, p.Lon, p.State, p.Platform, p.Delayed)
	return xxhash.Sum64String(key)
}

// ChangeKind indicates how a position changed in the store journal
type ChangeKind uint8

const (
	ChangeAdd ChangeKind = iota
	ChangeUpdate
	ChangeRemove
)

// Change is one entry of the store's change journal
type Change struct {
	Version uint64
	RunID   string
	Kind    ChangeKind
}

// Delta is a minimal change set between two snapshot fingerprints
type Delta struct {
	Added       []*Position `json:"added"`
	Updated     []*Position `json:"updated"`
	Removed     []string    `json:"removed"`
	Fingerprint uint64      `json:"fingerprint"`
}

// Empty reports whether the delta carries no changes
func (d *Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Updated) == 0 && len(d.Removed) == 0
}
