package estimator

import (
	"time"

	"railmap/internal/domain"
)

// Resolver supplies coordinates for location codes.
type Resolver interface {
	Resolve(code string) (domain.Coordinate, bool)
}

// Estimator turns movement events into interpolated positions. It is
// purely functional; no state is carried between calls.
type Estimator struct {
	defaultProgress float64
	stoppedIdle     time.Duration
}

// New builds an estimator. defaultProgress is the ratio assumed when a
// segment carries no timetable (0 = freshly departed); stoppedIdle is
// how long a train may sit clamped at a segment boundary before it is
// classified as stopped rather than enroute.
func New(defaultProgress float64, stoppedIdle time.Duration) *Estimator {
	return &Estimator{
		defaultProgress: clamp(defaultProgress, 0, 1),
		stoppedIdle:     stoppedIdle,
	}
}

// Estimate converts an event into a fully-formed Position. Failure to
// resolve either endpoint yields an unresolved_location error and the
// caller drops the event.
func (e *Estimator) Estimate(ev *domain.RawMovementEvent, r Resolver) (*domain.Position, error) {
	from, ok := r.Resolve(ev.FromCode)
	if !ok {
		return nil, domain.Errorf(domain.KindUnresolvedLocation, "no coordinate for %s (run %s)", ev.FromCode, ev.RunID)
	}
	to, ok := r.Resolve(ev.ToCode)
	if !ok {
		return nil, domain.Errorf(domain.KindUnresolvedLocation, "no coordinate for %s (run %s)", ev.ToCode, ev.RunID)
	}

	pos := &domain.Position{
		RunID:     ev.RunID,
		VehicleID: ev.VehicleID,
		Timestamp: ev.Timestamp,
		FromCode:  from.Code,
		ToCode:    to.Code,
		Platform:  ev.Platform,
		Delayed:   ev.Delayed,
	}

	if ev.AtStation || from.Code == to.Code {
		pos.Lat, pos.Lon = from.Lat, from.Lon
		pos.Ratio = 0
		pos.State = domain.StateDwell
		return pos, nil
	}

	raw, scheduled := e.progress(ev)
	ratio := clamp(raw, 0, 1)

	pos.Lat = lerp(from.Lat, to.Lat, ratio)
	pos.Lon = lerp(from.Lon, to.Lon, ratio)
	pos.Ratio = ratio
	pos.State = e.classify(ev, raw, scheduled)
	return pos, nil
}

// progress derives the raw (unclamped) elapsed-time ratio for the
// segment. The second return reports whether a timetable was available.
func (e *Estimator) progress(ev *domain.RawMovementEvent) (float64, bool) {
	if ev.DepartedAt.IsZero() || ev.DueAt.IsZero() {
		return e.defaultProgress, false
	}
	total := ev.DueAt.Sub(ev.DepartedAt)
	if total <= 0 {
		return 1, true
	}
	return float64(ev.Timestamp.Sub(ev.DepartedAt)) / float64(total), true
}

func (e *Estimator) classify(ev *domain.RawMovementEvent, raw float64, scheduled bool) domain.MotionState {
	if !scheduled {
		return domain.StateEnroute
	}
	// Clamped at a boundary for longer than the idle threshold means
	// the train is not making progress on this segment.
	if raw >= 1 && ev.Timestamp.Sub(ev.DueAt) > e.stoppedIdle {
		return domain.StateStopped
	}
	if raw <= 0 && ev.DepartedAt.Sub(ev.Timestamp) > e.stoppedIdle {
		return domain.StateStopped
	}
	return domain.StateEnroute
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
