package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"railmap/internal/domain"
	"railmap/internal/observability"
)

// Persister mirrors store mutations to durable storage. All calls are
// best-effort: a failure is logged and counted but never blocks or
// fails the in-memory update.
type Persister interface {
	SavePosition(ctx context.Context, p domain.Position) error
	DeletePosition(ctx context.Context, runID string) error
}

// SnapshotOptions filters a snapshot read.
type SnapshotOptions struct {
	State  domain.MotionState // zero value matches all states
	MaxAge time.Duration      // 0 = unbounded
	RunID  string
	Limit  int // 0 = unbounded; otherwise most recently updated first
}

type entry struct {
	pos domain.Position
	sig uint64
}

// Store owns the authoritative position set. One writer at a time, any
// number of concurrent readers; readers always observe fully-applied
// positions.
type Store struct {
	mu         sync.RWMutex
	positions  map[string]*entry
	version    uint64
	journal    []domain.Change
	journalCap int
	lastApply  time.Time

	persister Persister
	logger    *slog.Logger
	clock     func() time.Time
}

func New(p Persister, journalCap int, logger *slog.Logger) *Store {
	if journalCap <= 0 {
		journalCap = 10000
	}
	return &Store{
		positions: make(map[string]*entry),
		// Seeding the counter with wall-clock nanos keeps fingerprints
		// from a previous process from aliasing into the new journal;
		// an old client fingerprint resolves to "unknown" and forces a
		// full sync instead of a bogus delta.
		version:    uint64(time.Now().UnixNano()),
		journalCap: journalCap,
		persister:  p,
		logger:     logger.With("component", "position_store"),
		clock:      time.Now,
	}
}

// Apply upserts a position by run id. A strictly older event for the
// same run is discarded so a late arrival never regresses a position.
// The snapshot fingerprint is bumped only when the client-visible state
// changed.
func (s *Store) Apply(ctx context.Context, pos *domain.Position) error {
	if pos.RunID == "" {
		return domain.Errorf(domain.KindValidation, "position missing run id")
	}

	sig := pos.Signature()

	s.mu.Lock()
	existing, exists := s.positions[pos.RunID]
	if exists {
		if pos.Timestamp.Before(existing.pos.Timestamp) {
			s.mu.Unlock()
			return nil
		}
		if pos.Timestamp.Equal(existing.pos.Timestamp) && sig == existing.sig {
			// Identical replay; applying twice must equal applying once.
			s.mu.Unlock()
			return nil
		}
	}

	now := s.clock()
	stored := *pos
	stored.LastUpdated = now
	s.lastApply = now

	switch {
	case !exists:
		s.positions[pos.RunID] = &entry{pos: stored, sig: sig}
		s.bump(pos.RunID, domain.ChangeAdd)
	case sig != existing.sig:
		existing.pos = stored
		existing.sig = sig
		s.bump(pos.RunID, domain.ChangeUpdate)
	default:
		// Newer timestamp, same visible state: refresh in place without
		// waking clients.
		existing.pos = stored
	}
	count := len(s.positions)
	s.mu.Unlock()

	observability.PositionsInStore.Set(float64(count))
	s.mirror(ctx, stored)
	return nil
}

// Sweep evicts positions whose lastUpdated is older than maxAge and
// returns how many were removed.
func (s *Store) Sweep(ctx context.Context, maxAge time.Duration) int {
	cutoff := s.clock().Add(-maxAge)

	s.mu.Lock()
	var removed []string
	for runID, e := range s.positions {
		if e.pos.LastUpdated.Before(cutoff) {
			removed = append(removed, runID)
		}
	}
	for _, runID := range removed {
		delete(s.positions, runID)
		s.bump(runID, domain.ChangeRemove)
	}
	count := len(s.positions)
	s.mu.Unlock()

	observability.PositionsInStore.Set(float64(count))
	observability.SweepRemoved.Add(float64(len(removed)))

	for _, runID := range removed {
		if s.persister == nil {
			continue
		}
		if err := s.persister.DeletePosition(ctx, runID); err != nil {
			observability.PersistenceErrors.Inc()
			s.logger.Error("position delete mirror failed", "rid", runID, "error", err)
		}
	}
	if len(removed) > 0 {
		s.logger.Info("swept stale positions", "count", len(removed))
	}
	return len(removed)
}

// Remove deletes the position for one run and reports whether it was
// present. The removal goes through the journal so delta clients see
// it, and through the persister so it does not reappear on restart.
func (s *Store) Remove(ctx context.Context, runID string) bool {
	s.mu.Lock()
	_, ok := s.positions[runID]
	if ok {
		delete(s.positions, runID)
		s.bump(runID, domain.ChangeRemove)
	}
	count := len(s.positions)
	s.mu.Unlock()

	if !ok {
		return false
	}

	observability.PositionsInStore.Set(float64(count))
	if s.persister != nil {
		if err := s.persister.DeletePosition(ctx, runID); err != nil {
			observability.PersistenceErrors.Inc()
			s.logger.Error("position delete mirror failed", "rid", runID, "error", err)
		}
	}
	return true
}

// Get returns a copy of the position for one run.
func (s *Store) Get(runID string) (*domain.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.positions[runID]
	if !ok {
		return nil, false
	}
	pos := e.pos
	return &pos, true
}

// Snapshot returns a consistent filtered copy of the position set,
// most recently updated first.
func (s *Store) Snapshot(opts SnapshotOptions) []*domain.Position {
	positions, _ := s.SnapshotWithFingerprint(opts)
	return positions
}

// SnapshotWithFingerprint additionally reports the fingerprint the
// snapshot was taken at, for clients that resume with deltas.
func (s *Store) SnapshotWithFingerprint(opts SnapshotOptions) ([]*domain.Position, uint64) {
	var cutoff time.Time
	if opts.MaxAge > 0 {
		cutoff = s.clock().Add(-opts.MaxAge)
	}

	s.mu.RLock()
	result := make([]*domain.Position, 0, len(s.positions))
	for _, e := range s.positions {
		if opts.RunID != "" && e.pos.RunID != opts.RunID {
			continue
		}
		if opts.State != "" && e.pos.State != opts.State {
			continue
		}
		if !cutoff.IsZero() && e.pos.LastUpdated.Before(cutoff) {
			continue
		}
		pos := e.pos
		result = append(result, &pos)
	}
	fingerprint := s.version
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].LastUpdated.After(result[j].LastUpdated)
	})
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, fingerprint
}

// Fingerprint returns the current snapshot fingerprint.
func (s *Store) Fingerprint() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// ChangesSince returns the journal entries after the given fingerprint.
// ok is false when the fingerprint is unknown or has aged out of the
// journal window, in which case the caller must fall back to a full
// snapshot.
func (s *Store) ChangesSince(since uint64) ([]domain.Change, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if since == s.version {
		return nil, true
	}
	if since > s.version {
		return nil, false
	}
	if len(s.journal) == 0 || since < s.journal[0].Version-1 {
		return nil, false
	}

	idx := sort.Search(len(s.journal), func(i int) bool {
		return s.journal[i].Version > since
	})
	changes := make([]domain.Change, len(s.journal)-idx)
	copy(changes, s.journal[idx:])
	return changes, true
}

// Count returns the number of positions currently held.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.positions)
}

// LastApply returns when the store last accepted a mutation.
func (s *Store) LastApply() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastApply
}

// Rehydrate bulk-loads positions from durable storage at startup.
func (s *Store) Rehydrate(positions []domain.Position) {
	s.mu.Lock()
	for _, pos := range positions {
		p := pos
		s.positions[p.RunID] = &entry{pos: p, sig: p.Signature()}
		s.bump(p.RunID, domain.ChangeAdd)
	}
	count := len(s.positions)
	s.mu.Unlock()

	observability.PositionsInStore.Set(float64(count))
}

// bump must be called with the write lock held.
func (s *Store) bump(runID string, kind domain.ChangeKind) {
	s.version++
	s.journal = append(s.journal, domain.Change{
		Version: s.version,
		RunID:   runID,
		Kind:    kind,
	})
	if len(s.journal) > s.journalCap {
		s.journal = s.journal[len(s.journal)-s.journalCap:]
	}
}

func (s *Store) mirror(ctx context.Context, pos domain.Position) {
	if s.persister == nil {
		return
	}
	if err := s.persister.SavePosition(ctx, pos); err != nil {
		observability.PersistenceErrors.Inc()
		s.logger.Error("position mirror write failed", "rid", pos.RunID, "error", err)
	}
}

// SetClock overrides the time source. Tests only.
func (s *Store) SetClock(clock func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}
