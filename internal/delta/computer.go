package delta

import (
	"time"

	"railmap/internal/domain"
	"railmap/internal/observability"
	"railmap/internal/store"
)

// Computer derives minimal change sets between a client's last observed
// fingerprint and the store's current state. Cost is proportional to
// the number of changed runs, not the fleet size.
type Computer struct {
	store *store.Store
}

func NewComputer(s *store.Store) *Computer {
	return &Computer{store: s}
}

// Diff returns the change set since the given fingerprint. ok is false
// when the fingerprint is unknown or expired and the client needs a
// full snapshot instead.
func (c *Computer) Diff(since uint64) (*domain.Delta, bool) {
	start := time.Now()
	defer func() {
		observability.DiffDuration.Observe(time.Since(start).Seconds())
	}()

	// The journal read and the per-run reads are separate store
	// operations, so retry if a write lands in between; a torn view
	// could report a fingerprint that doesn't cover every change.
	for attempt := 0; attempt < 3; attempt++ {
		before := c.store.Fingerprint()
		changes, ok := c.store.ChangesSince(since)
		if !ok {
			return nil, false
		}
		d := c.classify(changes)
		if c.store.Fingerprint() == before {
			d.Fingerprint = before
			return d, true
		}
	}
	return nil, false
}

func (c *Computer) classify(changes []domain.Change) *domain.Delta {
	d := &domain.Delta{
		Added:   []*domain.Position{},
		Updated: []*domain.Position{},
		Removed: []string{},
	}
	if len(changes) == 0 {
		return d
	}

	// First journal entry per run tells us whether the run existed at
	// the client's fingerprint: anything but an add means it did.
	firstKind := make(map[string]domain.ChangeKind, len(changes))
	order := make([]string, 0, len(changes))
	for _, ch := range changes {
		if _, seen := firstKind[ch.RunID]; !seen {
			firstKind[ch.RunID] = ch.Kind
			order = append(order, ch.RunID)
		}
	}

	for _, runID := range order {
		existedBefore := firstKind[runID] != domain.ChangeAdd
		pos, present := c.store.Get(runID)

		switch {
		case existedBefore && present:
			// Covers remove+re-add within one window: reported as an
			// update, not a churny remove+add pair.
			d.Updated = append(d.Updated, pos)
		case existedBefore && !present:
			d.Removed = append(d.Removed, runID)
		case !existedBefore && present:
			d.Added = append(d.Added, pos)
		default:
			// Added and removed inside the window; the client never
			// needs to hear about it.
		}
	}
	return d
}
