package tiploc

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"railmap/internal/domain"
	"railmap/internal/observability"
)

// Persister mirrors coordinate upserts to durable storage.
type Persister interface {
	SaveCoordinate(ctx context.Context, c domain.Coordinate) error
}

// Table maps TIPLOC codes to coordinates. Lookups are O(1); each upsert
// is atomic with respect to concurrent readers.
type Table struct {
	mu        sync.RWMutex
	coords    map[string]domain.Coordinate
	persister Persister
	logger    *slog.Logger
}

func NewTable(p Persister, logger *slog.Logger) *Table {
	return &Table{
		coords:    make(map[string]domain.Coordinate),
		persister: p,
		logger:    logger.With("component", "tiploc_table"),
	}
}

// Resolve looks up the coordinate for a location code.
func (t *Table) Resolve(code string) (domain.Coordinate, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.coords[normalize(code)]
	return c, ok
}

// Upsert inserts or replaces a coordinate, last write wins, and mirrors
// the write to durable storage. A failed mirror write is logged and
// counted; the in-memory table remains authoritative.
func (t *Table) Upsert(ctx context.Context, code string, lat, lon float64, name, source string) domain.Coordinate {
	c := domain.Coordinate{
		Code:      normalize(code),
		Lat:       lat,
		Lon:       lon,
		Name:      name,
		Source:    source,
		UpdatedAt: time.Now(),
	}

	t.mu.Lock()
	t.coords[c.Code] = c
	t.mu.Unlock()

	if t.persister != nil {
		if err := t.persister.SaveCoordinate(ctx, c); err != nil {
			observability.PersistenceErrors.Inc()
			t.logger.Error("coordinate mirror write failed", "tiploc", c.Code, "error", err)
		}
	}
	return c
}

// Load bulk-inserts coordinates without write-through. Used when
// rehydrating from durable storage at startup.
func (t *Table) Load(coords []domain.Coordinate) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range coords {
		t.coords[normalize(c.Code)] = c
	}
}

// SeedDefaults inserts the bundled station set where no entry exists
// yet, so a fresh deployment resolves the common UK codes immediately.
func (t *Table) SeedDefaults() int {
	now := time.Now()
	added := 0

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range defaultStations {
		if _, exists := t.coords[s.code]; exists {
			continue
		}
		t.coords[s.code] = domain.Coordinate{
			Code:      s.code,
			Lat:       s.lat,
			Lon:       s.lon,
			Name:      s.name,
			Source:    "bundled",
			UpdatedAt: now,
		}
		added++
	}
	return added
}

// All returns every coordinate ordered by code.
func (t *Table) All() []domain.Coordinate {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]domain.Coordinate, 0, len(t.coords))
	for _, c := range t.coords {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.coords)
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
