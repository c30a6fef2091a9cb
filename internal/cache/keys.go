package cache

import "fmt"

const (
	// PositionsPrefix covers every cached position list response.
	PositionsPrefix = "positions:"

	// KeySnapshotFull holds the compressed full snapshot mirror.
	KeySnapshotFull = "snapshot:full"
)

// PositionsKey builds the response cache key for one query shape.
func PositionsKey(limit, maxAgeMinutes int, state, run string) string {
	return fmt.Sprintf("%s%d:%d:%s:%s", PositionsPrefix, limit, maxAgeMinutes, state, run)
}
