package hub

import (
	"fmt"
	"strconv"

	"railmap/internal/domain"
)

// Message is the envelope for every frame the hub sends. Fingerprints
// travel as 16-digit hex strings so clients can echo them verbatim.
type Message struct {
	Type        string             `json:"type"`
	Fingerprint string             `json:"fingerprint"`
	Positions   []*domain.Position `json:"positions,omitempty"`
	Changes     *ChangeSet         `json:"changes,omitempty"`
}

type ChangeSet struct {
	Added   []*domain.Position `json:"added,omitempty"`
	Updated []*domain.Position `json:"updated,omitempty"`
	Removed []string           `json:"removed,omitempty"`
}

// Hello is the first frame a client sends after connecting.
type Hello struct {
	Type        string `json:"type"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

func fullMessage(positions []*domain.Position, fp uint64) Message {
	return Message{
		Type:        "full",
		Fingerprint: formatFingerprint(fp),
		Positions:   positions,
	}
}

func deltaMessage(d *domain.Delta) Message {
	return Message{
		Type:        "delta",
		Fingerprint: formatFingerprint(d.Fingerprint),
		Changes: &ChangeSet{
			Added:   d.Added,
			Updated: d.Updated,
			Removed: d.Removed,
		},
	}
}

func noopMessage(fp uint64) Message {
	return Message{
		Type:        "noop",
		Fingerprint: formatFingerprint(fp),
	}
}

func formatFingerprint(fp uint64) string {
	return fmt.Sprintf("%016x", fp)
}

// ParseFingerprint reverses formatFingerprint. Unparseable input maps
// to zero, which Sync treats as "no prior state".
func ParseFingerprint(s string) uint64 {
	fp, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0
	}
	return fp
}
