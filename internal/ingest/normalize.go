package ingest

import (
	"encoding/json"
	"time"

	"railmap/internal/domain"
)

// The upstream topic wraps the Darwin payload either directly or inside
// a "bytes" field carrying the JSON as a string.
type wrapper struct {
	Bytes string `json:"bytes"`
}

type payload struct {
	TS string `json:"ts"`
	UR struct {
		TS *trainStatus `json:"TS"`
	} `json:"uR"`
}

type trainStatus struct {
	RID      string          `json:"rid"`
	UID      string          `json:"uid"`
	SSD      string          `json:"ssd"`
	Location json.RawMessage `json:"Location"`
}

type timing struct {
	At      string `json:"at"`
	Et      string `json:"et"`
	Delayed bool   `json:"delayed"`
}

type location struct {
	TPL  string          `json:"tpl"`
	Arr  *timing         `json:"arr"`
	Dep  *timing         `json:"dep"`
	Pass *timing         `json:"pass"`
	PTA  string          `json:"pta"`
	PTD  string          `json:"ptd"`
	WTA  string          `json:"wta"`
	WTD  string          `json:"wtd"`
	WTP  string          `json:"wtp"`
	Plat json.RawMessage `json:"plat"`
}

// segment is the train's place in its calling pattern at one instant.
type segment struct {
	prev     *location
	next     *location
	t0       time.Time
	t1       time.Time
	standing bool
}

// Normalize parses one feed message into a movement event. Unknown and
// extra fields are ignored; messages without a run id or locations are
// rejected with a validation error.
func Normalize(data []byte, now time.Time) (*domain.RawMovementEvent, error) {
	var w wrapper
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, domain.Errorf(domain.KindValidation, "malformed feed message: %v", err)
	}
	raw := data
	if w.Bytes != "" {
		raw = []byte(w.Bytes)
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, domain.Errorf(domain.KindValidation, "malformed feed payload: %v", err)
	}
	ts := p.UR.TS
	if ts == nil || ts.RID == "" {
		return nil, domain.Errorf(domain.KindValidation, "feed message missing train status or run id")
	}

	eventTime := now
	if p.TS != "" {
		if t, err := time.Parse(time.RFC3339, p.TS); err == nil {
			eventTime = t
		}
	}
	ssd := ts.SSD
	if ssd == "" {
		ssd = eventTime.Format("2006-01-02")
	}

	locs, err := parseLocations(ts.Location)
	if err != nil {
		return nil, err
	}
	if len(locs) == 0 {
		return nil, domain.Errorf(domain.KindValidation, "run %s carries no locations", ts.RID)
	}

	ev := &domain.RawMovementEvent{
		RunID:     ts.RID,
		VehicleID: ts.UID,
		Timestamp: eventTime,
	}

	if seg, ok := findSegment(locs, ssd, eventTime); ok {
		if seg.standing {
			ev.FromCode = seg.prev.TPL
			ev.ToCode = seg.prev.TPL
			ev.AtStation = true
			ev.Platform = platformOf(seg.prev)
			ev.Delayed = delayedOf(seg.prev)
			return ev, nil
		}
		ev.FromCode = seg.prev.TPL
		ev.ToCode = seg.next.TPL
		ev.DepartedAt = seg.t0
		ev.DueAt = seg.t1
		ev.Platform = platformOf(seg.prev)
		ev.Delayed = delayedOf(seg.prev) || delayedOf(seg.next)
		return ev, nil
	}

	// A single-location report means the train is standing at a station.
	if len(locs) == 1 {
		ev.FromCode = locs[0].TPL
		ev.ToCode = locs[0].TPL
		ev.AtStation = true
		ev.Platform = platformOf(&locs[0])
		ev.Delayed = delayedOf(&locs[0])
		return ev, nil
	}

	// Nothing reached yet: the run has not started. Report it standing
	// at its origin.
	ev.FromCode = locs[0].TPL
	ev.ToCode = locs[0].TPL
	ev.AtStation = true
	ev.Platform = platformOf(&locs[0])
	return ev, nil
}

// parseLocations accepts Location as either an object or a list.
func parseLocations(raw json.RawMessage) ([]location, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var list []location
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var single location
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, domain.Errorf(domain.KindValidation, "malformed location list: %v", err)
	}
	return []location{single}, nil
}

// findSegment walks the calling pattern: the last location with any
// time at or before now is where the train last was. A reached location
// whose departure is missing or in the future means the train is still
// standing there; otherwise the segment runs to the first later stop
// with an arrival at or after now.
func findSegment(locs []location, ssd string, now time.Time) (segment, bool) {
	tz := now.Location()
	prevIdx := -1
	var seg segment

	for i := range locs {
		loc := &locs[i]
		if t, reached := reachedAt(loc, ssd, tz, now); reached {
			prevIdx = i
			seg.prev, seg.t0 = loc, t
		}
	}
	if prevIdx < 0 {
		return segment{}, false
	}

	dep := pickTime(seg.prev, true, ssd, tz)
	if seg.prev.Pass == nil && (dep.IsZero() || dep.After(now)) {
		seg.standing = true
		return seg, true
	}
	if !dep.IsZero() {
		seg.t0 = dep
	}

	for i := prevIdx + 1; i < len(locs); i++ {
		loc := &locs[i]
		arrive := pickTime(loc, false, ssd, tz)
		if arrive.IsZero() {
			arrive = passTime(loc, ssd, tz)
		}
		if !arrive.IsZero() && !arrive.Before(now) {
			seg.next, seg.t1 = loc, arrive
			return seg, true
		}
	}

	// Departed the last stop we know about with nowhere further to go.
	seg.standing = true
	return seg, true
}

// reachedAt reports whether the train has passed, departed from or
// arrived at the location by now, returning the latest such time.
func reachedAt(loc *location, ssd string, tz *time.Location, now time.Time) (time.Time, bool) {
	var best time.Time
	candidates := []time.Time{
		pickTime(loc, true, ssd, tz),
		passTime(loc, ssd, tz),
		pickTime(loc, false, ssd, tz),
	}
	for _, t := range candidates {
		if t.IsZero() || t.After(now) {
			continue
		}
		if t.After(best) {
			best = t
		}
	}
	return best, !best.IsZero()
}

// pickTime resolves a location's departure (dep=true) or arrival time.
// Preference: actual > estimated > public timetable > working timetable.
func pickTime(loc *location, dep bool, ssd string, tz *time.Location) time.Time {
	node := loc.Arr
	pt, wt := loc.PTA, loc.WTA
	if dep {
		node = loc.Dep
		pt, wt = loc.PTD, loc.WTD
	}
	if node != nil {
		if t, err := parseTimeHMS(node.At, ssd, tz); err == nil {
			return t
		}
		if t, err := parseTimeHMS(node.Et, ssd, tz); err == nil {
			return t
		}
	}
	if t, err := parseTimeHMS(pt, ssd, tz); err == nil {
		return t
	}
	if t, err := parseTimeHMS(wt, ssd, tz); err == nil {
		return t
	}
	return time.Time{}
}

func passTime(loc *location, ssd string, tz *time.Location) time.Time {
	if loc.Pass == nil {
		if t, err := parseTimeHMS(loc.WTP, ssd, tz); err == nil {
			return t
		}
		return time.Time{}
	}
	if t, err := parseTimeHMS(loc.Pass.At, ssd, tz); err == nil {
		return t
	}
	if t, err := parseTimeHMS(loc.Pass.Et, ssd, tz); err == nil {
		return t
	}
	if t, err := parseTimeHMS(loc.WTP, ssd, tz); err == nil {
		return t
	}
	return time.Time{}
}

// parseTimeHMS combines "HH:MM" or "HH:MM:SS" with the service date.
func parseTimeHMS(s, ssd string, tz *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, domain.Errorf(domain.KindValidation, "empty time")
	}
	layout := "15:04"
	if len(s) == 8 {
		layout = "15:04:05"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, err
	}
	day, err := time.ParseInLocation("2006-01-02", ssd, tz)
	if err != nil {
		day = time.Now().In(tz).Truncate(24 * time.Hour)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), t.Second(), 0, tz), nil
}

// platformOf handles plat delivered as a plain string or an object.
func platformOf(loc *location) string {
	if len(loc.Plat) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(loc.Plat, &s); err == nil {
		return s
	}
	var obj map[string]any
	if err := json.Unmarshal(loc.Plat, &obj); err == nil {
		for _, key := range []string{"#text", "plat"} {
			if v, ok := obj[key].(string); ok {
				return v
			}
		}
	}
	return ""
}

func delayedOf(loc *location) bool {
	for _, t := range []*timing{loc.Arr, loc.Dep, loc.Pass} {
		if t != nil && t.Delayed {
			return true
		}
	}
	return false
}
