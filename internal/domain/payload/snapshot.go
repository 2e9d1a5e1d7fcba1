package payload

import (
	"time"
)

// DefaultMaxAge is the age after which a payload is considered stale.
const DefaultMaxAge = 24 * time.Hour

// Entity is one named technology and its payload.
type Entity struct {
	Name    string  `json:"name"`
	Payload Payload `json:"payload"`
}

// Snapshot is the ordered set of technologies a comparison runs over.  Order
// is significant: it fixes column order in aligned outputs and breaks ties in
// rankings.
type Snapshot struct {
	entities []Entity
	skipped  []Skip
}

// Skip records a technology a loader could not provide.
type Skip struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// NewSnapshot builds a snapshot from entities.  A repeated name replaces the
// earlier payload but keeps the earlier position; empty names are dropped.
func NewSnapshot(entities ...Entity) Snapshot {
	s := Snapshot{}
	for _, e := range entities {
		s = s.With(e.Name, e.Payload)
	}
	return s
}

// With returns a copy of s with name set to p.
func (s Snapshot) With(name string, p Payload) Snapshot {
	if name == "" {
		return s
	}
	out := make([]Entity, len(s.entities), len(s.entities)+1)
	copy(out, s.entities)
	for i := range out {
		if out[i].Name == name {
			out[i].Payload = p
			return Snapshot{entities: out, skipped: s.skipped}
		}
	}
	return Snapshot{entities: append(out, Entity{Name: name, Payload: p}), skipped: s.skipped}
}

// WithSkipped returns a copy of s recording that name could not be loaded.
func (s Snapshot) WithSkipped(name string, reason error) Snapshot {
	out := make([]Skip, len(s.skipped), len(s.skipped)+1)
	copy(out, s.skipped)
	skip := Skip{Name: name}
	if reason != nil {
		skip.Reason = reason.Error()
	}
	return Snapshot{entities: s.entities, skipped: append(out, skip)}
}

// Skipped returns the technologies that could not be loaded, in load order.
func (s Snapshot) Skipped() []Skip {
	if len(s.skipped) == 0 {
		return nil
	}
	out := make([]Skip, len(s.skipped))
	copy(out, s.skipped)
	return out
}

// Collect assembles per-technology load results in the order of names.
// errs[i] non-nil marks names[i] as skipped.  Collect fails only when every
// load failed, returning the first failure; one bad technology never costs
// the others their place in a comparison.
func Collect(names []string, loaded []Payload, errs []error) (Snapshot, error) {
	s := Snapshot{}
	var first error
	for i, name := range names {
		if errs[i] != nil {
			if first == nil {
				first = errs[i]
			}
			s = s.WithSkipped(name, errs[i])
			continue
		}
		s = s.With(name, loaded[i])
	}
	if s.Len() == 0 && first != nil {
		return Snapshot{}, first
	}
	return s, nil
}

// Select returns the sub-snapshot holding names, in the order given, with
// the skip records of those names.  Names absent from s are left out.
func (s Snapshot) Select(names ...string) Snapshot {
	out := Snapshot{}
	for _, n := range names {
		if p, ok := s.Get(n); ok {
			out = out.With(n, p)
		}
	}
	for _, sk := range s.skipped {
		for _, n := range names {
			if sk.Name == n {
				out.skipped = append(out.skipped, sk)
				break
			}
		}
	}
	return out
}

// Get returns the payload for name.
func (s Snapshot) Get(name string) (Payload, bool) {
	for _, e := range s.entities {
		if e.Name == name {
			return e.Payload, true
		}
	}
	return Payload{}, false
}

// Entities returns a copy of the ordered entity list.
func (s Snapshot) Entities() []Entity {
	out := make([]Entity, len(s.entities))
	copy(out, s.entities)
	return out
}

// Names returns entity names in snapshot order.
func (s Snapshot) Names() []string {
	out := make([]string, len(s.entities))
	for i, e := range s.entities {
		out[i] = e.Name
	}
	return out
}

// Len returns the number of entities.
func (s Snapshot) Len() int { return len(s.entities) }

// IsStale reports whether lastUpdated is at least maxAge before now.  A
// non-positive maxAge selects DefaultMaxAge.
func IsStale(lastUpdated, now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return now.Sub(lastUpdated) >= maxAge
}

// Stale reports whether p is older than maxAge at now.  Payloads without a
// readable last_updated stamp are not stale.
func (p Payload) Stale(now time.Time, maxAge time.Duration) bool {
	t, ok := p.LastUpdated()
	if !ok {
		return false
	}
	return IsStale(t, now, maxAge)
}
