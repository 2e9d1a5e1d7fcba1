// Package investment merges per-technology category -> amount maps (country
// investment, investment index) into one grouped-bar matrix.
package investment

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/turtacn/TechIntel/internal/domain/payload"
)

// CanonicalUSA is the single label all United States spellings fold into.
const CanonicalUSA = "USA"

// CanonicalCategory folds United States aliases into CanonicalUSA.  Any key
// whose lowercase form contains "united" (which also catches "United
// Kingdom") or equals "usa" maps there; every other key is returned verbatim.
func CanonicalCategory(key string) string {
	lower := strings.ToLower(key)
	if strings.Contains(lower, "united") || lower == "usa" {
		return CanonicalUSA
	}
	return key
}

// Row is one category with one amount per entity.
type Row struct {
	Category string
	Values   map[string]float64
}

// MarshalJSON renders {"category":"USA","ai":10,"robotics":0}.
func (r Row) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(r.Values)+1)
	for name, v := range r.Values {
		flat[name] = v
	}
	flat["category"] = r.Category
	return json.Marshal(flat)
}

// UnmarshalJSON reads the flat form back.
func (r *Row) UnmarshalJSON(b []byte) error {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(b, &flat); err != nil {
		return err
	}
	if err := json.Unmarshal(flat["category"], &r.Category); err != nil {
		return fmt.Errorf("investment: row category: %w", err)
	}
	delete(flat, "category")
	r.Values = make(map[string]float64, len(flat))
	for name, raw := range flat {
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("investment: row value %q: %w", name, err)
		}
		r.Values[name] = v
	}
	return nil
}

// Values returns the entity's investment map after category folding.  Keys
// are visited in sorted order so that when two aliases fold onto one
// category the lexically later alias wins, every time.  Entries whose amount
// is not numeric are left out.
func Values(p payload.Payload) map[string]float64 {
	raw := p.InvestmentValues()
	if len(raw) == 0 {
		return nil
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]float64, len(raw))
	for _, k := range keys {
		v, ok := payload.Coerce(raw[k])
		if !ok {
			continue
		}
		out[CanonicalCategory(k)] = v
	}
	return out
}

// Aggregate builds the category matrix for snap.  Rows appear in order of
// first sighting (entities in snapshot order, categories sorted within an
// entity); every row carries every entity, zero-filled.
func Aggregate(snap payload.Snapshot) []Row {
	names := snap.Names()
	index := make(map[string]int)
	var rows []Row

	for _, e := range snap.Entities() {
		values := Values(e.Payload)
		cats := make([]string, 0, len(values))
		for c := range values {
			cats = append(cats, c)
		}
		sort.Strings(cats)

		for _, c := range cats {
			i, seen := index[c]
			if !seen {
				i = len(rows)
				index[c] = i
				rows = append(rows, Row{Category: c, Values: make(map[string]float64, len(names))})
			}
			rows[i].Values[e.Name] = values[c]
		}
	}

	for _, r := range rows {
		for _, n := range names {
			if _, ok := r.Values[n]; !ok {
				r.Values[n] = 0
			}
		}
	}
	return rows
}
