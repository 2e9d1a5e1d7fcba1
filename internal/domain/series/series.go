// Package series aligns per-technology time series onto one shared year axis
// so that N technologies can be drawn as N lines on a single chart.
package series

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/turtacn/TechIntel/internal/domain/payload"
)

// BaseYear is the year assigned to index 0 of a curve given as bare numbers.
// Element i of such a curve is placed at BaseYear+i.
const BaseYear = 2020

// Row is one year of an aligned series.  Values holds one slot per entity of
// the owning Series; a nil slot means the entity reported nothing that year.
type Row struct {
	Year   int
	Values map[string]*float64
}

// Value returns the entity's value and whether it is set.
func (r Row) Value(entity string) (float64, bool) {
	v := r.Values[entity]
	if v == nil {
		return 0, false
	}
	return *v, true
}

// MarshalJSON renders the flat chart form {"year":2021,"a":1,"b":null}.
// An entity literally named "year" is shadowed by the year column.
func (r Row) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(r.Values)+1)
	for name, v := range r.Values {
		if v == nil {
			flat[name] = nil
		} else {
			flat[name] = *v
		}
	}
	flat["year"] = r.Year
	return json.Marshal(flat)
}

// UnmarshalJSON reads the flat chart form back.
func (r *Row) UnmarshalJSON(b []byte) error {
	var flat map[string]*float64
	if err := json.Unmarshal(b, &flat); err != nil {
		return err
	}
	year, ok := flat["year"]
	if !ok || year == nil {
		return fmt.Errorf("series: row has no year")
	}
	delete(flat, "year")
	r.Year = int(*year)
	r.Values = flat
	return nil
}

// Series is a set of rows sorted strictly ascending by year.
type Series struct {
	Entities []string `json:"entities"`
	Rows     []Row    `json:"rows"`
}

// Span returns the first and last year of s.  ok is false for an empty series.
func (s Series) Span() (first, last int, ok bool) {
	if len(s.Rows) == 0 {
		return 0, 0, false
	}
	return s.Rows[0].Year, s.Rows[len(s.Rows)-1].Year, true
}

// Between returns the rows whose year falls in [from, to].
func (s Series) Between(from, to int) Series {
	out := Series{Entities: s.Entities}
	for _, r := range s.Rows {
		if r.Year >= from && r.Year <= to {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// AlignAdditive aligns the curve found at field (a dotted path under the
// dashboard section, e.g. "trend_curve") for every entity in snap.
//
// Curve elements are either {year, value?, count?} objects or bare numbers.
// Objects contribute value, else count, else 0; an object without an integral
// year or with a non-numeric value is skipped.  Bare numbers are positioned
// by index from BaseYear.  A later element for the same year replaces the
// earlier one.
func AlignAdditive(snap payload.Snapshot, field string) Series {
	names := snap.Names()
	perEntity := make(map[string]map[int]float64, len(names))
	years := make(map[int]struct{})

	for _, e := range snap.Entities() {
		points := make(map[int]float64)
		for i, el := range e.Payload.Curve(field) {
			year, v, ok := additivePoint(i, el)
			if !ok {
				continue
			}
			points[year] = v
			years[year] = struct{}{}
		}
		perEntity[e.Name] = points
	}

	return assemble(names, years, func(entity string, year int) *float64 {
		if v, ok := perEntity[entity][year]; ok {
			return &v
		}
		return nil
	})
}

// AlignTrend aligns the adoption trend curve.
func AlignTrend(snap payload.Snapshot) Series {
	return AlignAdditive(snap, "trend_curve")
}

// AlignCumulativePatents aligns patent filing counts.  Repeated years within
// one entity are summed; an entry without a count stands for one filing.
// Years an entity has no filings for hold 0, never nil.
func AlignCumulativePatents(snap payload.Snapshot) Series {
	names := snap.Names()
	perEntity := make(map[string]map[int]float64, len(names))
	years := make(map[int]struct{})

	for _, e := range snap.Entities() {
		counts := make(map[int]float64)
		for _, el := range e.Payload.PatentTimeline() {
			year, n, ok := PatentEntry(el)
			if !ok {
				continue
			}
			counts[year] += n
			years[year] = struct{}{}
		}
		perEntity[e.Name] = counts
	}

	return assemble(names, years, func(entity string, year int) *float64 {
		v := perEntity[entity][year]
		return &v
	})
}

// PatentEntry reads one patent timeline element.  A missing count means one
// filing; a present but non-numeric count drops the entry.
func PatentEntry(el interface{}) (year int, count float64, ok bool) {
	obj, isObj := el.(map[string]interface{})
	if !isObj {
		return 0, 0, false
	}
	year, ok = payload.Year(obj["year"])
	if !ok {
		return 0, 0, false
	}
	raw, present := obj["count"]
	if !present || raw == nil {
		return year, 1, true
	}
	count, ok = payload.Coerce(raw)
	if !ok {
		return 0, 0, false
	}
	return year, count, true
}

// CurveValue reads the magnitude of one curve element regardless of year.
func CurveValue(index int, el interface{}) (float64, bool) {
	_, v, ok := additivePoint(index, el)
	return v, ok
}

func additivePoint(index int, el interface{}) (int, float64, bool) {
	if n, ok := payload.Number(el); ok {
		return BaseYear + index, n, true
	}
	obj, isObj := el.(map[string]interface{})
	if !isObj {
		return 0, 0, false
	}
	year, ok := payload.Year(obj["year"])
	if !ok {
		return 0, 0, false
	}
	for _, key := range []string{"value", "count"} {
		raw, present := obj[key]
		if !present || raw == nil {
			continue
		}
		v, ok := payload.Coerce(raw)
		if !ok {
			return 0, 0, false
		}
		return year, v, true
	}
	return year, 0, true
}

func assemble(names []string, years map[int]struct{}, cell func(entity string, year int) *float64) Series {
	sorted := make([]int, 0, len(years))
	for y := range years {
		sorted = append(sorted, y)
	}
	sort.Ints(sorted)

	rows := make([]Row, 0, len(sorted))
	for _, y := range sorted {
		values := make(map[string]*float64, len(names))
		for _, n := range names {
			values[n] = cell(n, y)
		}
		rows = append(rows, Row{Year: y, Values: values})
	}
	return Series{Entities: names, Rows: rows}
}
