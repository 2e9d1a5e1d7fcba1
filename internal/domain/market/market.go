// Package market turns free-text market-size strings ("$1.2 Trillion",
// "500 million") into comparable magnitudes in billions of USD.
package market

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/turtacn/TechIntel/internal/domain/payload"
)

// DefaultSource labels reports that do not name their source.
const DefaultSource = "Market Report"

// Unit multipliers into billions, checked in this order.
var units = []struct {
	word     string
	mul, div float64
}{
	{"trillion", 1000, 1},
	{"billion", 1, 1},
	{"million", 1, 1000},
}

var leadingFloat = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// ParseMagnitude converts a market-size string to billions of USD.  Currency
// symbols and thousands separators are ignored, matching is case-insensitive,
// and the leading number is scaled by the first unit word found.  ok is false
// for empty input, a non-numeric lead, or a string naming no known unit.
func ParseMagnitude(raw string) (float64, bool) {
	s := strings.Map(func(r rune) rune {
		if r == ',' || unicode.Is(unicode.Sc, r) {
			return -1
		}
		return r
	}, raw)
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}

	lead := leadingFloat.FindString(s)
	if lead == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(lead, 64)
	if err != nil || math.IsInf(n, 0) {
		return 0, false
	}

	for _, u := range units {
		if strings.Contains(s, u.word) {
			return n * u.mul / u.div, true
		}
	}
	return 0, false
}

// Point is one parsed market report.
type Point struct {
	ValueBillionUSD float64 `json:"value"`
	Title           string  `json:"title,omitempty"`
	Source          string  `json:"source"`
}

// Distribution holds the parsed reports of one entity.
type Distribution struct {
	Entity string  `json:"tech"`
	Points []Point `json:"points"`
}

// Points parses every market report of p, dropping the unparsable ones.
func Points(p payload.Payload) []Point {
	reports := p.MarketReports()
	points := make([]Point, 0, len(reports))
	for _, r := range reports {
		obj, ok := r.(map[string]interface{})
		if !ok {
			continue
		}
		size, _ := obj["market_size"].(string)
		v, ok := ParseMagnitude(size)
		if !ok {
			continue
		}
		title, _ := obj["title"].(string)
		source, _ := obj["source"].(string)
		if source == "" {
			source = DefaultSource
		}
		points = append(points, Point{ValueBillionUSD: v, Title: title, Source: source})
	}
	return points
}

// Distribute returns one Distribution per entity of snap, in snapshot order.
// Entities without usable reports get an empty point list.
func Distribute(snap payload.Snapshot) []Distribution {
	out := make([]Distribution, 0, snap.Len())
	for _, e := range snap.Entities() {
		out = append(out, Distribution{Entity: e.Name, Points: Points(e.Payload)})
	}
	return out
}

// HasPoints reports whether any distribution holds at least one point.
func HasPoints(ds []Distribution) bool {
	for _, d := range ds {
		if len(d.Points) > 0 {
			return true
		}
	}
	return false
}

// Largest returns the biggest parsed magnitude of p.
func Largest(p payload.Payload) (float64, bool) {
	var max float64
	found := false
	for _, pt := range Points(p) {
		if !found || pt.ValueBillionUSD > max {
			max = pt.ValueBillionUSD
			found = true
		}
	}
	return max, found
}
