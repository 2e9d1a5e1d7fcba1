// Package ranking derives comparable scalar signals from each technology's
// payload, ranks technologies per signal, and renders the comparison as
// short rank-worded paragraphs.
package ranking

import (
	"github.com/turtacn/TechIntel/internal/domain/investment"
	"github.com/turtacn/TechIntel/internal/domain/market"
	"github.com/turtacn/TechIntel/internal/domain/payload"
	"github.com/turtacn/TechIntel/internal/domain/series"
)

// Signal holds the scalars one technology is ranked on.  The Has* flags say
// which sources the payload actually provided; a zero value with its flag
// unset means "no data", not "zero".
type Signal struct {
	Entity string `json:"entity"`

	PatentRecent float64 `json:"patent_recent"`
	PatentGrowth float64 `json:"patent_growth"`
	HasPatents   bool    `json:"has_patents"`

	AdoptionLatest float64 `json:"adoption_latest"`
	AdoptionSlope  float64 `json:"adoption_slope"`
	HasAdoption    bool    `json:"has_adoption"`

	InvestmentTotal   float64 `json:"investment_total"`
	InvestmentBreadth int     `json:"investment_breadth"`
	HasInvestment     bool    `json:"has_investment"`

	MarketSizeBillion float64 `json:"market_size_billion"`
	HasMarket         bool    `json:"has_market"`
}

// Resolvable reports whether any source contributed to s.
func (s Signal) Resolvable() bool {
	return s.HasPatents || s.HasAdoption || s.HasInvestment || s.HasMarket
}

// Growth is the relative change from prev to last.  When prev is not
// positive the ratio is undefined and last itself is returned.
func Growth(prev, last float64) float64 {
	if prev > 0 {
		return (last - prev) / prev
	}
	return last
}

// Derive computes one Signal per resolvable entity of snap, in snapshot
// order.
func Derive(snap payload.Snapshot) []Signal {
	out := make([]Signal, 0, snap.Len())
	for _, e := range snap.Entities() {
		s := FromPayload(e.Name, e.Payload)
		if s.Resolvable() {
			out = append(out, s)
		}
	}
	return out
}

// FromPayload computes the Signal of a single technology.
func FromPayload(entity string, p payload.Payload) Signal {
	s := Signal{Entity: entity}
	patentSignals(&s, p)
	adoptionSignals(&s, p)
	investmentSignals(&s, p)
	s.MarketSizeBillion, s.HasMarket = market.Largest(p)
	return s
}

func patentSignals(s *Signal, p payload.Payload) {
	var counts []float64
	for _, el := range p.PatentTimeline() {
		if _, n, ok := series.PatentEntry(el); ok {
			counts = append(counts, n)
		}
	}
	if len(counts) == 0 {
		return
	}
	s.HasPatents = true
	last := counts[len(counts)-1]
	s.PatentRecent = last
	if len(counts) < 2 {
		s.PatentGrowth = Growth(0, last)
		return
	}
	s.PatentGrowth = Growth(counts[len(counts)-2], last)
}

func adoptionSignals(s *Signal, p payload.Payload) {
	var values []float64
	for i, el := range p.TrendCurve() {
		if v, ok := series.CurveValue(i, el); ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return
	}
	s.HasAdoption = true
	s.AdoptionLatest = values[len(values)-1]
	s.AdoptionSlope = values[len(values)-1] - values[0]
}

func investmentSignals(s *Signal, p payload.Payload) {
	values := investment.Values(p)
	if len(values) == 0 {
		return
	}
	s.HasInvestment = true
	for _, v := range values {
		s.InvestmentTotal += v
	}
	s.InvestmentBreadth = len(values)
}
