package ranking

import (
	"fmt"
	"sort"
)

// TopN is how many technologies a ranking keeps.
const TopN = 3

// Metric names a ranking dimension.
type Metric string

const (
	MetricPatent     Metric = "patent"
	MetricAdoption   Metric = "adoption"
	MetricInvestment Metric = "investment"
	MetricMarket     Metric = "market"
)

// Metrics lists every dimension in narrative order.
var Metrics = []Metric{MetricPatent, MetricAdoption, MetricInvestment, MetricMarket}

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, error) {
	for _, m := range Metrics {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("ranking: unknown metric %q", s)
}

// Key returns the value s is ordered by for m and whether s has data for m.
//
//	patent     -> PatentRecent
//	adoption   -> AdoptionLatest
//	investment -> InvestmentTotal
//	market     -> MarketSizeBillion
func (m Metric) Key(s Signal) (float64, bool) {
	switch m {
	case MetricPatent:
		return s.PatentRecent, s.HasPatents
	case MetricAdoption:
		return s.AdoptionLatest, s.HasAdoption
	case MetricInvestment:
		return s.InvestmentTotal, s.HasInvestment
	case MetricMarket:
		return s.MarketSizeBillion, s.HasMarket
	default:
		return 0, false
	}
}

// Rank orders the signals that have data for m by descending key and keeps
// the first TopN.  Equal keys keep their input order.  The input slice is not
// reordered.
func Rank(signals []Signal, m Metric) []Signal {
	eligible := make([]Signal, 0, len(signals))
	for _, s := range signals {
		if _, ok := m.Key(s); ok {
			eligible = append(eligible, s)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		a, _ := m.Key(eligible[i])
		b, _ := m.Key(eligible[j])
		return a > b
	})
	if len(eligible) > TopN {
		eligible = eligible[:TopN]
	}
	return eligible
}
