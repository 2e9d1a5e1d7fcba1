package comparison

import (
	"strings"

	pkgerrors "github.com/turtacn/TechIntel/pkg/errors"
)

// Metric selects what a comparison computes.
type Metric string

const (
	MetricTrend      Metric = "trend"
	MetricPatents    Metric = "patents"
	MetricInvestment Metric = "investment"
	MetricMarket     Metric = "market"
	MetricKG         Metric = "kg"
	MetricNarrative  Metric = "narrative"
)

// Metrics lists every metric in display order.
var Metrics = []Metric{MetricTrend, MetricPatents, MetricInvestment, MetricMarket, MetricKG, MetricNarrative}

// ParseMetric resolves a metric name, case-insensitively.
func ParseMetric(s string) (Metric, error) {
	m := Metric(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Metrics {
		if m == known {
			return m, nil
		}
	}
	return "", pkgerrors.Newf(pkgerrors.ErrCodeUnknownMetric, "unknown metric %q", s)
}

// minEntities is the number of technologies a metric needs.  The graph is
// meaningful for one technology; the narrative reports too few itself.
func (m Metric) minEntities() int {
	switch m {
	case MetricKG:
		return 1
	case MetricNarrative:
		return 0
	}
	return 2
}
