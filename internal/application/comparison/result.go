package comparison

import (
	"github.com/turtacn/TechIntel/internal/domain/investment"
	"github.com/turtacn/TechIntel/internal/domain/knowledge"
	"github.com/turtacn/TechIntel/internal/domain/market"
	"github.com/turtacn/TechIntel/internal/domain/payload"
	"github.com/turtacn/TechIntel/internal/domain/ranking"
	"github.com/turtacn/TechIntel/internal/domain/series"
)

// YearSpan is the inclusive year range a series covers.
type YearSpan struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Result is the output of one comparison.  Exactly one of the metric
// sections is set, matching Metric.
type Result struct {
	Metric       Metric   `json:"metric"`
	Technologies []string `json:"technologies"`

	// Excluded lists technologies that contributed no data to this metric.
	Excluded []string `json:"excluded,omitempty"`

	// Skipped lists technologies whose payload could not be loaded.  They
	// take no part in the comparison.
	Skipped []payload.Skip `json:"skipped,omitempty"`

	// Stale lists technologies whose payload is older than the stale age.
	Stale []string `json:"stale,omitempty"`

	Series     *series.Series        `json:"series,omitempty"`
	Span       *YearSpan             `json:"span,omitempty"`
	Investment []investment.Row      `json:"investment,omitempty"`
	Market     []market.Distribution `json:"market,omitempty"`
	HasPoints  bool                  `json:"has_points,omitempty"`
	Graph      *knowledge.Graph      `json:"graph,omitempty"`
	NodeTypes  []string              `json:"node_types,omitempty"`
	Narrative  *ranking.Narrative    `json:"narrative,omitempty"`
	Signals    []ranking.Signal      `json:"signals,omitempty"`
	Message    string                `json:"message,omitempty"`
}

// Sufficient reports whether the result carries a comparison rather than
// the insufficient-data message.
func (r *Result) Sufficient() bool {
	return r.Message == ""
}
