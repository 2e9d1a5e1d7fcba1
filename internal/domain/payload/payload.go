package payload

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/ohler55/ojg/oj"
)

// Dashboard is the section holding chartable analytics.
var Dashboard = MustPath("dashboard")

// Known locations of each analytics section, in fallback order.
var (
	TrendCurvePaths     = []Path{MustPath("dashboard.trend_curve")}
	PatentTimelinePaths = []Path{MustPath("dashboard.patent_timeline")}
	InvestmentPaths     = []Path{
		MustPath("dashboard.country_investment.values"),
		MustPath("dashboard.investment_index.values"),
		MustPath("dashboard.values"),
	}
	MarketReportPaths = []Path{
		MustPath("dashboard.market_reports"),
		MustPath("dashboard.entities.market_reports"),
	}
	KnowledgeGraphPaths = []Path{MustPath("knowledge_graph")}
	StatusPaths         = []Path{MustPath("status")}
	LastUpdatedPaths    = []Path{MustPath("last_updated"), MustPath("dashboard.last_updated")}
)

// StatusProcessing is the backend status of a technology whose analytics are
// still being produced.
const StatusProcessing = "processing"

// Payload is one technology's decoded analytics bundle.  It is read-only: no
// accessor hands out anything a caller could use to change what another
// caller sees, apart from the raw nested values themselves, which must be
// treated as immutable.
type Payload struct {
	root interface{}
}

// New wraps an already-decoded JSON value.
func New(root interface{}) Payload {
	return Payload{root: root}
}

// Decode parses raw JSON into a Payload.
func Decode(data []byte) (Payload, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Payload{}, nil
	}
	v, err := oj.Parse(data)
	if err != nil {
		return Payload{}, err
	}
	return Payload{root: v}, nil
}

// Root returns the decoded value.
func (p Payload) Root() interface{} { return p.root }

// IsZero reports whether the payload carries no data at all.
func (p Payload) IsZero() bool { return p.root == nil }

// Resolve looks up the first present value among paths.
func (p Payload) Resolve(paths ...Path) (interface{}, bool) {
	return Resolve(p.root, paths...)
}

// TrendCurve returns the adoption curve array.
func (p Payload) TrendCurve() []interface{} {
	arr, _ := ResolveArray(p.root, TrendCurvePaths...)
	return arr
}

// Curve returns the array at field, a dotted path relative to the dashboard
// section.
func (p Payload) Curve(field string) []interface{} {
	rel, err := ParsePath(field)
	if err != nil {
		return nil
	}
	arr, _ := ResolveArray(p.root, rel.Under(Dashboard))
	return arr
}

// PatentTimeline returns the patent filing timeline.
func (p Payload) PatentTimeline() []interface{} {
	arr, _ := ResolveArray(p.root, PatentTimelinePaths...)
	return arr
}

// InvestmentValues returns the category -> value mapping from the first
// populated investment section.
func (p Payload) InvestmentValues() map[string]interface{} {
	obj, _ := ResolveObject(p.root, InvestmentPaths...)
	return obj
}

// MarketReports returns the market report list.
func (p Payload) MarketReports() []interface{} {
	arr, _ := ResolveArray(p.root, MarketReportPaths...)
	return arr
}

// KnowledgeGraph returns the raw knowledge-graph object.
func (p Payload) KnowledgeGraph() (map[string]interface{}, bool) {
	return ResolveObject(p.root, KnowledgeGraphPaths...)
}

// WithKnowledgeGraph returns a copy of p whose knowledge_graph section is kg.
// Other sections are shared with p.
func (p Payload) WithKnowledgeGraph(kg map[string]interface{}) Payload {
	root, _ := p.root.(map[string]interface{})
	out := make(map[string]interface{}, len(root)+1)
	for k, v := range root {
		out[k] = v
	}
	out["knowledge_graph"] = kg
	return Payload{root: out}
}

// Status returns the backend status string, empty when absent.
func (p Payload) Status() string {
	s, _ := ResolveString(p.root, StatusPaths...)
	return s
}

// Processing reports whether the backend is still producing analytics.
func (p Payload) Processing() bool {
	return p.Status() == StatusProcessing
}

// LastUpdated returns the payload's RFC 3339 last_updated timestamp.
func (p Payload) LastUpdated() (time.Time, bool) {
	s, ok := ResolveString(p.root, LastUpdatedPaths...)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// MarshalJSON encodes the underlying value.
func (p Payload) MarshalJSON() ([]byte, error) {
	if p.root == nil {
		return []byte("null"), nil
	}
	return []byte(oj.JSON(p.root, &oj.Options{Sort: true})), nil
}

// UnmarshalJSON decodes with ojg so payloads bound from HTTP bodies and
// payloads read from files share one numeric representation.
func (p *Payload) UnmarshalJSON(data []byte) error {
	decoded, err := Decode(data)
	if err != nil {
		return err
	}
	*p = decoded
	return nil
}

var _ json.Marshaler = Payload{}
