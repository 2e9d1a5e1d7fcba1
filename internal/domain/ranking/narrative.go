package ranking

import (
	"fmt"
	"strings"
)

// MinEntities is the fewest resolvable technologies a narrative compares.
const MinEntities = 2

// InsufficientData is shown in place of a narrative that could not be built.
const InsufficientData = "Not enough data to compare these technologies."

// Narrative is the four-paragraph comparative summary.  Paragraphs name
// technologies by rank only; magnitudes are left to the charts.
type Narrative struct {
	Patent     string `json:"patent"`
	Adoption   string `json:"adoption"`
	Investment string `json:"investment"`
	Market     string `json:"market"`
}

// Paragraphs returns the paragraphs in reading order.
func (n Narrative) Paragraphs() []string {
	return []string{n.Patent, n.Adoption, n.Investment, n.Market}
}

// String joins the paragraphs with blank lines.
func (n Narrative) String() string {
	return strings.Join(n.Paragraphs(), "\n\n")
}

// phrasing holds the rank-keyed sentence templates of one paragraph.
type phrasing struct {
	ranked [TopN]string
	none   string
}

var phrasings = map[Metric]phrasing{
	MetricPatent: {
		ranked: [TopN]string{
			"%s leads in recent patent activity.",
			"%s follows as a strong second in new filings.",
			"%s shows moderate filing activity.",
		},
		none: "No patent activity was reported for these technologies.",
	},
	MetricAdoption: {
		ranked: [TopN]string{
			"%s dominates current adoption.",
			"%s follows with strong second-place uptake.",
			"%s holds a niche adoption position.",
		},
		none: "No adoption trend was reported for these technologies.",
	},
	MetricInvestment: {
		ranked: [TopN]string{
			"%s attracts the most investment.",
			"%s follows as a strong second for investors.",
			"%s draws moderate investment.",
		},
		none: "No investment data was reported for these technologies.",
	},
	MetricMarket: {
		ranked: [TopN]string{
			"%s commands the largest reported market.",
			"%s follows with the second-largest market.",
			"%s addresses a niche market.",
		},
		none: "No market sizing was reported for these technologies.",
	},
}

// Narrate builds the narrative for signals.  It returns false when fewer than
// MinEntities signals are resolvable; that is an expected outcome, not an
// error.  Each paragraph ranks only the technologies with data for it.
func Narrate(signals []Signal) (Narrative, bool) {
	resolvable := make([]Signal, 0, len(signals))
	for _, s := range signals {
		if s.Resolvable() {
			resolvable = append(resolvable, s)
		}
	}
	if len(resolvable) < MinEntities {
		return Narrative{}, false
	}
	return Narrative{
		Patent:     paragraph(resolvable, MetricPatent),
		Adoption:   paragraph(resolvable, MetricAdoption),
		Investment: paragraph(resolvable, MetricInvestment),
		Market:     paragraph(resolvable, MetricMarket),
	}, true
}

func paragraph(signals []Signal, m Metric) string {
	p := phrasings[m]
	ranked := Rank(signals, m)
	if len(ranked) == 0 {
		return p.none
	}
	sentences := make([]string, len(ranked))
	for i, s := range ranked {
		sentences[i] = fmt.Sprintf(p.ranked[i], s.Entity)
	}
	return strings.Join(sentences, " ")
}
