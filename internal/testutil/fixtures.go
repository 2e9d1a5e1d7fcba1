package testutil

import (
	"fmt"

	"github.com/turtacn/TechIntel/internal/domain/payload"
)

// Canned backend payloads.  Quantum and robotics carry every dashboard
// section and a knowledge graph that shares the OpenAI node; sparse carries
// only a trend curve.
const (
	QuantumJSON = `{
		"status": "ready",
		"last_updated": "2024-06-01T00:00:00Z",
		"dashboard": {
			"trend_curve": [10, 20, 35],
			"patent_timeline": [{"year": 2020, "count": 4}, {"year": 2021, "count": 6}, {"year": 2022, "count": 9}],
			"country_investment": {"values": {"USA": 12, "China": 8, "Germany": "1.5"}},
			"market_reports": [{"title": "Quantum outlook", "market_size": "$3.5 Billion", "source": "acme"}]
		},
		"knowledge_graph": {
			"nodes": [
				{"id": "Quantum", "type": "technology"},
				{"id": "OpenAI", "type": "organization", "url": "https://openai.com"},
				{"id": "Qubit", "type": "concept"}
			],
			"edges": [
				{"source": "Quantum", "target": "OpenAI", "relation": "researched_by"},
				{"source": "Quantum", "target": "Qubit", "relation": "uses"}
			]
		}
	}`

	RoboticsJSON = `{
		"status": "ready",
		"last_updated": "2024-06-01T00:00:00Z",
		"dashboard": {
			"trend_curve": [5, 15, 25, 40],
			"patent_timeline": [{"year": 2021, "count": 2}, {"year": 2022, "count": 3}, {"year": 2023, "count": 5}],
			"country_investment": {"values": {"United States": 20, "Japan": 6}},
			"market_reports": [{"title": "Robotics market", "market_size": "1.2 Trillion", "source": "beta"}]
		},
		"knowledge_graph": {
			"nodes": [
				{"id": "Robotics", "type": "technology"},
				{"id": " openai ", "type": "organization"},
				{"id": "Actuator", "type": "concept", "hidden": true}
			],
			"edges": [
				{"source": "Robotics", "target": "OpenAI", "relation": "researched_by"},
				{"source": "Robotics", "target": "Actuator", "relation": "uses"}
			]
		}
	}`

	SparseJSON = `{"status": "ready", "dashboard": {"trend_curve": [1, 2]}}`

	ProcessingJSON = `{"status": "processing"}`
)

// MustPayload decodes raw and panics on malformed JSON.
func MustPayload(raw string) payload.Payload {
	p, err := payload.Decode([]byte(raw))
	if err != nil {
		panic(fmt.Sprintf("testutil: bad payload fixture: %v", err))
	}
	return p
}

// Snapshot builds a snapshot from alternating name and raw JSON arguments.
func Snapshot(pairs ...string) payload.Snapshot {
	if len(pairs)%2 != 0 {
		panic("testutil: Snapshot needs name/json pairs")
	}
	var entities []payload.Entity
	for i := 0; i < len(pairs); i += 2 {
		entities = append(entities, payload.Entity{Name: pairs[i], Payload: MustPayload(pairs[i+1])})
	}
	return payload.NewSnapshot(entities...)
}
