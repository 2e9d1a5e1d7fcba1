// Package knowledge fuses per-technology knowledge graphs into one graph
// whose node ids are canonical, so that "OpenAI" reported by two technologies
// becomes one shared node.
package knowledge

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/turtacn/TechIntel/internal/domain/payload"
)

// NodeTypeTechnology is the type backends give to the technology a graph is
// about.
const NodeTypeTechnology = "technology"

// Node is a knowledge-graph entity.
type Node struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	URL    string `json:"url,omitempty"`
	Hidden bool   `json:"hidden,omitempty"`

	// Entities lists, in snapshot order, the technologies whose graphs
	// contain this node.  Set by Fuse.
	Entities []string `json:"entities,omitempty"`
}

// Edge is a directed relation between two node ids.
type Edge struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Relation string `json:"relation"`
	Hidden   bool   `json:"hidden,omitempty"`
}

// Graph is a node and edge list.  It carries no layout state.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// EntityGraph is one technology's graph as reported by the backend.
type EntityGraph struct {
	Entity string
	Graph  Graph
}

var whitespace = regexp.MustCompile(`\s+`)

// CanonicalID normalizes a node id: Unicode NFC, trimmed, lowercased, inner
// whitespace runs replaced by one underscore.
func CanonicalID(id string) string {
	id = norm.NFC.String(id)
	id = strings.ToLower(strings.TrimSpace(id))
	return whitespace.ReplaceAllString(id, "_")
}

// FromPayload reads the knowledge_graph section of p.  ok is false when the
// payload has no graph.
func FromPayload(p payload.Payload) (Graph, bool) {
	raw, ok := p.KnowledgeGraph()
	if !ok {
		return Graph{}, false
	}
	var g Graph
	if nodes, isArr := raw["nodes"].([]interface{}); isArr {
		for _, el := range nodes {
			obj, isObj := el.(map[string]interface{})
			if !isObj {
				continue
			}
			g.Nodes = append(g.Nodes, Node{
				ID:     text(obj["id"]),
				Type:   text(obj["type"]),
				URL:    text(obj["url"]),
				Hidden: obj["hidden"] == true,
			})
		}
	}
	if edges, isArr := raw["edges"].([]interface{}); isArr {
		for _, el := range edges {
			obj, isObj := el.(map[string]interface{})
			if !isObj {
				continue
			}
			g.Edges = append(g.Edges, Edge{
				Source:   text(obj["source"]),
				Target:   text(obj["target"]),
				Relation: text(obj["relation"]),
				Hidden:   obj["hidden"] == true,
			})
		}
	}
	return g, true
}

// Collect gathers the graphs of every entity in snap that has one.
func Collect(snap payload.Snapshot) []EntityGraph {
	var out []EntityGraph
	for _, e := range snap.Entities() {
		if g, ok := FromPayload(e.Payload); ok {
			out = append(out, EntityGraph{Entity: e.Name, Graph: g})
		}
	}
	return out
}

func text(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
