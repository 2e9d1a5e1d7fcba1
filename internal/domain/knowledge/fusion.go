package knowledge

import (
	"sort"
	"strings"
)

type edgeKey struct {
	source, target, relation string
}

// Fuse merges inputs into one graph.
//
// Nodes are keyed by CanonicalID; the first sighting fixes Type and URL and
// later duplicates only add their entity to Entities.  Hidden nodes and edges
// are left out, as are nodes whose id canonicalizes to "".  Edges are
// canonicalized the same way, dropped when either endpoint is not a fused
// node, and emitted once per (source, target, relation).
func Fuse(inputs []EntityGraph) Graph {
	index := make(map[string]int)
	var nodes []Node

	for _, in := range inputs {
		for _, n := range in.Graph.Nodes {
			if n.Hidden {
				continue
			}
			id := CanonicalID(n.ID)
			if id == "" {
				continue
			}
			if i, seen := index[id]; seen {
				nodes[i].Entities = appendUnique(nodes[i].Entities, in.Entity)
				continue
			}
			index[id] = len(nodes)
			nodes = append(nodes, Node{
				ID:       id,
				Type:     n.Type,
				URL:      n.URL,
				Entities: appendUnique(nil, in.Entity),
			})
		}
	}

	seen := make(map[edgeKey]struct{})
	var edges []Edge
	for _, in := range inputs {
		for _, e := range in.Graph.Edges {
			if e.Hidden {
				continue
			}
			k := edgeKey{source: CanonicalID(e.Source), target: CanonicalID(e.Target), relation: e.Relation}
			if _, ok := index[k.source]; !ok {
				continue
			}
			if _, ok := index[k.target]; !ok {
				continue
			}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			edges = append(edges, Edge{Source: k.source, Target: k.target, Relation: k.relation})
		}
	}

	return Graph{Nodes: nodes, Edges: edges}
}

// NodeFilter narrows a graph.  Zero values select everything.
type NodeFilter struct {
	// Types keeps only nodes whose type matches one of these,
	// case-insensitively.
	Types []string

	// Entities keeps only nodes contributed by one of these technologies.
	Entities []string
}

// Filter applies f to g and drops edges left without both endpoints.
func Filter(g Graph, f NodeFilter) Graph {
	types := make(map[string]struct{}, len(f.Types))
	for _, t := range f.Types {
		types[strings.ToLower(t)] = struct{}{}
	}
	entities := make(map[string]struct{}, len(f.Entities))
	for _, e := range f.Entities {
		entities[e] = struct{}{}
	}

	kept := make(map[string]struct{})
	out := Graph{}
	for _, n := range g.Nodes {
		if len(types) > 0 {
			if _, ok := types[strings.ToLower(n.Type)]; !ok {
				continue
			}
		}
		if len(entities) > 0 && !containsAny(n.Entities, entities) {
			continue
		}
		kept[n.ID] = struct{}{}
		out.Nodes = append(out.Nodes, n)
	}
	for _, e := range g.Edges {
		_, okS := kept[e.Source]
		_, okT := kept[e.Target]
		if okS && okT {
			out.Edges = append(out.Edges, e)
		}
	}
	return out
}

// Types returns the distinct node types of g, sorted.
func Types(g Graph) []string {
	set := make(map[string]struct{})
	for _, n := range g.Nodes {
		set[n.Type] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func appendUnique(list []string, s string) []string {
	for _, x := range list {
		if x == s {
			return list
		}
	}
	return append(list, s)
}

func containsAny(list []string, set map[string]struct{}) bool {
	for _, x := range list {
		if _, ok := set[x]; ok {
			return true
		}
	}
	return false
}
