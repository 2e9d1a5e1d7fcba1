package neo4j

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/TechIntel/internal/domain/knowledge"
	"github.com/turtacn/TechIntel/internal/domain/payload"
	"github.com/turtacn/TechIntel/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TechIntel/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/TechIntel/pkg/errors"
)

const (
	sourceName      = "neo4j"
	DefaultMaxDepth = 2
	maxDepthLimit   = 5
	maxConcurrency  = 4
)

var (
	ErrInvalidDepth  = errors.New(errors.ErrCodeValidation, "graph depth must be between 1 and 5")
	ErrGraphNotFound = errors.New(errors.ErrCodeObjectNotFound, "technology has no graph")
)

// Reader runs read transactions.  *Driver implements it.
type Reader interface {
	ExecuteRead(ctx context.Context, work TransactionWork) (any, error)
}

// neighbourhoodQuery returns one row per relationship within %d hops of the
// technology node, or a single row with null columns when it has none.
// Variable-length bounds cannot be query parameters.
const neighbourhoodQuery = `
MATCH (t:Technology) WHERE toLower(t.name) = toLower($tech)
OPTIONAL MATCH p = (t)-[*1..%d]-()
UNWIND CASE WHEN p IS NULL THEN [null] ELSE relationships(p) END AS r
WITH t, r
RETURN DISTINCT t AS root,
       CASE WHEN r IS NULL THEN null ELSE startNode(r) END AS source,
       CASE WHEN r IS NULL THEN null ELSE type(r) END AS relation,
       CASE WHEN r IS NULL THEN null ELSE endNode(r) END AS target,
       CASE WHEN r IS NULL THEN false ELSE coalesce(r.hidden, false) END AS hidden
`

// GraphSource builds knowledge graphs from the neighbourhood of a
// Technology node.
type GraphSource struct {
	reader  Reader
	depth   int
	logger  logging.Logger
	metrics *prometheus.AppMetrics
}

// NewGraphSource creates a source reading depth hops around each
// technology.  A zero depth selects DefaultMaxDepth.
func NewGraphSource(reader Reader, depth int, log logging.Logger, m *prometheus.AppMetrics) (*GraphSource, error) {
	if depth == 0 {
		depth = DefaultMaxDepth
	}
	if depth < 1 || depth > maxDepthLimit {
		return nil, ErrInvalidDepth
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	if m == nil {
		m = prometheus.NewNopAppMetrics()
	}
	return &GraphSource{reader: reader, depth: depth, logger: log.Named("neo4j.graph"), metrics: m}, nil
}

type graphRow struct {
	root     neo4j.Node
	source   *neo4j.Node
	target   *neo4j.Node
	relation string
	hidden   bool
}

func mapRow(rec *neo4j.Record) (graphRow, error) {
	var row graphRow
	rootVal, _ := rec.Get("root")
	root, ok := rootVal.(neo4j.Node)
	if !ok {
		return row, fmt.Errorf("root is %T, not a node", rootVal)
	}
	row.root = root
	if v, _ := rec.Get("source"); v != nil {
		if n, ok := v.(neo4j.Node); ok {
			row.source = &n
		}
	}
	if v, _ := rec.Get("target"); v != nil {
		if n, ok := v.(neo4j.Node); ok {
			row.target = &n
		}
	}
	if v, _ := rec.Get("relation"); v != nil {
		row.relation, _ = v.(string)
	}
	if v, _ := rec.Get("hidden"); v != nil {
		row.hidden, _ = v.(bool)
	}
	return row, nil
}

// LoadGraph returns the graph around tech.  Node ids come from the id
// property, falling back to name, then to the element id.
func (s *GraphSource) LoadGraph(ctx context.Context, tech string) (knowledge.Graph, error) {
	query := fmt.Sprintf(neighbourhoodQuery, s.depth)
	res, err := s.reader.ExecuteRead(ctx, func(tx Transaction) (any, error) {
		result, err := tx.Run(ctx, query, map[string]any{"tech": tech})
		if err != nil {
			return nil, err
		}
		return CollectRecords(ctx, result, mapRow)
	})
	if err != nil {
		prometheus.RecordSourceLoad(s.metrics, sourceName, err)
		return knowledge.Graph{}, errors.Wrap(err, errors.ErrCodeGraphQueryFailed, "graph query failed").WithDetail(tech)
	}
	rows, _ := res.([]graphRow)
	if len(rows) == 0 {
		prometheus.RecordSourceLoad(s.metrics, sourceName, ErrGraphNotFound)
		return knowledge.Graph{}, ErrGraphNotFound.WithDetail(tech)
	}

	g := buildGraph(rows)
	prometheus.RecordSourceLoad(s.metrics, sourceName, nil)
	s.logger.Debug("Graph loaded",
		logging.String("technology", tech),
		logging.Int("nodes", len(g.Nodes)),
		logging.Int("edges", len(g.Edges)))
	return g, nil
}

func buildGraph(rows []graphRow) knowledge.Graph {
	var g knowledge.Graph
	seen := make(map[string]struct{})
	addNode := func(n neo4j.Node) string {
		node := toNode(n)
		if _, ok := seen[node.ID]; !ok {
			seen[node.ID] = struct{}{}
			g.Nodes = append(g.Nodes, node)
		}
		return node.ID
	}

	addNode(rows[0].root)
	edges := make(map[knowledge.Edge]struct{})
	for _, row := range rows {
		if row.source == nil || row.target == nil {
			continue
		}
		e := knowledge.Edge{
			Source:   addNode(*row.source),
			Target:   addNode(*row.target),
			Relation: row.relation,
			Hidden:   row.hidden,
		}
		if _, dup := edges[e]; dup {
			continue
		}
		edges[e] = struct{}{}
		g.Edges = append(g.Edges, e)
	}
	return g
}

func toNode(n neo4j.Node) knowledge.Node {
	node := knowledge.Node{ID: n.ElementId}
	if id, ok := n.Props["id"].(string); ok && id != "" {
		node.ID = id
	} else if name, ok := n.Props["name"].(string); ok && name != "" {
		node.ID = name
	}
	if t, ok := n.Props["type"].(string); ok && t != "" {
		node.Type = t
	} else if len(n.Labels) > 0 {
		node.Type = strings.ToLower(n.Labels[0])
	}
	node.URL, _ = n.Props["url"].(string)
	node.Hidden, _ = n.Props["hidden"].(bool)
	return node
}

// LoadSnapshot loads each technology's graph and wraps it in a payload
// holding only the knowledge_graph section, in the order given.  A
// technology without a graph, or whose query failed, is recorded as
// skipped; LoadSnapshot fails only when none loaded or ctx ends.
func (s *GraphSource) LoadSnapshot(ctx context.Context, techs ...string) (payload.Snapshot, error) {
	loaded := make([]payload.Payload, len(techs))
	errs := make([]error, len(techs))
	var g errgroup.Group
	g.SetLimit(maxConcurrency)
	for i, tech := range techs {
		i, tech := i, tech
		g.Go(func() error {
			kg, err := s.LoadGraph(ctx, tech)
			if err != nil {
				s.logger.Warn("Graph skipped", logging.String("technology", tech), logging.Err(err))
				errs[i] = err
				return nil
			}
			loaded[i] = GraphPayload(kg)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return payload.Snapshot{}, err
	}
	return payload.Collect(techs, loaded, errs)
}

// LoadGraphPayload loads the graph of tech as a knowledge_graph payload.
func (s *GraphSource) LoadGraphPayload(ctx context.Context, tech string) (payload.Payload, error) {
	g, err := s.LoadGraph(ctx, tech)
	if err != nil {
		return payload.Payload{}, err
	}
	return GraphPayload(g), nil
}

// GraphPayload renders g as a payload with a knowledge_graph section shaped
// the way the backend reports it.
func GraphPayload(g knowledge.Graph) payload.Payload {
	nodes := make([]interface{}, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		obj := map[string]interface{}{"id": n.ID, "type": n.Type}
		if n.URL != "" {
			obj["url"] = n.URL
		}
		if n.Hidden {
			obj["hidden"] = true
		}
		nodes = append(nodes, obj)
	}
	edges := make([]interface{}, 0, len(g.Edges))
	for _, e := range g.Edges {
		obj := map[string]interface{}{"source": e.Source, "target": e.Target, "relation": e.Relation}
		if e.Hidden {
			obj["hidden"] = true
		}
		edges = append(edges, obj)
	}
	return payload.New(map[string]interface{}{
		"knowledge_graph": map[string]interface{}{"nodes": nodes, "edges": edges},
	})
}
