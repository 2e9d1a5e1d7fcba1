package neo4j

import (
	"context"
	"errors"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/TechIntel/internal/domain/knowledge"
	pkgerrors "github.com/turtacn/TechIntel/pkg/errors"
)

// txReader runs work directly against a per-technology transaction.
type txReader struct {
	byTech map[string]*fakeTx
	err    error
}

func (r *txReader) ExecuteRead(_ context.Context, work TransactionWork) (any, error) {
	if r.err != nil {
		return nil, r.err
	}
	return work(&routingTx{r: r})
}

type routingTx struct{ r *txReader }

func (t *routingTx) Run(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	tx, ok := t.r.byTech[params["tech"].(string)]
	if !ok {
		return &fakeResult{}, nil
	}
	return tx.Run(ctx, cypher, params)
}

func node(id, label string, props map[string]any) neo4j.Node {
	p := map[string]any{}
	for k, v := range props {
		p[k] = v
	}
	return neo4j.Node{ElementId: "el-" + id, Labels: []string{label}, Props: p}
}

func row(root neo4j.Node, source, target *neo4j.Node, relation string, hidden bool) *neo4j.Record {
	keys := []string{"root", "source", "relation", "target", "hidden"}
	var src, tgt, rel any
	if source != nil {
		src = *source
		tgt = *target
		rel = relation
	}
	return &neo4j.Record{Keys: keys, Values: []any{root, src, rel, tgt, hidden}}
}

func quantumRows() []*neo4j.Record {
	root := node("q", "Technology", map[string]any{"name": "Quantum"})
	ibm := node("ibm", "Company", map[string]any{"id": "IBM", "url": "https://ibm.com"})
	paper := node("p1", "Paper", map[string]any{"id": "P1", "type": "publication", "hidden": true})
	return []*neo4j.Record{
		row(root, &root, &ibm, "DEVELOPED_BY", false),
		row(root, &root, &ibm, "DEVELOPED_BY", false),
		row(root, &ibm, &paper, "AUTHORED", true),
	}
}

func TestNewGraphSource_Depth(t *testing.T) {
	s, err := NewGraphSource(&txReader{}, 0, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxDepth, s.depth)

	_, err = NewGraphSource(&txReader{}, 6, nil, nil)
	assert.Equal(t, ErrInvalidDepth, err)
	_, err = NewGraphSource(&txReader{}, -1, nil, nil)
	assert.Equal(t, ErrInvalidDepth, err)
}

func TestGraphSource_LoadGraph(t *testing.T) {
	tx := &fakeTx{records: quantumRows()}
	s, err := NewGraphSource(&txReader{byTech: map[string]*fakeTx{"quantum": tx}}, 3, nil, nil)
	require.NoError(t, err)

	g, err := s.LoadGraph(context.Background(), "quantum")
	require.NoError(t, err)

	assert.Contains(t, tx.cypher, "[*1..3]")
	assert.Equal(t, "quantum", tx.params["tech"])

	require.Len(t, g.Nodes, 3)
	assert.Equal(t, knowledge.Node{ID: "Quantum", Type: "technology"}, g.Nodes[0])
	assert.Equal(t, knowledge.Node{ID: "IBM", Type: "company", URL: "https://ibm.com"}, g.Nodes[1])
	assert.Equal(t, knowledge.Node{ID: "P1", Type: "publication", Hidden: true}, g.Nodes[2])

	assert.Equal(t, []knowledge.Edge{
		{Source: "Quantum", Target: "IBM", Relation: "DEVELOPED_BY"},
		{Source: "IBM", Target: "P1", Relation: "AUTHORED", Hidden: true},
	}, g.Edges)
}

func TestGraphSource_LoadGraph_IsolatedNode(t *testing.T) {
	root := node("solo", "Technology", map[string]any{"name": "Solo"})
	tx := &fakeTx{records: []*neo4j.Record{row(root, nil, nil, "", false)}}
	s, _ := NewGraphSource(&txReader{byTech: map[string]*fakeTx{"solo": tx}}, 0, nil, nil)

	g, err := s.LoadGraph(context.Background(), "solo")
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 1)
	assert.Empty(t, g.Edges)
}

func TestGraphSource_LoadGraph_NotFound(t *testing.T) {
	s, _ := NewGraphSource(&txReader{}, 0, nil, nil)

	_, err := s.LoadGraph(context.Background(), "unknown")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeObjectNotFound))
}

func TestGraphSource_LoadGraph_QueryFailure(t *testing.T) {
	s, _ := NewGraphSource(&txReader{err: errors.New("session expired")}, 0, nil, nil)

	_, err := s.LoadGraph(context.Background(), "quantum")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeGraphQueryFailed))
}

func TestGraphSource_LoadSnapshot(t *testing.T) {
	solo := node("s", "Technology", map[string]any{"name": "Solo"})
	reader := &txReader{byTech: map[string]*fakeTx{
		"quantum": {records: quantumRows()},
		"solo":    {records: []*neo4j.Record{row(solo, nil, nil, "", false)}},
	}}
	s, _ := NewGraphSource(reader, 0, nil, nil)

	snap, err := s.LoadSnapshot(context.Background(), "solo", "quantum")
	require.NoError(t, err)
	assert.Equal(t, []string{"solo", "quantum"}, snap.Names())

	p, _ := snap.Get("quantum")
	g, ok := knowledge.FromPayload(p)
	require.True(t, ok)
	assert.Len(t, g.Nodes, 3)
	assert.Len(t, g.Edges, 2)
	assert.True(t, g.Edges[1].Hidden)
}

func TestGraphSource_LoadSnapshotSkipsUnknown(t *testing.T) {
	reader := &txReader{byTech: map[string]*fakeTx{"quantum": {records: quantumRows()}}}
	s, _ := NewGraphSource(reader, 0, nil, nil)

	snap, err := s.LoadSnapshot(context.Background(), "ghost", "quantum")
	require.NoError(t, err)
	assert.Equal(t, []string{"quantum"}, snap.Names())
	require.Len(t, snap.Skipped(), 1)
	assert.Equal(t, "ghost", snap.Skipped()[0].Name)

	_, err = s.LoadSnapshot(context.Background(), "ghost")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeObjectNotFound))
}

func TestGraphSource_LoadGraphPayload(t *testing.T) {
	reader := &txReader{byTech: map[string]*fakeTx{"quantum": {records: quantumRows()}}}
	s, _ := NewGraphSource(reader, 0, nil, nil)

	p, err := s.LoadGraphPayload(context.Background(), "quantum")
	require.NoError(t, err)
	g, ok := knowledge.FromPayload(p)
	require.True(t, ok)
	assert.NotEmpty(t, g.Nodes)

	_, err = s.LoadGraphPayload(context.Background(), "ghost")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeObjectNotFound))
}

func TestGraphPayload_RoundTrip(t *testing.T) {
	in := knowledge.Graph{
		Nodes: []knowledge.Node{{ID: "a", Type: "technology"}, {ID: "b", Type: "company", URL: "u", Hidden: true}},
		Edges: []knowledge.Edge{{Source: "a", Target: "b", Relation: "uses"}},
	}
	out, ok := knowledge.FromPayload(GraphPayload(in))
	require.True(t, ok)
	assert.Equal(t, in, out)
}
