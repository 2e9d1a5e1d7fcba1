package comparison

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/TechIntel/internal/config"
	"github.com/turtacn/TechIntel/internal/domain/payload"
	"github.com/turtacn/TechIntel/internal/domain/ranking"
	"github.com/turtacn/TechIntel/internal/infrastructure/database/redis"
	"github.com/turtacn/TechIntel/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TechIntel/internal/testutil"
	pkgerrors "github.com/turtacn/TechIntel/pkg/errors"
)

// memoryCache stores results as JSON, the way the redis cache does.
type memoryCache struct {
	mu    sync.Mutex
	data  map[string][]byte
	loads int
	err   error
}

func newMemoryCache() *memoryCache { return &memoryCache{data: make(map[string][]byte)} }

func (c *memoryCache) GetOrSet(ctx context.Context, key string, dest interface{}, _ time.Duration, loader redis.Loader) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	if raw, ok := c.data[key]; ok {
		return true, json.Unmarshal(raw, dest)
	}
	c.loads++
	v, err := loader(ctx)
	if err != nil {
		return false, err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	c.data[key] = raw
	return false, json.Unmarshal(raw, dest)
}

type ServiceTestSuite struct {
	suite.Suite
	svc  *Service
	snap payload.Snapshot
	now  time.Time
}

func (s *ServiceTestSuite) SetupTest() {
	s.now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.svc = NewService(Options{}, logging.NewNopLogger())
	s.svc.now = func() time.Time { return s.now }
	s.snap = testutil.Snapshot(
		"quantum", testutil.QuantumJSON,
		"robotics", testutil.RoboticsJSON,
	)
}

func (s *ServiceTestSuite) compare(m Metric, f Filter) *Result {
	res, err := s.svc.Compare(context.Background(), Request{Metric: m, Snapshot: s.snap, Filter: f})
	s.Require().NoError(err)
	return res
}

func (s *ServiceTestSuite) TestTrend() {
	res := s.compare(MetricTrend, Filter{})

	s.Equal([]string{"quantum", "robotics"}, res.Technologies)
	s.Require().NotNil(res.Series)
	s.Equal([]string{"quantum", "robotics"}, res.Series.Entities)
	s.Len(res.Series.Rows, 4)
	s.Equal(&YearSpan{From: 2020, To: 2023}, res.Span)

	last := res.Series.Rows[3]
	_, ok := last.Value("quantum")
	s.False(ok, "quantum reports three years only")
	v, ok := last.Value("robotics")
	s.True(ok)
	s.Equal(40.0, v)
	s.Empty(res.Excluded)
	s.True(res.Sufficient())
}

func (s *ServiceTestSuite) TestTrend_YearFilterKeepsFullSpan() {
	res := s.compare(MetricTrend, Filter{FromYear: 2021, ToYear: 2022})

	s.Len(res.Series.Rows, 2)
	s.Equal(2021, res.Series.Rows[0].Year)
	s.Equal(&YearSpan{From: 2020, To: 2023}, res.Span)
}

func (s *ServiceTestSuite) TestPatents_Cumulative() {
	res := s.compare(MetricPatents, Filter{FromYear: 2022})

	s.Require().NotNil(res.Series)
	s.Equal(2022, res.Series.Rows[0].Year)
	v, ok := res.Series.Rows[0].Value("quantum")
	s.True(ok)
	s.Equal(19.0, v)
	v, ok = res.Series.Rows[0].Value("robotics")
	s.True(ok)
	s.Equal(5.0, v)
}

func (s *ServiceTestSuite) TestInvestment() {
	res := s.compare(MetricInvestment, Filter{})

	s.NotEmpty(res.Investment)
	s.Empty(res.Excluded)
}

func (s *ServiceTestSuite) TestMarket() {
	res := s.compare(MetricMarket, Filter{})

	s.True(res.HasPoints)
	s.Require().Len(res.Market, 2)
	s.Equal("quantum", res.Market[0].Entity)
	s.InDelta(3.5, res.Market[0].Points[0].ValueBillionUSD, 1e-9)
	s.InDelta(1200.0, res.Market[1].Points[0].ValueBillionUSD, 1e-9)
}

func (s *ServiceTestSuite) TestKnowledgeGraph_FusesSharedNodes() {
	res := s.compare(MetricKG, Filter{})

	s.Require().NotNil(res.Graph)
	var shared []string
	for _, n := range res.Graph.Nodes {
		s.NotEqual("actuator", n.ID, "hidden nodes are dropped")
		if n.ID == "openai" {
			shared = n.Entities
		}
	}
	s.Equal([]string{"quantum", "robotics"}, shared)
	s.Equal([]string{"concept", "organization", "technology"}, res.NodeTypes)
}

func (s *ServiceTestSuite) TestKnowledgeGraph_TypeFilter() {
	res := s.compare(MetricKG, Filter{NodeTypes: []string{"Organization"}})

	s.Require().Len(res.Graph.Nodes, 1)
	s.Equal("openai", res.Graph.Nodes[0].ID)
	s.Empty(res.Graph.Edges)
	s.Len(res.NodeTypes, 3, "node types describe the unfiltered graph")
}

func (s *ServiceTestSuite) TestKnowledgeGraph_SingleTechnology() {
	s.snap = s.snap.Select("quantum")
	res := s.compare(MetricKG, Filter{})
	s.Len(res.Graph.Nodes, 3)
}

func (s *ServiceTestSuite) TestNarrative() {
	res := s.compare(MetricNarrative, Filter{})

	s.Require().NotNil(res.Narrative)
	s.Len(res.Signals, 2)
	s.NotEmpty(res.Narrative.Patent)
	s.True(res.Sufficient())
}

func (s *ServiceTestSuite) TestNarrative_InsufficientIsNotAnError() {
	s.snap = s.snap.Select("quantum")
	res := s.compare(MetricNarrative, Filter{})

	s.Nil(res.Narrative)
	s.Equal(ranking.InsufficientData, res.Message)
	s.False(res.Sufficient())
}

func (s *ServiceTestSuite) TestExcludedTechnologies() {
	s.snap = s.snap.With("sparse", testutil.MustPayload(testutil.SparseJSON))

	res := s.compare(MetricMarket, Filter{})
	s.Equal([]string{"sparse"}, res.Excluded)

	res = s.compare(MetricTrend, Filter{})
	s.Empty(res.Excluded)
}

func (s *ServiceTestSuite) TestNarrativeExcludesUnresolvable() {
	s.snap = s.snap.With("empty", testutil.MustPayload(`{"dashboard": {}}`))

	res := s.compare(MetricNarrative, Filter{})
	s.Equal([]string{"empty"}, res.Excluded)
	s.Len(res.Signals, 2)
	s.NotNil(res.Narrative)
}

func (s *ServiceTestSuite) TestSkippedTechnologiesReported() {
	s.snap = s.snap.WithSkipped("ghost", pkgerrors.New(pkgerrors.ErrCodeTechnologyMissing, "technology is missing"))

	res := s.compare(MetricTrend, Filter{})
	s.Equal([]string{"quantum", "robotics"}, res.Technologies)
	s.Require().Len(res.Skipped, 1)
	s.Equal("ghost", res.Skipped[0].Name)
	s.Contains(res.Skipped[0].Reason, "TRK_003")
}

func (s *ServiceTestSuite) TestSkippedBelowMinimum() {
	snap := s.snap.Select("quantum").WithSkipped("ghost", errors.New("not found"))

	_, err := s.svc.Compare(context.Background(), Request{Metric: MetricTrend, Snapshot: snap})
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeInsufficientEntities))
	s.ErrorContains(err, "skipped ghost")
}

func (s *ServiceTestSuite) TestStale() {
	s.now = time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	res := s.compare(MetricTrend, Filter{})
	s.Equal([]string{"quantum", "robotics"}, res.Stale)

	s.now = time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)
	res = s.compare(MetricTrend, Filter{})
	s.Empty(res.Stale)
}

func (s *ServiceTestSuite) TestValidation() {
	ctx := context.Background()

	_, err := s.svc.Compare(ctx, Request{Metric: "bogus", Snapshot: s.snap})
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeUnknownMetric))

	_, err = s.svc.Compare(ctx, Request{Metric: MetricTrend, Snapshot: s.snap.Select("quantum")})
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeInsufficientEntities))

	_, err = s.svc.Compare(ctx, Request{Metric: MetricKG, Snapshot: payload.Snapshot{}})
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeInsufficientEntities))

	_, err = s.svc.Compare(ctx, Request{Metric: MetricTrend, Snapshot: s.snap, Filter: Filter{FromYear: 2023, ToYear: 2020}})
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))

	small := NewService(Options{MaxTechnologies: 1}, nil)
	_, err = small.Compare(ctx, Request{Metric: MetricKG, Snapshot: s.snap})
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

func TestCompare_CachesByContent(t *testing.T) {
	cache := newMemoryCache()
	svc := NewService(Options{Cache: cache, CacheTTL: time.Minute}, nil)
	snap := testutil.Snapshot("quantum", testutil.QuantumJSON, "robotics", testutil.RoboticsJSON)
	ctx := context.Background()

	first, err := svc.Compare(ctx, Request{Metric: MetricTrend, Snapshot: snap})
	require.NoError(t, err)
	second, err := svc.Compare(ctx, Request{Metric: MetricTrend, Snapshot: snap})
	require.NoError(t, err)

	assert.Equal(t, 1, cache.loads)
	assert.Equal(t, first.Series, second.Series)
	assert.Equal(t, first.Span, second.Span)

	changed := snap.With("robotics", testutil.MustPayload(testutil.SparseJSON))
	_, err = svc.Compare(ctx, Request{Metric: MetricTrend, Snapshot: changed})
	require.NoError(t, err)
	assert.Equal(t, 2, cache.loads, "different payload content is a different key")

	_, err = svc.Compare(ctx, Request{Metric: MetricTrend, Snapshot: snap, Filter: Filter{FromYear: 2021}})
	require.NoError(t, err)
	assert.Equal(t, 3, cache.loads)
}

func TestCompare_CacheFailureFallsBack(t *testing.T) {
	cache := newMemoryCache()
	cache.err = errors.New("connection refused")
	logger := testutil.NewMockLogger()
	svc := NewService(Options{Cache: cache}, logger)

	res, err := svc.Compare(context.Background(), Request{
		Metric:   MetricMarket,
		Snapshot: testutil.Snapshot("quantum", testutil.QuantumJSON, "robotics", testutil.RoboticsJSON),
	})
	require.NoError(t, err)
	assert.True(t, res.HasPoints)
	assert.True(t, logger.HasMessage("warn", "Comparison cache unavailable, computing directly"))
}

func TestCompare_RedisCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := redis.NewClient(context.Background(), config.RedisConfig{Addr: mr.Addr()}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	svc := NewService(Options{Cache: redis.NewRedisCache(client, nil), CacheTTL: time.Minute}, nil)
	snap := testutil.Snapshot("quantum", testutil.QuantumJSON, "robotics", testutil.RoboticsJSON)

	first, err := svc.Compare(context.Background(), Request{Metric: MetricKG, Snapshot: snap})
	require.NoError(t, err)
	second, err := svc.Compare(context.Background(), Request{Metric: MetricKG, Snapshot: snap})
	require.NoError(t, err)

	assert.Equal(t, first.Graph, second.Graph)
	assert.Equal(t, first.NodeTypes, second.NodeTypes)
}

func TestCacheKey(t *testing.T) {
	snap := testutil.Snapshot("a", testutil.SparseJSON, "b", testutil.QuantumJSON)
	reordered := testutil.Snapshot("b", testutil.QuantumJSON, "a", testutil.SparseJSON)

	k := cacheKey(Request{Metric: MetricTrend, Snapshot: snap})
	assert.Contains(t, k, "compare:trend:")
	assert.Equal(t, k, cacheKey(Request{Metric: MetricTrend, Snapshot: snap}))
	assert.NotEqual(t, k, cacheKey(Request{Metric: MetricTrend, Snapshot: reordered}))
	assert.NotEqual(t, k, cacheKey(Request{Metric: MetricMarket, Snapshot: snap}))
	assert.NotEqual(t, k, cacheKey(Request{Metric: MetricKG, Snapshot: snap, Filter: Filter{NodeTypes: []string{"concept"}}}))
}

type stubGraphs map[string]string

func (g stubGraphs) LoadGraphPayload(_ context.Context, tech string) (payload.Payload, error) {
	raw, ok := g[tech]
	if !ok {
		return payload.Payload{}, pkgerrors.New(pkgerrors.ErrCodeObjectNotFound, "no graph").WithDetail(tech)
	}
	return testutil.MustPayload(raw), nil
}

func TestCompare_FillsMissingGraphs(t *testing.T) {
	graphs := stubGraphs{
		"sparse":  `{"knowledge_graph": {"nodes": [{"id": "OpenAI", "type": "organization"}], "edges": []}}`,
		"quantum": `{"knowledge_graph": {"nodes": [{"id": "ignored", "type": "concept"}]}}`,
	}
	svc := NewService(Options{Graphs: graphs}, nil)
	snap := testutil.Snapshot(
		"quantum", testutil.QuantumJSON,
		"sparse", testutil.SparseJSON,
		"unknown", testutil.SparseJSON,
	)

	res, err := svc.Compare(context.Background(), Request{Metric: MetricKG, Snapshot: snap})
	require.NoError(t, err)

	require.NotNil(t, res.Graph)
	var ids []string
	for _, n := range res.Graph.Nodes {
		ids = append(ids, n.ID)
		if n.ID == "openai" {
			assert.Equal(t, []string{"quantum", "sparse"}, n.Entities)
		}
	}
	assert.Contains(t, ids, "openai")
	assert.NotContains(t, ids, "ignored", "a payload with its own graph is not replaced")
	assert.Equal(t, []string{"unknown"}, res.Excluded)

	res, err = svc.Compare(context.Background(), Request{Metric: MetricTrend, Snapshot: snap})
	require.NoError(t, err)
	assert.Nil(t, res.Graph)
}
