// Package comparison dispatches a metric selection over a payload snapshot
// to the matching transform, memoizes results and records metrics.
package comparison

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/turtacn/TechIntel/internal/domain/investment"
	"github.com/turtacn/TechIntel/internal/domain/knowledge"
	"github.com/turtacn/TechIntel/internal/domain/market"
	"github.com/turtacn/TechIntel/internal/domain/payload"
	"github.com/turtacn/TechIntel/internal/domain/ranking"
	"github.com/turtacn/TechIntel/internal/domain/series"
	"github.com/turtacn/TechIntel/internal/infrastructure/database/redis"
	"github.com/turtacn/TechIntel/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TechIntel/internal/infrastructure/monitoring/prometheus"
	pkgerrors "github.com/turtacn/TechIntel/pkg/errors"
)

// DefaultMaxTechnologies bounds the snapshot size of one comparison.
const DefaultMaxTechnologies = 12

const cacheKeyPrefix = "compare:"

// Cache memoizes comparison results.  The redis Cache implements it.
type Cache interface {
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader redis.Loader) (bool, error)
}

// Filter narrows a comparison.  Zero values select everything.
type Filter struct {
	// FromYear and ToYear bound the rows of trend and patents series.
	FromYear int `json:"from_year,omitempty"`
	ToYear   int `json:"to_year,omitempty"`

	// NodeTypes keeps only graph nodes of these types.
	NodeTypes []string `json:"node_types,omitempty"`
}

// Request is one comparison.
type Request struct {
	Metric   Metric
	Snapshot payload.Snapshot
	Filter   Filter
}

// Options configures a Service.
type Options struct {
	Cache           Cache
	CacheTTL        time.Duration
	StaleAfter      time.Duration
	MaxTechnologies int
	Metrics         *prometheus.AppMetrics

	// Graphs fills the knowledge graph of kg comparisons whose payloads
	// carry none.  Nil leaves payloads as given.
	Graphs GraphLoader
}

// Service runs comparisons.
type Service struct {
	cache      Cache
	graphs     GraphLoader
	ttl        time.Duration
	staleAfter time.Duration
	maxTechs   int
	logger     logging.Logger
	metrics    *prometheus.AppMetrics
	now        func() time.Time
}

// NewService creates a comparison service.  A nil Cache disables
// memoization.
func NewService(opts Options, log logging.Logger) *Service {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = prometheus.NewNopAppMetrics()
	}
	if opts.MaxTechnologies <= 0 {
		opts.MaxTechnologies = DefaultMaxTechnologies
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = payload.DefaultMaxAge
	}
	return &Service{
		cache:      opts.Cache,
		graphs:     opts.Graphs,
		ttl:        opts.CacheTTL,
		staleAfter: opts.StaleAfter,
		maxTechs:   opts.MaxTechnologies,
		logger:     log.Named("comparison"),
		metrics:    opts.Metrics,
		now:        time.Now,
	}
}

// Compare runs req.  Too few technologies for the metric is an error except
// for the narrative, which reports it through Result.Message.
func (s *Service) Compare(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	n := req.Snapshot.Len()

	m, err := ParseMetric(string(req.Metric))
	if err == nil {
		req.Metric = m
		err = s.validate(req)
	}
	if err != nil {
		prometheus.RecordComparison(s.metrics, string(req.Metric), "error", n, time.Since(start))
		prometheus.RecordError(s.metrics, "comparison", string(pkgerrors.GetCode(err)))
		return nil, err
	}

	if req.Metric == MetricKG && s.graphs != nil {
		req.Snapshot = s.fillGraphs(ctx, req.Snapshot)
	}

	var (
		res *Result
		hit bool
	)
	if s.cache != nil {
		res = &Result{}
		hit, err = s.cache.GetOrSet(ctx, cacheKey(req), res, s.ttl, func(context.Context) (interface{}, error) {
			return s.compute(req), nil
		})
		if err != nil {
			s.logger.Warn("Comparison cache unavailable, computing directly",
				logging.String("metric", string(req.Metric)), logging.Err(err))
			res, hit = s.compute(req), false
		}
	} else {
		res = s.compute(req)
	}

	// Staleness depends on the clock, never on the cached value.
	res.Stale = s.stale(req.Snapshot)
	res.Skipped = req.Snapshot.Skipped()
	if len(res.Skipped) > 0 {
		s.logger.WithContext(ctx).Warn("Technologies skipped from comparison",
			logging.String("metric", string(req.Metric)),
			logging.String("skipped", strings.Join(skippedNames(res.Skipped), ", ")))
	}

	outcome := "ok"
	switch {
	case hit:
		outcome = "cached"
	case !res.Sufficient():
		outcome = "insufficient"
	}
	prometheus.RecordComparison(s.metrics, string(req.Metric), outcome, n, time.Since(start))
	if !hit && len(res.Excluded) > 0 {
		s.metrics.ComparisonExcluded.WithLabelValues(string(req.Metric)).Add(float64(len(res.Excluded)))
	}

	s.logger.WithContext(ctx).Debug("Comparison computed",
		logging.String("metric", string(req.Metric)),
		logging.Int("technologies", n),
		logging.Bool("cached", hit),
		logging.Duration("duration", time.Since(start)))
	return res, nil
}

func (s *Service) validate(req Request) error {
	n := req.Snapshot.Len()
	if n < req.Metric.minEntities() {
		err := pkgerrors.Newf(pkgerrors.ErrCodeInsufficientEntities,
			"%s comparison needs at least %d technologies, got %d", req.Metric, req.Metric.minEntities(), n)
		if skipped := req.Snapshot.Skipped(); len(skipped) > 0 {
			err = err.WithDetail("skipped " + strings.Join(skippedNames(skipped), ", "))
		}
		return err
	}
	if n > s.maxTechs {
		return pkgerrors.Newf(pkgerrors.ErrCodeValidation, "at most %d technologies can be compared, got %d", s.maxTechs, n)
	}
	if f := req.Filter; f.FromYear != 0 && f.ToYear != 0 && f.FromYear > f.ToYear {
		return pkgerrors.New(pkgerrors.ErrCodeValidation, "from_year is after to_year")
	}
	return nil
}

func (s *Service) stale(snap payload.Snapshot) []string {
	now := s.now()
	var out []string
	for _, e := range snap.Entities() {
		if e.Payload.Stale(now, s.staleAfter) {
			out = append(out, e.Name)
		}
	}
	return out
}

func (s *Service) compute(req Request) *Result {
	snap := req.Snapshot
	res := &Result{Metric: req.Metric, Technologies: snap.Names()}

	switch req.Metric {
	case MetricTrend:
		aligned := series.AlignTrend(snap)
		res.Span = span(aligned)
		aligned = req.Filter.years(aligned)
		res.Series = &aligned
		res.Excluded = excluded(snap, func(p payload.Payload) bool { return len(p.TrendCurve()) > 0 })

	case MetricPatents:
		aligned := series.AlignCumulativePatents(snap)
		res.Span = span(aligned)
		aligned = req.Filter.years(aligned)
		res.Series = &aligned
		res.Excluded = excluded(snap, func(p payload.Payload) bool { return len(p.PatentTimeline()) > 0 })

	case MetricInvestment:
		res.Investment = investment.Aggregate(snap)
		res.Excluded = excluded(snap, func(p payload.Payload) bool { return len(investment.Values(p)) > 0 })

	case MetricMarket:
		res.Market = market.Distribute(snap)
		res.HasPoints = market.HasPoints(res.Market)
		res.Excluded = excluded(snap, func(p payload.Payload) bool { return len(market.Points(p)) > 0 })

	case MetricKG:
		fused := knowledge.Fuse(knowledge.Collect(snap))
		res.NodeTypes = knowledge.Types(fused)
		if len(req.Filter.NodeTypes) > 0 {
			fused = knowledge.Filter(fused, knowledge.NodeFilter{Types: req.Filter.NodeTypes})
		}
		res.Graph = &fused
		res.Excluded = excluded(snap, func(p payload.Payload) bool { g, _ := knowledge.FromPayload(p); return len(g.Nodes) > 0 })

	case MetricNarrative:
		signals := ranking.Derive(snap)
		res.Signals = signals
		res.Excluded = excluded(snap, func(p payload.Payload) bool { return ranking.FromPayload("", p).Resolvable() })
		if n, ok := ranking.Narrate(signals); ok {
			res.Narrative = &n
		} else {
			res.Message = ranking.InsufficientData
		}
	}
	return res
}

func (f Filter) years(s series.Series) series.Series {
	if f.FromYear == 0 && f.ToYear == 0 {
		return s
	}
	from, to := f.FromYear, f.ToYear
	if to == 0 {
		to = int(^uint(0) >> 1)
	}
	return s.Between(from, to)
}

func span(s series.Series) *YearSpan {
	first, last, ok := s.Span()
	if !ok {
		return nil
	}
	return &YearSpan{From: first, To: last}
}

func skippedNames(skipped []payload.Skip) []string {
	out := make([]string, len(skipped))
	for i, sk := range skipped {
		out[i] = sk.Name
	}
	return out
}

func excluded(snap payload.Snapshot, has func(payload.Payload) bool) []string {
	var out []string
	for _, e := range snap.Entities() {
		if !has(e.Payload) {
			out = append(out, e.Name)
		}
	}
	return out
}

// cacheKey hashes everything a result depends on: metric, filter, entity
// order and payload contents.
func cacheKey(req Request) string {
	h := sha256.New()
	h.Write([]byte(req.Metric))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(req.Filter.FromYear) + ":" + strconv.Itoa(req.Filter.ToYear)))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(strings.Join(req.Filter.NodeTypes, ","))))
	for _, e := range req.Snapshot.Entities() {
		h.Write([]byte{0})
		h.Write([]byte(e.Name))
		h.Write([]byte{0})
		data, _ := e.Payload.MarshalJSON()
		h.Write(data)
	}
	return cacheKeyPrefix + string(req.Metric) + ":" + hex.EncodeToString(h.Sum(nil))
}
