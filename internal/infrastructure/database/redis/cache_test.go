package redis

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/TechIntel/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/TechIntel/pkg/errors"
)

type CacheTestSuite struct {
	suite.Suite
	mock  redismock.ClientMock
	cache *redisCache
}

func (s *CacheTestSuite) SetupTest() {
	db, mock := redismock.NewClientMock()
	s.mock = mock

	c := NewRedisCache(newClient(db, logging.NewNopLogger()), nil, WithPrefix("test:"), WithDefaultTTL(time.Minute))
	s.cache = c.(*redisCache)
	s.cache.jitter = func(d time.Duration) time.Duration { return d }
}

func (s *CacheTestSuite) TearDownTest() {
	assert.NoError(s.T(), s.mock.ExpectationsWereMet())
}

type cached struct {
	Metric string `json:"metric"`
	Count  int    `json:"count"`
}

func (s *CacheTestSuite) TestGet_CacheHit() {
	s.mock.ExpectGet("test:k1").SetVal(`{"metric":"trend","count":2}`)

	var dest cached
	err := s.cache.Get(context.Background(), "k1", &dest)

	s.NoError(err)
	s.Equal(cached{Metric: "trend", Count: 2}, dest)
}

func (s *CacheTestSuite) TestGet_CacheMiss() {
	s.mock.ExpectGet("test:k1").RedisNil()

	var dest cached
	err := s.cache.Get(context.Background(), "k1", &dest)

	s.Equal(ErrCacheMiss, err)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeCacheError))
}

func (s *CacheTestSuite) TestGet_CorruptValue() {
	s.mock.ExpectGet("test:k1").SetVal(`{not json`)

	var dest cached
	err := s.cache.Get(context.Background(), "k1", &dest)

	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeSerialization))
}

func (s *CacheTestSuite) TestSet_DefaultTTL() {
	s.mock.ExpectSet("test:k1", []byte(`{"metric":"kg","count":1}`), time.Minute).SetVal("OK")

	err := s.cache.Set(context.Background(), "k1", cached{Metric: "kg", Count: 1}, 0)
	s.NoError(err)
}

func (s *CacheTestSuite) TestDelete() {
	s.mock.ExpectDel("test:a", "test:b").SetVal(2)

	s.NoError(s.cache.Delete(context.Background(), "a", "b"))
	s.NoError(s.cache.Delete(context.Background()))
}

func (s *CacheTestSuite) TestGetOrSet_Hit() {
	s.mock.ExpectGet("test:k1").SetVal(`{"metric":"trend","count":7}`)

	var dest cached
	hit, err := s.cache.GetOrSet(context.Background(), "k1", &dest, 0, func(context.Context) (interface{}, error) {
		s.Fail("loader must not run on a hit")
		return nil, nil
	})

	s.NoError(err)
	s.True(hit)
	s.Equal(7, dest.Count)
}

func (s *CacheTestSuite) TestGetOrSet_MissLoadsAndStores() {
	s.mock.ExpectGet("test:k1").RedisNil()
	s.mock.ExpectSet("test:k1", []byte(`{"metric":"market","count":3}`), 2*time.Minute).SetVal("OK")

	var dest cached
	hit, err := s.cache.GetOrSet(context.Background(), "k1", &dest, 2*time.Minute, func(context.Context) (interface{}, error) {
		return cached{Metric: "market", Count: 3}, nil
	})

	s.NoError(err)
	s.False(hit)
	s.Equal(cached{Metric: "market", Count: 3}, dest)
}

func (s *CacheTestSuite) TestGetOrSet_UnavailableCacheStillComputes() {
	s.mock.ExpectGet("test:k1").SetErr(stderrors.New("connection refused"))
	s.mock.ExpectSet("test:k1", []byte(`{"metric":"kg","count":0}`), time.Minute).SetErr(stderrors.New("connection refused"))

	var dest cached
	hit, err := s.cache.GetOrSet(context.Background(), "k1", &dest, 0, func(context.Context) (interface{}, error) {
		return cached{Metric: "kg"}, nil
	})

	s.NoError(err)
	s.False(hit)
	s.Equal("kg", dest.Metric)
}

func (s *CacheTestSuite) TestGetOrSet_LoaderError() {
	s.mock.ExpectGet("test:k1").RedisNil()
	boom := stderrors.New("boom")

	var dest cached
	_, err := s.cache.GetOrSet(context.Background(), "k1", &dest, 0, func(context.Context) (interface{}, error) {
		return nil, boom
	})

	s.ErrorIs(err, boom)
}

func TestCacheTestSuite(t *testing.T) {
	suite.Run(t, new(CacheTestSuite))
}

func TestJitterTTL_Bounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := jitterTTL(10 * time.Second)
		require.GreaterOrEqual(t, d, 9*time.Second)
		require.LessOrEqual(t, d, 11*time.Second)
	}
	assert.Equal(t, time.Duration(0), jitterTTL(0))
}
