package minio

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/TechIntel/internal/config"
	"github.com/turtacn/TechIntel/internal/domain/payload"
	"github.com/turtacn/TechIntel/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TechIntel/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/TechIntel/pkg/errors"
)

const (
	sourceName      = "minio"
	objectExtension = ".json"
	maxConcurrency  = 8
)

// PayloadStore reads and writes one JSON object per technology, stored as
// <prefix><technology>.json.
type PayloadStore struct {
	objects ObjectStore
	bucket  string
	prefix  string
	logger  logging.Logger
	metrics *prometheus.AppMetrics
}

// StoreOption configures a PayloadStore.
type StoreOption func(*PayloadStore)

// WithMetrics records one source load per object read.
func WithMetrics(m *prometheus.AppMetrics) StoreOption {
	return func(s *PayloadStore) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewPayloadStore creates a store over the bucket and prefix in cfg.
func NewPayloadStore(objects ObjectStore, cfg config.MinIOConfig, log logging.Logger, opts ...StoreOption) *PayloadStore {
	if log == nil {
		log = logging.NewNopLogger()
	}
	s := &PayloadStore{
		objects: objects,
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		logger:  log.Named("minio.store"),
		metrics: prometheus.NewNopAppMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ObjectKey returns the object key holding tech's payload.
func (s *PayloadStore) ObjectKey(tech string) string {
	return s.prefix + tech + objectExtension
}

// Load reads and decodes tech's payload.
func (s *PayloadStore) Load(ctx context.Context, tech string) (payload.Payload, error) {
	if strings.TrimSpace(tech) == "" {
		return payload.Payload{}, ErrInvalidRequest
	}
	key := s.ObjectKey(tech)
	data, err := s.objects.GetObject(ctx, s.bucket, key)
	if err != nil {
		prometheus.RecordSourceLoad(s.metrics, sourceName, err)
		return payload.Payload{}, err
	}
	p, err := payload.Decode(data)
	if err != nil {
		err = errors.Wrap(err, errors.ErrCodeDataSourceParseError, "payload object is not valid JSON").
			WithDetail(key)
		prometheus.RecordSourceLoad(s.metrics, sourceName, err)
		return payload.Payload{}, err
	}
	prometheus.RecordSourceLoad(s.metrics, sourceName, nil)
	s.logger.Debug("Payload loaded", logging.String("technology", tech), logging.Int("bytes", len(data)))
	return p, nil
}

// LoadSnapshot loads every technology concurrently and returns them in the
// order given.  A technology whose object is absent or unreadable is
// recorded as skipped; LoadSnapshot fails only when none loaded or ctx ends.
func (s *PayloadStore) LoadSnapshot(ctx context.Context, techs ...string) (payload.Snapshot, error) {
	loaded := make([]payload.Payload, len(techs))
	errs := make([]error, len(techs))
	var g errgroup.Group
	g.SetLimit(maxConcurrency)
	for i, tech := range techs {
		i, tech := i, tech
		g.Go(func() error {
			loaded[i], errs[i] = s.Load(ctx, tech)
			if errs[i] != nil {
				s.logger.Warn("Payload skipped", logging.String("technology", tech), logging.Err(errs[i]))
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return payload.Snapshot{}, err
	}
	return payload.Collect(techs, loaded, errs)
}

// Save writes p as tech's payload object.
func (s *PayloadStore) Save(ctx context.Context, tech string, p payload.Payload) error {
	if strings.TrimSpace(tech) == "" || p.IsZero() {
		return ErrInvalidRequest
	}
	data, err := p.MarshalJSON()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode payload")
	}
	if err := s.objects.PutObject(ctx, s.bucket, s.ObjectKey(tech), data, contentTypeJSON); err != nil {
		return err
	}
	s.logger.Debug("Payload saved", logging.String("technology", tech))
	return nil
}

// List returns the technologies that have a payload object, sorted.
func (s *PayloadStore) List(ctx context.Context) ([]string, error) {
	keys, err := s.objects.ListObjects(ctx, s.bucket, s.prefix)
	if err != nil {
		return nil, err
	}
	var techs []string
	for _, k := range keys {
		name := strings.TrimPrefix(k, s.prefix)
		if !strings.HasSuffix(name, objectExtension) || strings.Contains(name, "/") {
			continue
		}
		techs = append(techs, strings.TrimSuffix(name, objectExtension))
	}
	sort.Strings(techs)
	return techs, nil
}

// EnsureBucket creates the configured bucket when missing.
func (s *PayloadStore) EnsureBucket(ctx context.Context) error {
	return s.objects.EnsureBucket(ctx, s.bucket)
}
