// Package app wires configuration, infrastructure adapters, application
// services and the HTTP API into a running TechIntel server.
package app

import (
	"context"
	"fmt"

	"github.com/turtacn/TechIntel/internal/config"
	"github.com/turtacn/TechIntel/internal/infrastructure/database/neo4j"
	"github.com/turtacn/TechIntel/internal/infrastructure/database/redis"
	"github.com/turtacn/TechIntel/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/TechIntel/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TechIntel/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/TechIntel/internal/infrastructure/storage/minio"
	"github.com/turtacn/TechIntel/internal/interfaces/http/handlers"
)

// Infrastructure holds the clients of every enabled config section.
// Disabled sections leave their fields nil.
type Infrastructure struct {
	Redis    *redis.Client
	MinIO    *minio.Client
	Payloads *minio.PayloadStore
	Neo4j    *neo4j.Driver
	Graphs   *neo4j.GraphSource
	Producer *kafka.Producer

	logger logging.Logger
}

// OpenInfrastructure connects to every enabled section of cfg.  On failure
// the clients opened so far are closed.
func OpenInfrastructure(ctx context.Context, cfg *config.Config, log logging.Logger, m *prometheus.AppMetrics) (*Infrastructure, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	infra := &Infrastructure{logger: log}

	if cfg.Redis.Enabled {
		c, err := redis.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			infra.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		infra.Redis = c
	}

	if cfg.MinIO.Enabled {
		c, err := minio.NewClient(ctx, cfg.MinIO, log)
		if err != nil {
			infra.Close()
			return nil, fmt.Errorf("minio: %w", err)
		}
		infra.MinIO = c
		infra.Payloads = minio.NewPayloadStore(c, cfg.MinIO, log, minio.WithMetrics(m))
		if err := infra.Payloads.EnsureBucket(ctx); err != nil {
			infra.Close()
			return nil, fmt.Errorf("minio: %w", err)
		}
	}

	if cfg.Neo4j.Enabled {
		d, err := neo4j.NewDriver(ctx, cfg.Neo4j, log)
		if err != nil {
			infra.Close()
			return nil, fmt.Errorf("neo4j: %w", err)
		}
		infra.Neo4j = d
		g, err := neo4j.NewGraphSource(d, cfg.Neo4j.MaxDepth, log, m)
		if err != nil {
			infra.Close()
			return nil, fmt.Errorf("neo4j: %w", err)
		}
		infra.Graphs = g
	}

	if cfg.Kafka.Enabled {
		p, err := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:    cfg.Kafka.Brokers,
			MaxRetries: cfg.Kafka.MaxRetries,
		}, log)
		if err != nil {
			infra.Close()
			return nil, fmt.Errorf("kafka: %w", err)
		}
		infra.Producer = p
	}

	log.Info("Infrastructure initialized",
		logging.Bool("redis", infra.Redis != nil),
		logging.Bool("minio", infra.MinIO != nil),
		logging.Bool("neo4j", infra.Neo4j != nil),
		logging.Bool("kafka", infra.Producer != nil))
	return infra, nil
}

// HealthCheckers returns a readiness check per connected store.
func (i *Infrastructure) HealthCheckers() []handlers.HealthChecker {
	var checks []handlers.HealthChecker
	if i.Redis != nil {
		checks = append(checks, handlers.NewChecker("redis", i.Redis.Ping))
	}
	if i.MinIO != nil {
		checks = append(checks, handlers.NewChecker("minio", i.MinIO.Ping))
	}
	if i.Neo4j != nil {
		checks = append(checks, handlers.NewChecker("neo4j", i.Neo4j.HealthCheck))
	}
	return checks
}

// Close releases every open client.
func (i *Infrastructure) Close() {
	closeLogged := func(name string, close func() error) {
		if err := close(); err != nil {
			i.logger.Warn("Failed to close client", logging.String("client", name), logging.Err(err))
		}
	}
	if i.Producer != nil {
		closeLogged("kafka", i.Producer.Close)
	}
	if i.Neo4j != nil {
		closeLogged("neo4j", i.Neo4j.Close)
	}
	if i.MinIO != nil {
		closeLogged("minio", i.MinIO.Close)
	}
	if i.Redis != nil {
		closeLogged("redis", i.Redis.Close)
	}
}
