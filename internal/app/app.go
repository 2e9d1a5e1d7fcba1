package app

import (
	"context"
	"net/http"
	"time"

	"github.com/turtacn/TechIntel/internal/application/comparison"
	"github.com/turtacn/TechIntel/internal/application/tracking"
	"github.com/turtacn/TechIntel/internal/config"
	"github.com/turtacn/TechIntel/internal/infrastructure/database/redis"
	"github.com/turtacn/TechIntel/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/TechIntel/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TechIntel/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/TechIntel/internal/interfaces/cli"
	httpapi "github.com/turtacn/TechIntel/internal/interfaces/http"
	"github.com/turtacn/TechIntel/internal/interfaces/http/handlers"
	"github.com/turtacn/TechIntel/internal/interfaces/http/middleware"
	"github.com/turtacn/TechIntel/pkg/client"
)

const rateLimitCleanup = time.Minute

// App is a fully wired API server.
type App struct {
	cfg     *config.Config
	logger  logging.Logger
	metrics *prometheus.AppMetrics

	infra    *Infrastructure
	tracker  *tracking.Tracker
	consumer *kafka.Consumer
	limiter  *middleware.TokenBucketLimiter
	router   http.Handler
	server   *httpapi.Server
}

// Run builds the server from cfg and serves until ctx ends.
func Run(ctx context.Context, cfg *config.Config, log logging.Logger) error {
	a, err := New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Serve(ctx)
}

// New connects the enabled infrastructure and assembles the services and
// route tree.  Nothing is served until Serve.
func New(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	a := &App{cfg: cfg, logger: log, metrics: prometheus.NewNopAppMetrics()}

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
			Namespace:            cfg.Metrics.Namespace,
			EnableProcessMetrics: true,
			EnableGoMetrics:      true,
		}, log)
		if err != nil {
			return nil, err
		}
		a.metrics = prometheus.NewAppMetrics(collector)
		metricsHandler = collector.Handler()
	}

	infra, err := OpenInfrastructure(ctx, cfg, log, a.metrics)
	if err != nil {
		return nil, err
	}
	a.infra = infra

	backend, err := client.NewClient(cfg.Backend.BaseURL,
		client.WithTimeout(cfg.Backend.Timeout),
		client.WithUserAgent(cfg.Backend.UserAgent+"/"+cli.Version),
		client.WithObserver(func(operation string, statusCode int, d time.Duration) {
			prometheus.RecordBackendRequest(a.metrics, operation, statusCode, d)
		}),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.tracker = tracking.NewTracker(backend, a.trackerOptions(), log)

	if cfg.Kafka.Enabled {
		consumer, err := kafka.NewConsumer(kafka.ConsumerConfigFrom(cfg.Kafka), infra.Producer, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		consumer.Subscribe(cfg.Kafka.StatusTopic, a.tracker.HandleStatusEvent)
		a.consumer = consumer
	}

	compareOpts := comparison.Options{
		CacheTTL:        cfg.Compare.CacheTTL,
		StaleAfter:      cfg.Compare.StaleAfter,
		MaxTechnologies: cfg.Compare.MaxTechnologies,
		Metrics:         a.metrics,
	}
	if infra.Redis != nil {
		compareOpts.Cache = redis.NewRedisCache(infra.Redis, log,
			redis.WithPrefix(cfg.Redis.KeyPrefix),
			redis.WithDefaultTTL(cfg.Compare.CacheTTL),
			redis.WithMetrics(a.metrics, "comparison"))
	}
	if infra.Graphs != nil {
		compareOpts.Graphs = infra.Graphs
	}
	svc := comparison.NewService(compareOpts, log)

	routerCfg := httpapi.RouterConfig{
		CompareHandler:    handlers.NewCompareHandler(svc, a.tracker, log),
		TechnologyHandler: handlers.NewTechnologyHandler(a.tracker, backend, log),
		HealthHandler:     handlers.NewHealthHandler(cli.Version, infra.HealthCheckers()...),
		MetricsHandler:    metricsHandler,
		MetricsPath:       cfg.Metrics.Path,
		MaxBodySize:       cfg.Server.MaxBodySize,
		Mode:              cfg.Server.Mode,
		Logger:            log,
		Metrics:           a.metrics,
	}
	if len(cfg.Server.AllowedOrigins) > 0 {
		cors := middleware.DefaultCORSConfig()
		cors.AllowedOrigins = cfg.Server.AllowedOrigins
		routerCfg.CORS = &cors
	}
	if cfg.Server.RateLimit > 0 {
		a.limiter = middleware.NewTokenBucketLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst, rateLimitCleanup)
		routerCfg.RateLimiter = a.limiter
	}

	a.router = httpapi.NewRouter(routerCfg)
	a.server = httpapi.NewServer(cfg.Server, a.router, log)
	return a, nil
}

// trackerOptions enables the creation guard, payload archive and readiness
// events when their infrastructure is connected.
func (a *App) trackerOptions() tracking.Options {
	opts := tracking.Options{
		PollInterval:    a.cfg.Backend.PollInterval,
		CreateIfMissing: a.cfg.Backend.CreateIfMissing,
		StaleAfter:      a.cfg.Compare.StaleAfter,
		Metrics:         a.metrics,
	}
	if a.infra.Redis != nil {
		opts.Guard = redis.NewGuard(a.infra.Redis, a.logger, a.cfg.Redis.KeyPrefix, 0)
	}
	if a.infra.Payloads != nil {
		opts.Archiver = a.infra.Payloads
	}
	if a.infra.Producer != nil {
		opts.Publisher = a.infra.Producer
	}
	return opts
}

// Handler returns the route tree.
func (a *App) Handler() http.Handler { return a.router }

// Serve starts the event consumer and the HTTP server and blocks until ctx
// ends or the server fails.
func (a *App) Serve(ctx context.Context) error {
	if a.consumer != nil {
		if err := a.consumer.Start(ctx); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- a.server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutdown requested")
	if err := a.server.Stop(context.Background()); err != nil {
		return err
	}
	return <-errCh
}

// Close stops background work and releases every client.
func (a *App) Close() {
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.logger.Warn("Failed to close consumer", logging.Err(err))
		}
	}
	if a.tracker != nil {
		_ = a.tracker.Close()
	}
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.infra != nil {
		a.infra.Close()
	}
}
