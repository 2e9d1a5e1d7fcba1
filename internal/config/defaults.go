package config

import (
	"time"

	"github.com/spf13/viper"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerHost            = "0.0.0.0"
	DefaultServerPort            = 8080
	DefaultServerMode            = "release"
	DefaultServerReadTimeout     = 15 * time.Second
	DefaultServerWriteTimeout    = 30 * time.Second
	DefaultServerMaxBodySize     = 8 << 20
	DefaultServerShutdownTimeout = 10 * time.Second
	DefaultServerRateBurst       = 20

	DefaultBackendBaseURL      = "http://localhost:8000"
	DefaultBackendTimeout      = 30 * time.Second
	DefaultBackendPollInterval = 5 * time.Second
	DefaultBackendUserAgent    = "techintel"

	DefaultCompareCacheTTL        = 15 * time.Minute
	DefaultCompareStaleAfter      = 24 * time.Hour
	DefaultCompareMaxTechnologies = 8

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisPoolSize  = 10
	DefaultRedisTimeout   = 3 * time.Second
	DefaultRedisKeyPrefix = "techintel:"

	DefaultKafkaBroker      = "localhost:9092"
	DefaultKafkaGroupID     = "techintel-readiness"
	DefaultKafkaStatusTopic = "technology.status"
	DefaultKafkaReadiness   = "technology.readiness"
	DefaultKafkaDeadLetter  = "dead_letter.technology"
	DefaultKafkaMaxRetries  = 3
	DefaultKafkaMinBytes    = 1
	DefaultKafkaMaxBytes    = 1 << 20
	DefaultKafkaMaxWait     = time.Second

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "technology-payloads"

	DefaultNeo4jURI      = "bolt://localhost:7687"
	DefaultNeo4jDatabase = "neo4j"
	DefaultNeo4jPoolSize = 20
	DefaultNeo4jTimeout  = 10 * time.Second
	DefaultNeo4jMaxDepth = 2

	DefaultMetricsNamespace = "techintel"
	DefaultMetricsPath      = "/metrics"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// ApplyDefaults fills every zero-value field in cfg with its default.  Values
// already set, by file or environment, are left unchanged.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	setString(&cfg.Server.Host, DefaultServerHost)
	setInt(&cfg.Server.Port, DefaultServerPort)
	setString(&cfg.Server.Mode, DefaultServerMode)
	setDuration(&cfg.Server.ReadTimeout, DefaultServerReadTimeout)
	setDuration(&cfg.Server.WriteTimeout, DefaultServerWriteTimeout)
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = DefaultServerMaxBodySize
	}
	setDuration(&cfg.Server.ShutdownTimeout, DefaultServerShutdownTimeout)
	setInt(&cfg.Server.RateBurst, DefaultServerRateBurst)

	// ── Backend ───────────────────────────────────────────────────────────────
	setString(&cfg.Backend.BaseURL, DefaultBackendBaseURL)
	setDuration(&cfg.Backend.Timeout, DefaultBackendTimeout)
	setDuration(&cfg.Backend.PollInterval, DefaultBackendPollInterval)
	setString(&cfg.Backend.UserAgent, DefaultBackendUserAgent)

	// ── Compare ───────────────────────────────────────────────────────────────
	setDuration(&cfg.Compare.CacheTTL, DefaultCompareCacheTTL)
	setDuration(&cfg.Compare.StaleAfter, DefaultCompareStaleAfter)
	setInt(&cfg.Compare.MaxTechnologies, DefaultCompareMaxTechnologies)

	// ── Redis ─────────────────────────────────────────────────────────────────
	setString(&cfg.Redis.Addr, DefaultRedisAddr)
	setInt(&cfg.Redis.PoolSize, DefaultRedisPoolSize)
	setDuration(&cfg.Redis.DialTimeout, DefaultRedisTimeout)
	setDuration(&cfg.Redis.ReadTimeout, DefaultRedisTimeout)
	setDuration(&cfg.Redis.WriteTimeout, DefaultRedisTimeout)
	setString(&cfg.Redis.KeyPrefix, DefaultRedisKeyPrefix)

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	setString(&cfg.Kafka.GroupID, DefaultKafkaGroupID)
	setString(&cfg.Kafka.StatusTopic, DefaultKafkaStatusTopic)
	setString(&cfg.Kafka.ReadinessTopic, DefaultKafkaReadiness)
	setString(&cfg.Kafka.DeadLetter, DefaultKafkaDeadLetter)
	setInt(&cfg.Kafka.MaxRetries, DefaultKafkaMaxRetries)
	setInt(&cfg.Kafka.MinBytes, DefaultKafkaMinBytes)
	setInt(&cfg.Kafka.MaxBytes, DefaultKafkaMaxBytes)
	setDuration(&cfg.Kafka.MaxWait, DefaultKafkaMaxWait)

	// ── MinIO ─────────────────────────────────────────────────────────────────
	setString(&cfg.MinIO.Endpoint, DefaultMinIOEndpoint)
	setString(&cfg.MinIO.Bucket, DefaultMinIOBucket)

	// ── Neo4j ─────────────────────────────────────────────────────────────────
	setString(&cfg.Neo4j.URI, DefaultNeo4jURI)
	setString(&cfg.Neo4j.Database, DefaultNeo4jDatabase)
	setInt(&cfg.Neo4j.MaxConnectionPoolSize, DefaultNeo4jPoolSize)
	setDuration(&cfg.Neo4j.ConnectionTimeout, DefaultNeo4jTimeout)
	setInt(&cfg.Neo4j.MaxDepth, DefaultNeo4jMaxDepth)

	// ── Metrics ───────────────────────────────────────────────────────────────
	setString(&cfg.Metrics.Namespace, DefaultMetricsNamespace)
	setString(&cfg.Metrics.Path, DefaultMetricsPath)

	// ── Log ───────────────────────────────────────────────────────────────────
	setString(&cfg.Log.Level, DefaultLogLevel)
	setString(&cfg.Log.Format, DefaultLogFormat)
}

// bindEnv binds every leaf key to its TECHINTEL_* variable so that the
// environment can set keys the config file does not mention.  Boolean
// defaults that differ from false are registered here as well because
// ApplyDefaults cannot tell an explicit false from an absent key.
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"server.host", "server.port", "server.mode", "server.read_timeout",
		"server.write_timeout", "server.max_body_size", "server.shutdown_timeout",
		"server.rate_limit", "server.rate_burst", "server.allowed_origins",
		"backend.base_url", "backend.timeout", "backend.poll_interval",
		"backend.create_if_missing", "backend.user_agent",
		"compare.cache_ttl", "compare.stale_after", "compare.max_technologies",
		"redis.enabled", "redis.addr", "redis.password", "redis.db", "redis.pool_size",
		"redis.dial_timeout", "redis.read_timeout", "redis.write_timeout", "redis.key_prefix",
		"kafka.enabled", "kafka.brokers", "kafka.group_id", "kafka.status_topic",
		"kafka.readiness_topic", "kafka.dead_letter_topic", "kafka.max_retries",
		"kafka.min_bytes", "kafka.max_bytes", "kafka.max_wait", "kafka.start_from_first",
		"minio.enabled", "minio.endpoint", "minio.access_key", "minio.secret_key",
		"minio.bucket", "minio.prefix", "minio.use_ssl",
		"neo4j.enabled", "neo4j.uri", "neo4j.user", "neo4j.password", "neo4j.database",
		"neo4j.max_connection_pool_size", "neo4j.connection_timeout", "neo4j.max_depth",
		"metrics.enabled", "metrics.namespace", "metrics.path",
		"log.level", "log.format", "log.output_paths", "log.error_output_paths",
	} {
		_ = v.BindEnv(key)
	}
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("backend.create_if_missing", true)
}

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func setInt(dst *int, def int) {
	if *dst == 0 {
		*dst = def
	}
}

func setDuration(dst *time.Duration, def time.Duration) {
	if *dst == 0 {
		*dst = def
	}
}
