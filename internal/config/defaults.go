package config

import (
	"time"

	"github.com/turtacn/entigo/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerHost            = "0.0.0.0"
	DefaultServerPort            = 8080
	DefaultServerMode            = "release"
	DefaultServerReadTimeout     = 15 * time.Second
	DefaultServerWriteTimeout    = 15 * time.Second
	DefaultServerShutdownTimeout = 10 * time.Second
	DefaultMaxBodySize           = 1 << 20
	DefaultRateLimitRPS          = 50
	DefaultRateLimitBurst        = 100

	DefaultGRPCHost            = "0.0.0.0"
	DefaultGRPCPort            = 9090
	DefaultGRPCMaxRecvMsgSize  = 4 << 20
	DefaultGRPCGracefulTimeout = 10 * time.Second

	DefaultRedisMode     = "standalone"
	DefaultRedisAddr     = "localhost:6379"
	DefaultRedisPoolSize = 10

	DefaultCacheTTL       = 10 * time.Minute
	DefaultCacheKeyPrefix = "entigo:"

	DefaultKafkaBroker      = "localhost:9092"
	DefaultKafkaGroupID     = "entigo-worker"
	DefaultKafkaInputTopic  = "entigo.utterances"
	DefaultKafkaOutputTopic = "entigo.resolved"
	DefaultKafkaMaxWait     = 500 * time.Millisecond
	DefaultKafkaConcurrency = 4

	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "entigo"

	DefaultLogLevel  = logging.LevelInfo
	DefaultLogFormat = "json"
)

// DefaultDetectors returns the built-in detectors used when a configuration
// declares none.
func DefaultDetectors() []DetectorConfig {
	return []DetectorConfig{
		{Name: "EMAIL", Builtin: "email", Anonymize: true},
		{Name: "PHONE", Builtin: "phone", Anonymize: true},
		{Name: "URL", Builtin: "url", Anonymize: true},
		{Name: "NUMBER", Builtin: "number"},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// ApplyDefaults
// ─────────────────────────────────────────────────────────────────────────────

// ApplyDefaults fills every zero-value field in cfg with its default.  Fields
// that have already been set are left unchanged.  A nil Detectors slice gets
// DefaultDetectors; an explicitly empty list stays empty.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultServerHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultServerReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultServerWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultServerShutdownTimeout
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.Server.RateLimit.RequestsPerSecond == 0 {
		cfg.Server.RateLimit.RequestsPerSecond = DefaultRateLimitRPS
	}
	if cfg.Server.RateLimit.Burst == 0 {
		cfg.Server.RateLimit.Burst = DefaultRateLimitBurst
	}

	// ── gRPC ──────────────────────────────────────────────────────────────────
	if cfg.GRPC.Host == "" {
		cfg.GRPC.Host = DefaultGRPCHost
	}
	if cfg.GRPC.Port == 0 {
		cfg.GRPC.Port = DefaultGRPCPort
	}
	if cfg.GRPC.MaxRecvMsgSize == 0 {
		cfg.GRPC.MaxRecvMsgSize = DefaultGRPCMaxRecvMsgSize
	}
	if cfg.GRPC.GracefulTimeout == 0 {
		cfg.GRPC.GracefulTimeout = DefaultGRPCGracefulTimeout
	}

	// ── Redis / cache ─────────────────────────────────────────────────────────
	if cfg.Redis.Mode == "" {
		cfg.Redis.Mode = DefaultRedisMode
	}
	if cfg.Redis.Addr == "" && len(cfg.Redis.Addrs) == 0 {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = DefaultRedisPoolSize
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = DefaultCacheTTL
	}
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = DefaultCacheKeyPrefix
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.InputTopic == "" {
		cfg.Kafka.InputTopic = DefaultKafkaInputTopic
	}
	if cfg.Kafka.OutputTopic == "" {
		cfg.Kafka.OutputTopic = DefaultKafkaOutputTopic
	}
	if cfg.Kafka.AutoOffsetReset == "" {
		cfg.Kafka.AutoOffsetReset = "earliest"
	}
	if cfg.Kafka.MaxWait == 0 {
		cfg.Kafka.MaxWait = DefaultKafkaMaxWait
	}
	if cfg.Kafka.Concurrency == 0 {
		cfg.Kafka.Concurrency = DefaultKafkaConcurrency
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Detectors ─────────────────────────────────────────────────────────────
	if cfg.Detectors == nil {
		cfg.Detectors = DefaultDetectors()
	}
}

// NewDefaultConfig returns a fully defaulted Config with metrics enabled and
// the cache disabled, suitable for config-less CLI runs.
func NewDefaultConfig() *Config {
	cfg := &Config{
		Metrics: MetricsConfig{Enabled: true},
	}
	ApplyDefaults(cfg)
	return cfg
}

//Personal.AI order the ending
