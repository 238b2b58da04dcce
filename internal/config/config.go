// Package config defines the configuration structures for entigo.  No I/O or
// parsing logic lives here, only plain data types and validation.
package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/turtacn/entigo/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/entigo/internal/intelligence/entity_detect"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// CORSAllowedOrigins enables CORS for the listed origins; "*" allows any.
	CORSAllowedOrigins []string        `mapstructure:"cors_allowed_origins"`
	RateLimit          RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig bounds the request rate per client address.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// GRPCConfig holds the gRPC listener tunables.  The listener is off unless
// Enabled is set.
type GRPCConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	MaxRecvMsgSize  int           `mapstructure:"max_recv_msg_size"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

// RedisConfig holds Redis connection parameters for the result cache.
type RedisConfig struct {
	Mode         string        `mapstructure:"mode"` // "standalone" | "cluster" | "sentinel"
	Addr         string        `mapstructure:"addr"`
	Addrs        []string      `mapstructure:"addrs"`
	MasterName   string        `mapstructure:"master_name"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// CacheConfig controls caching of resolution results.
type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	TTL       time.Duration `mapstructure:"ttl"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds the utterance worker's Kafka parameters.
type KafkaConfig struct {
	Brokers         []string      `mapstructure:"brokers"`
	GroupID         string        `mapstructure:"group_id"`
	InputTopic      string        `mapstructure:"input_topic"`
	OutputTopic     string        `mapstructure:"output_topic"`
	AutoOffsetReset string        `mapstructure:"auto_offset_reset"` // "earliest" | "latest"
	MaxWait         time.Duration `mapstructure:"max_wait"`
	Concurrency     int           `mapstructure:"concurrency"`
}

// MetricsConfig controls the prometheus registry and scrape endpoint.
type MetricsConfig struct {
	Enabled              bool   `mapstructure:"enabled"`
	Path                 string `mapstructure:"path"`
	Namespace            string `mapstructure:"namespace"`
	EnableProcessMetrics bool   `mapstructure:"enable_process_metrics"`
	EnableGoMetrics      bool   `mapstructure:"enable_go_metrics"`
}

// DetectorConfig declares one detector.  Exactly one of Builtin and Pattern
// is set.
type DetectorConfig struct {
	Name string `mapstructure:"name"`

	// Builtin names a built-in detector ("email", "phone", "number", "url").
	Builtin string `mapstructure:"builtin"`

	// Pattern is a regex template; @NAME placeholders are dependencies.
	Pattern string `mapstructure:"pattern"`

	Anonymize         bool `mapstructure:"anonymize"`
	MatchWholeWords   bool `mapstructure:"match_whole_words"`
	ReplaceDiacritics bool `mapstructure:"replace_diacritics"`

	// ExtractValue names the dependency that supplies the value.
	ExtractValue string `mapstructure:"extract_value"`

	// ValueExpr is a CEL expression computing the value from the match.
	ValueExpr string `mapstructure:"value_expr"`

	// Dependencies of a builtin detector.
	Dependencies []string `mapstructure:"dependencies"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig         `mapstructure:"server"`
	GRPC      GRPCConfig           `mapstructure:"grpc"`
	Redis     RedisConfig          `mapstructure:"redis"`
	Cache     CacheConfig          `mapstructure:"cache"`
	Kafka     KafkaConfig          `mapstructure:"kafka"`
	Log       logging.LogConfig    `mapstructure:"log"`
	Metrics   MetricsConfig        `mapstructure:"metrics"`
	Engine    entity_detect.Config `mapstructure:"engine"`
	Detectors []DetectorConfig     `mapstructure:"detectors"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

var detectorNameRe = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

// Validate performs semantic validation of the fully-populated Config.  It
// returns the first error encountered.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}
	if rl := c.Server.RateLimit; rl.Enabled && (rl.RequestsPerSecond <= 0 || rl.Burst < 1) {
		return fmt.Errorf("config: server.rate_limit requires requests_per_second > 0 and burst >= 1")
	}
	if c.GRPC.Enabled {
		if c.GRPC.Port < 1 || c.GRPC.Port > 65535 {
			return fmt.Errorf("config: grpc.port %d is out of range [1, 65535]", c.GRPC.Port)
		}
		if c.GRPC.Port == c.Server.Port {
			return fmt.Errorf("config: grpc.port %d collides with server.port", c.GRPC.Port)
		}
		if c.GRPC.MaxRecvMsgSize < 0 {
			return fmt.Errorf("config: grpc.max_recv_msg_size must be ≥ 0, got %d", c.GRPC.MaxRecvMsgSize)
		}
	}

	if c.Cache.Enabled {
		if c.Redis.Addr == "" && len(c.Redis.Addrs) == 0 {
			return fmt.Errorf("config: redis.addr is required when cache.enabled is set")
		}
		if c.Cache.TTL < 0 {
			return fmt.Errorf("config: cache.ttl must be ≥ 0, got %s", c.Cache.TTL)
		}
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be ≥ 0, got %d", c.Redis.DB)
	}

	if c.Kafka.Concurrency < 0 {
		return fmt.Errorf("config: kafka.concurrency must be ≥ 0, got %d", c.Kafka.Concurrency)
	}
	switch c.Kafka.AutoOffsetReset {
	case "", "earliest", "latest":
	default:
		return fmt.Errorf("config: kafka.auto_offset_reset %q is invalid; expected earliest|latest", c.Kafka.AutoOffsetReset)
	}

	switch c.Log.Level {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	if c.Engine.MaxIterations < 0 {
		return fmt.Errorf("config: engine.max_iterations must be ≥ 0, got %d", c.Engine.MaxIterations)
	}

	seen := make(map[string]bool, len(c.Detectors))
	for i, d := range c.Detectors {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("config: detectors[%d]: %w", i, err)
		}
		if seen[d.Name] {
			return fmt.Errorf("config: detectors[%d]: duplicate name %q", i, d.Name)
		}
		seen[d.Name] = true
	}
	return nil
}

// Validate checks a single detector declaration.
func (d DetectorConfig) Validate() error {
	if !detectorNameRe.MatchString(d.Name) {
		return fmt.Errorf("name %q must match %s", d.Name, detectorNameRe)
	}
	if (d.Builtin == "") == (d.Pattern == "") {
		return fmt.Errorf("%s: exactly one of builtin or pattern is required", d.Name)
	}
	if d.Builtin != "" && (d.ExtractValue != "" || d.ValueExpr != "" || d.MatchWholeWords || d.ReplaceDiacritics) {
		return fmt.Errorf("%s: extract_value, value_expr and matching options apply to patterns only", d.Name)
	}
	if d.Pattern != "" && len(d.Dependencies) > 0 {
		return fmt.Errorf("%s: pattern dependencies come from @NAME placeholders", d.Name)
	}
	if d.ExtractValue != "" && d.ValueExpr != "" {
		return fmt.Errorf("%s: extract_value and value_expr are mutually exclusive", d.Name)
	}
	return nil
}

//Personal.AI order the ending
