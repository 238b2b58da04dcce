package resolution

import (
	"context"
	"fmt"

	"github.com/turtacn/entigo/internal/config"
	"github.com/turtacn/entigo/internal/infrastructure/database/redis"
	"github.com/turtacn/entigo/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/entigo/internal/infrastructure/monitoring/prometheus"
)

// NewMetrics builds the prometheus collector and the metric set.  Both are
// nil when metrics are disabled.
func NewMetrics(cfg config.MetricsConfig, logger logging.Logger) (prometheus.MetricsCollector, *prometheus.AppMetrics, error) {
	if !cfg.Enabled {
		return nil, nil, nil
	}
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            cfg.Namespace,
		EnableProcessMetrics: cfg.EnableProcessMetrics,
		EnableGoMetrics:      cfg.EnableGoMetrics,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	return collector, prometheus.NewAppMetrics(collector), nil
}

// NewCache connects to Redis and returns the client with the result cache
// on top of it.  The caller closes the client.
func NewCache(ctx context.Context, cfg *config.Config, logger logging.Logger) (*redis.Client, redis.Cache, error) {
	client, err := redis.NewClient(ctx, redis.Config{
		Mode:         cfg.Redis.Mode,
		Addr:         cfg.Redis.Addr,
		Addrs:        cfg.Redis.Addrs,
		MasterName:   cfg.Redis.MasterName,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	opts := []redis.CacheOption{redis.WithDefaultTTL(cfg.Cache.TTL)}
	if cfg.Cache.KeyPrefix != "" {
		opts = append(opts, redis.WithPrefix(cfg.Cache.KeyPrefix))
	}
	return client, redis.NewRedisCache(client, logger, opts...), nil
}

// WatchDetectors rebuilds the engine from configPath whenever the file is
// edited and swaps it into svc.  A rejected edit keeps the running engine.
// Settings other than detectors and engine limits need a restart.
func WatchDetectors(configPath string, svc Service, metrics *prometheus.EngineMetrics, logger logging.Logger) error {
	return config.Watch(configPath, func(next *config.Config) {
		engine, err := BuildEngine(next, logger, metrics)
		if err != nil {
			logger.WithError(err).Error("detector reload rejected, keeping current engine")
			return
		}
		svc.SetEngine(engine)
		logger.Info("detectors reloaded", logging.Int("detectors", len(next.Detectors)))
	}, func(err error) {
		logger.WithError(err).Warn("configuration change ignored")
	})
}

//Personal.AI order the ending
