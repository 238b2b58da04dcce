// Command worker consumes utterances from Kafka, resolves their entities and
// publishes the results.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/entigo/internal/application/resolution"
	"github.com/turtacn/entigo/internal/config"
	"github.com/turtacn/entigo/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/entigo/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/entigo/internal/infrastructure/monitoring/prometheus"
	httpserver "github.com/turtacn/entigo/internal/interfaces/http"
	"github.com/turtacn/entigo/internal/interfaces/http/handlers"
	"github.com/turtacn/entigo/internal/interfaces/http/middleware"
	"github.com/turtacn/entigo/internal/interfaces/worker"
)

const (
	defaultWorkerConfigPath = "configs/config.yaml"
	defaultMaxRetries       = 3
	drainTimeout            = 30 * time.Second
)

// version is injected via ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", defaultWorkerConfigPath, "path to configuration file")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the configuration")
	concurrency := flag.Int("concurrency", 0, "consumer group members in this process (overrides config)")
	deadLetter := flag.String("dead-letter-topic", "", "topic receiving messages that exhausted their retries")
	flag.Parse()

	if err := run(*configPath, *envFile, *concurrency, *deadLetter); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, envFile string, concurrency int, deadLetter string) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if concurrency > 0 {
		cfg.Kafka.Concurrency = concurrency
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	logging.SetDefault(logger)

	logger.Info("starting entigo worker",
		logging.String("version", version),
		logging.Strings("brokers", cfg.Kafka.Brokers),
		logging.String("input_topic", cfg.Kafka.InputTopic),
		logging.String("output_topic", cfg.Kafka.OutputTopic),
		logging.Int("concurrency", cfg.Kafka.Concurrency),
	)

	collector, metrics, err := resolution.NewMetrics(cfg.Metrics, logger.Named("metrics"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svcOpts := []resolution.Option{
		resolution.WithLogger(logger.Named("resolution")),
		resolution.WithMetrics(metrics),
	}
	if cfg.Cache.Enabled {
		client, cache, err := resolution.NewCache(ctx, cfg, logger.Named("redis"))
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		svcOpts = append(svcOpts, resolution.WithCache(cache, cfg.Cache.TTL))
	}

	engineMetrics := prometheus.NewEngineMetrics(metrics)
	engine, err := resolution.BuildEngine(cfg, logger, engineMetrics)
	if err != nil {
		return err
	}
	svc := resolution.NewService(engine, svcOpts...)
	if configPath != "" {
		if err := resolution.WatchDetectors(configPath, svc, engineMetrics, logger); err != nil {
			logger.WithError(err).Warn("configuration watch disabled")
		}
	}

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
		Acks:    "all",
	}, logger.Named("kafka"))
	if err != nil {
		return fmt.Errorf("failed to create kafka producer: %w", err)
	}
	defer func() { _ = producer.Close() }()

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:         cfg.Kafka.Brokers,
		GroupID:         cfg.Kafka.GroupID,
		Topics:          []string{cfg.Kafka.InputTopic},
		AutoOffsetReset: cfg.Kafka.AutoOffsetReset,
		MaxWait:         cfg.Kafka.MaxWait,
		Concurrency:     cfg.Kafka.Concurrency,
		RetryConfig: kafka.RetryConfig{
			MaxRetries:      defaultMaxRetries,
			RetryBackoff:    time.Second,
			MaxRetryBackoff: 10 * time.Second,
			DeadLetterTopic: deadLetter,
		},
	}, logger.Named("kafka"))
	if err != nil {
		return fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	w := worker.New(svc, producer, worker.Config{
		InputTopic:  cfg.Kafka.InputTopic,
		OutputTopic: cfg.Kafka.OutputTopic,
	}, worker.WithLogger(logger.Named("worker")), worker.WithMetrics(metrics))
	w.Register(consumer)

	gin.SetMode(cfg.Server.Mode)
	// Health and metrics only; the resolution API is served by apiserver.
	healthSrv := httpserver.NewServer(cfg.Server, httpserver.NewRouter(httpserver.RouterConfig{
		HealthHandler: handlers.NewHealthHandler(version, handlers.CheckerFunc{
			ComponentName: "resolution",
			Fn:            svc.Ready,
		}),
		Logging:          middleware.DefaultLoggingConfig(),
		Logger:           logger.Named("http"),
		Metrics:          metrics,
		MetricsCollector: collector,
		MetricsPath:      cfg.Metrics.Path,
	}), logger.Named("http"))
	go func() {
		if err := healthSrv.Start(); err != nil {
			logger.WithError(err).Error("health server failed")
		}
	}()

	if err := consumer.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	logger.Info("shutdown signal received, draining in-flight messages")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- consumer.Close() }()
	select {
	case err := <-done:
		if err != nil {
			logger.WithError(err).Warn("kafka consumer close failed")
		}
	case <-shutdownCtx.Done():
		logger.Warn("drain timeout exceeded, forcing exit")
	}

	if err := healthSrv.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Warn("health server shutdown failed")
	}
	logger.Info("entigo worker stopped",
		logging.Int64("processed", consumer.Processed()),
		logging.Int64("failed", consumer.Failed()))
	return nil
}

//Personal.AI order the ending
