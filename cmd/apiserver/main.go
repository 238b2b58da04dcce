// Command apiserver serves the entigo resolution API over HTTP and,
// when enabled, gRPC.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/entigo/internal/application/resolution"
	"github.com/turtacn/entigo/internal/config"
	"github.com/turtacn/entigo/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/entigo/internal/infrastructure/monitoring/prometheus"
	grpcserver "github.com/turtacn/entigo/internal/interfaces/grpc"
	httpserver "github.com/turtacn/entigo/internal/interfaces/http"
	"github.com/turtacn/entigo/internal/interfaces/http/handlers"
	"github.com/turtacn/entigo/internal/interfaces/http/middleware"
)

const defaultConfigPath = "configs/config.yaml"

// version is injected via ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the configuration")
	watch := flag.Bool("watch", true, "reload detectors when the configuration file changes")
	flag.Parse()

	if err := run(*configPath, *envFile, *watch); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, envFile string, watch bool) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	logging.SetDefault(logger)

	logger.Info("starting entigo API server",
		logging.String("version", version),
		logging.String("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)),
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

	if watch && configPath != "" {
		if err := resolution.WatchDetectors(configPath, svc, engineMetrics, logger); err != nil {
			logger.WithError(err).Warn("configuration watch disabled")
		}
	}

	routerCfg := httpserver.RouterConfig{
		ResolutionHandler: handlers.NewResolutionHandler(svc, logger.Named("http")),
		HealthHandler: handlers.NewHealthHandler(version, handlers.CheckerFunc{
			ComponentName: "resolution",
			Fn:            svc.Ready,
		}),
		Logging:          middleware.DefaultLoggingConfig(),
		MaxBodySize:      cfg.Server.MaxBodySize,
		Logger:           logger.Named("http"),
		Metrics:          metrics,
		MetricsCollector: collector,
		MetricsPath:      cfg.Metrics.Path,
	}
	if len(cfg.Server.CORSAllowedOrigins) > 0 {
		cors := middleware.DefaultCORSConfig()
		cors.AllowedOrigins = cfg.Server.CORSAllowedOrigins
		cors.AllowWildcard = true
		routerCfg.CORS = &cors
	}
	if rl := cfg.Server.RateLimit; rl.Enabled {
		limit := middleware.DefaultRateLimitConfig()
		limit.RequestsPerSecond = rl.RequestsPerSecond
		limit.Burst = rl.Burst
		if cfg.Metrics.Path != "" {
			limit.SkipPaths = append(limit.SkipPaths, cfg.Metrics.Path)
		}
		routerCfg.RateLimiter = middleware.NewRateLimiter(limit)
	}

	gin.SetMode(cfg.Server.Mode)
	srv := httpserver.NewServer(cfg.Server, httpserver.NewRouter(routerCfg), logger.Named("http"))

	errCh := make(chan error, 2)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var grpcSrv *grpcserver.Server
	if cfg.GRPC.Enabled {
		grpcSrv, err = grpcserver.NewServer(cfg.GRPC,
			grpcserver.WithLogger(logger.Named("grpc")),
			grpcserver.WithMetrics(metrics))
		if err != nil {
			return err
		}
		grpcSrv.RegisterService(&grpcserver.ResolutionServiceDesc, grpcserver.NewResolutionServer(svc))
		go func() {
			if err := grpcSrv.Start(); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	var serveErr error
	select {
	case serveErr = <-errCh:
		logger.Error("server failed", logging.Err(serveErr))
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if grpcSrv != nil {
		_ = grpcSrv.Stop(shutdownCtx)
	}
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", logging.Err(err))
		return err
	}
	if serveErr != nil {
		return serveErr
	}
	logger.Info("entigo API server stopped")
	return nil
}

//Personal.AI order the ending
