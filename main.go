package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-pool/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-pool/pkg/adapters/datasource/mssql"    // registers with -tags mssql
	_ "github.com/ekaya-inc/ekaya-pool/pkg/adapters/datasource/mysql"    // default driver
	_ "github.com/ekaya-inc/ekaya-pool/pkg/adapters/datasource/postgres" // registers with -tags postgres
	"github.com/ekaya-inc/ekaya-pool/pkg/config"
	"github.com/ekaya-inc/ekaya-pool/pkg/handlers"
	"github.com/ekaya-inc/ekaya-pool/pkg/metrics"
	"github.com/ekaya-inc/ekaya-pool/pkg/middleware"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("type", cfg.Pool.Type),
		zap.String("database", cfg.Pool.User+"@"+cfg.Pool.Host+"/"+cfg.Pool.Database),
		zap.String("default_pool", cfg.Pool.DefaultPool),
		zap.Int("named_pools", len(cfg.Pools)),
		zap.Any("adapters", datasource.RegisteredAdapters()),
	)

	ctx := context.Background()
	collector := metrics.NewCollector("ekaya_pool", prometheus.DefaultRegisterer, logger)

	connMgr, err := datasource.NewConnectionManager(ctx, datasource.ConnectionManagerConfig{
		Type:           cfg.Pool.Type,
		Host:           cfg.Pool.Host,
		Port:           cfg.Pool.Port,
		User:           cfg.Pool.User,
		Password:       cfg.Pool.Password,
		Database:       cfg.Pool.Database,
		DefaultPool:    cfg.Pool.DefaultPool,
		Connections:    cfg.Pool.Connections,
		Autocommit:     cfg.Pool.Autocommit,
		StartSweeper:   cfg.Pool.StartSweeper,
		SweepInterval:  cfg.Pool.SweepInterval,
		ConnectTimeout: cfg.Pool.ConnectTimeout,
	}, logger, datasource.WithMetrics(collector))
	if err != nil {
		logger.Fatal("Failed to create connection manager", zap.Error(err))
	}

	for _, named := range cfg.Pools {
		p := named.Resolve(cfg.Pool)
		creds := datasource.Credentials{
			Type:           p.Type,
			Host:           p.Host,
			Port:           p.Port,
			User:           p.User,
			Password:       p.Password(cfg.Pool.Password),
			Database:       p.Database,
			Autocommit:     *p.Autocommit,
			ConnectTimeout: cfg.Pool.ConnectTimeout,
		}
		if _, err := connMgr.AddSessions(ctx, p.Name, creds, p.Connections); err != nil {
			logger.Fatal("Failed to add pool", zap.String("pool", p.Name), zap.Error(err))
		}
	}

	mux := http.NewServeMux()

	// Register handlers
	handlers.NewHealthHandler(cfg, connMgr, logger).RegisterRoutes(mux)
	handlers.NewPoolsHandler(connMgr, logger).RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting ekaya-pool", zap.String("addr", server.Addr), zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	if err := connMgr.Close(); err != nil {
		logger.Error("Connection manager shutdown error", zap.Error(err))
	}
	logger.Info("Shutdown complete")
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
