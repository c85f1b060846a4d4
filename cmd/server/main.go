// Package main is the entry point for the item service.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vyrodovalexey/item-service/internal/cache"
	"github.com/vyrodovalexey/item-service/internal/config"
	"github.com/vyrodovalexey/item-service/internal/handler"
	"github.com/vyrodovalexey/item-service/internal/server"
	"github.com/vyrodovalexey/item-service/internal/service"
	"github.com/vyrodovalexey/item-service/internal/store"
)

// storeOpenTimeout bounds connecting to the storage backend and Redis at startup.
const storeOpenTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		basicLogger, _ := zap.NewProduction()
		basicLogger.Error("failed to load configuration", zap.Error(err))
		return 1
	}

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		basicLogger, _ := zap.NewProduction()
		basicLogger.Error("failed to initialize logger", zap.Error(err))
		return 1
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("configuration loaded",
		zap.Int("server_port", cfg.ServerPort),
		zap.Int("probe_port", cfg.ProbePort),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("shutdown_timeout", cfg.ShutdownTimeout),
		zap.Bool("metrics_enabled", cfg.MetricsEnabled),
		zap.String("store_backend", cfg.StoreBackend),
		zap.Bool("cache_enabled", cfg.CacheEnabled()),
	)

	openCtx, cancelOpen := context.WithTimeout(context.Background(), storeOpenTimeout)
	itemStore, closeStore, err := openStore(openCtx, cfg, logger)
	cancelOpen()
	if err != nil {
		logger.Error("failed to open item store", zap.Error(err))
		return 1
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("failed to close item store", zap.Error(err))
		}
	}()

	wsHandler := handler.NewWebSocketHandler(logger)
	svc := service.New(itemStore, logger, wsHandler)
	srv := server.New(cfg, logger, svc, wsHandler)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", zap.Error(err))
		return 1
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
			return 1
		}
	}

	logger.Info("server stopped")
	return 0
}

// initLogger initializes a zap logger with the specified log level.
func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	zapConfig := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return zapConfig.Build()
}

// openStore builds the configured backend and its decorators: the Redis read
// cache when a Redis URL is set, then metrics when enabled. The returned close
// function releases everything that was opened.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, func() error, error) {
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("item store opened", zap.String("backend", cfg.StoreBackend))

	var itemStore store.Store = backend
	closers := []func() error{backend.Close}

	if cfg.CacheEnabled() {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			_ = backend.Close()
			return nil, nil, fmt.Errorf("connect redis cache: %w", err)
		}
		itemStore = store.NewCachedStore(itemStore, cache.NewItemCache(client, cfg.CacheTTL, cacheNamespace(cfg)), logger)
		closers = append(closers, client.Close)
		logger.Info("redis item cache enabled", zap.Duration("ttl", cfg.CacheTTL))
	}

	if cfg.MetricsEnabled {
		itemStore = store.NewInstrumentedStore(itemStore, cfg.StoreBackend)
	}

	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	return itemStore, closeAll, nil
}

// cacheNamespace isolates cache entries of a memory store, whose contents die
// with the process, from those written by earlier runs against the same Redis.
func cacheNamespace(cfg *config.Config) string {
	if cfg.StoreBackend == config.BackendMemory {
		return "memory-" + uuid.NewString()
	}
	return ""
}

func openBackend(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return store.NewMemoryStore(), nil
	case config.BackendFile:
		s, err := store.NewFileStore(cfg.StoreFilePath)
		if err != nil {
			return nil, fmt.Errorf("open file store: %w", err)
		}
		return s, nil
	case config.BackendSQLite:
		s, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	case config.BackendPostgres:
		s, err := store.NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.StoreBackend)
	}
}
