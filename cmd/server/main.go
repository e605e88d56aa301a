package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/waustin14/storyfill/internal"
)

func main() {
	cfg, err := internal.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)

	bucketStore := bucketStoreFor(cfg, logger)
	limiter := internal.NewLimiter(bucketStore)

	bus := internal.NewBus()
	store := internal.NewRoomStore(cfg.RoomConfig(), bus, logger)
	narration := internal.NewNarrationFacade()
	handler := internal.NewHandler(store, narration, limiter, logger)
	hub := internal.NewHub(store, bus, logger)

	mux := http.NewServeMux()
	mux.Handle("/", handler.Routes())
	mux.HandleFunc("/ws/rooms/{code}", hub.ServeWS)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("storyfill server starting", "port", cfg.Port, "log_level", cfg.LogLevel)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	hub.Stop()
	store.Stop(ctx)

	logger.Info("storyfill server stopped")
}

// bucketStoreFor backs the rate limiter with Redis when STORYFILL_REDIS_ADDR
// is set, falling back to the in-process store for a single-instance
// deployment (spec §4.8: swappable without changing call sites).
func bucketStoreFor(cfg *internal.Config, logger *slog.Logger) internal.BucketStore {
	if cfg.RedisAddr == "" {
		return internal.NewMemoryBucketStore()
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	logger.Info("rate limiter backed by redis", "addr", cfg.RedisAddr)
	return internal.NewRedisBucketStore(client, "storyfill:ratelimit:")
}

func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel, AddSource: level == "debug"}

	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(h)
}
