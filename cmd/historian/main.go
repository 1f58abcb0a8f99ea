// cmd/historian/main.go drains the realtime event journal from Redis into the
// quiz_events table.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/qconnect/qconnect/internal/cache"
	"github.com/qconnect/qconnect/internal/config"
	"github.com/qconnect/qconnect/internal/database"
	"github.com/qconnect/qconnect/internal/historian"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required for the historian")
	}
	logger := cfg.NewLogger()

	store, err := database.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer rdb.Close()

	svc := historian.NewService(
		cache.NewEventQueue(rdb, cfg.EventQueue, logger),
		store,
		historian.Options{
			BatchSize:     cfg.HistorianBatchSize,
			FlushInterval: cfg.HistorianFlushInterval,
		},
		logger,
	)
	svc.Run(ctx)
	return nil
}
