// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/qconnect/qconnect/internal/accounts"
	"github.com/qconnect/qconnect/internal/auth"
	"github.com/qconnect/qconnect/internal/cache"
	"github.com/qconnect/qconnect/internal/config"
	"github.com/qconnect/qconnect/internal/database"
	"github.com/qconnect/qconnect/internal/handlers"
	"github.com/qconnect/qconnect/internal/leaderboard"
	"github.com/qconnect/qconnect/internal/livescore"
	"github.com/qconnect/qconnect/internal/realtime"
	"github.com/qconnect/qconnect/internal/tally"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:          "qconnect",
		Short:        "QConnect live quiz backend",
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP and realtime server (default)",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create the database schema and exit",
			RunE:  runMigrate,
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := cfg.NewLogger()

	store, err := database.Open(cmd.Context(), cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(cmd.Context()); err != nil {
		return err
	}
	logger.Info("schema is up to date")
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return err
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

	hasher, err := auth.NewHasher(auth.DefaultParams())
	if err != nil {
		return err
	}

	var (
		board livescore.Board = livescore.NewMemoryBoard()
		sink  realtime.EventSink
	)
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()

		board = livescore.NewRedisBoard(rdb, cfg.LiveScoreKey)
		queue := cache.NewEventQueue(rdb, cfg.EventQueue, logger)
		queueCtx, stopQueue := context.WithCancel(ctx)
		queueDone := make(chan struct{})
		go func() {
			queue.Run(queueCtx)
			close(queueDone)
		}()
		defer func() {
			stopQueue()
			<-queueDone
		}()
		sink = queue
		logger.Infof("live scores and event journal on redis %s", cfg.RedisAddr)
	}

	hub := realtime.NewHub(cfg.QuizRoom, sink, logger)
	router := handlers.NewRouter(handlers.Deps{
		Logger:           logger,
		Store:            store,
		Ledger:           leaderboard.NewLedger(store),
		Tally:            tally.New(store),
		Accounts:         accounts.NewDirectory(store, hasher, cfg.AdminEmails, logger, accounts.WithHashConcurrency(cfg.HashConcurrency)),
		LiveScores:       livescore.NewTracker(board),
		Hub:              hub,
		AllowedOrigins:   cfg.AllowedOrigins,
		LeaderboardLimit: cfg.LeaderboardLimit,
	})

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Shutdown does not track hijacked websocket connections.
	srv.RegisterOnShutdown(hub.CloseAll)

	return serve(ctx, srv, ln, cfg.ShutdownTimeout, logger)
}

// serve runs srv on ln until ctx is cancelled, then shuts it down gracefully.
// In-flight requests keep their own contexts and get up to shutdownTimeout
// to finish.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, shutdownTimeout time.Duration, logger *logrus.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Running on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server exited: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
