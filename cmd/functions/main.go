/*
Package main is the entry point of the functions service.

It loads the configuration, initializes the global logger, connects to Postgres and applies
the migrations, mounts the auth, room and realtime endpoints, and shuts the HTTP server
down gracefully on SIGINT or SIGTERM.
*/
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

	"github.com/joho/godotenv"

	"github.com/higgyo/app-dam/internal/app/db"
	"github.com/higgyo/app-dam/internal/app/feed"
	"github.com/higgyo/app-dam/internal/app/gateway"
	"github.com/higgyo/app-dam/internal/configs"
	"github.com/higgyo/app-dam/internal/handler"
	"github.com/higgyo/app-dam/internal/pkg/logx"
)

func main() {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg, err := configs.LoadServerConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Float64("create_room_rate", cfg.RoomRate).
		Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logx.Fatal(err, "Failed to connect to the database")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logx.Fatal(err, "Failed to apply migrations")
	}

	queries := db.New(pool)
	changes := feed.NewPostgres(pool, feed.DefaultNotifyChannel)

	router, stopLimiters := handler.Router(&handler.AppDeps{
		Config:  cfg,
		Store:   queries,
		Gateway: gateway.New(changes, handler.RoomAuthorizer(queries, cfg.JWTSecret)),
	})
	defer stopLimiters()

	// Hijacked websocket connections outlive server.Shutdown, so their request contexts
	// hang off a base context that is cancelled on shutdown.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
	}
	server.RegisterOnShutdown(cancelBase)

	go func() {
		logx.Info(fmt.Sprintf("Functions service starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	logx.Info("Server gracefully stopped.")
}
