package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/splitsync/internal/auth"
	"github.com/mmynk/splitsync/internal/config"
	"github.com/mmynk/splitsync/internal/middleware"
	"github.com/mmynk/splitsync/internal/server"
	"github.com/mmynk/splitsync/internal/service"
	"github.com/mmynk/splitsync/internal/session"
	"github.com/mmynk/splitsync/internal/storage/postgres"
	"github.com/mmynk/splitsync/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized")

	sessions, err := session.NewRedisStore(ctx, cfg.RedisAddr)
	if err != nil {
		slog.Error("Failed to initialize session store", "error", err)
		os.Exit(1)
	}
	defer sessions.Close()
	slog.Info("Session store initialized", "addr", cfg.RedisAddr)

	capacity := session.NewController(sessions, cfg.MaxSessions)
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.SessionTTL)

	groups := service.NewGroupService(store)
	invites := service.NewInviteCodeAllocator(store)
	content := service.NewContentService(store)
	sync := service.NewSyncService(store)
	accounts := auth.NewPasswordAuthenticator(store)
	authService := auth.NewService(store, sessions, capacity, groups, jwtManager, cfg.SessionTTL)

	srv := server.New(groups, invites, content, sync, authService, accounts)
	mux := srv.Routes(middleware.RequireAuth(jwtManager, sessions, cfg.SessionTTL))

	metrics := middleware.Metrics(mux)
	handler := middleware.Logging(middleware.CORS(metrics(mux)))
	h2cHandler := h2c.NewHandler(handler, &http2.Server{})

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h2cHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("Shutdown failed", "error", err)
		}
	}()

	slog.Info("Server starting", "address", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped")
}
