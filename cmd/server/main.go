// Command bankcards-server starts the bank-cards HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/imalykh/bankcards/internal/config"
	"github.com/imalykh/bankcards/internal/crypto/cardcipher"
	"github.com/imalykh/bankcards/internal/limiter"
	"github.com/imalykh/bankcards/internal/migrate"
	"github.com/imalykh/bankcards/internal/repository/postgres"
	"github.com/imalykh/bankcards/internal/server/httpapi"
	"github.com/imalykh/bankcards/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, runs migrations, and serves the HTTP API until
// interrupted.
func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(".")
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.ServerAddr),
	)

	cardKey, err := cfg.CardKey()
	if err != nil {
		logger.Fatal("card key", zap.Error(err))
	}
	cipher, err := cardcipher.New(cardKey)
	if err != nil {
		logger.Fatal("card cipher", zap.Error(err))
	}

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DatabaseURL); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("postgres.New", zap.Error(err))
	}
	defer db.Close()

	// Repositories
	userRepo := postgres.NewUserRepo(db)
	cardRepo := postgres.NewCardRepo(db)

	lim := limiter.NewPGWithQuerier(db.Pool, cfg.LoginWindow, cfg.LoginMaxFails, cfg.LoginBlockFor)

	// Services
	authSvc := service.NewAuthService(userRepo, []byte(cfg.JWTKey), cfg.AccessTTL, lim)
	cardSvc := service.NewCardService(cardRepo, userRepo, cipher, logger)
	userSvc := service.NewUserService(userRepo)

	handlers := httpapi.NewHandlers(authSvc, cardSvc, userSvc)
	router := httpapi.NewRouter(logger, handlers, []byte(cfg.JWTKey))

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.ServerAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
