package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vaughan-dsouza/usersapi/internal/auth"
	"github.com/vaughan-dsouza/usersapi/internal/config"
	"github.com/vaughan-dsouza/usersapi/internal/db"
	"github.com/vaughan-dsouza/usersapi/internal/handlers"
	"github.com/vaughan-dsouza/usersapi/internal/logging"
	"github.com/vaughan-dsouza/usersapi/internal/service"
	"github.com/vaughan-dsouza/usersapi/internal/store"
)

const memoryDSN = "memory://"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error(context.Background(), "server failed", "error", err)
		stop()
		os.Exit(1)
	}
}

// run wires the application from cfg and serves until ctx ends.
func run(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	var (
		users  store.UserRepository
		pinger handlers.Pinger
	)
	if cfg.DatabaseURL == memoryDSN {
		logger.Warn(ctx, "using in-memory user store, data is lost on exit")
		users = store.NewMemoryUsers()
	} else {
		dbConn, err := db.Connect(ctx, cfg.DatabaseURL, db.PoolConfig{
			MaxOpen:     cfg.DBMaxOpen,
			MaxIdle:     cfg.DBMaxIdle,
			MaxLifetime: cfg.DBMaxLifetime,
		})
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer dbConn.Close()

		if cfg.AutoMigrate {
			if err := db.Migrate(ctx, dbConn); err != nil {
				return fmt.Errorf("db migrate: %w", err)
			}
		}
		users = store.NewPostgresUsers(dbConn)
		pinger = dbConn
	}

	var revocations auth.RevocationList
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis url: %w", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()

		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		revocations = auth.NewRedisRevocationList(client)
		logger.Info(ctx, "token revocation enabled")
	}

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return fmt.Errorf("token issuer: %w", err)
	}
	verifier, err := auth.NewVerifier(cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("token verifier: %w", err)
	}
	hasher := auth.NewHasher()

	authOpts := []service.AuthOption{service.WithAdminEmail(cfg.AdminEmail)}
	if revocations != nil {
		authOpts = append(authOpts, service.WithRevocations(revocations))
	}

	h := handlers.NewHandler(handlers.Deps{
		Auth:        service.NewAuthService(users, hasher, issuer, logger, authOpts...),
		Users:       service.NewUserService(users, hasher, logger),
		Verifier:    verifier,
		Revocations: revocations,
		DB:          pinger,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info(ctx, "listening", "addr", srv.Addr, "token_ttl", issuer.TTL().String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info(context.Background(), "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info(context.Background(), "server exited")
	return nil
}
