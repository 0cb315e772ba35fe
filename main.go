package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"budgetbee/internal/api"
	"budgetbee/internal/auth"
	"budgetbee/internal/certs"
	"budgetbee/internal/classifier"
	"budgetbee/internal/config"
	"budgetbee/internal/database"
	"budgetbee/internal/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "budgetbee: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.UsesPlaceholderSecret() {
		logger.Warn(ctx, "using the development session secret; set SESSION_SECRET before deploying")
	}

	// Account Store
	logger.Info(ctx, "opening database", "path", cfg.DB.Path)
	db, err := database.Open(ctx, database.Config{Path: cfg.DB.Path})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	users := database.NewUserRepo(db)
	if count, err := users.Count(ctx); err == nil {
		logger.Info(ctx, "database ready, schema migrated", "users", count)
	}

	// Auth Service
	authSvc, err := auth.NewService(users, cfg.Auth.BcryptCost, logger)
	if err != nil {
		return fmt.Errorf("init auth service: %w", err)
	}

	revoked, closeRevoked, err := newRevocationStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRevoked()
	sessions := auth.NewSessionManager([]byte(cfg.Session.Secret), cfg.Session.TTL, revoked)

	// Classifier Adapter
	model := loadModel(ctx, cfg, logger)

	limiter := auth.DefaultRateLimiter()
	limiter.StartCleanup(ctx, 5*time.Minute)

	// Controller
	h := api.NewHandler(api.Deps{
		Accounts: authSvc,
		Sessions: sessions,
		Limiter:  limiter,
		Model:    model,
		Logger:   logger.With("component", "http"),
	})
	e, err := api.NewServer(h, api.ServerOptions{
		SecureCookies: cfg.HTTP.TLSEnabled,
		TrustProxy:    cfg.HTTP.TrustProxy,
	})
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      e,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.HTTP.TLSEnabled {
			var certPath, keyPath string
			certPath, keyPath, err = certs.EnsureCertificates(cfg.HTTP.TLSCertDir)
			if err == nil {
				logger.Info(ctx, "starting BudgetBee", "addr", cfg.HTTP.Addr, "tls", true, "env", cfg.App.Env)
				err = srv.ListenAndServeTLS(certPath, keyPath)
			}
		} else {
			logger.Info(ctx, "starting BudgetBee", "addr", cfg.HTTP.Addr, "tls", false, "env", cfg.App.Env)
			err = srv.ListenAndServe()
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newRevocationStore picks redis when configured, else process memory.
func newRevocationStore(ctx context.Context, cfg *config.Config, logger logging.Logger) (auth.RevocationStore, func(), error) {
	if !cfg.RedisEnabled() {
		return auth.NewMemoryRevocationStore(), func() {}, nil
	}

	opts := &redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	if cfg.Redis.URL != "" {
		parsed, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		opts = parsed
	}

	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("connect redis at %s: %w", opts.Addr, err)
	}

	logger.Info(ctx, "session revocation backed by redis", "addr", opts.Addr)
	return auth.NewRedisRevocationStore(rdb), func() { _ = rdb.Close() }, nil
}

func loadModel(ctx context.Context, cfg *config.Config, logger logging.Logger) classifier.LoadResult {
	opts := classifier.LoadOptions{FallbackLabel: cfg.Model.FallbackLabel}
	if classifier.IsS3Location(cfg.Model.Path) {
		client, err := classifier.NewS3Client(ctx, classifier.S3Options{
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		})
		if err != nil {
			logger.Warn(ctx, "s3 client unavailable", "error", err)
		} else {
			opts.S3 = client
		}
	}

	res := classifier.Load(ctx, cfg.Model.Path, opts)
	if res.Fallback {
		logger.Warn(ctx, "model not loaded, answering with fallback label",
			"label", cfg.Model.FallbackLabel, "error", res.Err)
	} else {
		logger.Info(ctx, "model loaded", "source", res.Source)
	}
	return res
}
