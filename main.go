package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"github.com/judyrop/catering-backend/handlers"
	"github.com/judyrop/catering-backend/internal/auth"
	"github.com/judyrop/catering-backend/internal/cart"
	"github.com/judyrop/catering-backend/internal/catalog"
	"github.com/judyrop/catering-backend/internal/config"
	"github.com/judyrop/catering-backend/internal/database"
	"github.com/judyrop/catering-backend/internal/logkey"
	"github.com/judyrop/catering-backend/internal/middleware"
	"github.com/judyrop/catering-backend/internal/notify"
	"github.com/judyrop/catering-backend/internal/orders"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String(logkey.Error, err.Error()))
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	if err := run(cfg); err != nil {
		slog.Error("server stopped", slog.String(logkey.Error, err.Error()))
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		return err
	}
	store, err := newCartStore(ctx, cfg)
	if err != nil {
		return err
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		go limiter.RunCleanup(ctx, time.Minute)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           SetupRouter(db, cfg, verifier, store, newNotifier(cfg), limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// SetupRouter wires the services over db into the HTTP router.
func SetupRouter(db *gorm.DB, cfg config.Config, verifier auth.Verifier, store cart.Store, notifier notify.Notifier, limiter *middleware.RateLimiter) *gin.Engine {
	cat := catalog.NewConf(db)
	return handlers.API(handlers.Deps{
		Catalog:  cat,
		Cart:     cart.NewService(store, cat),
		Orders:   orders.NewConf(db, notifier),
		Verifier: verifier,
		LoginURL: cfg.LoginURL,
		Limiter:  limiter,
		GinMode:  cfg.GinMode,
	})
}

func newVerifier(ctx context.Context, cfg config.Config) (auth.Verifier, error) {
	if cfg.AuthMode == config.AuthModeStatic {
		return auth.ParseStaticTokens(cfg.StaticTokens)
	}
	v, err := auth.NewOIDCVerifier(ctx, cfg.OIDCIssuer, cfg.OIDCClientID, cfg.AdminEmails)
	if err != nil {
		return nil, fmt.Errorf("init oidc: %w", err)
	}
	return v, nil
}

func newCartStore(ctx context.Context, cfg config.Config) (cart.Store, error) {
	switch cfg.CartStore {
	case config.CartStoreFile:
		return cart.NewFileStore(cfg.CartDir)
	case config.CartStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return cart.NewRedisStore(client, cfg.CartTTL), nil
	default:
		return cart.NewMemoryStore(), nil
	}
}

func newNotifier(cfg config.Config) notify.Notifier {
	if cfg.NotifySMTPAddr == "" {
		return notify.LogNotifier{}
	}
	return notify.NewSMTPNotifier(cfg.NotifySMTPAddr, cfg.NotifyFrom, cfg.NotifyTo, cfg.NotifyUser, cfg.NotifyPassword)
}
