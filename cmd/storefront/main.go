// Package main запускает HTTP-сервер магазина.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/idyWilliams/nadinekollections-sub000/internal/config"
	"github.com/idyWilliams/nadinekollections-sub000/internal/handler"
	"github.com/idyWilliams/nadinekollections-sub000/internal/metrics"
	"github.com/idyWilliams/nadinekollections-sub000/internal/middleware"
	"github.com/idyWilliams/nadinekollections-sub000/internal/notification"
	"github.com/idyWilliams/nadinekollections-sub000/internal/paystack"
	"github.com/idyWilliams/nadinekollections-sub000/internal/repository"
	"github.com/idyWilliams/nadinekollections-sub000/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	// .env нужен только при локальном запуске.
	_ = godotenv.Load()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	reg := metrics.NewRegistry()

	var mailer notification.Mailer
	if len(cfg.KafkaBrokers) > 0 {
		mailer = notification.NewKafkaMailer(cfg.KafkaBrokers, cfg.KafkaEmailTopic)
		sugar.Infow("email jobs go to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaEmailTopic)
	} else {
		mailer = notification.NewLogMailer(logger)
	}
	defer mailer.Close()

	emitter := notification.NewEmitter(repo, mailer, logger, reg.NotificationsFailed)

	var verifier service.TransactionVerifier
	if cfg.PaystackSecretKey != "" {
		verifier = paystack.NewClient(cfg.PaystackBaseURL, cfg.PaystackSecretKey)
	} else {
		sugar.Warn("PAYSTACK_SECRET_KEY is not set, webhooks will be rejected")
	}

	svc := service.NewService(repo, emitter, verifier, reg, logger, service.Options{
		WebhookSecret:   cfg.PaystackSecretKey,
		PendingOrderTTL: cfg.PendingOrderTTL,
		ReapInterval:    cfg.ReapInterval,
		ReapBatchSize:   cfg.ReapBatchSize,
	})
	defer svc.Close()

	var promoLimiter *middleware.RateLimiter
	if cfg.RedisAddress != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddress})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			sugar.Warnw("redis is unreachable, rate limiting fails open", "error", err.Error())
		}
		cancel()

		promoLimiter = middleware.NewRateLimiter(rdb, "promo", cfg.PromoRateLimit, time.Minute, logger, reg.RateLimited)
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret)
	h := handler.NewHandler(svc, logger, authMiddleware, promoLimiter, reg.Handler())

	var root http.Handler = h.SetupRouter()
	if cfg.TrustProxy {
		root = chimiddleware.RealIP(root)
	}

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Сверка и отмена зависших неоплаченных заказов
	g.Go(func() error {
		svc.StartPendingOrderReaper(ctx)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting storefront server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
