package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dmehra2102/storefront/internal/payment/application"
	paymentkafka "github.com/dmehra2102/storefront/internal/payment/infrastructure/kafka"
	pg "github.com/dmehra2102/storefront/internal/payment/infrastructure/postgres"
	"github.com/dmehra2102/storefront/internal/payment/infrastructure/razorpay"
	"github.com/dmehra2102/storefront/pkg/config"
	"github.com/dmehra2102/storefront/pkg/idempotency"
	"github.com/dmehra2102/storefront/pkg/logging"
	"github.com/dmehra2102/storefront/pkg/shutdown"
	"github.com/dmehra2102/storefront/pkg/tracing"
)

// payment-service backs up checkout: it creates intents for placed orders the
// API could not reach the gateway for, and sweeps orders that slipped through.
// Its PaymentIntentCreated rows share the outbox table drained by the
// order-service relay.
func main() {
	cfg, err := config.Load("payment-service")
	log := logging.New(cfg.LogLevel)
	if err != nil {
		log.Error("config load failed", "err", err)
		os.Exit(1)
	}
	if err := cfg.ValidatePayments(); err != nil {
		log.Error("invalid config", "err", err)
		os.Exit(1)
	}

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, cfg.ServiceName, cfg.OTLPEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	pool, err := pgxpool.New(ctx, cfg.PGURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisDB := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisDB.Close()
	idem := idempotency.NewStore(redisDB, 24*time.Hour)

	gateway, err := razorpay.NewClient(razorpay.Config{
		KeyID:     cfg.Razorpay.KeyID,
		KeySecret: cfg.Razorpay.KeySecret,
		BaseURL:   cfg.Razorpay.BaseURL,
		Currency:  cfg.Razorpay.Currency,
	})
	if err != nil {
		log.Error("payment gateway init failed", "err", err)
		os.Exit(1)
	}

	svc := application.NewService(log, gateway, pg.NewRepository(log, pool), idem, application.Options{
		Timeout:     cfg.Razorpay.Timeout,
		MaxTries:    cfg.Razorpay.MaxTries,
		LockTTL:     cfg.Checkout.IntentLockTTL,
		LockWait:    cfg.Checkout.IntentLockWait,
		OrphanGrace: cfg.Checkout.OrphanGrace,
		SweepBatch:  cfg.Checkout.SweepBatch,
		Currency:    cfg.Razorpay.Currency,
	})
	consumer := paymentkafka.NewConsumer(log, []string{cfg.KafkaAddr}, cfg.OutboxTopic, cfg.ConsumerGrp, svc, idem)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Run(gctx)
	})
	g.Go(func() error {
		return svc.RunSweeper(gctx, cfg.Checkout.SweepInterval)
	})

	log.Info("payment-service started", "topic", cfg.OutboxTopic, "group", cfg.ConsumerGrp)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("payment-service stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("payment-service shutdown complete")
}
