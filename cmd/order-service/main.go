package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dmehra2102/storefront/pkg/auth"
	"github.com/dmehra2102/storefront/pkg/config"
	"github.com/dmehra2102/storefront/pkg/httpx"
	"github.com/dmehra2102/storefront/pkg/idempotency"
	"github.com/dmehra2102/storefront/pkg/logging"
	"github.com/dmehra2102/storefront/pkg/outbox"
	"github.com/dmehra2102/storefront/pkg/pgmigrate"
	"github.com/dmehra2102/storefront/pkg/shutdown"
	"github.com/dmehra2102/storefront/pkg/tracing"

	cartapp "github.com/dmehra2102/storefront/internal/cart/application"
	carthttp "github.com/dmehra2102/storefront/internal/cart/infrastructure/http"
	cartpg "github.com/dmehra2102/storefront/internal/cart/infrastructure/postgres"
	cartredis "github.com/dmehra2102/storefront/internal/cart/infrastructure/redis"
	catalogpg "github.com/dmehra2102/storefront/internal/catalog/infrastructure/postgres"
	couponapp "github.com/dmehra2102/storefront/internal/coupon/application"
	couponhttp "github.com/dmehra2102/storefront/internal/coupon/infrastructure/http"
	couponpg "github.com/dmehra2102/storefront/internal/coupon/infrastructure/postgres"
	"github.com/dmehra2102/storefront/internal/order/application"
	orderhttp "github.com/dmehra2102/storefront/internal/order/infrastructure/http"
	orderkafka "github.com/dmehra2102/storefront/internal/order/infrastructure/kafka"
	orderpg "github.com/dmehra2102/storefront/internal/order/infrastructure/postgres"
	paymentapp "github.com/dmehra2102/storefront/internal/payment/application"
	paymentpg "github.com/dmehra2102/storefront/internal/payment/infrastructure/postgres"
	"github.com/dmehra2102/storefront/internal/payment/infrastructure/razorpay"
	"github.com/dmehra2102/storefront/internal/pricing"
)

func main() {
	cfg, err := config.Load("order-service")
	log := logging.New(cfg.LogLevel)
	if err != nil {
		log.Error("config load failed", "err", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
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

	if err := pgmigrate.Up(cfg.PGURL); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	// Postgres Setup
	pool, err := pgxpool.New(ctx, cfg.PGURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("redis connect failed", "err", err)
		os.Exit(1)
	}

	// Kafka producer
	writer := orderkafka.NewWriter([]string{cfg.KafkaAddr})
	defer writer.Close()

	store := outbox.NewPGStore(log, pool)
	dispatch := outbox.NewDispatcher(log, writer, cfg.OutboxTopic)
	relay := outbox.NewRelay(log, store, dispatch, cfg.ServiceName+"-relay")

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

	products := catalogpg.NewRepository(log, pool)
	coupons := couponapp.NewService(couponpg.NewRepository(log, pool))
	carts := cartpg.NewRepository(log, pool)
	selections := cartredis.NewBuyNowStore(rdb, cfg.Checkout.BuyNowTTL)

	payments := paymentapp.NewService(log, gateway, paymentpg.NewRepository(log, pool), idempotency.NewStore(rdb, 24*time.Hour), paymentapp.Options{
		Timeout:     cfg.Razorpay.Timeout,
		MaxTries:    cfg.Razorpay.MaxTries,
		LockTTL:     cfg.Checkout.IntentLockTTL,
		LockWait:    cfg.Checkout.IntentLockWait,
		OrphanGrace: cfg.Checkout.OrphanGrace,
		SweepBatch:  cfg.Checkout.SweepBatch,
		Currency:    cfg.Razorpay.Currency,
	})

	orders := application.NewService(log, application.Deps{
		Orders:     orderpg.NewRepository(log, pool),
		Carts:      carts,
		BuyNow:     selections,
		Pricer:     pricing.NewEngine(products, coupons),
		Payments:   payments,
		Signatures: gateway,
	}, cfg.Checkout.SignatureMaxFailures)

	verifier := auth.NewVerifier(log, cfg.JWTSecret)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, httpx.RequestLogger(log), middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Mount("/cart", carthttp.NewHandler(log, cartapp.NewService(log, carts, products), cartapp.NewBuyNowService(selections, products), verifier).Routes())
	r.Mount("/coupon", couponhttp.NewHandler(log, coupons, verifier).Routes())
	r.Mount("/order", orderhttp.NewHandler(log, orders, verifier).Routes())

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      otelhttp.NewHandler(r, cfg.ServiceName),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return relay.Run(gctx)
	})
	g.Go(func() error {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("order-service stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("order-service shutdown complete")
}
