package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gooseberrytechnovision/schooniverse-checkout/configs"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/adapter/cache"
	grpcadapter "github.com/gooseberrytechnovision/schooniverse-checkout/internal/adapter/grpc"
	httpadapter "github.com/gooseberrytechnovision/schooniverse-checkout/internal/adapter/http"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/adapter/http/middleware"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/adapter/kafka"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/adapter/payment"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/adapter/queue"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/adapter/repo"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/logging"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/usecase"
	_ "github.com/go-sql-driver/mysql"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg      configs.Config
	http     *http.Server
	health   *grpcadapter.HealthServer
	consumer *kafka.Consumer
	checkout *usecase.CheckoutService
}

func InitWithConfig(ctx context.Context, cfg configs.Config) (*App, func(), error) {
	log := logging.New("bootstrap")
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		closers = nil
	}
	fail := func(err error) (*App, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	// mysql
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		return fail(fmt.Errorf("open mysql: %w", err))
	}
	closers = append(closers, func() { _ = db.Close() })
	db.SetConnMaxLifetime(orDefault(cfg.MySQL.ConnMaxLifetime, 30*time.Minute))
	db.SetMaxOpenConns(orDefaultInt(cfg.MySQL.MaxOpenConns, 16))
	db.SetMaxIdleConns(orDefaultInt(cfg.MySQL.MaxIdleConns, 16))

	pctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		return fail(fmt.Errorf("ping mysql: %w", err))
	}

	// redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	closers = append(closers, func() { _ = rdb.Close() })
	if err := rdb.Ping(pctx).Err(); err != nil {
		return fail(fmt.Errorf("ping redis: %w", err))
	}

	// rabbitmq: one channel publishes, one consumes
	conn, err := amqp.Dial(cfg.Rabbit.URL)
	if err != nil {
		return fail(fmt.Errorf("dial rabbitmq: %w", err))
	}
	closers = append(closers, func() { _ = conn.Close() })
	pubCh, err := conn.Channel()
	if err != nil {
		return fail(fmt.Errorf("open publish channel: %w", err))
	}
	subCh, err := conn.Channel()
	if err != nil {
		return fail(fmt.Errorf("open consume channel: %w", err))
	}

	// infra
	orders := repo.NewMySQLOrderRepo(db)
	payments := repo.NewMySQLPaymentRepo(db)
	carts := repo.NewMySQLCartRepo(db)
	idem := cache.NewRedisIdempotencyStore(rdb, cfg.Idempotency.TTL)
	outcomes := cache.NewRedisOutcomeStore(rdb, cfg.Idempotency.OutcomeTTL)
	producer, err := queue.NewRabbitProducer(pubCh)
	if err != nil {
		return fail(err)
	}

	shipping, err := decimal.NewFromString(orDefaultStr(cfg.Checkout.ShippingCharge, "500"))
	if err != nil {
		return fail(fmt.Errorf("checkout.shipping_charge: %w", err))
	}

	// use cases
	backend := usecase.NewOrderBackend(orders, payments, carts, idem, producer, usecase.GatewaySettings{
		ClientID:       cfg.Checkout.ClientID,
		Env:            cfg.Checkout.GatewayEnv,
		Currency:       cfg.Checkout.Currency,
		CallbackURL:    cfg.Checkout.CallbackURL,
		ShippingCharge: shipping,
	})
	authority := payment.NewAuthorityClient(payment.AuthorityConfig{
		BaseURL:       cfg.PaymentAuthority.BaseURL,
		APIKey:        cfg.PaymentAuthority.APIKey,
		Authorization: cfg.PaymentAuthority.Authorization,
		Timeout:       cfg.PaymentAuthority.Timeout,
	}, nil)
	policy := usecase.DefaultRetryPolicy()
	if n := cfg.PaymentAuthority.Attempts; n > 0 {
		policy.Attempts = n
	}
	policy.BaseDelay = orDefault(cfg.PaymentAuthority.BaseDelay, policy.BaseDelay)
	policy.MaxDelay = orDefault(cfg.PaymentAuthority.MaxDelay, policy.MaxDelay)
	policy.AttemptTimeout = orDefault(cfg.PaymentAuthority.Timeout, policy.AttemptTimeout)

	registry := usecase.NewSessionRegistry()
	finalizer := usecase.NewFinalizer(outcomes, backend, registry)
	verifier := usecase.NewVerifier(authority, policy)
	checkout := usecase.NewCheckoutService(
		carts,
		usecase.NewPlaceOrder(backend, shipping),
		finalizer,
		verifier,
		usecase.NewEventBus(cfg.Checkout.EventBuffer),
		registry,
		usecase.CheckoutConfig{SessionTTL: cfg.Checkout.SessionTTL, MaxReconciles: cfg.Checkout.MaxReconciles},
	)
	closers = append(closers, checkout.Close)
	settle := usecase.NewSettlePayment(finalizer, registry)

	// queue consumers
	qr := queue.NewRouter(subCh,
		queue.WithPrefetch(orDefaultInt(cfg.Rabbit.Prefetch, 50)),
		queue.WithTimeout(orDefault(cfg.Rabbit.Timeout, 10*time.Second)),
	)
	qr.Subscribe(queue.CartClearQueue, queue.Decode(queue.NewCartClearHandler(carts).HandleSuccess))
	if err := qr.Start(ctx); err != nil {
		return fail(fmt.Errorf("start queue router: %w", err))
	}

	// kafka gateway status stream
	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		grp, err := kafka.NewGroup(kafka.GroupConfig{
			Brokers:      cfg.Kafka.Brokers,
			GroupID:      cfg.Kafka.GroupID,
			ClientID:     cfg.App.Name,
			OffsetOldest: cfg.Kafka.OffsetOldest,
		})
		if err != nil {
			return fail(fmt.Errorf("kafka group: %w", err))
		}
		closers = append(closers, func() { _ = grp.Close() })
		consumer = kafka.NewConsumer(grp, []string{cfg.Kafka.TopicStatus}, kafka.NewPaymentStatusChangedHandler(settle).Handle, kafka.Retry{})
	}

	// http
	router := httpadapter.NewRouter(httpadapter.Handlers{
		Token:    httpadapter.NewTokenHandler(cfg),
		Checkout: httpadapter.NewCheckoutHandler(checkout, cfg.HTTP.RequestTimeout),
		Cart:     httpadapter.NewCartHandler(carts, cfg.HTTP.RequestTimeout),
		Orders:   httpadapter.NewOrderHandler(backend, cfg.HTTP.RequestTimeout),
	}, middleware.NewAuthz(cfg), logging.New("http"))

	srv := &http.Server{
		Addr:         cfg.App.HTTPAddr,
		Handler:      router,
		ReadTimeout:  orDefault(cfg.HTTP.ReadTimeout, 10*time.Second),
		WriteTimeout: orDefault(cfg.HTTP.WriteTimeout, 15*time.Second),
		IdleTimeout:  orDefault(cfg.HTTP.IdleTimeout, 60*time.Second),
	}

	health := grpcadapter.NewHealthServer(map[string]grpcadapter.Pinger{
		"mysql": grpcadapter.PingFunc(db.PingContext),
		"redis": grpcadapter.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
	}, 10*time.Second)

	log.Info("checkout-api wired", "kafka", cfg.Kafka.Enabled)
	return &App{cfg: cfg, http: srv, health: health, consumer: consumer, checkout: checkout}, cleanup, nil
}

// Run serves until ctx is cancelled or a server fails, then drains.
func (a *App) Run(ctx context.Context) error {
	// Bind before any goroutine starts so a bad address leaves nothing running.
	var grpcLis net.Listener
	if a.cfg.GRPC.Addr != "" {
		lis, err := net.Listen("tcp", a.cfg.GRPC.Addr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		grpcLis = lis
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})

	if grpcLis != nil {
		g.Go(func() error { return a.health.Serve(gctx, grpcLis) })
	}

	if a.consumer != nil {
		g.Go(func() error {
			if err := a.consumer.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("kafka: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), orDefault(a.cfg.HTTP.ShutdownTimeout, 15*time.Second))
		defer cancel()
		err := a.http.Shutdown(sctx)
		a.checkout.Close()
		return err
	})

	return g.Wait()
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func orDefaultInt(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

func orDefaultStr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
