package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/httpserver"
	"storefront/internal/metrics"
	"storefront/internal/notify"
	cartrepo "storefront/internal/repository/cart"
	customerrepo "storefront/internal/repository/customer"
	orderrepo "storefront/internal/repository/order"
	productrepo "storefront/internal/repository/product"
	tokenrepo "storefront/internal/repository/token"
	"storefront/internal/revocation"
	cartsvc "storefront/internal/service/cart"
	checkoutsvc "storefront/internal/service/checkout"
	customersvc "storefront/internal/service/customer"
	identitysvc "storefront/internal/service/identity"
	mergesvc "storefront/internal/service/merge"
	productsvc "storefront/internal/service/product"
	"storefront/internal/telemetry"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	base, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = base.Sync() }()
	logger := base.Named("api")

	ctx := context.Background()
	shutdownTracing, err := telemetry.InitTracing(ctx, logger, telemetry.Config{
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.OTLPEndpoint,
		SampleRatio: cfg.TraceSampling,
	})
	if err != nil {
		logger.Fatal("init tracing", zap.Error(err))
	}

	dbpool, err := db.Connect(ctx, cfg.DBConnString, db.Options{Logger: logger, MaxConns: cfg.DBMaxConns, Trace: cfg.OTLPEndpoint != ""})
	if err != nil {
		logger.Fatal("connect to db", zap.Error(err))
	}
	defer dbpool.Close()

	revoked := revocation.NewMemory()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("connect to redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		defer rdb.Close()
		revoked = revocation.NewRedis(rdb)
	} else {
		logger.Warn("REDIS_ADDR not set, guest revocations are kept in process memory")
	}

	var sender notify.Sender = notify.NewLogSender(logger)
	if brokers := notify.ParseBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		kafkaSender := notify.NewKafkaSender(brokers, cfg.KafkaTopic)
		defer kafkaSender.Close()
		sender = kafkaSender
	}
	dispatcher := notify.NewDispatcher(sender, logger)

	m := metrics.New(cfg.ServiceName)

	productRepo := productrepo.NewPostgres(dbpool, logger)
	cartRepo := cartrepo.NewPostgres(dbpool, logger)
	orderRepo := orderrepo.NewPostgres(dbpool, logger)
	customerRepo := customerrepo.NewPostgres(dbpool, logger)
	tokenRepo := tokenrepo.NewPostgres(dbpool, logger)

	identityService := identitysvc.New(cfg.JWTSecret, cfg.AccessTokenTTL, revoked, logger)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		Identity:     identityService,
		Products:     productsvc.New(productRepo),
		Carts:        cartsvc.New(cartRepo, productRepo, logger),
		Merge:        mergesvc.New(cartRepo, identityService, logger, m),
		Checkout:     checkoutsvc.New(cartRepo, productRepo, orderRepo, dispatcher, logger, m),
		Customers:    customersvc.New(customerRepo, tokenRepo, identityService, dispatcher, logger),
		Metrics:      m,
		CORSOrigins:  cfg.CORSOrigins,
		CookieSecure: cfg.CookieSecure,
	})
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	srv.SetShutdownTimeout(cfg.ShutdownTimeout)
	// In-flight notifications finish before the sender is closed.
	srv.AfterShutdown(func(context.Context) error {
		dispatcher.Wait()
		return nil
	})
	srv.AfterShutdown(shutdownTracing)

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := srv.Run(runCtx); err != nil {
		logger.Error("server exited", zap.Error(err))
	}
}
