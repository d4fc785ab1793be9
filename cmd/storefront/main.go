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

	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/cache"
	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/config"
	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/consumer"
	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/domain"
	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/gateway"
	h "github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/http"
	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/publisher"
	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/repository"
	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/service"
	"github.com/ProyectosVibeCoding/pretty-lady-boutique/pkg/circuitbreaker"
	"github.com/ProyectosVibeCoding/pretty-lady-boutique/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "storefront: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Service: cfg.App.Name,
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// MongoDB: cart items
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	mongoDB, err := repository.ConnectMongoDB(connectCtx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return err
	}
	defer func() { _ = mongoDB.Client().Disconnect(context.Background()) }()
	cartRepo := repository.NewMongoRepository(mongoDB)
	if err := cartRepo.CreateIndexes(connectCtx); err != nil {
		return fmt.Errorf("create cart indexes: %w", err)
	}
	log.Info("connected to MongoDB", zap.String("database", cfg.Mongo.Database))

	// Postgres: orders, payments, outbox, profiles
	ordersDB, err := repository.ConnectPostgres(connectCtx, cfg.Postgres.DSN())
	if err != nil {
		return err
	}
	if err := repository.MigrateOrders(ordersDB); err != nil {
		ordersDB.Close()
		return fmt.Errorf("migrate orders: %w", err)
	}
	orders := repository.NewPostgresRepository(ordersDB)
	defer orders.Close()
	log.Info("connected to Postgres", zap.String("host", cfg.Postgres.Host))

	// SQLite: catalog
	catalogDB, err := repository.OpenSQLite(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	if err := repository.MigrateCatalog(catalogDB); err != nil {
		catalogDB.Close()
		return fmt.Errorf("migrate catalog: %w", err)
	}
	catalog := repository.NewCatalogRepository(catalogDB)
	defer catalog.Close()

	// Redis: cart cache and checkout sessions
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(connectCtx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	cartCache := cache.NewRedisCache(redisClient, cfg.Redis.CartTTL)
	sessions := cache.NewRedisSessionStore(redisClient, cfg.Redis.SessionTTL)

	gw := gateway.NewBreaker(
		gateway.NewSimulated(cfg.Checkout.GatewayDelay, cfg.Checkout.ApprovalRate, nil),
		circuitbreaker.DefaultConfig("payment-gateway"),
		log,
	)
	pipeline := service.NewOrderPipeline(orders, orders, gw, service.PipelineConfig{
		ShippingCost:   cfg.Checkout.ShippingCost,
		GatewayTimeout: cfg.Checkout.GatewayTimeout,
	}, log.Named("pipeline"))
	checkout := service.NewCheckoutService(sessions, orders, pipeline, log.Named("checkout"))

	carts := service.NewCarts(cartRepo, catalog, cartCache, log.Named("cart"))
	newCart := func(_ context.Context, id domain.Identity) *service.CartService {
		return carts.For(id)
	}

	router := h.NewRouter(h.Handlers{
		Cart:     h.NewCartHandler(newCart, cfg.HTTP.RequestTimeout),
		Checkout: h.NewCheckoutHandler(checkout, newCart, cfg.Checkout.ShippingCost, cfg.HTTP.RequestTimeout),
		Orders:   h.NewOrdersHandler(service.NewOrderQueryService(orders), cfg.HTTP.RequestTimeout),
		Products: h.NewProductHandler(service.NewCatalogService(catalog), cfg.HTTP.RequestTimeout),
	}, h.RouterConfig{
		JWTSecret:      []byte(cfg.Auth.JWTSecret),
		RequestTimeout: cfg.HTTP.RequestTimeout + cfg.Checkout.GatewayTimeout,
	}, log.Named("http"))

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      otelhttp.NewHandler(router, "storefront"),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	poller := publisher.NewOutboxPoller(orders, publisher.Config{
		Brokers:      cfg.Kafka.Brokers,
		Topic:        cfg.Kafka.Topic,
		PollInterval: cfg.Kafka.PollInterval,
		BatchSize:    cfg.Kafka.BatchSize,
	}, log)
	sweeper := consumer.NewCartSweeper(cartRepo, cartCache, consumer.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		GroupID: cfg.Kafka.GroupID,
	}, log.Named("sweeper"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("storefront listening", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return poller.Run(gctx)
	})
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("storefront stopped with error", zap.Error(err))
		return err
	}
	log.Info("storefront stopped")
	return nil
}
