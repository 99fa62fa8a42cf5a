package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/fjod/go_cart/checkout-engine/internal/catalog"
	"github.com/fjod/go_cart/checkout-engine/internal/challenge"
	"github.com/fjod/go_cart/checkout-engine/internal/config"
	h "github.com/fjod/go_cart/checkout-engine/internal/http"
	"github.com/fjod/go_cart/checkout-engine/internal/mandate"
	"github.com/fjod/go_cart/checkout-engine/internal/metrics"
	"github.com/fjod/go_cart/checkout-engine/internal/notify"
	"github.com/fjod/go_cart/checkout-engine/internal/pricing"
	"github.com/fjod/go_cart/checkout-engine/internal/publisher"
	"github.com/fjod/go_cart/checkout-engine/internal/repository"
	"github.com/fjod/go_cart/checkout-engine/internal/service"
	"github.com/fjod/go_cart/checkout-engine/internal/settlement"
	"github.com/fjod/go_cart/checkout-engine/internal/store"
	"github.com/fjod/go_cart/checkout-engine/internal/telemetry"
)

const serviceName = "checkout-engine"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := telemetry.InitLogger(cfg.LogLevel)
	if err := run(cfg, logger); err != nil {
		logger.Error("checkout-engine stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("checkout-engine starting...")
	ctx := context.Background()

	shutdownTracer, err := telemetry.SetupTracer(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("setup tracer: %w", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("tracer shutdown failed", "error", err)
		}
	}()

	// Catalog
	products, err := catalog.NewRepository(cfg.CatalogDBPath)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer products.Close()
	if err := products.RunMigrations(cfg.CatalogMigrationsPath); err != nil {
		return fmt.Errorf("migrate catalog: %w", err)
	}
	logger.Info("catalog ready", "path", cfg.CatalogDBPath)
	prices := catalog.NewGuardedLookup(products, cfg.CatalogTimeout, logger)

	checkouts, err := openCheckoutStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer checkouts.Close()

	codes, closeCodes, err := openCodeStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCodes()

	ledger, err := openLedger(cfg, logger)
	if err != nil {
		return err
	}
	defer ledger.Close()

	// Messaging
	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	var events publisher.OrderEventPublisher = publisher.NopPublisher{}
	runCtx, stopPublisher := context.WithCancel(ctx)
	publisherDone := make(chan struct{})
	if len(cfg.KafkaBrokers) > 0 {
		kn := notify.NewKafkaNotifier(cfg.KafkaBrokers...)
		defer kn.Close()
		notifier = kn

		kp := publisher.NewKafkaPublisher(logger, cfg.KafkaBrokers...)
		defer kp.Close()
		events = kp
		go func() {
			defer close(publisherDone)
			kp.Run(runCtx)
		}()
		logger.Info("kafka messaging enabled", "brokers", cfg.KafkaBrokers)
	} else {
		close(publisherDone)
	}
	defer func() {
		stopPublisher()
		<-publisherDone
	}()

	// Engine
	m := metrics.New()
	challengeOpts := []challenge.Option{challenge.WithLogger(logger)}
	if cfg.OTPTTL > 0 {
		challengeOpts = append(challengeOpts, challenge.WithCodeTTL(cfg.OTPTTL))
	}
	manager := challenge.NewManager(codes, notifier, challengeOpts...)
	processor := settlement.NewProcessor(mandate.NewStructuralValidator(logger), manager,
		settlement.WithRecorder(m),
		settlement.WithLogger(logger),
	)

	engine := pricing.New(cfg.TaxRate, cfg.ShippingFlatFee, cfg.Currency)
	checkoutService := service.NewCheckoutService(checkouts, prices, engine, ledger,
		service.WithPublisher(events),
		service.WithRecorder(m),
		service.WithLogger(logger),
	)
	paymentService := service.NewPaymentService(checkoutService, processor, logger)

	router := h.NewRouter(h.Handlers{
		Checkouts: h.NewCheckoutHandler(checkoutService, cfg.RequestTimeout),
		Payments:  h.NewPaymentHandler(paymentService, cfg.RequestTimeout),
		Products:  h.NewProductHandler(products, cfg.RequestTimeout),
		Orders:    h.NewOrdersHandler(checkoutService, cfg.RequestTimeout),
	}, m, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, serviceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// gRPC health
	lis, err := net.Listen("tcp", ":"+cfg.GRPCHealthPort)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.GRPCHealthPort, err)
	}
	grpcServer := telemetry.NewGRPCServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	// Enable reflection for grpcurl/grpcui
	reflection.Register(grpcServer)

	errCh := make(chan error, 2)
	go func() {
		logger.Info("grpc health listening", "port", cfg.GRPCHealthPort)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	go func() {
		logger.Info("http server listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down checkout-engine...", "signal", sig.String())
	case err := <-errCh:
		logger.Error("server failed", "error", err)
	}

	healthServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	grpcServer.GracefulStop()

	logger.Info("checkout-engine stopped")
	return nil
}

func openCheckoutStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.CheckoutRepository, error) {
	if cfg.CheckoutStore != config.StoreMongo {
		return store.NewMemoryStore(store.WithTTL(cfg.CheckoutTTL), store.WithLogger(logger)), nil
	}

	db, err := store.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return nil, err
	}
	s := store.NewMongoStore(db)
	if err := s.CreateIndexes(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	logger.Info("connected to mongodb", "database", cfg.MongoDatabase)
	return s, nil
}

// openCodeStore keeps OTPs in redis when REDIS_ADDR is set, in memory otherwise.
func openCodeStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (challenge.CodeStore, func(), error) {
	if cfg.RedisAddr == "" {
		return challenge.NewMemoryCodeStore(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("connected to redis", "addr", cfg.RedisAddr)
	return challenge.NewRedisCodeStore(client), func() { _ = client.Close() }, nil
}

func openLedger(cfg *config.Config, logger *slog.Logger) (repository.OrderRepository, error) {
	if cfg.OrderLedger != config.StorePostgres {
		return repository.NewMemoryRepository(), nil
	}

	creds := &repository.Credentials{
		Host:              cfg.DBHost,
		Port:              cfg.DBPort,
		User:              cfg.DBUser,
		Password:          cfg.DBPassword,
		DBName:            cfg.DBName,
		MigrationsDirPath: cfg.MigrationsPath,
	}
	repo, err := repository.NewPostgresRepository(creds)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := repo.RunMigrations(creds); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("order ledger migrations completed")
	return repo, nil
}
